package factory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/platinummonkey/jwtpizza/pkg/observability"
	"github.com/platinummonkey/jwtpizza/pkg/orders"
)

// Call outcomes recorded in metrics
const (
	OutcomeAccepted = "accepted"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// maxResponseBytes bounds how much of a factory response is read
const maxResponseBytes = 1 << 20

// Config holds the factory endpoint settings
type Config struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

// Client submits orders to the pizza factory. Each order is sent once;
// there are no retries.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
	metrics *observability.Metrics
}

type orderPayload struct {
	Diner orders.Diner  `json:"diner"`
	Order *orders.Order `json:"order"`
}

type orderResponse struct {
	JWT       string `json:"jwt"`
	ReportURL string `json:"reportUrl"`
	Message   string `json:"message"`
	OK        *bool  `json:"ok"`
}

// NewClient creates a factory client. The transport is instrumented with
// OpenTelemetry so factory calls join the request trace.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		apiKey:  cfg.APIKey,
		client: &http.Client{
			Timeout:   timeout,
			Transport: observability.InstrumentTransport(http.DefaultTransport),
		},
	}
}

// WithMetrics enables factory call counters
func (c *Client) WithMetrics(metrics *observability.Metrics) *Client {
	c.metrics = metrics
	return c
}

// WithHTTPClient replaces the underlying HTTP client
func (c *Client) WithHTTPClient(client *http.Client) *Client {
	c.client = client
	return c
}

// Submit sends the order to POST <url>/api/order. The call succeeds only when
// the factory answers 2xx, does not report ok=false and returns a token.
// Failures are *orders.FactoryError.
func (c *Client) Submit(ctx context.Context, diner orders.Diner, order *orders.Order) (*orders.FactoryReceipt, error) {
	start := time.Now()
	receipt, outcome, err := c.submit(ctx, diner, order)
	c.metrics.RecordFactoryCall(outcome, time.Since(start))
	return receipt, err
}

func (c *Client) submit(ctx context.Context, diner orders.Diner, order *orders.Order) (*orders.FactoryReceipt, string, error) {
	payload, err := json.Marshal(orderPayload{Diner: diner, Order: order})
	if err != nil {
		return nil, OutcomeError, &orders.FactoryError{Message: "failed to encode order", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/order", bytes.NewReader(payload))
	if err != nil {
		return nil, OutcomeError, &orders.FactoryError{Message: "failed to create factory request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, OutcomeError, &orders.FactoryError{Message: "factory unavailable", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, OutcomeError, &orders.FactoryError{Message: "failed to read factory response", Err: err}
	}

	var parsed orderResponse
	decodeErr := json.Unmarshal(body, &parsed)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, OutcomeRejected, &orders.FactoryError{
			Message:   messageOr(parsed.Message, "Failed to fulfill order at factory"),
			ReportURL: parsed.ReportURL,
			Err:       fmt.Errorf("factory returned status %d", resp.StatusCode),
		}
	}
	if decodeErr != nil {
		return nil, OutcomeError, &orders.FactoryError{Message: "invalid factory response", Err: decodeErr}
	}
	if parsed.OK != nil && !*parsed.OK {
		return nil, OutcomeRejected, &orders.FactoryError{
			Message:   messageOr(parsed.Message, "Failed to fulfill order at factory"),
			ReportURL: parsed.ReportURL,
		}
	}
	if parsed.JWT == "" {
		return nil, OutcomeRejected, &orders.FactoryError{
			Message:   messageOr(parsed.Message, "factory returned no verification token"),
			ReportURL: parsed.ReportURL,
		}
	}

	return &orders.FactoryReceipt{JWT: parsed.JWT, ReportURL: parsed.ReportURL}, OutcomeAccepted, nil
}

func messageOr(message, fallback string) string {
	if message != "" {
		return message
	}
	return fallback
}
