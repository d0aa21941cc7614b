package factory

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/jwtpizza/pkg/observability"
	"github.com/platinummonkey/jwtpizza/pkg/orders"
)

func testOrder() *orders.Order {
	return &orders.Order{
		ID:          9,
		FranchiseID: 1,
		StoreID:     1,
		Date:        time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Items:       []orders.OrderItem{{MenuID: 1, Description: "Veggie", Price: 0.05}},
	}
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(Config{URL: server.URL + "/", APIKey: "factory-key", Timeout: 2 * time.Second})
}

func TestClient_Submit_Accepted(t *testing.T) {
	var gotAuth string
	var gotBody map[string]json.RawMessage

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/order", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_, _ = w.Write([]byte(`{"jwt":"factory.signed.token","reportUrl":"https://factory/report/1"}`))
	})

	receipt, err := client.Submit(context.Background(), orders.Diner{ID: 3, Name: "pizza diner", Email: "d@jwt.com"}, testOrder())
	require.NoError(t, err)
	assert.Equal(t, "factory.signed.token", receipt.JWT)
	assert.Equal(t, "https://factory/report/1", receipt.ReportURL)
	assert.Equal(t, "Bearer factory-key", gotAuth)
	assert.JSONEq(t, `{"id":3,"name":"pizza diner","email":"d@jwt.com"}`, string(gotBody["diner"]))
	assert.Contains(t, string(gotBody["order"]), `"menuId":1`)
}

func TestClient_Submit_Failures(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantMessage string
		wantReport  string
	}{
		{
			name:        "ok false",
			status:      http.StatusOK,
			body:        `{"ok":false,"message":"oven on fire","reportUrl":"https://factory/report/2"}`,
			wantMessage: "oven on fire",
			wantReport:  "https://factory/report/2",
		},
		{
			name:        "server error",
			status:      http.StatusInternalServerError,
			body:        `{"message":"boom","reportUrl":"https://factory/report/3"}`,
			wantMessage: "boom",
			wantReport:  "https://factory/report/3",
		},
		{
			name:        "non json error",
			status:      http.StatusBadGateway,
			body:        `upstream down`,
			wantMessage: "Failed to fulfill order at factory",
		},
		{
			name:        "missing token",
			status:      http.StatusOK,
			body:        `{"reportUrl":"https://factory/report/4"}`,
			wantMessage: "factory returned no verification token",
			wantReport:  "https://factory/report/4",
		},
		{
			name:        "invalid json",
			status:      http.StatusOK,
			body:        `{not json`,
			wantMessage: "invalid factory response",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			receipt, err := client.Submit(context.Background(), orders.Diner{ID: 1}, testOrder())
			assert.Nil(t, receipt)

			var fe *orders.FactoryError
			require.True(t, errors.As(err, &fe), "expected *orders.FactoryError, got %v", err)
			assert.Equal(t, tt.wantMessage, fe.Message)
			assert.Equal(t, tt.wantReport, fe.ReportURL)
		})
	}
}

func TestClient_Submit_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	client := NewClient(Config{URL: url, Timeout: time.Second})
	_, err := client.Submit(context.Background(), orders.Diner{ID: 1}, testOrder())

	var fe *orders.FactoryError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "factory unavailable", fe.Message)
	assert.Error(t, fe.Unwrap())
}

func TestClient_Submit_RecordsMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"jwt":"a.b.c"}`))
	}).WithMetrics(metrics)

	_, err := client.Submit(context.Background(), orders.Diner{ID: 1}, testOrder())
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.FactoryRequestsTotal.WithLabelValues(OutcomeAccepted)))
}
