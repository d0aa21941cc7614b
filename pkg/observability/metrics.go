package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// Auth metrics
	AuthEventsTotal     *prometheus.CounterVec
	AuthRejectionsTotal *prometheus.CounterVec

	// Factory metrics
	FactoryRequestsTotal   *prometheus.CounterVec
	FactoryRequestDuration prometheus.Histogram

	// Business metrics
	OrdersSubmittedTotal *prometheus.CounterVec
	MenuCacheHitsTotal   *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pizza_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pizza_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		HTTPResponseSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pizza_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 6),
			},
			[]string{"method", "route"},
		),

		AuthEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pizza_auth_events_total",
				Help: "Authentication events by type",
			},
			[]string{"event"},
		),
		AuthRejectionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pizza_auth_rejections_total",
				Help: "Requests rejected by the authorization guard, by internal reason",
			},
			[]string{"reason"},
		),

		FactoryRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pizza_factory_requests_total",
				Help: "Orders forwarded to the pizza factory by outcome",
			},
			[]string{"outcome"},
		),
		FactoryRequestDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "pizza_factory_request_duration_seconds",
				Help:    "Pizza factory call latency in seconds",
				Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
			},
		),

		OrdersSubmittedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pizza_orders_submitted_total",
				Help: "Orders persisted, by factory outcome",
			},
			[]string{"status"},
		),
		MenuCacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pizza_menu_cache_requests_total",
				Help: "Menu cache lookups by result",
			},
			[]string{"result"},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPResponseSize,
		m.AuthEventsTotal,
		m.AuthRejectionsTotal,
		m.FactoryRequestsTotal,
		m.FactoryRequestDuration,
		m.OrdersSubmittedTotal,
		m.MenuCacheHitsTotal,
	)

	return m
}

// RecordAuthEvent counts a register/login/logout event. Safe on a nil receiver.
func (m *Metrics) RecordAuthEvent(event string) {
	if m == nil {
		return
	}
	m.AuthEventsTotal.WithLabelValues(event).Inc()
}

// RecordRejection counts a guard rejection. Safe on a nil receiver.
func (m *Metrics) RecordRejection(reason string) {
	if m == nil {
		return
	}
	m.AuthRejectionsTotal.WithLabelValues(reason).Inc()
}

// RecordFactoryCall records the outcome and latency of one factory call. Safe on a nil receiver.
func (m *Metrics) RecordFactoryCall(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.FactoryRequestsTotal.WithLabelValues(outcome).Inc()
	m.FactoryRequestDuration.Observe(duration.Seconds())
}

// RecordOrder counts a persisted order. Safe on a nil receiver.
func (m *Metrics) RecordOrder(status string) {
	if m == nil {
		return
	}
	m.OrdersSubmittedTotal.WithLabelValues(status).Inc()
}

// RecordMenuCache counts a menu cache hit or miss. Safe on a nil receiver.
func (m *Metrics) RecordMenuCache(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.MenuCacheHitsTotal.WithLabelValues(result).Inc()
}

// responseWriter wraps http.ResponseWriter to capture status code and size
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += n
	return n, err
}

// routeLabel uses the mux path template so ids do not explode label cardinality
func routeLabel(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return "unmatched"
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics
func HTTPMetricsMiddleware(metrics *Metrics) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rw, r)

			route := routeLabel(r)
			status := strconv.Itoa(rw.statusCode)

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
			metrics.HTTPResponseSize.WithLabelValues(r.Method, route).Observe(float64(rw.bytesWritten))
		})
	}
}

// RegisterMetricsEndpoint registers the /metrics endpoint
func RegisterMetricsEndpoint(mux *http.ServeMux, registry *prometheus.Registry) {
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}
