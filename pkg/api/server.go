package api

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/jwtpizza/pkg/httputil"
	"github.com/platinummonkey/jwtpizza/pkg/middleware"
	"github.com/platinummonkey/jwtpizza/pkg/observability"
)

// defaultMaxBodyBytes caps request bodies when Options leaves it unset
const defaultMaxBodyBytes = 1 << 20

// Services groups the domain services the API exposes
type Services struct {
	Auth       AuthService
	Franchises FranchiseService
	Orders     OrderService
}

// Options configures the HTTP surface
type Options struct {
	Version      string
	FactoryURL   string
	CORSOrigins  []string
	MaxBodyBytes int64
	// LoginLimiter throttles PUT /api/auth per client; nil disables it
	LoginLimiter *middleware.RateLimiter
	Logger       *observability.Logger
	Metrics      *observability.Metrics
	// Tracing wraps the handler with otelhttp server spans
	Tracing bool
}

// Server represents our API server
type Server struct {
	router  *mux.Router
	handler http.Handler
}

// RouteRegistrar is an interface for types that can register routes
type RouteRegistrar interface {
	RegisterRoutes(router *mux.Router)
}

// NewServer wires the handlers onto a router under /api
func NewServer(services Services, guard *middleware.AuthMiddleware, opts Options) *Server {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaultMaxBodyBytes
	}
	if opts.Logger == nil {
		opts.Logger = observability.GetLogger(context.Background())
	}

	s := &Server{router: mux.NewRouter()}
	s.router.NotFoundHandler = http.HandlerFunc(notFound)
	s.router.MethodNotAllowedHandler = http.HandlerFunc(notFound)
	if opts.Metrics != nil {
		s.router.Use(observability.HTTPMetricsMiddleware(opts.Metrics))
	}

	docs := NewDocsHandlers(opts.Version, opts.FactoryURL)
	s.router.HandleFunc("/", docs.welcome).Methods("GET")

	api := s.router.PathPrefix("/api").Subrouter()
	api.NotFoundHandler = http.HandlerFunc(notFound)
	api.MethodNotAllowedHandler = http.HandlerFunc(notFound)

	registrars := []RouteRegistrar{
		NewAuthHandlers(services.Auth, guard, opts.LoginLimiter),
		NewUserHandlers(services.Auth, guard),
		NewFranchiseHandlers(services.Franchises, guard),
		NewOrderHandlers(services.Orders, guard),
		docs,
	}
	for _, registrar := range registrars {
		registrar.RegisterRoutes(api)
	}

	var handler http.Handler = s.router
	handler = httputil.Chain(
		httputil.RequestIDMiddleware,
		httputil.LoggingMiddleware(opts.Logger),
		httputil.RecoveryMiddleware,
		httputil.CORSMiddleware(opts.CORSOrigins),
		httputil.MaxBytesMiddleware(opts.MaxBodyBytes),
	)(handler)
	if opts.Tracing {
		handler = observability.InstrumentHandler(handler, "jwt-pizza-api")
	}
	s.handler = handler
	return s
}

// Router exposes the underlying router
func (s *Server) Router() *mux.Router {
	return s.router
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}
