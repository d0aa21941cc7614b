// Package api is the HTTP surface of the pizza service.
//
// Every route lives under /api and is registered by a handler type with a
// RegisterRoutes method (auth, user, franchise, order, docs). Handlers decode
// the request, read the verified identity placed on the context by
// middleware.AuthMiddleware, call the domain service and encode the result.
// Failures are written by httputil.WriteAppError as {"message": ...} bodies.
//
// Server wires the handlers onto a gorilla/mux router and wraps it with the
// request id, access log, panic recovery, CORS, body size, Prometheus and
// OpenTelemetry middleware.
package api
