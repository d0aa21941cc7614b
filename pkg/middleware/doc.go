// Package middleware provides the HTTP authorization guard and request
// throttling.
//
// AuthMiddleware turns an "Authorization: Bearer <token>" header into a
// verified *auth.Identity:
//
//	guard := middleware.NewAuthMiddleware(authService).WithMetrics(metrics)
//	router.Handle("/api/user/me", guard.Require(meHandler))
//	router.Handle("/api/franchise", guard.Optional(listHandler))
//	router.Handle("/api/order/menu", guard.Require(guard.RequireAdmin(addMenuHandler)))
//
// Require answers 401 {"message":"unauthorized"} before any handler runs when
// the header is missing or malformed, or when the token is forged, expired,
// revoked or belongs to a deleted user. The specific reason is logged and
// counted in pizza_auth_rejections_total but never returned. Handlers read
// the caller with GetIdentity.
//
// RateLimit throttles requests per client IP with a token bucket and is
// mounted on the login route.
package middleware
