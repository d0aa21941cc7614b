package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/jwtpizza/pkg/auth"
	"github.com/platinummonkey/jwtpizza/pkg/httputil"
	"github.com/platinummonkey/jwtpizza/pkg/middleware"
)

// authResponse is returned by register, login and user update
type authResponse struct {
	User  *auth.User `json:"user"`
	Token string     `json:"token"`
}

// AuthHandlers handles registration and sessions
type AuthHandlers struct {
	auth    AuthService
	guard   *middleware.AuthMiddleware
	limiter *middleware.RateLimiter
}

// NewAuthHandlers creates auth handlers. limiter may be nil to disable login throttling.
func NewAuthHandlers(service AuthService, guard *middleware.AuthMiddleware, limiter *middleware.RateLimiter) *AuthHandlers {
	return &AuthHandlers{auth: service, guard: guard, limiter: limiter}
}

// RegisterRoutes registers the /auth routes
func (h *AuthHandlers) RegisterRoutes(router *mux.Router) {
	var login http.Handler = http.HandlerFunc(h.login)
	if h.limiter != nil {
		login = middleware.RateLimit(h.limiter)(login)
	}

	router.HandleFunc("/auth", h.register).Methods("POST")
	router.Handle("/auth", login).Methods("PUT")
	router.Handle("/auth", h.guard.Require(http.HandlerFunc(h.logout))).Methods("DELETE")
}

// register handles POST /api/auth
func (h *AuthHandlers) register(w http.ResponseWriter, r *http.Request) {
	var req auth.RegisterRequest
	if !httputil.DecodeBodyOrError(w, r, &req) {
		return
	}

	user, token, err := h.auth.Register(r.Context(), req)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, authResponse{User: user, Token: token})
}

// login handles PUT /api/auth
func (h *AuthHandlers) login(w http.ResponseWriter, r *http.Request) {
	var req auth.LoginRequest
	if !httputil.DecodeBodyOrError(w, r, &req) {
		return
	}

	user, token, err := h.auth.Login(r.Context(), req)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, authResponse{User: user, Token: token})
}

// logout handles DELETE /api/auth
func (h *AuthHandlers) logout(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r)
	if err := h.auth.Logout(r.Context(), identity.Token); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteMessage(w, "logout successful")
}
