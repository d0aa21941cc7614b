package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/jwtpizza/pkg/auth"
	"github.com/platinummonkey/jwtpizza/pkg/httputil"
	"github.com/platinummonkey/jwtpizza/pkg/middleware"
)

// userList is the body of GET /api/user
type userList struct {
	Users []*auth.User `json:"users"`
	More  bool         `json:"more"`
}

// UserHandlers handles user account reads and updates
type UserHandlers struct {
	auth  AuthService
	guard *middleware.AuthMiddleware
}

// NewUserHandlers creates user handlers
func NewUserHandlers(service AuthService, guard *middleware.AuthMiddleware) *UserHandlers {
	return &UserHandlers{auth: service, guard: guard}
}

// RegisterRoutes registers the /user routes. All of them require a token.
func (h *UserHandlers) RegisterRoutes(router *mux.Router) {
	users := router.PathPrefix("/user").Subrouter()
	users.Use(h.guard.Require)

	users.HandleFunc("/me", h.getMe).Methods("GET")
	users.Handle("", h.guard.RequireAdmin(http.HandlerFunc(h.listUsers))).Methods("GET")
	users.HandleFunc("/{userId:[0-9]+}", h.getUser).Methods("GET")
	users.HandleFunc("/{userId:[0-9]+}", h.updateUser).Methods("PUT")
	users.HandleFunc("/{userId:[0-9]+}", h.deleteUser).Methods("DELETE")
}

// getMe handles GET /api/user/me
func (h *UserHandlers) getMe(w http.ResponseWriter, r *http.Request) {
	httputil.WriteSuccess(w, middleware.GetIdentity(r).User())
}

// listUsers handles GET /api/user?page=&limit=&name=
func (h *UserHandlers) listUsers(w http.ResponseWriter, r *http.Request) {
	page, ok := httputil.QueryIntOrError(w, r, "page", 0)
	if !ok {
		return
	}
	limit, ok := httputil.QueryIntOrError(w, r, "limit", 10)
	if !ok {
		return
	}

	users, more, err := h.auth.ListUsers(r.Context(), middleware.GetIdentity(r), auth.ListUsersQuery{
		Page:       page,
		Limit:      limit,
		NameFilter: httputil.QueryString(r, "name", "*"),
	})
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, userList{Users: users, More: more})
}

// getUser handles GET /api/user/{userId}
func (h *UserHandlers) getUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.PathIDOrError(w, r, "userId")
	if !ok {
		return
	}

	user, err := h.auth.GetUser(r.Context(), middleware.GetIdentity(r), userID)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, user)
}

// updateUser handles PUT /api/user/{userId}
func (h *UserHandlers) updateUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.PathIDOrError(w, r, "userId")
	if !ok {
		return
	}
	var req auth.UpdateUserRequest
	if !httputil.DecodeBodyOrError(w, r, &req) {
		return
	}

	user, token, err := h.auth.UpdateUser(r.Context(), middleware.GetIdentity(r), userID, req)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, authResponse{User: user, Token: token})
}

// deleteUser handles DELETE /api/user/{userId}
func (h *UserHandlers) deleteUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.PathIDOrError(w, r, "userId")
	if !ok {
		return
	}

	if err := h.auth.DeleteUser(r.Context(), middleware.GetIdentity(r), userID); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteMessage(w, "user deleted")
}
