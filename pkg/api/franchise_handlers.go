package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/jwtpizza/pkg/franchises"
	"github.com/platinummonkey/jwtpizza/pkg/httputil"
	"github.com/platinummonkey/jwtpizza/pkg/middleware"
)

// FranchiseHandlers handles franchises and their stores
type FranchiseHandlers struct {
	franchises FranchiseService
	guard      *middleware.AuthMiddleware
}

// NewFranchiseHandlers creates franchise handlers
func NewFranchiseHandlers(service FranchiseService, guard *middleware.AuthMiddleware) *FranchiseHandlers {
	return &FranchiseHandlers{franchises: service, guard: guard}
}

// RegisterRoutes registers the /franchise routes
func (h *FranchiseHandlers) RegisterRoutes(router *mux.Router) {
	require := h.guard.Require
	admin := func(fn http.HandlerFunc) http.Handler {
		return require(h.guard.RequireAdmin(fn))
	}

	router.Handle("/franchise", h.guard.Optional(http.HandlerFunc(h.listFranchises))).Methods("GET")
	router.Handle("/franchise", admin(h.createFranchise)).Methods("POST")
	router.Handle("/franchise/{userId:[0-9]+}", require(http.HandlerFunc(h.getUserFranchises))).Methods("GET")
	router.Handle("/franchise/{franchiseId:[0-9]+}", admin(h.deleteFranchise)).Methods("DELETE")
	router.Handle("/franchise/{franchiseId:[0-9]+}/store", require(http.HandlerFunc(h.createStore))).Methods("POST")
	router.Handle("/franchise/{franchiseId:[0-9]+}/store/{storeId:[0-9]+}", require(http.HandlerFunc(h.deleteStore))).Methods("DELETE")
}

// listFranchises handles GET /api/franchise?page=&limit=&name=
func (h *FranchiseHandlers) listFranchises(w http.ResponseWriter, r *http.Request) {
	page, ok := httputil.QueryIntOrError(w, r, "page", 0)
	if !ok {
		return
	}
	limit, ok := httputil.QueryIntOrError(w, r, "limit", 10)
	if !ok {
		return
	}

	list, err := h.franchises.ListFranchises(r.Context(), middleware.GetIdentity(r), franchises.ListQuery{
		Page:       page,
		Limit:      limit,
		NameFilter: httputil.QueryString(r, "name", "*"),
	})
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, list)
}

// getUserFranchises handles GET /api/franchise/{userId}
func (h *FranchiseHandlers) getUserFranchises(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.PathIDOrError(w, r, "userId")
	if !ok {
		return
	}

	list, err := h.franchises.GetUserFranchises(r.Context(), middleware.GetIdentity(r), userID)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, list)
}

// createFranchise handles POST /api/franchise
func (h *FranchiseHandlers) createFranchise(w http.ResponseWriter, r *http.Request) {
	var req franchises.CreateFranchiseRequest
	if !httputil.DecodeBodyOrError(w, r, &req) {
		return
	}

	franchise, err := h.franchises.CreateFranchise(r.Context(), middleware.GetIdentity(r), req)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, franchise)
}

// deleteFranchise handles DELETE /api/franchise/{franchiseId}
func (h *FranchiseHandlers) deleteFranchise(w http.ResponseWriter, r *http.Request) {
	franchiseID, ok := httputil.PathIDOrError(w, r, "franchiseId")
	if !ok {
		return
	}

	if err := h.franchises.DeleteFranchise(r.Context(), middleware.GetIdentity(r), franchiseID); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteMessage(w, "franchise deleted")
}

// createStore handles POST /api/franchise/{franchiseId}/store
func (h *FranchiseHandlers) createStore(w http.ResponseWriter, r *http.Request) {
	franchiseID, ok := httputil.PathIDOrError(w, r, "franchiseId")
	if !ok {
		return
	}
	var req franchises.CreateStoreRequest
	if !httputil.DecodeBodyOrError(w, r, &req) {
		return
	}

	store, err := h.franchises.CreateStore(r.Context(), middleware.GetIdentity(r), franchiseID, req)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, store)
}

// deleteStore handles DELETE /api/franchise/{franchiseId}/store/{storeId}
func (h *FranchiseHandlers) deleteStore(w http.ResponseWriter, r *http.Request) {
	franchiseID, ok := httputil.PathIDOrError(w, r, "franchiseId")
	if !ok {
		return
	}
	storeID, ok := httputil.PathIDOrError(w, r, "storeId")
	if !ok {
		return
	}

	if err := h.franchises.DeleteStore(r.Context(), middleware.GetIdentity(r), franchiseID, storeID); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteMessage(w, "store deleted")
}
