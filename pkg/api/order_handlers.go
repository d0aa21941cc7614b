package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/jwtpizza/pkg/httputil"
	"github.com/platinummonkey/jwtpizza/pkg/middleware"
	"github.com/platinummonkey/jwtpizza/pkg/orders"
)

// OrderHandlers handles the menu and diner orders
type OrderHandlers struct {
	orders OrderService
	guard  *middleware.AuthMiddleware
}

// NewOrderHandlers creates order handlers
func NewOrderHandlers(service OrderService, guard *middleware.AuthMiddleware) *OrderHandlers {
	return &OrderHandlers{orders: service, guard: guard}
}

// RegisterRoutes registers the /order routes
func (h *OrderHandlers) RegisterRoutes(router *mux.Router) {
	require := h.guard.Require

	router.HandleFunc("/order/menu", h.getMenu).Methods("GET")
	router.Handle("/order/menu", require(h.guard.RequireAdmin(http.HandlerFunc(h.addMenuItem)))).Methods("PUT")
	router.Handle("/order", require(http.HandlerFunc(h.listOrders))).Methods("GET")
	router.Handle("/order", require(http.HandlerFunc(h.createOrder))).Methods("POST")
}

// getMenu handles GET /api/order/menu
func (h *OrderHandlers) getMenu(w http.ResponseWriter, r *http.Request) {
	menu, err := h.orders.GetMenu(r.Context())
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, menu)
}

// addMenuItem handles PUT /api/order/menu
func (h *OrderHandlers) addMenuItem(w http.ResponseWriter, r *http.Request) {
	var req orders.AddMenuItemRequest
	if !httputil.DecodeBodyOrError(w, r, &req) {
		return
	}

	menu, err := h.orders.AddMenuItem(r.Context(), middleware.GetIdentity(r), req)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, menu)
}

// listOrders handles GET /api/order?page=
func (h *OrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	page, ok := httputil.QueryIntOrError(w, r, "page", 1)
	if !ok {
		return
	}

	history, err := h.orders.ListOrders(r.Context(), middleware.GetIdentity(r), page)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, history)
}

// createOrder handles POST /api/order. A factory rejection is a 500 carrying
// the factory's message and report link.
func (h *OrderHandlers) createOrder(w http.ResponseWriter, r *http.Request) {
	var req orders.OrderRequest
	if !httputil.DecodeBodyOrError(w, r, &req) {
		return
	}

	result, err := h.orders.SubmitOrder(r.Context(), middleware.GetIdentity(r), req)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, result)
}
