package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/jwtpizza/pkg/httputil"
)

// Endpoint describes one route in the /api/docs catalogue
type Endpoint struct {
	Method       string `json:"method"`
	Path         string `json:"path"`
	RequiresAuth bool   `json:"requiresAuth"`
	Description  string `json:"description"`
}

// DocsResponse is the body of GET /api/docs
type DocsResponse struct {
	Version   string            `json:"version"`
	Endpoints []Endpoint        `json:"endpoints"`
	Config    map[string]string `json:"config"`
}

var endpoints = []Endpoint{
	{"POST", "/api/auth", false, "Register a new diner"},
	{"PUT", "/api/auth", false, "Login existing user"},
	{"DELETE", "/api/auth", true, "Logout a user"},
	{"GET", "/api/user/me", true, "Get authenticated user"},
	{"GET", "/api/user", true, "List users (admin)"},
	{"GET", "/api/user/:userId", true, "Get a user"},
	{"PUT", "/api/user/:userId", true, "Update user"},
	{"DELETE", "/api/user/:userId", true, "Delete user"},
	{"GET", "/api/franchise", false, "List franchises"},
	{"GET", "/api/franchise/:userId", true, "List a user's franchises"},
	{"POST", "/api/franchise", true, "Create a franchise (admin)"},
	{"DELETE", "/api/franchise/:franchiseId", true, "Delete a franchise (admin)"},
	{"POST", "/api/franchise/:franchiseId/store", true, "Create a franchise store"},
	{"DELETE", "/api/franchise/:franchiseId/store/:storeId", true, "Delete a store"},
	{"GET", "/api/order/menu", false, "Get the pizza menu"},
	{"PUT", "/api/order/menu", true, "Add an item to the menu (admin)"},
	{"GET", "/api/order", true, "Get the orders for the authenticated user"},
	{"POST", "/api/order", true, "Create an order for the authenticated user"},
}

// DocsHandlers serves the endpoint catalogue and the welcome message
type DocsHandlers struct {
	version    string
	factoryURL string
}

// NewDocsHandlers creates docs handlers
func NewDocsHandlers(version, factoryURL string) *DocsHandlers {
	return &DocsHandlers{version: version, factoryURL: factoryURL}
}

// RegisterRoutes registers /docs on the /api router
func (h *DocsHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/docs", h.docs).Methods("GET")
}

// docs handles GET /api/docs
func (h *DocsHandlers) docs(w http.ResponseWriter, r *http.Request) {
	httputil.WriteSuccess(w, DocsResponse{
		Version:   h.version,
		Endpoints: endpoints,
		Config:    map[string]string{"factory": h.factoryURL},
	})
}

// welcome handles GET /
func (h *DocsHandlers) welcome(w http.ResponseWriter, r *http.Request) {
	httputil.WriteSuccess(w, map[string]string{
		"message": "welcome to JWT Pizza",
		"version": h.version,
	})
}

// notFound answers every unmatched path or method
func notFound(w http.ResponseWriter, r *http.Request) {
	httputil.WriteNotFoundError(w, "unknown endpoint")
}
