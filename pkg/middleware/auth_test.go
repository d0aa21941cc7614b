package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/jwtpizza/pkg/auth"
	"github.com/platinummonkey/jwtpizza/pkg/contextkeys"
	"github.com/platinummonkey/jwtpizza/pkg/observability"
)

type stubAuthenticator struct {
	identities map[string]*auth.Identity
	errs       map[string]error
	calls      int
}

func (s *stubAuthenticator) Authenticate(ctx context.Context, token string) (*auth.Identity, error) {
	s.calls++
	if err, ok := s.errs[token]; ok {
		return nil, err
	}
	if identity, ok := s.identities[token]; ok {
		return identity, nil
	}
	return nil, auth.ErrTokenRevoked
}

func newStub() *stubAuthenticator {
	return &stubAuthenticator{
		identities: map[string]*auth.Identity{
			"diner-token": {UserID: 2, Name: "pizza diner", Roles: []auth.Role{auth.DinerRole()}},
			"admin-token": {UserID: 1, Name: "常用名字", Roles: []auth.Role{auth.AdminRole()}},
		},
		errs: map[string]error{
			"expired":   auth.ErrTokenExpired,
			"forged":    auth.ErrTokenSignature,
			"garbage":   fmt.Errorf("%w: bad segment", auth.ErrTokenMalformed),
			"orphan":    auth.ErrUnknownSubject,
			"db-broken": errors.New("connection refused"),
		},
	}
}

func okHandler(called *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthMiddleware_Require(t *testing.T) {
	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantReason string
	}{
		{name: "no header", header: "", wantStatus: http.StatusUnauthorized, wantReason: ReasonMissingToken},
		{name: "basic auth", header: "Basic Zm9vOmJhcg==", wantStatus: http.StatusUnauthorized, wantReason: ReasonMalformedHeader},
		{name: "bearer without token", header: "Bearer ", wantStatus: http.StatusUnauthorized, wantReason: ReasonMalformedHeader},
		{name: "expired", header: "Bearer expired", wantStatus: http.StatusUnauthorized, wantReason: ReasonExpiredToken},
		{name: "bad signature", header: "Bearer forged", wantStatus: http.StatusUnauthorized, wantReason: ReasonInvalidToken},
		{name: "malformed", header: "Bearer garbage", wantStatus: http.StatusUnauthorized, wantReason: ReasonInvalidToken},
		{name: "revoked", header: "Bearer logged-out", wantStatus: http.StatusUnauthorized, wantReason: ReasonRevokedToken},
		{name: "deleted user", header: "Bearer orphan", wantStatus: http.StatusUnauthorized, wantReason: ReasonUnknownUser},
		{name: "storage failure", header: "Bearer db-broken", wantStatus: http.StatusInternalServerError},
		{name: "valid", header: "Bearer diner-token", wantStatus: http.StatusOK},
		{name: "lowercase scheme", header: "bearer diner-token", wantStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			metrics := observability.NewMetrics(prometheus.NewRegistry())
			m := NewAuthMiddleware(newStub()).WithMetrics(metrics)

			called := false
			req := httptest.NewRequest(http.MethodGet, "/api/user/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			m.Require(okHandler(&called)).ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantStatus == http.StatusOK, called)
			if tt.wantStatus == http.StatusUnauthorized {
				assert.JSONEq(t, `{"message":"unauthorized"}`, w.Body.String())
				assert.Equal(t, 1.0, testutil.ToFloat64(metrics.AuthRejectionsTotal.WithLabelValues(tt.wantReason)))
			}
			if tt.wantStatus == http.StatusInternalServerError {
				assert.NotContains(t, w.Body.String(), "connection refused")
			}
		})
	}
}

func TestAuthMiddleware_RequireAttachesIdentity(t *testing.T) {
	m := NewAuthMiddleware(newStub())

	var got *auth.Identity
	var userID int64
	handler := m.Require(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = GetIdentity(r)
		userID = contextkeys.GetUserID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer diner-token")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	require.NotNil(t, got)
	assert.Equal(t, int64(2), got.UserID)
	assert.Equal(t, int64(2), userID)
}

func TestAuthMiddleware_Optional(t *testing.T) {
	stub := newStub()
	m := NewAuthMiddleware(stub)

	var got *auth.Identity
	called := false
	handler := m.Optional(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		got = GetIdentity(r)
	}))

	t.Run("anonymous", func(t *testing.T) {
		called, got = false, nil
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
		assert.True(t, called)
		assert.Nil(t, got)
	})

	t.Run("invalid token is ignored", func(t *testing.T) {
		called, got = false, nil
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer expired")
		handler.ServeHTTP(httptest.NewRecorder(), req)
		assert.True(t, called)
		assert.Nil(t, got)
	})

	t.Run("valid token", func(t *testing.T) {
		called, got = false, nil
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer admin-token")
		handler.ServeHTTP(httptest.NewRecorder(), req)
		require.NotNil(t, got)
		assert.True(t, got.IsAdmin())
	})

	t.Run("storage failure", func(t *testing.T) {
		called = false
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer db-broken")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		assert.False(t, called)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestAuthMiddleware_RequireAdmin(t *testing.T) {
	m := NewAuthMiddleware(newStub())

	tests := []struct {
		name       string
		token      string
		wantStatus int
	}{
		{name: "admin", token: "admin-token", wantStatus: http.StatusOK},
		{name: "diner", token: "diner-token", wantStatus: http.StatusForbidden},
		{name: "anonymous", token: "", wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			handler := m.Require(m.RequireAdmin(okHandler(&called)))

			req := httptest.NewRequest(http.MethodPost, "/api/franchise", nil)
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantStatus == http.StatusOK, called)
		})
	}
}

func TestRequireAdmin_WithoutGuard(t *testing.T) {
	m := NewAuthMiddleware(newStub())
	called := false

	w := httptest.NewRecorder()
	m.RequireAdmin(okHandler(&called)).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.False(t, called)
}
