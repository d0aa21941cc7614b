package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/platinummonkey/jwtpizza/pkg/auth"
	"github.com/platinummonkey/jwtpizza/pkg/contextkeys"
	"github.com/platinummonkey/jwtpizza/pkg/httputil"
	"github.com/platinummonkey/jwtpizza/pkg/observability"
)

// Rejection reasons. They are logged and counted, never sent to the client.
const (
	ReasonMissingToken    = "missing_token"
	ReasonMalformedHeader = "malformed_header"
	ReasonInvalidToken    = "invalid_token"
	ReasonExpiredToken    = "expired_token"
	ReasonRevokedToken    = "revoked_token"
	ReasonUnknownUser     = "unknown_user"
)

const unauthorizedMessage = "unauthorized"

// Authenticator resolves a bearer token to a verified identity
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*auth.Identity, error)
}

// AuthMiddleware guards routes with bearer token authentication. Every
// presented token is checked against the signature, the expiry and the
// token ledger.
type AuthMiddleware struct {
	authenticator Authenticator
	metrics       *observability.Metrics
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(authenticator Authenticator) *AuthMiddleware {
	return &AuthMiddleware{authenticator: authenticator}
}

// WithMetrics enables the rejection counter
func (m *AuthMiddleware) WithMetrics(metrics *observability.Metrics) *AuthMiddleware {
	m.metrics = metrics
	return m
}

// Require rejects the request with 401 unless it carries a live token
func (m *AuthMiddleware) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, reason := bearerToken(r)
		if reason != "" {
			m.reject(w, r, reason, nil)
			return
		}

		identity, err := m.authenticator.Authenticate(r.Context(), token)
		if err != nil {
			reason, known := classify(err)
			if !known {
				httputil.WriteAppError(w, r, err)
				return
			}
			m.reject(w, r, reason, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), identity)))
	})
}

// Optional attaches the identity when a live token is presented and
// otherwise lets the request through anonymously
func (m *AuthMiddleware) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, reason := bearerToken(r)
		if reason != "" {
			next.ServeHTTP(w, r)
			return
		}

		identity, err := m.authenticator.Authenticate(r.Context(), token)
		if err != nil {
			reason, known := classify(err)
			if !known {
				httputil.WriteAppError(w, r, err)
				return
			}
			observability.FromContext(r.Context()).
				WithField("reason", reason).
				Debug("ignoring invalid credential on optional route")
			next.ServeHTTP(w, r)
			return
		}

		next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), identity)))
	})
}

// RequireAdmin answers 403 unless the authenticated identity is a global
// admin. It must run after Require.
func (m *AuthMiddleware) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity := GetIdentity(r)
		if identity == nil {
			m.reject(w, r, ReasonMissingToken, nil)
			return
		}
		if !identity.IsAdmin() {
			observability.FromContext(r.Context()).Info("admin route denied")
			httputil.WriteForbidden(w, unauthorizedMessage)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (m *AuthMiddleware) reject(w http.ResponseWriter, r *http.Request, reason string, err error) {
	m.metrics.RecordRejection(reason)
	logger := observability.FromContext(r.Context()).WithField("reason", reason)
	if err != nil {
		logger = logger.WithError(err)
	}
	logger.Info("request rejected")
	httputil.WriteUnauthorized(w, unauthorizedMessage)
}

// GetIdentity returns the identity attached by the guard, or nil
func GetIdentity(r *http.Request) *auth.Identity {
	identity, _ := contextkeys.Identity(r.Context()).(*auth.Identity)
	return identity
}

func withIdentity(ctx context.Context, identity *auth.Identity) context.Context {
	ctx = contextkeys.WithIdentity(ctx, identity)
	return contextkeys.WithUserID(ctx, identity.UserID)
}

// bearerToken extracts the token from "Authorization: Bearer <token>"
func bearerToken(r *http.Request) (string, string) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", ReasonMissingToken
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", ReasonMalformedHeader
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", ReasonMalformedHeader
	}
	return token, ""
}

func classify(err error) (string, bool) {
	switch {
	case errors.Is(err, auth.ErrNoCredential):
		return ReasonMissingToken, true
	case errors.Is(err, auth.ErrTokenExpired):
		return ReasonExpiredToken, true
	case errors.Is(err, auth.ErrTokenMalformed), errors.Is(err, auth.ErrTokenSignature):
		return ReasonInvalidToken, true
	case errors.Is(err, auth.ErrTokenRevoked):
		return ReasonRevokedToken, true
	case errors.Is(err, auth.ErrUnknownSubject):
		return ReasonUnknownUser, true
	default:
		return "", false
	}
}
