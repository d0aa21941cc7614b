package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/platinummonkey/jwtpizza/pkg/apperrors"
	"github.com/platinummonkey/jwtpizza/pkg/observability"
	"github.com/platinummonkey/jwtpizza/pkg/rbac"
	"github.com/platinummonkey/jwtpizza/pkg/storage"
)

// Auth event names recorded in metrics
const (
	EventRegister    = "register"
	EventLogin       = "login"
	EventLoginFailed = "login_failed"
	EventLogout      = "logout"
	EventUpdate      = "update"
)

const invalidCredentials = "invalid credentials"

// RegisterRequest is the body of POST /api/auth
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest is the body of PUT /api/auth
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UpdateUserRequest is the body of PUT /api/user/{userId}
type UpdateUserRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Service implements the authentication operations
type Service struct {
	users   UserStore
	ledger  Ledger
	codec   *TokenCodec
	hasher  *PasswordHasher
	metrics *observability.Metrics
}

// NewService creates an authentication service
func NewService(users UserStore, ledger Ledger, codec *TokenCodec, hasher *PasswordHasher) *Service {
	return &Service{
		users:  users,
		ledger: ledger,
		codec:  codec,
		hasher: hasher,
	}
}

// WithMetrics enables auth event counters
func (s *Service) WithMetrics(metrics *observability.Metrics) *Service {
	s.metrics = metrics
	return s
}

// Register creates a diner account and signs it in. A taken email is a Conflict.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*User, string, error) {
	if isBlank(req.Name) || isBlank(req.Email) || isBlank(req.Password) {
		return nil, "", apperrors.Validation("name, email, and password are required")
	}

	_, err := s.users.GetUserByEmail(ctx, req.Email)
	switch {
	case err == nil:
		return nil, "", apperrors.Conflict("email already registered")
	case !errors.Is(err, storage.ErrNotFound):
		return nil, "", apperrors.Internal("failed to check email", err)
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, "", apperrors.Validation("password cannot be used")
	}

	user, err := s.users.CreateUser(ctx, &User{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: hash,
		Roles:        []Role{DinerRole()},
	})
	if err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return nil, "", apperrors.Conflict("email already registered")
		}
		return nil, "", apperrors.Internal("failed to create user", err)
	}

	token, err := s.issue(ctx, user.ID)
	if err != nil {
		return nil, "", err
	}

	s.metrics.RecordAuthEvent(EventRegister)
	observability.FromContext(ctx).WithField("user_id", user.ID).Info("user registered")
	return user, token, nil
}

// Login verifies credentials and issues a fresh token. An unknown email and a
// wrong password produce the same Unauthorized error.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*User, string, error) {
	if req.Email == "" || req.Password == "" {
		s.metrics.RecordAuthEvent(EventLoginFailed)
		return nil, "", apperrors.Unauthorized(invalidCredentials)
	}

	user, err := s.users.GetUserByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.hasher.CompareDummy(req.Password)
			s.metrics.RecordAuthEvent(EventLoginFailed)
			observability.FromContext(ctx).Info("login rejected: unknown email")
			return nil, "", apperrors.Unauthorized(invalidCredentials)
		}
		return nil, "", apperrors.Internal("failed to load user", err)
	}

	if err := s.hasher.Compare(user.PasswordHash, req.Password); err != nil {
		if errors.Is(err, ErrPasswordMismatch) {
			s.metrics.RecordAuthEvent(EventLoginFailed)
			observability.FromContext(ctx).WithField("user_id", user.ID).Info("login rejected: password mismatch")
			return nil, "", apperrors.Unauthorized(invalidCredentials)
		}
		return nil, "", apperrors.Internal("failed to verify password", err)
	}

	token, err := s.issue(ctx, user.ID)
	if err != nil {
		return nil, "", err
	}

	s.metrics.RecordAuthEvent(EventLogin)
	return user, token, nil
}

// Logout revokes token. Revoking a token that is already gone succeeds.
func (s *Service) Logout(ctx context.Context, token string) error {
	if err := s.ledger.Revoke(ctx, token); err != nil {
		return apperrors.Internal("failed to revoke token", err)
	}
	s.metrics.RecordAuthEvent(EventLogout)
	return nil
}

// Authenticate resolves a bearer token to a live identity. Failures are
// ErrNoCredential, ErrTokenMalformed, ErrTokenSignature, ErrTokenExpired,
// ErrTokenRevoked or ErrUnknownSubject; anything else is a storage failure.
func (s *Service) Authenticate(ctx context.Context, token string) (*Identity, error) {
	userID, err := s.codec.Verify(token)
	if err != nil {
		return nil, err
	}

	active, err := s.ledger.IsActive(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("failed to check token ledger: %w", err)
	}
	if !active {
		return nil, ErrTokenRevoked
	}

	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrUnknownSubject
		}
		return nil, fmt.Errorf("failed to load token subject: %w", err)
	}

	return NewIdentity(user, token), nil
}

// UpdateUser changes the target's profile. Only the user or a global admin
// may do so. A fresh token for the target is returned; earlier tokens stay valid.
func (s *Service) UpdateUser(ctx context.Context, actor *Identity, targetID int64, req UpdateUserRequest) (*User, string, error) {
	if actor == nil {
		return nil, "", apperrors.Unauthorized("unauthorized")
	}
	if !rbac.CanActForUser(actor, targetID) {
		return nil, "", apperrors.Forbidden("unauthorized")
	}

	update := UserUpdate{Name: req.Name, Email: req.Email}
	if req.Password != "" {
		hash, err := s.hasher.Hash(req.Password)
		if err != nil {
			return nil, "", apperrors.Validation("password cannot be used")
		}
		update.PasswordHash = hash
	}

	user, err := s.users.UpdateUser(ctx, targetID, update)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrNotFound):
			return nil, "", apperrors.NotFound("user not found")
		case errors.Is(err, storage.ErrDuplicate):
			return nil, "", apperrors.Conflict("email already registered")
		default:
			return nil, "", apperrors.Internal("failed to update user", err)
		}
	}

	token, err := s.issue(ctx, user.ID)
	if err != nil {
		return nil, "", err
	}

	s.metrics.RecordAuthEvent(EventUpdate)
	return user, token, nil
}

// GetUser returns the account id to its owner or a global admin
func (s *Service) GetUser(ctx context.Context, actor *Identity, id int64) (*User, error) {
	if actor == nil {
		return nil, apperrors.Unauthorized("unauthorized")
	}
	if !rbac.CanActForUser(actor, id) {
		return nil, apperrors.Forbidden("unauthorized")
	}

	user, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperrors.NotFound("user not found")
		}
		return nil, apperrors.Internal("failed to load user", err)
	}
	return user, nil
}

// DeleteUser removes an account and revokes all of its tokens
func (s *Service) DeleteUser(ctx context.Context, actor *Identity, id int64) error {
	if actor == nil {
		return apperrors.Unauthorized("unauthorized")
	}
	if !rbac.CanActForUser(actor, id) {
		return apperrors.Forbidden("unauthorized")
	}

	if err := s.ledger.RevokeUser(ctx, id); err != nil {
		return apperrors.Internal("failed to revoke user tokens", err)
	}
	if err := s.users.DeleteUser(ctx, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperrors.NotFound("user not found")
		}
		return apperrors.Internal("failed to delete user", err)
	}

	observability.FromContext(ctx).WithField("deleted_user_id", id).Info("user deleted")
	return nil
}

// ListUsers pages through all accounts. Admin only.
func (s *Service) ListUsers(ctx context.Context, actor *Identity, query ListUsersQuery) ([]*User, bool, error) {
	if actor == nil || !actor.IsAdmin() {
		return nil, false, apperrors.Forbidden("unauthorized")
	}

	query = normalizeListQuery(query)
	users, more, err := s.users.ListUsers(ctx, query)
	if err != nil {
		return nil, false, apperrors.Internal("failed to list users", err)
	}
	return users, more, nil
}

// EnsureAdmin creates a global admin account unless the email is already registered
func (s *Service) EnsureAdmin(ctx context.Context, name, email, password string) (*User, error) {
	existing, err := s.users.GetUserByEmail(ctx, email)
	if err == nil {
		if !existing.IsAdmin() {
			observability.FromContext(ctx).WithField("email", email).Warn("bootstrap admin email belongs to a non-admin account")
		}
		return existing, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up admin: %w", err)
	}

	if name == "" {
		name = "admin"
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}

	user, err := s.users.CreateUser(ctx, &User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Roles:        []Role{AdminRole()},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create admin: %w", err)
	}

	observability.FromContext(ctx).WithField("user_id", user.ID).Info("bootstrap admin created")
	return user, nil
}

func (s *Service) issue(ctx context.Context, userID int64) (string, error) {
	token, expiresAt, err := s.codec.Issue(userID)
	if err != nil {
		return "", apperrors.Internal("failed to issue token", err)
	}
	if err := s.ledger.Record(ctx, token, userID, expiresAt); err != nil {
		return "", apperrors.Internal("failed to record token", err)
	}
	return token, nil
}

func normalizeListQuery(q ListUsersQuery) ListUsersQuery {
	q.Page = storage.ClampPage(q.Page, 0)
	if q.Limit <= 0 || q.Limit > 100 {
		q.Limit = 10
	}
	if q.NameFilter == "" {
		q.NameFilter = "*"
	}
	return q
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
