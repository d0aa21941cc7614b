package auth_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/platinummonkey/jwtpizza/pkg/apperrors"
	"github.com/platinummonkey/jwtpizza/pkg/auth"
	"github.com/platinummonkey/jwtpizza/pkg/storage"
	"github.com/platinummonkey/jwtpizza/pkg/storage/memory"
)

func newMockService(t *testing.T) (*auth.Service, *memory.Store) {
	t.Helper()
	store := memory.New()
	codec := auth.NewTokenCodec([]byte("service-test-secret"), time.Hour)
	return auth.NewService(store, store, codec, auth.NewPasswordHasher(bcrypt.MinCost)), store
}

func register(t *testing.T, svc *auth.Service, name, email, password string) (*auth.User, string) {
	t.Helper()
	user, token, err := svc.Register(context.Background(), auth.RegisterRequest{Name: name, Email: email, Password: password})
	require.NoError(t, err)
	return user, token
}

func TestService_RegisterLoginAuthenticate(t *testing.T) {
	svc, _ := newMockService(t)
	ctx := context.Background()

	user, token := register(t, svc, "pizza diner", "d@jwt.com", "diner")
	assert.NotZero(t, user.ID)
	assert.Equal(t, []auth.Role{auth.DinerRole()}, user.Roles)
	assert.NotEqual(t, "diner", user.PasswordHash)

	identity, err := svc.Authenticate(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, identity.UserID)

	loggedIn, loginToken, err := svc.Login(ctx, auth.LoginRequest{Email: "d@jwt.com", Password: "diner"})
	require.NoError(t, err)
	assert.Equal(t, user.ID, loggedIn.ID)
	assert.NotEqual(t, token, loginToken)

	identity, err = svc.Authenticate(ctx, loginToken)
	require.NoError(t, err)
	assert.Equal(t, "d@jwt.com", identity.Email)
	assert.Equal(t, loginToken, identity.Token)
}

func TestService_Register_Validation(t *testing.T) {
	svc, _ := newMockService(t)

	tests := []struct {
		name string
		req  auth.RegisterRequest
	}{
		{name: "missing name", req: auth.RegisterRequest{Email: "a@jwt.com", Password: "x"}},
		{name: "missing email", req: auth.RegisterRequest{Name: "a", Password: "x"}},
		{name: "missing password", req: auth.RegisterRequest{Name: "a", Email: "a@jwt.com"}},
		{name: "blank name", req: auth.RegisterRequest{Name: "  ", Email: "a@jwt.com", Password: "x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := svc.Register(context.Background(), tt.req)
			assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
		})
	}
}

func TestService_Register_DuplicateEmail(t *testing.T) {
	svc, _ := newMockService(t)
	register(t, svc, "first", "dup@jwt.com", "a")

	_, _, err := svc.Register(context.Background(), auth.RegisterRequest{Name: "second", Email: "dup@jwt.com", Password: "b"})
	assert.Equal(t, apperrors.KindConflict, apperrors.KindOf(err))
}

func TestService_Login_IndistinguishableFailures(t *testing.T) {
	svc, _ := newMockService(t)
	register(t, svc, "pizza diner", "d@jwt.com", "diner")
	ctx := context.Background()

	_, _, unknownErr := svc.Login(ctx, auth.LoginRequest{Email: "nobody@jwt.com", Password: "diner"})
	_, _, wrongErr := svc.Login(ctx, auth.LoginRequest{Email: "d@jwt.com", Password: "wrong"})

	require.Error(t, unknownErr)
	require.Error(t, wrongErr)
	assert.Equal(t, apperrors.KindUnauthorized, apperrors.KindOf(unknownErr))
	assert.Equal(t, unknownErr.Error(), wrongErr.Error())
}

func TestService_LogoutRevokes(t *testing.T) {
	svc, _ := newMockService(t)
	ctx := context.Background()
	_, token := register(t, svc, "pizza diner", "d@jwt.com", "diner")

	require.NoError(t, svc.Logout(ctx, token))

	_, err := svc.Authenticate(ctx, token)
	assert.ErrorIs(t, err, auth.ErrTokenRevoked)

	// logging out twice succeeds
	assert.NoError(t, svc.Logout(ctx, token))
}

func TestService_LogoutLeavesOtherTokens(t *testing.T) {
	svc, _ := newMockService(t)
	ctx := context.Background()
	_, first := register(t, svc, "pizza diner", "d@jwt.com", "diner")
	_, second, err := svc.Login(ctx, auth.LoginRequest{Email: "d@jwt.com", Password: "diner"})
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, first))

	_, err = svc.Authenticate(ctx, second)
	assert.NoError(t, err)
}

func TestService_Authenticate_Failures(t *testing.T) {
	svc, store := newMockService(t)
	ctx := context.Background()
	user, token := register(t, svc, "pizza diner", "d@jwt.com", "diner")

	_, err := svc.Authenticate(ctx, "")
	assert.ErrorIs(t, err, auth.ErrNoCredential)

	_, err = svc.Authenticate(ctx, "not.a.token")
	assert.ErrorIs(t, err, auth.ErrTokenMalformed)

	// a validly signed token that was never recorded is rejected
	codec := auth.NewTokenCodec([]byte("service-test-secret"), time.Hour)
	unrecorded, _, err := codec.Issue(user.ID)
	require.NoError(t, err)
	_, err = svc.Authenticate(ctx, unrecorded)
	assert.ErrorIs(t, err, auth.ErrTokenRevoked)

	require.NoError(t, store.DeleteUser(ctx, user.ID))
	_, err = svc.Authenticate(ctx, token)
	assert.ErrorIs(t, err, auth.ErrUnknownSubject)
}

func TestService_UpdateUser(t *testing.T) {
	svc, _ := newMockService(t)
	ctx := context.Background()
	user, token := register(t, svc, "pizza diner", "d@jwt.com", "diner")
	other, _ := register(t, svc, "other", "o@jwt.com", "other")

	actor, err := svc.Authenticate(ctx, token)
	require.NoError(t, err)

	t.Run("other user is forbidden", func(t *testing.T) {
		_, _, err := svc.UpdateUser(ctx, actor, other.ID, auth.UpdateUserRequest{Name: "hacked"})
		assert.Equal(t, apperrors.KindForbidden, apperrors.KindOf(err))
	})

	t.Run("self update reissues token", func(t *testing.T) {
		updated, fresh, err := svc.UpdateUser(ctx, actor, user.ID, auth.UpdateUserRequest{Name: "new name", Password: "newpass"})
		require.NoError(t, err)
		assert.Equal(t, "new name", updated.Name)
		assert.Equal(t, "d@jwt.com", updated.Email)

		_, err = svc.Authenticate(ctx, fresh)
		assert.NoError(t, err)
		_, err = svc.Authenticate(ctx, token)
		assert.NoError(t, err, "earlier tokens stay valid")

		_, _, err = svc.Login(ctx, auth.LoginRequest{Email: "d@jwt.com", Password: "newpass"})
		assert.NoError(t, err)
	})

	t.Run("email collision", func(t *testing.T) {
		_, _, err := svc.UpdateUser(ctx, actor, user.ID, auth.UpdateUserRequest{Email: "o@jwt.com"})
		assert.Equal(t, apperrors.KindConflict, apperrors.KindOf(err))
	})
}

func TestService_AdminCanManageUsers(t *testing.T) {
	svc, _ := newMockService(t)
	ctx := context.Background()

	admin, err := svc.EnsureAdmin(ctx, "常用名字", "a@jwt.com", "admin")
	require.NoError(t, err)
	assert.True(t, admin.IsAdmin())

	again, err := svc.EnsureAdmin(ctx, "常用名字", "a@jwt.com", "admin")
	require.NoError(t, err)
	assert.Equal(t, admin.ID, again.ID)

	_, adminToken, err := svc.Login(ctx, auth.LoginRequest{Email: "a@jwt.com", Password: "admin"})
	require.NoError(t, err)
	adminID, err := svc.Authenticate(ctx, adminToken)
	require.NoError(t, err)

	diner, dinerToken := register(t, svc, "pizza diner", "d@jwt.com", "diner")
	dinerID, err := svc.Authenticate(ctx, dinerToken)
	require.NoError(t, err)

	got, err := svc.GetUser(ctx, adminID, diner.ID)
	require.NoError(t, err)
	assert.Equal(t, diner.Email, got.Email)

	_, _, err = svc.ListUsers(ctx, dinerID, auth.ListUsersQuery{})
	assert.Equal(t, apperrors.KindForbidden, apperrors.KindOf(err))

	users, more, err := svc.ListUsers(ctx, adminID, auth.ListUsersQuery{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, users, 1)
	assert.True(t, more)

	users, _, err = svc.ListUsers(ctx, adminID, auth.ListUsersQuery{NameFilter: "pizza*"})
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, diner.ID, users[0].ID)

	require.NoError(t, svc.DeleteUser(ctx, adminID, diner.ID))
	_, err = svc.Authenticate(ctx, dinerToken)
	assert.True(t, errors.Is(err, auth.ErrTokenRevoked) || errors.Is(err, auth.ErrUnknownSubject))

	err = svc.DeleteUser(ctx, adminID, diner.ID)
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
}

type failingLedger struct {
	auth.Ledger
}

func (failingLedger) IsActive(ctx context.Context, token string) (bool, error) {
	return false, errors.New("ledger unavailable")
}

func (failingLedger) Record(ctx context.Context, token string, userID int64, expiresAt time.Time) error {
	return nil
}

func TestService_Authenticate_LedgerFailure(t *testing.T) {
	store := memory.New()
	codec := auth.NewTokenCodec([]byte("service-test-secret"), time.Hour)
	svc := auth.NewService(store, failingLedger{}, codec, auth.NewPasswordHasher(bcrypt.MinCost))

	_, token, err := svc.Register(context.Background(), auth.RegisterRequest{Name: "a", Email: "a@jwt.com", Password: "a"})
	require.NoError(t, err)

	_, err = svc.Authenticate(context.Background(), token)
	require.Error(t, err)
	assert.NotErrorIs(t, err, auth.ErrTokenRevoked)
	assert.NotErrorIs(t, err, storage.ErrNotFound)
}
