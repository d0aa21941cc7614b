package auth

import (
	"context"
	"time"
)

// UserStore persists users and their role assignments. Implementations
// return storage.ErrNotFound for a missing user and storage.ErrDuplicate for
// an email that is already taken.
type UserStore interface {
	CreateUser(ctx context.Context, user *User) (*User, error)
	GetUserByID(ctx context.Context, id int64) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	UpdateUser(ctx context.Context, id int64, update UserUpdate) (*User, error)
	DeleteUser(ctx context.Context, id int64) error
	ListUsers(ctx context.Context, query ListUsersQuery) ([]*User, bool, error)
}

// UserUpdate holds the fields to change. Empty fields are left as they are.
type UserUpdate struct {
	Name         string
	Email        string
	PasswordHash string
}

// ListUsersQuery pages through users. NameFilter supports '*' as a wildcard.
type ListUsersQuery struct {
	Page       int
	Limit      int
	NameFilter string
}

// Ledger is the persisted set of live tokens. Each method touches one token
// and is atomic on its own.
type Ledger interface {
	// Record marks token as issued to userID until expiresAt
	Record(ctx context.Context, token string, userID int64, expiresAt time.Time) error
	// Revoke removes token. Revoking an absent token is not an error.
	Revoke(ctx context.Context, token string) error
	// IsActive reports whether token is present and unexpired
	IsActive(ctx context.Context, token string) (bool, error)
	// RevokeUser removes every token issued to userID
	RevokeUser(ctx context.Context, userID int64) error
}

// LedgerSweeper is implemented by ledgers that need explicit cleanup of
// expired entries
type LedgerSweeper interface {
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}
