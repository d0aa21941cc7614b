package franchises

import (
	"context"

	"github.com/platinummonkey/jwtpizza/pkg/auth"
)

// Repository persists franchises and their stores. Implementations return
// storage.ErrNotFound for missing rows and storage.ErrDuplicate for a taken
// franchise name. Franchises returned by the read methods carry their admins
// and their stores with revenue.
type Repository interface {
	ListFranchises(ctx context.Context, query ListQuery) ([]*Franchise, bool, error)
	ListFranchisesForUser(ctx context.Context, userID int64) ([]*Franchise, error)
	GetFranchise(ctx context.Context, id int64) (*Franchise, error)
	// CreateFranchise inserts the franchise and grants each admin the
	// franchisee role for it
	CreateFranchise(ctx context.Context, name string, admins []Admin) (*Franchise, error)
	// DeleteFranchise removes the franchise, its stores and the franchisee
	// roles scoped to it. Orders placed at its stores are kept.
	DeleteFranchise(ctx context.Context, id int64) error
	CreateStore(ctx context.Context, franchiseID int64, name string) (*Store, error)
	DeleteStore(ctx context.Context, franchiseID, storeID int64) error
}

// UserFinder resolves administrator emails to accounts
type UserFinder interface {
	GetUserByEmail(ctx context.Context, email string) (*auth.User, error)
}
