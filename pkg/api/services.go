package api

import (
	"context"

	"github.com/platinummonkey/jwtpizza/pkg/auth"
	"github.com/platinummonkey/jwtpizza/pkg/franchises"
	"github.com/platinummonkey/jwtpizza/pkg/orders"
)

// AuthService is the account and session API the handlers use
type AuthService interface {
	Register(ctx context.Context, req auth.RegisterRequest) (*auth.User, string, error)
	Login(ctx context.Context, req auth.LoginRequest) (*auth.User, string, error)
	Logout(ctx context.Context, token string) error
	GetUser(ctx context.Context, actor *auth.Identity, id int64) (*auth.User, error)
	UpdateUser(ctx context.Context, actor *auth.Identity, targetID int64, req auth.UpdateUserRequest) (*auth.User, string, error)
	DeleteUser(ctx context.Context, actor *auth.Identity, id int64) error
	ListUsers(ctx context.Context, actor *auth.Identity, query auth.ListUsersQuery) ([]*auth.User, bool, error)
}

// FranchiseService is the franchise API the handlers use
type FranchiseService interface {
	ListFranchises(ctx context.Context, actor *auth.Identity, query franchises.ListQuery) (*franchises.FranchiseList, error)
	GetUserFranchises(ctx context.Context, actor *auth.Identity, userID int64) ([]*franchises.Franchise, error)
	CreateFranchise(ctx context.Context, actor *auth.Identity, req franchises.CreateFranchiseRequest) (*franchises.Franchise, error)
	DeleteFranchise(ctx context.Context, actor *auth.Identity, id int64) error
	CreateStore(ctx context.Context, actor *auth.Identity, franchiseID int64, req franchises.CreateStoreRequest) (*franchises.Store, error)
	DeleteStore(ctx context.Context, actor *auth.Identity, franchiseID, storeID int64) error
}

// OrderService is the menu and order API the handlers use
type OrderService interface {
	GetMenu(ctx context.Context) ([]*orders.MenuItem, error)
	AddMenuItem(ctx context.Context, actor *auth.Identity, req orders.AddMenuItemRequest) ([]*orders.MenuItem, error)
	ListOrders(ctx context.Context, actor *auth.Identity, page int) (*orders.OrderHistory, error)
	SubmitOrder(ctx context.Context, actor *auth.Identity, req orders.OrderRequest) (*orders.OrderResult, error)
}

var (
	_ AuthService      = (*auth.Service)(nil)
	_ FranchiseService = (*franchises.Service)(nil)
	_ OrderService     = (*orders.Service)(nil)
)
