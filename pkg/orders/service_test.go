package orders_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/jwtpizza/pkg/apperrors"
	"github.com/platinummonkey/jwtpizza/pkg/auth"
	"github.com/platinummonkey/jwtpizza/pkg/franchises"
	"github.com/platinummonkey/jwtpizza/pkg/observability"
	"github.com/platinummonkey/jwtpizza/pkg/orders"
	"github.com/platinummonkey/jwtpizza/pkg/storage/memory"
)

type stubFactory struct {
	calls   int
	diner   orders.Diner
	receipt *orders.FactoryReceipt
	err     error
}

func (f *stubFactory) Submit(ctx context.Context, diner orders.Diner, order *orders.Order) (*orders.FactoryReceipt, error) {
	f.calls++
	f.diner = diner
	return f.receipt, f.err
}

type fixture struct {
	store   *memory.Store
	factory *stubFactory
	svc     *orders.Service
	admin   *auth.Identity
	diner   *auth.Identity
	veggie  *orders.MenuItem
	pepper  *orders.MenuItem
	fr      *franchises.Franchise
	st      *franchises.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.New()

	admin, err := store.CreateUser(ctx, &auth.User{Name: "常用名字", Email: "a@jwt.com", Roles: []auth.Role{auth.AdminRole()}})
	require.NoError(t, err)
	diner, err := store.CreateUser(ctx, &auth.User{Name: "pizza diner", Email: "d@jwt.com"})
	require.NoError(t, err)

	veggie, err := store.AddMenuItem(ctx, &orders.MenuItem{Title: "Veggie", Description: "A garden of delight", Image: "pizza1.png", Price: 0.0038})
	require.NoError(t, err)
	pepper, err := store.AddMenuItem(ctx, &orders.MenuItem{Title: "Pepperoni", Description: "Spicy treat", Image: "pizza2.png", Price: 0.0042})
	require.NoError(t, err)

	fr, err := store.CreateFranchise(ctx, "pizzaPocket", nil)
	require.NoError(t, err)
	st, err := store.CreateStore(ctx, fr.ID, "SLC")
	require.NoError(t, err)

	factory := &stubFactory{receipt: &orders.FactoryReceipt{JWT: "factory.jwt.value", ReportURL: "https://factory/report"}}
	now := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

	return &fixture{
		store:   store,
		factory: factory,
		svc:     orders.NewService(store, factory, time.Minute).WithClock(func() time.Time { return now }),
		admin:   auth.NewIdentity(admin, ""),
		diner:   auth.NewIdentity(diner, ""),
		veggie:  veggie,
		pepper:  pepper,
		fr:      fr,
		st:      st,
	}
}

func (f *fixture) request(items ...int64) orders.OrderRequest {
	req := orders.OrderRequest{FranchiseID: f.fr.ID, StoreID: f.st.ID}
	for _, id := range items {
		req.Items = append(req.Items, orders.OrderItem{MenuID: id, Description: "client text", Price: 999})
	}
	return req
}

func TestService_SubmitOrder_Success(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	result, err := f.svc.SubmitOrder(ctx, f.diner, f.request(f.veggie.ID, f.pepper.ID))
	require.NoError(t, err)

	assert.Equal(t, "factory.jwt.value", result.JWT)
	assert.Equal(t, "https://factory/report", result.ReportURL)
	assert.NotZero(t, result.Order.ID)
	assert.Equal(t, f.diner.UserID, result.Order.DinerID)
	assert.Equal(t, time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC), result.Order.Date)
	require.Len(t, result.Order.Items, 2)
	assert.Equal(t, "Veggie", result.Order.Items[0].Description)
	assert.Equal(t, 0.0038, result.Order.Items[0].Price, "price comes from the menu")

	assert.Equal(t, 1, f.factory.calls)
	assert.Equal(t, orders.Diner{ID: f.diner.UserID, Name: "pizza diner", Email: "d@jwt.com"}, f.factory.diner)
}

func TestService_SubmitOrder_FactoryFailureKeepsOrder(t *testing.T) {
	f := newFixture(t)
	f.factory.receipt = nil
	f.factory.err = &orders.FactoryError{Message: "oven on fire", ReportURL: "https://factory/report/9"}

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)
	f.svc.WithMetrics(metrics)

	_, err := f.svc.SubmitOrder(context.Background(), f.diner, f.request(f.veggie.ID))
	require.Error(t, err)

	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.KindOrderSubmissionFailed, appErr.Kind)
	assert.Equal(t, "oven on fire", appErr.Message)
	assert.Equal(t, "https://factory/report/9", appErr.Details[orders.ReportURLDetail])

	assert.Equal(t, 1, f.store.OrderCount())
	assert.Equal(t, 1, f.factory.calls)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.OrdersSubmittedTotal.WithLabelValues(orders.OutcomeRejected)))
}

func TestService_SubmitOrder_PlainFactoryError(t *testing.T) {
	f := newFixture(t)
	f.factory.receipt = nil
	f.factory.err = errors.New("connection reset")

	_, err := f.svc.SubmitOrder(context.Background(), f.diner, f.request(f.veggie.ID))
	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, "Failed to fulfill order at factory", appErr.Message)
	assert.Empty(t, appErr.Details)
}

func TestService_SubmitOrder_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		actor *auth.Identity
		req   orders.OrderRequest
		kind  apperrors.Kind
	}{
		{name: "anonymous", actor: nil, req: f.request(f.veggie.ID), kind: apperrors.KindUnauthorized},
		{name: "no items", actor: f.diner, req: f.request(), kind: apperrors.KindValidation},
		{name: "unknown menu item", actor: f.diner, req: f.request(404), kind: apperrors.KindValidation},
		{
			name:  "unknown store",
			actor: f.diner,
			req:   orders.OrderRequest{FranchiseID: f.fr.ID, StoreID: 9999, Items: []orders.OrderItem{{MenuID: f.veggie.ID}}},
			kind:  apperrors.KindNotFound,
		},
		{
			name:  "store of another franchise",
			actor: f.diner,
			req:   orders.OrderRequest{FranchiseID: f.fr.ID + 1000, StoreID: f.st.ID, Items: []orders.OrderItem{{MenuID: f.veggie.ID}}},
			kind:  apperrors.KindNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.SubmitOrder(ctx, tt.actor, tt.req)
			assert.Equal(t, tt.kind, apperrors.KindOf(err))
		})
	}

	assert.Zero(t, f.factory.calls)
	assert.Zero(t, f.store.OrderCount())
}

func TestService_ListOrders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 11; i++ {
		_, err := f.svc.SubmitOrder(ctx, f.diner, f.request(f.veggie.ID))
		require.NoError(t, err)
	}
	_, err := f.svc.SubmitOrder(ctx, f.admin, f.request(f.pepper.ID))
	require.NoError(t, err)

	first, err := f.svc.ListOrders(ctx, f.diner, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Page)
	assert.Equal(t, f.diner.UserID, first.DinerID)
	assert.Len(t, first.Orders, 10)
	assert.True(t, first.More)

	second, err := f.svc.ListOrders(ctx, f.diner, 2)
	require.NoError(t, err)
	assert.Len(t, second.Orders, 1)
	assert.False(t, second.More)

	_, err = f.svc.ListOrders(ctx, nil, 1)
	assert.Equal(t, apperrors.KindUnauthorized, apperrors.KindOf(err))
}

func TestService_MenuCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)
	f.svc.WithMetrics(metrics)

	menu, err := f.svc.GetMenu(ctx)
	require.NoError(t, err)
	assert.Len(t, menu, 2)

	_, err = f.svc.GetMenu(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.MenuCacheHitsTotal.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.MenuCacheHitsTotal.WithLabelValues("miss")))

	_, err = f.svc.AddMenuItem(ctx, f.diner, orders.AddMenuItemRequest{Title: "Student", Price: 0.0001})
	assert.Equal(t, apperrors.KindForbidden, apperrors.KindOf(err))

	_, err = f.svc.AddMenuItem(ctx, f.admin, orders.AddMenuItemRequest{Title: "", Price: 0.0001})
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))

	updated, err := f.svc.AddMenuItem(ctx, f.admin, orders.AddMenuItemRequest{Title: "Student", Description: "No topping", Image: "pizza9.png", Price: 0.0001})
	require.NoError(t, err)
	assert.Len(t, updated, 3, "write invalidates the cached menu")
}

func TestOrder_Total(t *testing.T) {
	o := &orders.Order{Items: []orders.OrderItem{{Price: 1.5}, {Price: 2}}}
	assert.Equal(t, 3.5, o.Total())
}
