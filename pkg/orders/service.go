package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/platinummonkey/jwtpizza/pkg/apperrors"
	"github.com/platinummonkey/jwtpizza/pkg/auth"
	"github.com/platinummonkey/jwtpizza/pkg/observability"
	"github.com/platinummonkey/jwtpizza/pkg/storage"
)

// Order outcomes recorded in metrics
const (
	OutcomeFulfilled = "fulfilled"
	OutcomeRejected  = "rejected"
)

// ReportURLDetail is the error detail key carrying the factory's report link
const ReportURLDetail = "followLinkToEndChaos"

const (
	menuCacheKey  = "menu"
	historyLimit  = 10
	factoryFailed = "Failed to fulfill order at factory"
)

// Service implements the menu, order history and order submission
type Service struct {
	repo      Repository
	factory   Factory
	menuCache *expirable.LRU[string, []*MenuItem]
	metrics   *observability.Metrics
	now       func() time.Time
}

// NewService creates an order service. The menu is cached for menuTTL;
// a zero TTL disables caching.
func NewService(repo Repository, factory Factory, menuTTL time.Duration) *Service {
	s := &Service{
		repo:    repo,
		factory: factory,
		now:     time.Now,
	}
	if menuTTL > 0 {
		s.menuCache = expirable.NewLRU[string, []*MenuItem](1, nil, menuTTL)
	}
	return s
}

// WithMetrics enables order and cache counters
func (s *Service) WithMetrics(metrics *observability.Metrics) *Service {
	s.metrics = metrics
	return s
}

// WithClock replaces the time source used to date orders, for tests
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// GetMenu returns every menu item
func (s *Service) GetMenu(ctx context.Context) ([]*MenuItem, error) {
	if s.menuCache != nil {
		if menu, ok := s.menuCache.Get(menuCacheKey); ok {
			s.metrics.RecordMenuCache(true)
			return menu, nil
		}
		s.metrics.RecordMenuCache(false)
	}

	menu, err := s.repo.GetMenu(ctx)
	if err != nil {
		return nil, apperrors.Internal("failed to load menu", err)
	}
	if menu == nil {
		menu = []*MenuItem{}
	}

	if s.menuCache != nil {
		s.menuCache.Add(menuCacheKey, menu)
	}
	return menu, nil
}

// AddMenuItem adds a pizza to the menu and returns the updated menu. Global admin only.
func (s *Service) AddMenuItem(ctx context.Context, actor *auth.Identity, req AddMenuItemRequest) ([]*MenuItem, error) {
	if actor == nil || !actor.IsAdmin() {
		return nil, apperrors.Forbidden("unable to add menu item")
	}
	if strings.TrimSpace(req.Title) == "" {
		return nil, apperrors.Validation("menu item title is required")
	}
	if req.Price < 0 {
		return nil, apperrors.Validation("menu item price must not be negative")
	}

	if _, err := s.repo.AddMenuItem(ctx, &MenuItem{
		Title:       req.Title,
		Description: req.Description,
		Image:       req.Image,
		Price:       req.Price,
	}); err != nil {
		return nil, apperrors.Internal("failed to add menu item", err)
	}

	if s.menuCache != nil {
		s.menuCache.Purge()
	}
	return s.GetMenu(ctx)
}

// ListOrders returns one page of the actor's own orders. Pages start at 1.
func (s *Service) ListOrders(ctx context.Context, actor *auth.Identity, page int) (*OrderHistory, error) {
	if actor == nil {
		return nil, apperrors.Unauthorized("unauthorized")
	}
	page = storage.ClampPage(page, 1)

	list, more, err := s.repo.ListOrders(ctx, actor.UserID, page, historyLimit)
	if err != nil {
		return nil, apperrors.Internal("failed to list orders", err)
	}
	if list == nil {
		list = []*Order{}
	}
	return &OrderHistory{DinerID: actor.UserID, Orders: list, Page: page, More: more}, nil
}

// SubmitOrder places an order for the actor and forwards it to the factory.
// The order is stored before the factory is called and is kept when the
// factory rejects it.
func (s *Service) SubmitOrder(ctx context.Context, actor *auth.Identity, req OrderRequest) (*OrderResult, error) {
	if actor == nil {
		return nil, apperrors.Unauthorized("unauthorized")
	}
	if len(req.Items) == 0 {
		return nil, apperrors.Validation("order must contain at least one item")
	}

	exists, err := s.repo.StoreExists(ctx, req.FranchiseID, req.StoreID)
	if err != nil {
		return nil, apperrors.Internal("failed to look up store", err)
	}
	if !exists {
		return nil, apperrors.NotFound("store not found")
	}

	items, err := s.priceItems(ctx, req.Items)
	if err != nil {
		return nil, err
	}

	order, err := s.repo.CreateOrder(ctx, &Order{
		DinerID:     actor.UserID,
		FranchiseID: req.FranchiseID,
		StoreID:     req.StoreID,
		Date:        s.now().UTC(),
		Items:       items,
	})
	if err != nil {
		return nil, apperrors.Internal("failed to store order", err)
	}

	logger := observability.FromContext(ctx).WithField("order_id", order.ID)
	diner := Diner{ID: actor.UserID, Name: actor.Name, Email: actor.Email}

	receipt, err := s.factory.Submit(ctx, diner, order)
	if err != nil {
		s.metrics.RecordOrder(OutcomeRejected)
		logger.WithError(err).Warn("factory rejected order")
		return nil, submissionError(err)
	}

	s.metrics.RecordOrder(OutcomeFulfilled)
	logger.Info("order fulfilled")
	return &OrderResult{Order: order, JWT: receipt.JWT, ReportURL: receipt.ReportURL}, nil
}

// priceItems replaces client supplied descriptions and prices with the menu's
func (s *Service) priceItems(ctx context.Context, requested []OrderItem) ([]OrderItem, error) {
	menu, err := s.GetMenu(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]*MenuItem, len(menu))
	for _, m := range menu {
		byID[m.ID] = m
	}

	items := make([]OrderItem, 0, len(requested))
	for _, r := range requested {
		m, ok := byID[r.MenuID]
		if !ok {
			return nil, apperrors.Validation(fmt.Sprintf("unknown menu item %d", r.MenuID))
		}
		items = append(items, OrderItem{MenuID: m.ID, Description: m.Title, Price: m.Price})
	}
	return items, nil
}

func submissionError(err error) error {
	var fe *FactoryError
	if !errors.As(err, &fe) {
		return apperrors.OrderSubmissionFailed(factoryFailed, err)
	}

	message := fe.Message
	if message == "" {
		message = factoryFailed
	}
	appErr := apperrors.OrderSubmissionFailed(message, err)
	if fe.ReportURL != "" {
		appErr = appErr.WithDetail(ReportURLDetail, fe.ReportURL)
	}
	return appErr
}
