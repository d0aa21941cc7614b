package franchises

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/platinummonkey/jwtpizza/pkg/apperrors"
	"github.com/platinummonkey/jwtpizza/pkg/auth"
	"github.com/platinummonkey/jwtpizza/pkg/observability"
	"github.com/platinummonkey/jwtpizza/pkg/rbac"
	"github.com/platinummonkey/jwtpizza/pkg/storage"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// Service implements franchise and store management
type Service struct {
	repo  Repository
	users UserFinder
}

// NewService creates a franchise service
func NewService(repo Repository, users UserFinder) *Service {
	return &Service{repo: repo, users: users}
}

// ListFranchises returns a page of franchises. Franchises the actor can
// manage include their admins and store revenue; the rest are public views.
// actor may be nil for anonymous callers.
func (s *Service) ListFranchises(ctx context.Context, actor *auth.Identity, query ListQuery) (*FranchiseList, error) {
	query = normalizeQuery(query)

	list, more, err := s.repo.ListFranchises(ctx, query)
	if err != nil {
		return nil, apperrors.Internal("failed to list franchises", err)
	}

	out := make([]*Franchise, 0, len(list))
	for _, f := range list {
		if actor != nil && rbac.CanManage(actor, f) {
			out = append(out, f)
			continue
		}
		out = append(out, f.PublicView())
	}
	return &FranchiseList{Franchises: out, More: more}, nil
}

// GetUserFranchises returns the franchises userID administers. A caller who
// is neither userID nor a global admin gets an empty list, not an error.
func (s *Service) GetUserFranchises(ctx context.Context, actor *auth.Identity, userID int64) ([]*Franchise, error) {
	if actor == nil || !rbac.CanActForUser(actor, userID) {
		return []*Franchise{}, nil
	}

	list, err := s.repo.ListFranchisesForUser(ctx, userID)
	if err != nil {
		return nil, apperrors.Internal("failed to list user franchises", err)
	}
	if list == nil {
		list = []*Franchise{}
	}
	return list, nil
}

// GetFranchise returns one franchise, in its admin view when the actor can manage it
func (s *Service) GetFranchise(ctx context.Context, actor *auth.Identity, id int64) (*Franchise, error) {
	franchise, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor != nil && rbac.CanManage(actor, franchise) {
		return franchise, nil
	}
	return franchise.PublicView(), nil
}

// CreateFranchise creates a franchise administered by the users named in req.
// Global admin only. Every admin email must belong to an existing user.
func (s *Service) CreateFranchise(ctx context.Context, actor *auth.Identity, req CreateFranchiseRequest) (*Franchise, error) {
	if actor == nil || !actor.IsAdmin() {
		return nil, apperrors.Forbidden("unable to create a franchise")
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, apperrors.Validation("franchise name is required")
	}

	admins := make([]Admin, 0, len(req.Admins))
	seen := make(map[int64]bool, len(req.Admins))
	for _, ref := range req.Admins {
		user, err := s.users.GetUserByEmail(ctx, ref.Email)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return nil, apperrors.NotFound(fmt.Sprintf("unknown user for franchise admin %s provided", ref.Email))
			}
			return nil, apperrors.Internal("failed to resolve franchise admin", err)
		}
		if seen[user.ID] {
			continue
		}
		seen[user.ID] = true
		admins = append(admins, Admin{ID: user.ID, Name: user.Name, Email: user.Email})
	}

	franchise, err := s.repo.CreateFranchise(ctx, name, admins)
	if err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return nil, apperrors.Conflict("franchise name already exists")
		}
		return nil, apperrors.Internal("failed to create franchise", err)
	}

	observability.FromContext(ctx).WithFields(map[string]interface{}{
		"franchise_id": franchise.ID,
		"admins":       len(admins),
	}).Info("franchise created")
	return franchise, nil
}

// DeleteFranchise removes a franchise with its stores. Global admin only.
func (s *Service) DeleteFranchise(ctx context.Context, actor *auth.Identity, id int64) error {
	if actor == nil || !actor.IsAdmin() {
		return apperrors.Forbidden("unable to delete a franchise")
	}

	if err := s.repo.DeleteFranchise(ctx, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperrors.NotFound("franchise not found")
		}
		return apperrors.Internal("failed to delete franchise", err)
	}

	observability.FromContext(ctx).WithField("franchise_id", id).Info("franchise deleted")
	return nil
}

// CreateStore opens a store in a franchise the actor can manage
func (s *Service) CreateStore(ctx context.Context, actor *auth.Identity, franchiseID int64, req CreateStoreRequest) (*Store, error) {
	franchise, err := s.load(ctx, franchiseID)
	if err != nil {
		return nil, err
	}
	if err := authorizeManage(ctx, actor, franchise); err != nil {
		return nil, apperrors.Forbidden("unable to create a store")
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, apperrors.Validation("store name is required")
	}

	store, err := s.repo.CreateStore(ctx, franchise.ID, name)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperrors.NotFound("franchise not found")
		}
		return nil, apperrors.Internal("failed to create store", err)
	}
	return store, nil
}

// DeleteStore closes a store in a franchise the actor can manage
func (s *Service) DeleteStore(ctx context.Context, actor *auth.Identity, franchiseID, storeID int64) error {
	franchise, err := s.load(ctx, franchiseID)
	if err != nil {
		return err
	}
	if err := authorizeManage(ctx, actor, franchise); err != nil {
		return apperrors.Forbidden("unable to delete a store")
	}

	if err := s.repo.DeleteStore(ctx, franchise.ID, storeID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperrors.NotFound("store not found")
		}
		return apperrors.Internal("failed to delete store", err)
	}
	return nil
}

func (s *Service) load(ctx context.Context, id int64) (*Franchise, error) {
	franchise, err := s.repo.GetFranchise(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperrors.NotFound("franchise not found")
		}
		return nil, apperrors.Internal("failed to load franchise", err)
	}
	return franchise, nil
}

func authorizeManage(ctx context.Context, actor *auth.Identity, franchise *Franchise) error {
	if actor == nil {
		return errors.New("no identity")
	}
	decision := rbac.ResolveManage(actor, franchise)
	if decision.Allowed {
		return nil
	}
	observability.FromContext(ctx).WithFields(map[string]interface{}{
		"franchise_id": franchise.ID,
		"reason":       string(decision.Reason),
	}).Info("franchise access denied")
	return fmt.Errorf("access denied: %s", decision.Reason)
}

func normalizeQuery(q ListQuery) ListQuery {
	q.Page = storage.ClampPage(q.Page, 0)
	if q.Limit <= 0 || q.Limit > maxPageSize {
		q.Limit = defaultPageSize
	}
	if q.NameFilter == "" {
		q.NameFilter = "*"
	}
	return q
}
