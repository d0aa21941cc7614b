package memory

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/platinummonkey/jwtpizza/pkg/auth"
	"github.com/platinummonkey/jwtpizza/pkg/franchises"
	"github.com/platinummonkey/jwtpizza/pkg/orders"
	"github.com/platinummonkey/jwtpizza/pkg/storage"
)

type ledgerEntry struct {
	userID    int64
	expiresAt time.Time
}

// Store keeps every record in process memory. It implements the user, ledger,
// franchise and order repositories and is meant for tests and local runs.
type Store struct {
	mu sync.RWMutex

	now func() time.Time

	nextID     int64
	users      map[int64]*auth.User
	ledger     map[string]ledgerEntry
	franchises map[int64]*franchiseRecord
	stores     map[int64]*franchises.Store
	menu       []*orders.MenuItem
	orders     []*orders.Order
}

type franchiseRecord struct {
	id     int64
	name   string
	admins []int64
}

// New creates an empty store
func New() *Store {
	return &Store{
		now:        time.Now,
		users:      make(map[int64]*auth.User),
		ledger:     make(map[string]ledgerEntry),
		franchises: make(map[int64]*franchiseRecord),
		stores:     make(map[int64]*franchises.Store),
	}
}

// WithClock replaces the time source used for ledger expiry
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

func cloneUser(u *auth.User) *auth.User {
	c := *u
	c.Roles = append([]auth.Role(nil), u.Roles...)
	return &c
}

// CreateUser implements auth.UserStore
func (s *Store) CreateUser(ctx context.Context, user *auth.User) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Email == user.Email {
			return nil, storage.ErrDuplicate
		}
	}
	created := cloneUser(user)
	created.ID = s.id()
	if len(created.Roles) == 0 {
		created.Roles = []auth.Role{auth.DinerRole()}
	}
	s.users[created.ID] = created
	return cloneUser(created), nil
}

// GetUserByID implements auth.UserStore
func (s *Store) GetUserByID(ctx context.Context, id int64) (*auth.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return cloneUser(u), nil
}

// GetUserByEmail implements auth.UserStore
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*auth.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.Email == email {
			return cloneUser(u), nil
		}
	}
	return nil, storage.ErrNotFound
}

// UpdateUser implements auth.UserStore
func (s *Store) UpdateUser(ctx context.Context, id int64, update auth.UserUpdate) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	if update.Email != "" && update.Email != u.Email {
		for _, other := range s.users {
			if other.Email == update.Email {
				return nil, storage.ErrDuplicate
			}
		}
		u.Email = update.Email
	}
	if update.Name != "" {
		u.Name = update.Name
	}
	if update.PasswordHash != "" {
		u.PasswordHash = update.PasswordHash
	}
	return cloneUser(u), nil
}

// DeleteUser implements auth.UserStore
func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.users, id)
	for _, f := range s.franchises {
		f.admins = removeID(f.admins, id)
	}
	return nil
}

// ListUsers implements auth.UserStore
func (s *Store) ListUsers(ctx context.Context, query auth.ListUsersQuery) ([]*auth.User, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	match := wildcard(query.NameFilter)
	var all []*auth.User
	for _, u := range s.users {
		if match.MatchString(u.Name) {
			all = append(all, cloneUser(u))
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	page, more := paginate(all, query.Page*query.Limit, query.Limit)
	return page, more, nil
}

// Record implements auth.Ledger
func (s *Store) Record(ctx context.Context, token string, userID int64, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ledger[auth.HashToken(token)] = ledgerEntry{userID: userID, expiresAt: expiresAt}
	return nil
}

// Revoke implements auth.Ledger
func (s *Store) Revoke(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.ledger, auth.HashToken(token))
	return nil
}

// IsActive implements auth.Ledger
func (s *Store) IsActive(ctx context.Context, token string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.ledger[auth.HashToken(token)]
	return ok && s.now().Before(entry.expiresAt), nil
}

// RevokeUser implements auth.Ledger
func (s *Store) RevokeUser(ctx context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for hash, entry := range s.ledger {
		if entry.userID == userID {
			delete(s.ledger, hash)
		}
	}
	return nil
}

// PurgeExpired implements auth.LedgerSweeper
func (s *Store) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var purged int64
	for hash, entry := range s.ledger {
		if !now.Before(entry.expiresAt) {
			delete(s.ledger, hash)
			purged++
		}
	}
	return purged, nil
}

// ListFranchises implements franchises.Repository
func (s *Store) ListFranchises(ctx context.Context, query franchises.ListQuery) ([]*franchises.Franchise, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	match := wildcard(query.NameFilter)
	var all []*franchises.Franchise
	for _, id := range s.sortedFranchiseIDs() {
		f := s.franchises[id]
		if match.MatchString(f.name) {
			all = append(all, s.buildFranchise(f))
		}
	}
	page, more := paginate(all, query.Page*query.Limit, query.Limit)
	return page, more, nil
}

// ListFranchisesForUser implements franchises.Repository
func (s *Store) ListFranchisesForUser(ctx context.Context, userID int64) ([]*franchises.Franchise, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []*franchises.Franchise{}
	for _, id := range s.sortedFranchiseIDs() {
		f := s.franchises[id]
		for _, adminID := range f.admins {
			if adminID == userID {
				out = append(out, s.buildFranchise(f))
				break
			}
		}
	}
	return out, nil
}

// GetFranchise implements franchises.Repository
func (s *Store) GetFranchise(ctx context.Context, id int64) (*franchises.Franchise, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, ok := s.franchises[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return s.buildFranchise(f), nil
}

// CreateFranchise implements franchises.Repository
func (s *Store) CreateFranchise(ctx context.Context, name string, admins []franchises.Admin) (*franchises.Franchise, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, f := range s.franchises {
		if f.name == name {
			return nil, storage.ErrDuplicate
		}
	}
	for _, a := range admins {
		if _, ok := s.users[a.ID]; !ok {
			return nil, storage.ErrNotFound
		}
	}

	rec := &franchiseRecord{id: s.id(), name: name}
	for _, a := range admins {
		rec.admins = append(rec.admins, a.ID)
		u := s.users[a.ID]
		u.Roles = append(u.Roles, auth.FranchiseeRole(rec.id))
	}
	s.franchises[rec.id] = rec
	return s.buildFranchise(rec), nil
}

// DeleteFranchise implements franchises.Repository
func (s *Store) DeleteFranchise(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.franchises[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.franchises, id)
	for storeID, st := range s.stores {
		if st.FranchiseID == id {
			delete(s.stores, storeID)
		}
	}
	role := auth.FranchiseeRole(id)
	for _, u := range s.users {
		kept := u.Roles[:0]
		for _, r := range u.Roles {
			if r != role {
				kept = append(kept, r)
			}
		}
		u.Roles = kept
	}
	return nil
}

// CreateStore implements franchises.Repository
func (s *Store) CreateStore(ctx context.Context, franchiseID int64, name string) (*franchises.Store, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.franchises[franchiseID]; !ok {
		return nil, storage.ErrNotFound
	}
	st := &franchises.Store{ID: s.id(), FranchiseID: franchiseID, Name: name}
	s.stores[st.ID] = st
	c := *st
	return &c, nil
}

// DeleteStore implements franchises.Repository
func (s *Store) DeleteStore(ctx context.Context, franchiseID, storeID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.stores[storeID]
	if !ok || st.FranchiseID != franchiseID {
		return storage.ErrNotFound
	}
	delete(s.stores, storeID)
	return nil
}

// GetMenu implements orders.Repository
func (s *Store) GetMenu(ctx context.Context) ([]*orders.MenuItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*orders.MenuItem, 0, len(s.menu))
	for _, m := range s.menu {
		c := *m
		out = append(out, &c)
	}
	return out, nil
}

// AddMenuItem implements orders.Repository
func (s *Store) AddMenuItem(ctx context.Context, item *orders.MenuItem) (*orders.MenuItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := *item
	c.ID = s.id()
	s.menu = append(s.menu, &c)
	out := c
	return &out, nil
}

// StoreExists implements orders.Repository
func (s *Store) StoreExists(ctx context.Context, franchiseID, storeID int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.stores[storeID]
	return ok && st.FranchiseID == franchiseID, nil
}

// CreateOrder implements orders.Repository
func (s *Store) CreateOrder(ctx context.Context, order *orders.Order) (*orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := cloneOrder(order)
	c.ID = s.id()
	for i := range c.Items {
		c.Items[i].ID = s.id()
	}
	s.orders = append(s.orders, c)
	return cloneOrder(c), nil
}

// ListOrders implements orders.Repository. Pages start at 1.
func (s *Store) ListOrders(ctx context.Context, dinerID int64, page, limit int) ([]*orders.Order, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var mine []*orders.Order
	for _, o := range s.orders {
		if o.DinerID == dinerID {
			mine = append(mine, cloneOrder(o))
		}
	}
	out, more := paginate(mine, (page-1)*limit, limit)
	return out, more, nil
}

// OrderCount returns the number of stored orders
func (s *Store) OrderCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.orders)
}

func (s *Store) sortedFranchiseIDs() []int64 {
	ids := make([]int64, 0, len(s.franchises))
	for id := range s.franchises {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// buildFranchise assembles the admin view; callers hold the lock
func (s *Store) buildFranchise(rec *franchiseRecord) *franchises.Franchise {
	f := &franchises.Franchise{ID: rec.id, Name: rec.name, Stores: []*franchises.Store{}}
	for _, id := range rec.admins {
		if u, ok := s.users[id]; ok {
			f.Admins = append(f.Admins, franchises.Admin{ID: u.ID, Name: u.Name, Email: u.Email})
		}
	}

	var storeIDs []int64
	for id, st := range s.stores {
		if st.FranchiseID == rec.id {
			storeIDs = append(storeIDs, id)
		}
	}
	sort.Slice(storeIDs, func(i, j int) bool { return storeIDs[i] < storeIDs[j] })
	for _, id := range storeIDs {
		st := s.stores[id]
		var revenue float64
		for _, o := range s.orders {
			if o.StoreID == id {
				revenue += o.Total()
			}
		}
		f.Stores = append(f.Stores, &franchises.Store{ID: st.ID, FranchiseID: st.FranchiseID, Name: st.Name, TotalRevenue: &revenue})
	}
	return f
}

func cloneOrder(o *orders.Order) *orders.Order {
	c := *o
	c.Items = append([]orders.OrderItem(nil), o.Items...)
	return &c
}

func removeID(ids []int64, id int64) []int64 {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

func paginate[T any](items []T, offset, limit int) ([]T, bool) {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}, false
	}
	end := offset + limit
	if limit <= 0 || end >= len(items) {
		return items[offset:], false
	}
	return items[offset:end], true
}

// wildcard compiles a name filter where '*' matches any run of characters
func wildcard(pattern string) *regexp.Regexp {
	if pattern == "" {
		pattern = "*"
	}
	quoted := regexp.QuoteMeta(pattern)
	return regexp.MustCompile("^" + strings.ReplaceAll(quoted, `\*`, ".*") + "$")
}
