package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/platinummonkey/jwtpizza/pkg/auth"
	"github.com/platinummonkey/jwtpizza/pkg/franchises"
	"github.com/platinummonkey/jwtpizza/pkg/storage"
)

// FranchiseRepository implements franchises.Repository. Franchise admins are
// the users holding the franchisee role scoped to the franchise.
type FranchiseRepository struct {
	db *sql.DB
}

// NewFranchiseRepository creates a franchise repository
func NewFranchiseRepository(db *sql.DB) *FranchiseRepository {
	return &FranchiseRepository{db: db}
}

// ListFranchises returns one page of franchises ordered by id
func (r *FranchiseRepository) ListFranchises(ctx context.Context, query franchises.ListQuery) ([]*franchises.Franchise, bool, error) {
	list, err := r.queryFranchises(ctx, `
		SELECT id, name
		FROM franchises
		WHERE name LIKE $1
		ORDER BY id
		LIMIT $2 OFFSET $3
	`, likePattern(query.NameFilter), query.Limit+1, query.Page*query.Limit)
	if err != nil {
		return nil, false, err
	}

	more := len(list) > query.Limit
	if more {
		list = list[:query.Limit]
	}
	if err := r.hydrate(ctx, list); err != nil {
		return nil, false, err
	}
	return list, more, nil
}

// ListFranchisesForUser returns the franchises userID administers
func (r *FranchiseRepository) ListFranchisesForUser(ctx context.Context, userID int64) ([]*franchises.Franchise, error) {
	list, err := r.queryFranchises(ctx, `
		SELECT f.id, f.name
		FROM franchises f
		JOIN user_roles ur ON ur.object_id = f.id AND ur.role = $2
		WHERE ur.user_id = $1
		ORDER BY f.id
	`, userID, auth.RoleNameFranchisee)
	if err != nil {
		return nil, err
	}
	if err := r.hydrate(ctx, list); err != nil {
		return nil, err
	}
	return list, nil
}

// GetFranchise loads one franchise with its admins and stores
func (r *FranchiseRepository) GetFranchise(ctx context.Context, id int64) (*franchises.Franchise, error) {
	f := &franchises.Franchise{}
	err := r.db.QueryRowContext(ctx, `SELECT id, name FROM franchises WHERE id = $1`, id).Scan(&f.ID, &f.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get franchise: %w", err)
	}
	if err := r.hydrate(ctx, []*franchises.Franchise{f}); err != nil {
		return nil, err
	}
	return f, nil
}

// CreateFranchise inserts the franchise and the franchisee roles of its admins
func (r *FranchiseRepository) CreateFranchise(ctx context.Context, name string, admins []franchises.Admin) (*franchises.Franchise, error) {
	f := &franchises.Franchise{Name: name, Admins: admins, Stores: []*franchises.Store{}}

	err := storage.WithTx(ctx, r.db, func(ctx context.Context, tx storage.DBTX) error {
		err := tx.QueryRowContext(ctx, `INSERT INTO franchises (name) VALUES ($1) RETURNING id`, name).Scan(&f.ID)
		if err != nil {
			return translateError(err)
		}
		for _, admin := range admins {
			if err := insertRole(ctx, tx, admin.ID, auth.FranchiseeRole(f.ID)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create franchise: %w", err)
	}
	return f, nil
}

// DeleteFranchise removes the franchise, its stores and its franchisee roles
func (r *FranchiseRepository) DeleteFranchise(ctx context.Context, id int64) error {
	err := storage.WithTx(ctx, r.db, func(ctx context.Context, tx storage.DBTX) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM user_roles WHERE role = $1 AND object_id = $2`,
			auth.RoleNameFranchisee, id,
		); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM stores WHERE franchise_id = $1`, id); err != nil {
			return err
		}
		result, err := tx.ExecContext(ctx, `DELETE FROM franchises WHERE id = $1`, id)
		if err != nil {
			return err
		}
		return expectAffected(result)
	})
	if errors.Is(err, storage.ErrNotFound) {
		return storage.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete franchise: %w", err)
	}
	return nil
}

// CreateStore opens a store in franchiseID
func (r *FranchiseRepository) CreateStore(ctx context.Context, franchiseID int64, name string) (*franchises.Store, error) {
	store := &franchises.Store{FranchiseID: franchiseID, Name: name}
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO stores (franchise_id, name) VALUES ($1, $2) RETURNING id`,
		franchiseID, name,
	).Scan(&store.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %w", translateError(err))
	}
	return store, nil
}

// DeleteStore closes storeID if it belongs to franchiseID
func (r *FranchiseRepository) DeleteStore(ctx context.Context, franchiseID, storeID int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM stores WHERE franchise_id = $1 AND id = $2`, franchiseID, storeID)
	if err != nil {
		return fmt.Errorf("failed to delete store: %w", err)
	}
	return expectAffected(result)
}

func (r *FranchiseRepository) queryFranchises(ctx context.Context, query string, args ...interface{}) ([]*franchises.Franchise, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list franchises: %w", err)
	}
	defer rows.Close()

	list := []*franchises.Franchise{}
	for rows.Next() {
		f := &franchises.Franchise{}
		if err := rows.Scan(&f.ID, &f.Name); err != nil {
			return nil, fmt.Errorf("failed to scan franchise: %w", err)
		}
		list = append(list, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate franchises: %w", err)
	}
	return list, nil
}

// hydrate loads admins and stores with revenue for each franchise
func (r *FranchiseRepository) hydrate(ctx context.Context, list []*franchises.Franchise) error {
	for _, f := range list {
		admins, err := r.loadAdmins(ctx, f.ID)
		if err != nil {
			return err
		}
		f.Admins = admins

		stores, err := r.loadStores(ctx, f.ID)
		if err != nil {
			return err
		}
		f.Stores = stores
	}
	return nil
}

func (r *FranchiseRepository) loadAdmins(ctx context.Context, franchiseID int64) ([]franchises.Admin, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT u.id, u.name, u.email
		FROM user_roles ur
		JOIN users u ON u.id = ur.user_id
		WHERE ur.role = $1 AND ur.object_id = $2
		ORDER BY ur.id
	`, auth.RoleNameFranchisee, franchiseID)
	if err != nil {
		return nil, fmt.Errorf("failed to load franchise admins: %w", err)
	}
	defer rows.Close()

	var admins []franchises.Admin
	for rows.Next() {
		var a franchises.Admin
		if err := rows.Scan(&a.ID, &a.Name, &a.Email); err != nil {
			return nil, fmt.Errorf("failed to scan franchise admin: %w", err)
		}
		admins = append(admins, a)
	}
	return admins, rows.Err()
}

func (r *FranchiseRepository) loadStores(ctx context.Context, franchiseID int64) ([]*franchises.Store, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT s.id, s.name, COALESCE(SUM(oi.price), 0)
		FROM stores s
		LEFT JOIN diner_orders o ON o.store_id = s.id
		LEFT JOIN order_items oi ON oi.order_id = o.id
		WHERE s.franchise_id = $1
		GROUP BY s.id, s.name
		ORDER BY s.id
	`, franchiseID)
	if err != nil {
		return nil, fmt.Errorf("failed to load stores: %w", err)
	}
	defer rows.Close()

	stores := []*franchises.Store{}
	for rows.Next() {
		s := &franchises.Store{FranchiseID: franchiseID}
		var revenue float64
		if err := rows.Scan(&s.ID, &s.Name, &revenue); err != nil {
			return nil, fmt.Errorf("failed to scan store: %w", err)
		}
		s.TotalRevenue = &revenue
		stores = append(stores, s)
	}
	return stores, rows.Err()
}
