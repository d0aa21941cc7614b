package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/platinummonkey/jwtpizza/pkg/orders"
	"github.com/platinummonkey/jwtpizza/pkg/storage"
)

// OrderRepository implements orders.Repository
type OrderRepository struct {
	db *sql.DB
}

// NewOrderRepository creates an order repository
func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// GetMenu returns the menu ordered by id
func (r *OrderRepository) GetMenu(ctx context.Context) ([]*orders.MenuItem, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, title, description, image, price FROM menu ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to load menu: %w", err)
	}
	defer rows.Close()

	menu := []*orders.MenuItem{}
	for rows.Next() {
		m := &orders.MenuItem{}
		if err := rows.Scan(&m.ID, &m.Title, &m.Description, &m.Image, &m.Price); err != nil {
			return nil, fmt.Errorf("failed to scan menu item: %w", err)
		}
		menu = append(menu, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate menu: %w", err)
	}
	return menu, nil
}

// AddMenuItem inserts a menu item
func (r *OrderRepository) AddMenuItem(ctx context.Context, item *orders.MenuItem) (*orders.MenuItem, error) {
	created := *item
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO menu (title, description, image, price) VALUES ($1, $2, $3, $4) RETURNING id`,
		item.Title, item.Description, item.Image, item.Price,
	).Scan(&created.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to add menu item: %w", err)
	}
	return &created, nil
}

// StoreExists reports whether storeID belongs to franchiseID
func (r *OrderRepository) StoreExists(ctx context.Context, franchiseID, storeID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM stores WHERE id = $1 AND franchise_id = $2)`,
		storeID, franchiseID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to look up store: %w", err)
	}
	return exists, nil
}

// CreateOrder inserts the order and its items in one transaction
func (r *OrderRepository) CreateOrder(ctx context.Context, order *orders.Order) (*orders.Order, error) {
	created := *order
	created.Items = append([]orders.OrderItem(nil), order.Items...)

	err := storage.WithTx(ctx, r.db, func(ctx context.Context, tx storage.DBTX) error {
		err := tx.QueryRowContext(ctx, `
			INSERT INTO diner_orders (diner_id, franchise_id, store_id, date)
			VALUES ($1, $2, $3, $4)
			RETURNING id
		`, created.DinerID, created.FranchiseID, created.StoreID, created.Date).Scan(&created.ID)
		if err != nil {
			return err
		}
		for i := range created.Items {
			item := &created.Items[i]
			err := tx.QueryRowContext(ctx, `
				INSERT INTO order_items (order_id, menu_id, description, price)
				VALUES ($1, $2, $3, $4)
				RETURNING id
			`, created.ID, item.MenuID, item.Description, item.Price).Scan(&item.ID)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}
	return &created, nil
}

// ListOrders returns page (starting at 1) of the diner's orders
func (r *OrderRepository) ListOrders(ctx context.Context, dinerID int64, page, limit int) ([]*orders.Order, bool, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, franchise_id, store_id, date
		FROM diner_orders
		WHERE diner_id = $1
		ORDER BY id
		LIMIT $2 OFFSET $3
	`, dinerID, limit+1, (page-1)*limit)
	if err != nil {
		return nil, false, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	list := []*orders.Order{}
	for rows.Next() {
		o := &orders.Order{DinerID: dinerID, Items: []orders.OrderItem{}}
		if err := rows.Scan(&o.ID, &o.FranchiseID, &o.StoreID, &o.Date); err != nil {
			return nil, false, fmt.Errorf("failed to scan order: %w", err)
		}
		list = append(list, o)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("failed to iterate orders: %w", err)
	}

	more := len(list) > limit
	if more {
		list = list[:limit]
	}
	if len(list) == 0 {
		return list, false, nil
	}

	if err := r.loadItems(ctx, list); err != nil {
		return nil, false, err
	}
	return list, more, nil
}

func (r *OrderRepository) loadItems(ctx context.Context, list []*orders.Order) error {
	byID := make(map[int64]*orders.Order, len(list))
	ids := make([]int64, 0, len(list))
	for _, o := range list {
		byID[o.ID] = o
		ids = append(ids, o.ID)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, order_id, menu_id, description, price
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY id
	`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("failed to load order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item orders.OrderItem
		var orderID int64
		if err := rows.Scan(&item.ID, &orderID, &item.MenuID, &item.Description, &item.Price); err != nil {
			return fmt.Errorf("failed to scan order item: %w", err)
		}
		if o, ok := byID[orderID]; ok {
			o.Items = append(o.Items, item)
		}
	}
	return rows.Err()
}
