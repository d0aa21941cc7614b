package orders

import "context"

// Repository persists the menu and diner orders
type Repository interface {
	GetMenu(ctx context.Context) ([]*MenuItem, error)
	AddMenuItem(ctx context.Context, item *MenuItem) (*MenuItem, error)
	// StoreExists reports whether storeID belongs to franchiseID
	StoreExists(ctx context.Context, franchiseID, storeID int64) (bool, error)
	// CreateOrder stores the order and its items atomically
	CreateOrder(ctx context.Context, order *Order) (*Order, error)
	ListOrders(ctx context.Context, dinerID int64, page, limit int) ([]*Order, bool, error)
}

// Factory submits orders to the pizza factory for fulfilment
type Factory interface {
	// Submit returns the factory's verification token, or a *FactoryError
	// describing why the order was not accepted
	Submit(ctx context.Context, diner Diner, order *Order) (*FactoryReceipt, error)
}

// FactoryError is a rejected or failed factory call
type FactoryError struct {
	Message   string
	ReportURL string
	Err       error
}

func (e *FactoryError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *FactoryError) Unwrap() error {
	return e.Err
}
