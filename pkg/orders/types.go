package orders

import "time"

// MenuItem is a pizza that can be ordered
type MenuItem struct {
	ID          int64   `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Image       string  `json:"image"`
	Price       float64 `json:"price"`
}

// OrderItem is one line of an order. Description and price are captured from
// the menu when the order is placed.
type OrderItem struct {
	ID          int64   `json:"id,omitempty"`
	MenuID      int64   `json:"menuId"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
}

// Order is a diner's purchase at one store. It is immutable once placed.
type Order struct {
	ID          int64       `json:"id"`
	DinerID     int64       `json:"-"`
	FranchiseID int64       `json:"franchiseId"`
	StoreID     int64       `json:"storeId"`
	Date        time.Time   `json:"date"`
	Items       []OrderItem `json:"items"`
}

// Total returns the sum of the line item prices
func (o *Order) Total() float64 {
	var total float64
	for _, item := range o.Items {
		total += item.Price
	}
	return total
}

// OrderRequest is the body of POST /api/order. Item descriptions and prices
// sent by the client are ignored.
type OrderRequest struct {
	FranchiseID int64       `json:"franchiseId"`
	StoreID     int64       `json:"storeId"`
	Items       []OrderItem `json:"items"`
}

// OrderResult is returned after the factory accepts an order
type OrderResult struct {
	Order     *Order `json:"order"`
	JWT       string `json:"jwt"`
	ReportURL string `json:"followLinkToEndChaos,omitempty"`
}

// OrderHistory is one page of a diner's orders
type OrderHistory struct {
	DinerID int64    `json:"dinerId"`
	Orders  []*Order `json:"orders"`
	Page    int      `json:"page"`
	More    bool     `json:"more"`
}

// AddMenuItemRequest is the body of PUT /api/order/menu
type AddMenuItemRequest struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Image       string  `json:"image"`
	Price       float64 `json:"price"`
}

// Diner identifies the customer to the factory
type Diner struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// FactoryReceipt is the factory's answer to an accepted order
type FactoryReceipt struct {
	JWT       string
	ReportURL string
}
