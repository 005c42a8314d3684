package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	StatusPending    OrderStatus = "Pending"
	StatusInProgress OrderStatus = "In Progress"
	StatusCompleted  OrderStatus = "Completed"
)

// OrderStatuses lists the accepted statuses in lifecycle order.
var OrderStatuses = []OrderStatus{StatusPending, StatusInProgress, StatusCompleted}

// Active reports whether an order in this status still holds its products.
func (s OrderStatus) Active() bool {
	return s == StatusPending || s == StatusInProgress
}

type Order struct {
	ID        int64       `json:"id"`
	UserID    int64       `json:"userId"`
	Status    OrderStatus `json:"status"`
	Items     []LineItem  `json:"items"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

// Total sums the line totals of the order.
func (o Order) Total() decimal.Decimal {
	total := decimal.Zero
	for _, it := range o.Items {
		total = total.Add(it.Total())
	}
	return total
}

// LineItem is one product/quantity/price record of an order.
// Count is the product stock observed when the order was placed and
// Quantity the number of units reserved by the order.
type LineItem struct {
	OrderID   int64           `json:"orderId"`
	ProductID string          `json:"productId"`
	Count     int             `json:"count"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Product   *Product        `json:"product,omitempty"`
}

func (li LineItem) Total() decimal.Decimal {
	return li.Price.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// OrderRequestItem is a product and quantity requested by a customer.
type OrderRequestItem struct {
	ProductID string `json:"id"`
	Count     int    `json:"count_products"`
}
