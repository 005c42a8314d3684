package store

import (
	"context"
	"errors"
	"time"

	models "commerce-api/model"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicate is returned when a unique constraint is violated.
	ErrDuplicate = errors.New("duplicate key value")

	// ErrMissingReference is returned when a row points at a record that does not exist.
	ErrMissingReference = errors.New("referenced record does not exist")
)

type ProductStore interface {
	GetProduct(ctx context.Context, id string) (*models.Product, error)
	GetProductByName(ctx context.Context, name string) (*models.Product, error)
	// LockProducts holds the given products until the surrounding transaction ends.
	LockProducts(ctx context.Context, ids []string) error
	CreateProduct(ctx context.Context, p *models.Product) error
	UpdateProduct(ctx context.Context, p *models.Product) error
	UpdateStock(ctx context.Context, id string, count int) error
	UpdateAvailability(ctx context.Context, id string, a models.Availability) error
	DeleteProduct(ctx context.Context, id string) error
	ListProducts(ctx context.Context, skip, take int) ([]models.Product, error)
	CountProducts(ctx context.Context) (int, error)
	LineItemsByProduct(ctx context.Context, productID string) ([]models.LineItem, error)
}

type OrderStore interface {
	// CreateOrder inserts the order and its line items together and sets o.ID.
	CreateOrder(ctx context.Context, o *models.Order) error
	GetOrder(ctx context.Context, id int64) (*models.Order, error)
	ListOrders(ctx context.Context, skip, take int) ([]models.Order, error)
	ListOrdersByUser(ctx context.Context, skip, take int, userID int64) ([]models.Order, error)
	CountOrders(ctx context.Context) (int, error)
	CountOrdersByUser(ctx context.Context, userID int64) (int, error)
	UpdateOrderStatus(ctx context.Context, id int64, status models.OrderStatus, updatedAt time.Time) error
	// DeleteOrder removes the line items and then the order row.
	DeleteOrder(ctx context.Context, id int64) error
}

type UserStore interface {
	GetUser(ctx context.Context, id int64) (*models.User, error)
	CreateUser(ctx context.Context, u *models.User) error
}

type Store interface {
	ProductStore
	OrderStore
	UserStore

	// InTx runs fn against a store bound to one transaction. The transaction
	// commits when fn returns nil and rolls back otherwise.
	InTx(ctx context.Context, fn func(tx Store) error) error

	Close() error
}
