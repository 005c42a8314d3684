package service

import (
	"context"

	models "commerce-api/model"
	"commerce-api/result"
)

// Orders is the order API consumed by the HTTP handler.
type Orders interface {
	CreateOrder(ctx context.Context, userID int64, items []models.OrderRequestItem) (*models.Order, error)
	UpdateOrderStatus(ctx context.Context, id int64, status string) error
	GetOrder(ctx context.Context, id int64) (*models.Order, error)
	ListOrders(ctx context.Context, q PageQuery) ([]models.Order, result.Pagination, error)
	ListOrdersByUser(ctx context.Context, q PageQuery, userID int64) ([]models.Order, result.Pagination, error)
	DeleteOrder(ctx context.Context, id int64) error
}

type Products interface {
	CreateProduct(ctx context.Context, in models.Product) (*models.Product, error)
	UpdateProduct(ctx context.Context, id string, patch models.ProductPatch) (*models.Product, error)
	DeleteProduct(ctx context.Context, id string) error
	GetProduct(ctx context.Context, id string) (*models.Product, error)
	ListProducts(ctx context.Context, q PageQuery) ([]models.Product, result.Pagination, error)
}

var (
	_ Orders   = (*OrderService)(nil)
	_ Products = (*ProductService)(nil)
)
