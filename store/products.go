package store

import (
	"context"
	"database/sql"
	"fmt"

	models "commerce-api/model"

	"github.com/lib/pq"
)

const productColumns = `id, name, description, price, count, availability, created_at, updated_at`

const (
	selectProductByIDSQL   = `SELECT ` + productColumns + ` FROM products WHERE id = $1`
	selectProductByNameSQL = `SELECT ` + productColumns + ` FROM products WHERE name = $1`
	lockProductsSQL        = `SELECT id FROM products WHERE id = ANY($1) ORDER BY id FOR UPDATE`
	insertProductSQL       = `INSERT INTO products (` + productColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	updateProductSQL       = `UPDATE products SET name = $2, description = $3, price = $4, count = $5, availability = $6, updated_at = $7 WHERE id = $1`
	updateStockSQL         = `UPDATE products SET count = $1, updated_at = NOW() WHERE id = $2`
	updateAvailabilitySQL  = `UPDATE products SET availability = $1, updated_at = NOW() WHERE id = $2`
	deleteProductSQL       = `DELETE FROM products WHERE id = $1`
	listProductsSQL        = `SELECT ` + productColumns + ` FROM products ORDER BY created_at, id LIMIT $1 OFFSET $2`
	countProductsSQL       = `SELECT COUNT(*) FROM products`
	lineItemsByProductSQL  = `SELECT order_id, product_id, count, quantity, price FROM order_line_items WHERE product_id = $1 ORDER BY order_id, id`
)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(r rowScanner) (*models.Product, error) {
	var p models.Product
	if err := r.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Count, &p.Availability, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *PostgresStore) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	p, err := scanProduct(s.conn().QueryRowContext(ctx, selectProductByIDSQL, id))
	if err != nil {
		return nil, translate(err)
	}
	return p, nil
}

func (s *PostgresStore) GetProductByName(ctx context.Context, name string) (*models.Product, error) {
	p, err := scanProduct(s.conn().QueryRowContext(ctx, selectProductByNameSQL, name))
	if err != nil {
		return nil, translate(err)
	}
	return p, nil
}

// LockProducts takes row locks in id order so that concurrent orders touching
// the same products cannot deadlock. Outside a transaction it is a no-op.
func (s *PostgresStore) LockProducts(ctx context.Context, ids []string) error {
	if s.tx == nil || len(ids) == 0 {
		return nil
	}
	rows, err := s.tx.QueryContext(ctx, lockProductsSQL, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("lock products: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
	}
	return rows.Err()
}

func (s *PostgresStore) CreateProduct(ctx context.Context, p *models.Product) error {
	_, err := s.conn().ExecContext(ctx, insertProductSQL,
		p.ID, p.Name, p.Description, p.Price, p.Count, p.Availability, p.CreatedAt, p.UpdatedAt)
	return translate(err)
}

func (s *PostgresStore) UpdateProduct(ctx context.Context, p *models.Product) error {
	res, err := s.conn().ExecContext(ctx, updateProductSQL,
		p.ID, p.Name, p.Description, p.Price, p.Count, p.Availability, p.UpdatedAt)
	if err != nil {
		return translate(err)
	}
	return expectOne(res)
}

// UpdateStock sets the absolute stock for a product.
func (s *PostgresStore) UpdateStock(ctx context.Context, id string, count int) error {
	if count < 0 {
		return fmt.Errorf("stock cannot be negative: %d", count)
	}
	res, err := s.conn().ExecContext(ctx, updateStockSQL, count, id)
	if err != nil {
		return err
	}
	return expectOne(res)
}

func (s *PostgresStore) UpdateAvailability(ctx context.Context, id string, a models.Availability) error {
	res, err := s.conn().ExecContext(ctx, updateAvailabilitySQL, a, id)
	if err != nil {
		return err
	}
	return expectOne(res)
}

func (s *PostgresStore) DeleteProduct(ctx context.Context, id string) error {
	res, err := s.conn().ExecContext(ctx, deleteProductSQL, id)
	if err != nil {
		return err
	}
	return expectOne(res)
}

func (s *PostgresStore) ListProducts(ctx context.Context, skip, take int) ([]models.Product, error) {
	rows, err := s.conn().QueryContext(ctx, listProductsSQL, take, skip)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []models.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CountProducts(ctx context.Context) (int, error) {
	var n int
	err := s.conn().QueryRowContext(ctx, countProductsSQL).Scan(&n)
	return n, err
}

func (s *PostgresStore) LineItemsByProduct(ctx context.Context, productID string) ([]models.LineItem, error) {
	rows, err := s.conn().QueryContext(ctx, lineItemsByProductSQL, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []models.LineItem{}
	for rows.Next() {
		var (
			li  models.LineItem
			pid sql.NullString
		)
		if err := rows.Scan(&li.OrderID, &pid, &li.Count, &li.Quantity, &li.Price); err != nil {
			return nil, err
		}
		li.ProductID = pid.String
		out = append(out, li)
	}
	return out, rows.Err()
}
