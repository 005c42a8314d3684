package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	models "commerce-api/model"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

const orderColumns = `id, user_id, status, created_at, updated_at`

const (
	insertOrderSQL       = `INSERT INTO orders (user_id, status, created_at, updated_at) VALUES ($1, $2, $3, $4) RETURNING id`
	insertLineItemSQL    = `INSERT INTO order_line_items (order_id, product_id, count, quantity, price) VALUES ($1, $2, $3, $4, $5)`
	selectOrderSQL       = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	listOrdersSQL        = `SELECT ` + orderColumns + ` FROM orders ORDER BY id LIMIT $1 OFFSET $2`
	listOrdersByUserSQL  = `SELECT ` + orderColumns + ` FROM orders WHERE user_id = $1 ORDER BY id LIMIT $2 OFFSET $3`
	countOrdersSQL       = `SELECT COUNT(*) FROM orders`
	countOrdersByUserSQL = `SELECT COUNT(*) FROM orders WHERE user_id = $1`
	updateOrderStatusSQL = `UPDATE orders SET status = $1, updated_at = $2 WHERE id = $3`
	deleteLineItemsSQL   = `DELETE FROM order_line_items WHERE order_id = $1`
	deleteOrderSQL       = `DELETE FROM orders WHERE id = $1`

	// line items with their products; the product side is empty once deleted
	selectLineItemsSQL = `
		SELECT li.order_id, li.product_id, li.count, li.quantity, li.price,
		       p.id, p.name, p.description, p.price, p.count, p.availability, p.created_at, p.updated_at
		FROM order_line_items li
		LEFT JOIN products p ON p.id = li.product_id
		WHERE li.order_id = ANY($1)
		ORDER BY li.order_id, li.id`
)

// CreateOrder creates the order row and its line items in one transaction.
func (s *PostgresStore) CreateOrder(ctx context.Context, o *models.Order) error {
	return s.inTx(ctx, func(tx *PostgresStore) error {
		var orderID int64
		if err := tx.tx.QueryRowContext(ctx, insertOrderSQL, o.UserID, o.Status, o.CreatedAt, o.UpdatedAt).Scan(&orderID); err != nil {
			return fmt.Errorf("insert order: %w", translate(err))
		}

		stmt, err := tx.tx.PrepareContext(ctx, insertLineItemSQL)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for i := range o.Items {
			it := &o.Items[i]
			if _, err := stmt.ExecContext(ctx, orderID, it.ProductID, it.Count, it.Quantity, it.Price); err != nil {
				return fmt.Errorf("insert line item %s: %w", it.ProductID, translate(err))
			}
			it.OrderID = orderID
		}
		o.ID = orderID
		return nil
	})
}

func scanOrder(r rowScanner) (*models.Order, error) {
	var o models.Order
	if err := r.Scan(&o.ID, &o.UserID, &o.Status, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	o.Items = []models.LineItem{}
	return &o, nil
}

func (s *PostgresStore) GetOrder(ctx context.Context, id int64) (*models.Order, error) {
	o, err := scanOrder(s.conn().QueryRowContext(ctx, selectOrderSQL, id))
	if err != nil {
		return nil, translate(err)
	}
	orders := []models.Order{*o}
	if err := s.attachLineItems(ctx, orders); err != nil {
		return nil, err
	}
	return &orders[0], nil
}

func (s *PostgresStore) ListOrders(ctx context.Context, skip, take int) ([]models.Order, error) {
	return s.queryOrders(ctx, listOrdersSQL, take, skip)
}

func (s *PostgresStore) ListOrdersByUser(ctx context.Context, skip, take int, userID int64) ([]models.Order, error) {
	return s.queryOrders(ctx, listOrdersByUserSQL, userID, take, skip)
}

func (s *PostgresStore) queryOrders(ctx context.Context, query string, args ...any) ([]models.Order, error) {
	rows, err := s.conn().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	out := []models.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, *o)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	if err := s.attachLineItems(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

// attachLineItems loads the line items of all given orders with one query.
func (s *PostgresStore) attachLineItems(ctx context.Context, orders []models.Order) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]int64, len(orders))
	byID := make(map[int64]int, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
		byID[o.ID] = i
	}

	rows, err := s.conn().QueryContext(ctx, selectLineItemsSQL, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("load line items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			li                      models.LineItem
			productRef              sql.NullString
			pID, pName, pDesc, pAvl sql.NullString
			pPrice                  decimal.NullDecimal
			pCount                  sql.NullInt64
			pCreatedAt, pUpdatedAt  sql.NullTime
		)
		if err := rows.Scan(&li.OrderID, &productRef, &li.Count, &li.Quantity, &li.Price,
			&pID, &pName, &pDesc, &pPrice, &pCount, &pAvl, &pCreatedAt, &pUpdatedAt); err != nil {
			return err
		}
		li.ProductID = productRef.String
		if pID.Valid {
			li.Product = &models.Product{
				ID:           pID.String,
				Name:         pName.String,
				Description:  pDesc.String,
				Price:        pPrice.Decimal,
				Count:        int(pCount.Int64),
				Availability: models.Availability(pAvl.String),
				CreatedAt:    pCreatedAt.Time,
				UpdatedAt:    pUpdatedAt.Time,
			}
		}
		idx, ok := byID[li.OrderID]
		if !ok {
			continue
		}
		orders[idx].Items = append(orders[idx].Items, li)
	}
	return rows.Err()
}

func (s *PostgresStore) CountOrders(ctx context.Context) (int, error) {
	var n int
	err := s.conn().QueryRowContext(ctx, countOrdersSQL).Scan(&n)
	return n, err
}

func (s *PostgresStore) CountOrdersByUser(ctx context.Context, userID int64) (int, error) {
	var n int
	err := s.conn().QueryRowContext(ctx, countOrdersByUserSQL, userID).Scan(&n)
	return n, err
}

func (s *PostgresStore) UpdateOrderStatus(ctx context.Context, id int64, status models.OrderStatus, updatedAt time.Time) error {
	res, err := s.conn().ExecContext(ctx, updateOrderStatusSQL, status, updatedAt, id)
	if err != nil {
		return err
	}
	return expectOne(res)
}

func (s *PostgresStore) DeleteOrder(ctx context.Context, id int64) error {
	return s.inTx(ctx, func(tx *PostgresStore) error {
		if _, err := tx.tx.ExecContext(ctx, deleteLineItemsSQL, id); err != nil {
			return fmt.Errorf("delete line items: %w", err)
		}
		res, err := tx.tx.ExecContext(ctx, deleteOrderSQL, id)
		if err != nil {
			return fmt.Errorf("delete order: %w", err)
		}
		return expectOne(res)
	})
}
