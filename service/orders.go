package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"commerce-api/apperr"
	"commerce-api/cache"
	"commerce-api/events"
	models "commerce-api/model"
	"commerce-api/result"
	"commerce-api/store"
	"commerce-api/validate"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type OrderService struct {
	deps
	publisher events.Publisher
	cache     cache.ProductCache
}

func NewOrderService(st store.Store, pub events.Publisher, pc cache.ProductCache, logger *zap.Logger, tracer trace.Tracer) *OrderService {
	return &OrderService{
		deps:      deps{store: st, logger: logger, tracer: tracer, now: time.Now},
		publisher: pub,
		cache:     pc,
	}
}

// asInternal keeps workflow errors as they are and wraps anything else.
func asInternal(message string, err error) error {
	var e *apperr.Error
	if errors.As(err, &e) {
		return e
	}
	return apperr.Internal(message, err)
}

// CreateOrder places an order for userID. Stock is checked, the order is
// stored and stock is written back in one transaction, so a failure at any
// step leaves every product untouched.
func (s *OrderService) CreateOrder(ctx context.Context, userID int64, items []models.OrderRequestItem) (_ *models.Order, err error) {
	ctx, span := s.tracer.Start(ctx, "order.create")
	defer func() { s.finish(span, "order.create", err) }()
	span.SetAttributes(
		attribute.Int64("user.id", userID),
		attribute.Int("order.item_count", len(items)),
	)

	if errs := validate.OrderRequest(items); len(errs) > 0 {
		return nil, apperr.Invalid("The order could not be created due to validation errors", errs...)
	}

	// locks are taken in id order, validation runs in request order
	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.ProductID
	}
	sort.Strings(ids)

	now := s.now()
	order := &models.Order{UserID: userID, Status: models.StatusPending, CreatedAt: now, UpdatedAt: now}

	err = s.store.InTx(ctx, func(tx store.Store) error {
		if err := tx.LockProducts(ctx, ids); err != nil {
			return apperr.Internal("An error occurred while creating order", err)
		}

		lines := make([]models.LineItem, 0, len(items))
		for _, it := range items {
			p, err := tx.GetProduct(ctx, it.ProductID)
			if isNotFound(err) {
				return apperr.NotFound("The order could not be created because the product was not found.",
					fmt.Sprintf("Product with id %s not found", it.ProductID))
			}
			if err != nil {
				return apperr.Internal("An error occurred while creating order", err)
			}
			if p.Count < it.Count {
				return apperr.InsufficientStock("Order could not be created due to verification errors",
					fmt.Sprintf("Product with id %s does not have enough available stock (current stock = %d)", p.ID, p.Count))
			}
			lines = append(lines, models.LineItem{
				ProductID: p.ID,
				Count:     p.Count,
				Quantity:  it.Count,
				Price:     p.Price,
			})
		}
		order.Items = lines

		if err := tx.CreateOrder(ctx, order); err != nil {
			if errors.Is(err, store.ErrMissingReference) {
				return apperr.NotFound("The order could not be created because the user does not exist.", "User not found.")
			}
			return apperr.Internal("An error occurred while creating order", err)
		}

		for _, li := range order.Items {
			remaining := li.Count - li.Quantity
			if err := tx.UpdateStock(ctx, li.ProductID, remaining); err != nil {
				return apperr.Internal("An error occurred while creating order", err)
			}
			if err := tx.UpdateAvailability(ctx, li.ProductID, models.AvailabilityFor(remaining)); err != nil {
				return apperr.Internal("An error occurred while creating order", err)
			}
		}
		return nil
	})
	if err != nil {
		order.ID = 0
		return nil, asInternal("An error occurred while creating order", err)
	}

	span.SetAttributes(attribute.Int64("order.id", order.ID))
	s.logger.Info("order created",
		zap.Int64("order_id", order.ID),
		zap.Int64("user_id", userID),
		zap.String("total", order.Total().String()))

	if err := s.cache.Invalidate(ctx, ids...); err != nil {
		s.logger.Warn("product cache invalidation failed", zap.Error(err))
	}
	s.publish(ctx, events.ForOrder(events.OrderCreated, order, now))
	return order, nil
}

// UpdateOrderStatus moves an order to status. Any status may follow any
// other; only setting the current status again is rejected.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, id int64, status string) (err error) {
	ctx, span := s.tracer.Start(ctx, "order.update_status")
	defer func() { s.finish(span, "order.update_status", err) }()
	span.SetAttributes(attribute.Int64("order.id", id), attribute.String("order.status", status))

	if errs := append(validate.ID(id), validate.OrderStatus(status)...); len(errs) > 0 {
		return apperr.Invalid("Order status could not be updated due to invalid parameters", errs...)
	}

	order, err := s.store.GetOrder(ctx, id)
	if isNotFound(err) {
		return apperr.NotFound("The order could not be updated because it does not exist.", "Order not found")
	}
	if err != nil {
		return apperr.Internal("An error occurred while updating order status", err)
	}

	target := models.OrderStatus(status)
	if order.Status == target {
		return apperr.Conflict("Order status could not be updated due to verification errors",
			"Order status is already set to the specified status")
	}

	now := s.now()
	if err := s.store.UpdateOrderStatus(ctx, id, target, now); err != nil {
		if isNotFound(err) {
			return apperr.NotFound("The order could not be updated because it does not exist.", "Order not found")
		}
		return apperr.Internal("An error occurred while updating order status", err)
	}

	order.Status = target
	order.UpdatedAt = now
	s.publish(ctx, events.ForOrder(events.OrderStatusChanged, order, now))
	return nil
}

func (s *OrderService) GetOrder(ctx context.Context, id int64) (_ *models.Order, err error) {
	ctx, span := s.tracer.Start(ctx, "order.get")
	defer func() { s.finish(span, "order.get", err) }()
	span.SetAttributes(attribute.Int64("order.id", id))

	if errs := validate.ID(id); len(errs) > 0 {
		return nil, apperr.Invalid("Could not get order due to some invalid parameters", errs...)
	}
	order, err := s.store.GetOrder(ctx, id)
	if isNotFound(err) {
		return nil, apperr.NotFound("Order could not be retrieved due to verification errors", "Order not found")
	}
	if err != nil {
		return nil, apperr.Internal("An error occurred while retrieving order", err)
	}
	return order, nil
}

func (s *OrderService) ListOrders(ctx context.Context, q PageQuery) (_ []models.Order, _ result.Pagination, err error) {
	ctx, span := s.tracer.Start(ctx, "order.list")
	defer func() { s.finish(span, "order.list", err) }()

	if err := q.check("Could not get the orders list due to invalid parameters"); err != nil {
		return nil, result.Pagination{}, err
	}
	orders, err := s.store.ListOrders(ctx, q.skip(), q.Limit)
	if err != nil {
		return nil, result.Pagination{}, apperr.Internal("Could not get the orders list due to unexpected error", err)
	}
	count, err := s.store.CountOrders(ctx)
	if err != nil {
		return nil, result.Pagination{}, apperr.Internal("Could not get the orders list due to unexpected error", err)
	}
	return orders, q.pagination(count), nil
}

// ListOrdersByUser lists the orders of userID, who must exist.
func (s *OrderService) ListOrdersByUser(ctx context.Context, q PageQuery, userID int64) (_ []models.Order, _ result.Pagination, err error) {
	ctx, span := s.tracer.Start(ctx, "order.list_by_user")
	defer func() { s.finish(span, "order.list_by_user", err) }()
	span.SetAttributes(attribute.Int64("user.id", userID))

	if errs := append(validate.ID(userID), validate.Page(q.Page, q.Limit)...); len(errs) > 0 {
		return nil, result.Pagination{}, apperr.Invalid("Could not get the orders list due to invalid parameters", errs...)
	}
	if _, err := s.store.GetUser(ctx, userID); err != nil {
		if isNotFound(err) {
			return nil, result.Pagination{}, apperr.NotFound("Unable to get orders, because the user does not exist.", "User not found.")
		}
		return nil, result.Pagination{}, apperr.Internal("Could not get the orders list due to unexpected error", err)
	}

	orders, err := s.store.ListOrdersByUser(ctx, q.skip(), q.Limit, userID)
	if err != nil {
		return nil, result.Pagination{}, apperr.Internal("Could not get the orders list due to unexpected error", err)
	}
	count, err := s.store.CountOrdersByUser(ctx, userID)
	if err != nil {
		return nil, result.Pagination{}, apperr.Internal("Could not get the orders list due to unexpected error", err)
	}
	return orders, q.pagination(count), nil
}

// DeleteOrder removes an order and its line items. Stock is not restored.
func (s *OrderService) DeleteOrder(ctx context.Context, id int64) (err error) {
	ctx, span := s.tracer.Start(ctx, "order.delete")
	defer func() { s.finish(span, "order.delete", err) }()
	span.SetAttributes(attribute.Int64("order.id", id))

	if errs := validate.ID(id); len(errs) > 0 {
		return apperr.Invalid("Could not delete order due to some invalid parameters", errs...)
	}
	order, err := s.store.GetOrder(ctx, id)
	if isNotFound(err) {
		return apperr.NotFound("The order could not be deleted because it does not exist.", "Order not found")
	}
	if err != nil {
		return apperr.Internal("An error occurred while deleting order", err)
	}
	if err := s.store.DeleteOrder(ctx, id); err != nil {
		if isNotFound(err) {
			return apperr.NotFound("The order could not be deleted because it does not exist.", "Order not found")
		}
		return apperr.Internal("An error occurred while deleting order", err)
	}

	s.publish(ctx, events.ForOrder(events.OrderDeleted, order, s.now()))
	return nil
}

// publish sends ev after the change is committed. Failures are only logged.
func (s *OrderService) publish(ctx context.Context, ev events.Event) {
	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.logger.Warn("failed to publish order event",
			zap.String("type", string(ev.Type)),
			zap.Int64("order_id", ev.OrderID),
			zap.Error(err))
	}
}
