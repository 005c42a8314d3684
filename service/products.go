package service

import (
	"context"
	"errors"
	"time"

	"commerce-api/apperr"
	"commerce-api/cache"
	models "commerce-api/model"
	"commerce-api/result"
	"commerce-api/store"
	"commerce-api/validate"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type ProductService struct {
	deps
	cache cache.ProductCache
	newID func() string
}

func NewProductService(st store.Store, pc cache.ProductCache, logger *zap.Logger, tracer trace.Tracer) *ProductService {
	return &ProductService{
		deps:  deps{store: st, logger: logger, tracer: tracer, now: time.Now},
		cache: pc,
		newID: uuid.NewString,
	}
}

// ensureNoActiveOrders fails with a conflict when any order that still holds
// the product is Pending or In Progress.
func ensureNoActiveOrders(ctx context.Context, st store.Store, productID string, conflict *apperr.Error) error {
	items, err := st.LineItemsByProduct(ctx, productID)
	if err != nil {
		return apperr.Internal("Could not check the orders of the product", err)
	}
	checked := make(map[int64]struct{}, len(items))
	for _, li := range items {
		if _, ok := checked[li.OrderID]; ok {
			continue
		}
		checked[li.OrderID] = struct{}{}

		o, err := st.GetOrder(ctx, li.OrderID)
		if isNotFound(err) {
			continue
		}
		if err != nil {
			return apperr.Internal("Could not check the orders of the product", err)
		}
		if o.Status.Active() {
			return conflict
		}
	}
	return nil
}

func (s *ProductService) CreateProduct(ctx context.Context, in models.Product) (_ *models.Product, err error) {
	ctx, span := s.tracer.Start(ctx, "product.create")
	defer func() { s.finish(span, "product.create", err) }()

	if errs := validate.NewProduct(in); len(errs) > 0 {
		return nil, apperr.Invalid("Could not create product due to some invalid parameters", errs...)
	}

	duplicate := apperr.Conflict("The product name already exists.", "Product with the same name already exists")
	if _, err := s.store.GetProductByName(ctx, in.Name); err == nil {
		return nil, duplicate
	} else if !isNotFound(err) {
		return nil, apperr.Internal("Could not create the product due to unexpected error", err)
	}

	now := s.now()
	p := &models.Product{
		ID:           s.newID(),
		Name:         in.Name,
		Description:  in.Description,
		Price:        in.Price,
		Count:        in.Count,
		Availability: models.AvailabilityFor(in.Count),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.CreateProduct(ctx, p); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, duplicate
		}
		return nil, apperr.Internal("Could not create the product due to unexpected error", err)
	}
	span.SetAttributes(attribute.String("product.id", p.ID))
	return p, nil
}

// UpdateProduct applies patch to the product. Products held by an active
// order cannot change.
func (s *ProductService) UpdateProduct(ctx context.Context, id string, patch models.ProductPatch) (_ *models.Product, err error) {
	ctx, span := s.tracer.Start(ctx, "product.update")
	defer func() { s.finish(span, "product.update", err) }()
	span.SetAttributes(attribute.String("product.id", id))

	if errs := validate.ProductPatch(patch); len(errs) > 0 {
		return nil, apperr.Invalid("Could not update product due to some invalid parameters", errs...)
	}

	var updated *models.Product
	err = s.store.InTx(ctx, func(tx store.Store) error {
		if err := tx.LockProducts(ctx, []string{id}); err != nil {
			return apperr.Internal("Could not update the product due to unexpected error", err)
		}
		p, err := tx.GetProduct(ctx, id)
		if isNotFound(err) {
			return apperr.NotFound("Product not found", "Product not found")
		}
		if err != nil {
			return apperr.Internal("Could not update the product due to unexpected error", err)
		}

		conflict := apperr.Conflict("Product was already ordered and cannot be updated",
			"Product was already ordered and cannot be updated")
		if err := ensureNoActiveOrders(ctx, tx, id, conflict); err != nil {
			return err
		}

		duplicate := apperr.Conflict("Due to validation errors, this product cannot be updated.",
			"Product with the same name already exists")
		if patch.Name != nil && *patch.Name != p.Name {
			other, err := tx.GetProductByName(ctx, *patch.Name)
			if err == nil && other.ID != id {
				return duplicate
			}
			if err != nil && !isNotFound(err) {
				return apperr.Internal("Could not update the product due to unexpected error", err)
			}
		}

		patch.Apply(p)
		p.UpdatedAt = s.now()
		if err := tx.UpdateProduct(ctx, p); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return duplicate
			}
			return apperr.Internal("Could not update the product due to unexpected error", err)
		}
		updated = p
		return nil
	})
	if err != nil {
		return nil, asInternal("Could not update the product due to unexpected error", err)
	}

	s.invalidate(ctx, id)
	return updated, nil
}

func (s *ProductService) DeleteProduct(ctx context.Context, id string) (err error) {
	ctx, span := s.tracer.Start(ctx, "product.delete")
	defer func() { s.finish(span, "product.delete", err) }()
	span.SetAttributes(attribute.String("product.id", id))

	err = s.store.InTx(ctx, func(tx store.Store) error {
		if err := tx.LockProducts(ctx, []string{id}); err != nil {
			return apperr.Internal("Could not delete the product due to unexpected error", err)
		}
		if _, err := tx.GetProduct(ctx, id); err != nil {
			if isNotFound(err) {
				return apperr.NotFound("The product was not found in the product list", "Product not found")
			}
			return apperr.Internal("Could not delete the product due to unexpected error", err)
		}

		conflict := apperr.Conflict("Due to validation errors, this product cannot be deleted.",
			"Product was already ordered and cannot be deleted")
		if err := ensureNoActiveOrders(ctx, tx, id, conflict); err != nil {
			return err
		}
		if err := tx.DeleteProduct(ctx, id); err != nil {
			return apperr.Internal("Could not delete the product due to unexpected error", err)
		}
		return nil
	})
	if err != nil {
		return asInternal("Could not delete the product due to unexpected error", err)
	}

	s.invalidate(ctx, id)
	return nil
}

// GetProduct reads through the product cache. Cache failures count as misses.
func (s *ProductService) GetProduct(ctx context.Context, id string) (_ *models.Product, err error) {
	ctx, span := s.tracer.Start(ctx, "product.get")
	defer func() { s.finish(span, "product.get", err) }()
	span.SetAttributes(attribute.String("product.id", id))

	p, hit, err := s.cache.Get(ctx, id)
	if err != nil {
		s.logger.Warn("product cache read failed", zap.String("product_id", id), zap.Error(err))
	}
	span.SetAttributes(attribute.Bool("cache.hit", hit))
	if hit {
		return p, nil
	}

	// the version is taken before the store read so a change committed in
	// between makes the fill below a no-op
	version, verr := s.cache.Version(ctx, id)
	if verr != nil {
		s.logger.Warn("product cache version read failed", zap.String("product_id", id), zap.Error(verr))
	}

	p, err = s.store.GetProduct(ctx, id)
	if isNotFound(err) {
		return nil, apperr.NotFound("The product was not found in the product list", "Product not found")
	}
	if err != nil {
		return nil, apperr.Internal("Could not get the product due to unexpected error", err)
	}
	if verr == nil {
		if err := s.cache.Set(ctx, p, version); err != nil {
			s.logger.Warn("product cache write failed", zap.String("product_id", id), zap.Error(err))
		}
	}
	return p, nil
}

func (s *ProductService) ListProducts(ctx context.Context, q PageQuery) (_ []models.Product, _ result.Pagination, err error) {
	ctx, span := s.tracer.Start(ctx, "product.list")
	defer func() { s.finish(span, "product.list", err) }()

	if err := q.check("Could not get the products list due to invalid parameters"); err != nil {
		return nil, result.Pagination{}, err
	}
	products, err := s.store.ListProducts(ctx, q.skip(), q.Limit)
	if err != nil {
		return nil, result.Pagination{}, apperr.Internal("Could not get the products list due to unexpected error", err)
	}
	count, err := s.store.CountProducts(ctx)
	if err != nil {
		return nil, result.Pagination{}, apperr.Internal("Could not get the products list due to unexpected error", err)
	}
	return products, q.pagination(count), nil
}

func (s *ProductService) invalidate(ctx context.Context, ids ...string) {
	if err := s.cache.Invalidate(ctx, ids...); err != nil {
		s.logger.Warn("product cache invalidation failed", zap.Strings("product_ids", ids), zap.Error(err))
	}
}
