package service

import (
	"errors"
	"time"

	"commerce-api/apperr"
	"commerce-api/result"
	"commerce-api/store"
	"commerce-api/validate"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	DefaultPage  = 1
	DefaultLimit = 10
)

// PageQuery selects one page of a listing. Page is 1-based.
type PageQuery struct {
	Page  int
	Limit int
}

func (q PageQuery) skip() int { return (q.Page - 1) * q.Limit }

func (q PageQuery) check(message string) error {
	if errs := validate.Page(q.Page, q.Limit); len(errs) > 0 {
		return apperr.Invalid(message, errs...)
	}
	return nil
}

func (q PageQuery) pagination(itemCount int) result.Pagination {
	return result.NewPagination(q.skip(), q.Limit, itemCount)
}

// deps is shared by the services.
type deps struct {
	store  store.Store
	logger *zap.Logger
	tracer trace.Tracer
	now    func() time.Time
}

// finish records the outcome of an operation on its span and in the log.
// Rejections are logged at info, unexpected failures at error.
func (d *deps) finish(span trace.Span, op string, err error) {
	defer span.End()
	if err == nil {
		span.SetStatus(codes.Ok, "")
		return
	}
	e := apperr.From(err)
	span.RecordError(err)
	span.SetStatus(codes.Error, e.Message)
	if e.Kind == apperr.KindInternal {
		d.logger.Error(op+" failed", zap.Error(e.Err), zap.String("message", e.Message))
		return
	}
	d.logger.Info(op+" rejected",
		zap.String("kind", string(e.Kind)),
		zap.Strings("errors", e.Details))
}

func isNotFound(err error) bool { return errors.Is(err, store.ErrNotFound) }
