// Package result holds the response envelope returned by every API operation.
package result

import (
	"commerce-api/apperr"
)

type Pagination struct {
	Page      int `json:"page"`
	Limit     int `json:"limit"`
	ItemCount int `json:"itemCount"`
	PageCount int `json:"pageCount"`
}

// NewPagination describes the window [skip, skip+limit) over itemCount items.
func NewPagination(skip, limit, itemCount int) Pagination {
	p := Pagination{Limit: limit, ItemCount: itemCount, Page: 1}
	if limit <= 0 {
		return p
	}
	p.Page = skip/limit + 1
	p.PageCount = (itemCount + limit - 1) / limit
	return p
}

type Result[T any] struct {
	Success    bool        `json:"success"`
	Message    string      `json:"message"`
	Data       *T          `json:"data"`
	ErrorCode  int         `json:"errorCode,omitempty"`
	ErrorType  apperr.Kind `json:"errorType,omitempty"`
	Errors     []string    `json:"errors,omitempty"`
	Pagination *Pagination `json:"pagination,omitempty"`
}

func OK[T any](message string, data *T) Result[T] {
	return Result[T]{Success: true, Message: message, Data: data}
}

func Page[T any](message string, data []T, p Pagination) Result[[]T] {
	if data == nil {
		data = []T{}
	}
	return Result[[]T]{Success: true, Message: message, Data: &data, Pagination: &p}
}

// Fail builds the envelope for err; non-apperr errors are reported as internal.
func Fail[T any](err error) Result[T] {
	e := apperr.From(err)
	return Result[T]{
		Success:   false,
		Message:   e.Message,
		ErrorCode: e.Code,
		ErrorType: e.Kind,
		Errors:    e.Details,
	}
}
