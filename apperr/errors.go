// Package apperr defines the error kinds surfaced by the order and product workflows.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind tags a business failure.
type Kind string

const (
	KindNotFound          Kind = "NOT_FOUND"
	KindInvalid           Kind = "INVALID"
	KindConflict          Kind = "CONFLICT"
	KindInsufficientStock Kind = "INSUFFICIENT_STOCK"
	KindUnauthorized      Kind = "UNAUTHORIZED"
	KindInternal          Kind = "INTERNAL_EXCEPTION"
)

// Numeric codes reported in the result envelope.
const (
	CodeNotFound          = 404
	CodeInvalid           = 407
	CodeConflict          = 400
	CodeInsufficientStock = 2001
	CodeUnauthorized      = 401
	CodeInternal          = 500
)

// Error is a workflow failure with a kind, a numeric code, a summary message
// and the list of human-readable details shown to the caller.
type Error struct {
	Kind    Kind
	Code    int
	Message string
	Details []string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error of the same kind, so errors.Is(err, &Error{Kind: KindConflict}) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

func newError(kind Kind, code int, message string, details []string) *Error {
	if len(details) == 0 {
		details = []string{message}
	}
	return &Error{Kind: kind, Code: code, Message: message, Details: details}
}

func NotFound(message string, details ...string) *Error {
	return newError(KindNotFound, CodeNotFound, message, details)
}

func Invalid(message string, details ...string) *Error {
	return newError(KindInvalid, CodeInvalid, message, details)
}

func Conflict(message string, details ...string) *Error {
	return newError(KindConflict, CodeConflict, message, details)
}

func InsufficientStock(message string, details ...string) *Error {
	return newError(KindInsufficientStock, CodeInsufficientStock, message, details)
}

func Unauthorized(message string, details ...string) *Error {
	return newError(KindUnauthorized, CodeUnauthorized, message, details)
}

// Internal wraps an unexpected failure. The cause is kept for logging but
// never shown to the caller.
func Internal(message string, cause error) *Error {
	e := newError(KindInternal, CodeInternal, message, []string{"Unexpected server error."})
	e.Err = cause
	return e
}

// From returns err as an *Error, wrapping anything else as an internal failure.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Internal("An unexpected error occurred", err)
}

// KindOf returns the kind of err; errors outside this package are internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	return From(err).Kind
}

// HTTPStatus maps a kind onto the response status code.
func HTTPStatus(k Kind) int {
	switch k {
	case KindNotFound:
		return http.StatusNotFound
	case KindInvalid, KindInsufficientStock:
		return http.StatusUnprocessableEntity
	case KindConflict:
		return http.StatusConflict
	case KindUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
