package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstructorsFillCodeAndDetails(t *testing.T) {
	e := NotFound("Order not found")
	assert.Equal(t, KindNotFound, e.Kind)
	assert.Equal(t, CodeNotFound, e.Code)
	assert.Equal(t, []string{"Order not found"}, e.Details)

	e = Invalid("bad request", "a", "b")
	assert.Equal(t, CodeInvalid, e.Code)
	assert.Equal(t, []string{"a", "b"}, e.Details)

	assert.Equal(t, CodeInsufficientStock, InsufficientStock("x").Code)
	assert.Equal(t, CodeConflict, Conflict("x").Code)
	assert.Equal(t, CodeUnauthorized, Unauthorized("x").Code)
}

func TestInternalHidesCause(t *testing.T) {
	cause := errors.New("connection refused")
	e := Internal("An error occurred while creating order", cause)

	assert.Equal(t, KindInternal, e.Kind)
	assert.Equal(t, []string{"Unexpected server error."}, e.Details)
	assert.ErrorIs(t, e, cause)
}

func TestFromAndKindOf(t *testing.T) {
	wrapped := fmt.Errorf("creating order: %w", Conflict("dup"))
	assert.Equal(t, KindConflict, KindOf(wrapped))
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
	assert.Equal(t, Kind(""), KindOf(nil))
	assert.Nil(t, From(nil))

	e := From(errors.New("boom"))
	require.NotNil(t, e)
	assert.Equal(t, CodeInternal, e.Code)
}

func TestIsMatchesKind(t *testing.T) {
	err := fmt.Errorf("wrap: %w", NotFound("Product not found"))
	assert.True(t, errors.Is(err, &Error{Kind: KindNotFound}))
	assert.False(t, errors.Is(err, &Error{Kind: KindConflict}))
}

func TestHTTPStatus(t *testing.T) {
	cases := map[Kind]int{
		KindNotFound:          http.StatusNotFound,
		KindInvalid:           http.StatusUnprocessableEntity,
		KindInsufficientStock: http.StatusUnprocessableEntity,
		KindConflict:          http.StatusConflict,
		KindUnauthorized:      http.StatusUnauthorized,
		KindInternal:          http.StatusInternalServerError,
	}
	for k, want := range cases {
		assert.Equal(t, want, HTTPStatus(k), k)
	}
}
