package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_IsMatchesByKind(t *testing.T) {
	err := NotFound("Product with ID %s not found.", "prod-1")

	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrConflict)
	assert.Equal(t, "Product with ID prod-1 not found.", err.Error())
}

func TestError_IsThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("add item: %w", InsufficientStock("Not enough stock for product %s.", "prod-1"))

	assert.ErrorIs(t, wrapped, ErrInsufficientStock)
	assert.Equal(t, KindInsufficientStock, KindOf(wrapped))
}

func TestKindOf_PlainError(t *testing.T) {
	assert.Equal(t, KindUnknown, KindOf(errors.New("connection reset")))
	assert.Equal(t, KindUnknown, KindOf(nil))
}

func TestError_UnwrapCause(t *testing.T) {
	cause := errors.New("boom")
	err := &Error{Kind: KindCorruptState, Message: "ledger broken", Err: cause}

	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, ErrCorruptState)
	assert.Equal(t, "ledger broken: boom", err.Error())
}

func TestKind_String(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{KindNotFound, "NotFound"},
		{KindInvalidArgument, "InvalidArgument"},
		{KindBadRequest, "BadRequest"},
		{KindInsufficientStock, "InsufficientStock"},
		{KindConflict, "Conflict"},
		{KindCorruptState, "CorruptState"},
		{KindUnknown, "Unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.kind.String())
		})
	}
}
