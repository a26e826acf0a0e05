package apperror

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf_WrappedError(t *testing.T) {
	base := Invalid("cart is empty")
	wrapped := fmt.Errorf("place order: %w", base)

	assert.Equal(t, KindInvalid, KindOf(wrapped))
	assert.Equal(t, "cart is empty", MessageOf(wrapped))
}

func TestKindOf_PlainErrorIsInternal(t *testing.T) {
	err := errors.New("connection reset")

	assert.Equal(t, KindInternal, KindOf(err))
	assert.Equal(t, "internal server error", MessageOf(err))
}

func TestError_WrapKeepsCause(t *testing.T) {
	cause := errors.New("no rows")
	err := NotFound("address %s not found", "a1").Wrap(cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "address a1 not found: no rows", err.Error())
}
