package apperror

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

var errMerchantNotFound = NotFound("merchant_not_found", "merchant not found")

func TestIsMatchesKindAndCode(t *testing.T) {
	wrapped := fmt.Errorf("load merchant: %w", errMerchantNotFound)
	assert.True(t, errors.Is(wrapped, errMerchantNotFound))
	assert.True(t, errors.Is(errMerchantNotFound.WithMessage("merchant %d not found", 7), errMerchantNotFound))
	assert.False(t, errors.Is(wrapped, NotFound("product_not_found", "product not found")))
	assert.False(t, errors.Is(wrapped, Forbidden("merchant_not_found", "x")))
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindNotFound, KindOf(fmt.Errorf("x: %w", errMerchantNotFound)))
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
	assert.Equal(t, Kind(""), KindOf(nil))
	assert.True(t, IsKind(BusinessRule("stock", "insufficient"), KindBusinessRule))
}

func TestWithCauseUnwraps(t *testing.T) {
	cause := errors.New("connection reset")
	err := Internal("db", "database failure").WithCause(cause)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "database failure: connection reset", err.Error())
	assert.Equal(t, "database failure", Message(err))
	assert.Equal(t, "internal error", Message(cause))
}
