package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInsufficientStockMessage(t *testing.T) {
	err := &InsufficientStock{ProductID: "p-1", ProductName: "Widget", Required: 2, Available: 1}
	assert.Equal(t, "insufficient stock for product: Widget (required 2, available 1)", err.Error())

	// falls back to the id when the name is unknown
	err = &InsufficientStock{ProductID: "p-1", Required: 2, Available: 1}
	assert.Contains(t, err.Error(), "p-1")
}

func TestWrappers(t *testing.T) {
	err := NotFoundf("product %s", "p-1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "p-1")

	err = Validationf("quantity must be positive")
	assert.ErrorIs(t, err, ErrValidation)

	wrapped := fmt.Errorf("create order: %w", &InsufficientStock{Required: 1})
	var ins *InsufficientStock
	assert.True(t, errors.As(wrapped, &ins))
}
