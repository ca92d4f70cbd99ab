// Package errs holds the business error taxonomy shared by the catalog,
// inventory and orders packages. Handlers map these to HTTP status codes.
package errs

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrValidation        = errors.New("validation failed")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrUnauthorized      = errors.New("unauthorized")
)

// InsufficientStock is returned when a reservation asks for more than the
// current stock. ProductName is filled in by the orchestrator, which knows
// the catalog row; the ledger only knows the target ids.
type InsufficientStock struct {
	ProductID   string
	ProductName string
	Required    int
	Available   int
}

func (e *InsufficientStock) Error() string {
	name := e.ProductName
	if name == "" {
		name = e.ProductID
	}
	return fmt.Sprintf("insufficient stock for product: %s (required %d, available %d)", name, e.Required, e.Available)
}

func NotFoundf(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrNotFound)...)
}

func Validationf(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrValidation)...)
}
