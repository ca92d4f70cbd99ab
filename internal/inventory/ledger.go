package inventory

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/ariefcatur/go-shop-api.git/internal/errs"
	"github.com/ariefcatur/go-shop-api.git/internal/postgres"
)

// Target picks the stock counter for an operation: the variant's own counter
// when VariantID is set, otherwise the parent product's. The same rule is
// applied by every ledger operation.
type Target struct {
	ProductID string
	VariantID *string
}

func (t Target) table() string {
	if t.VariantID != nil {
		return "product_variants"
	}
	return "products"
}

func (t Target) id() string {
	if t.VariantID != nil {
		return *t.VariantID
	}
	return t.ProductID
}

// Ledger mutates stock counters. All methods take a querier so callers can
// run them inside their own transaction; Reserve relies on that to make the
// check and the decrement one atomic step.
type Ledger struct{}

// CheckAvailability is a pure read. A positive answer can go stale the
// moment it returns; Reserve re-validates under lock.
func (Ledger) CheckAvailability(ctx context.Context, q postgres.Querier, t Target, quantity int) (bool, error) {
	stock, err := currentStock(ctx, q, t, "")
	if err != nil {
		return false, err
	}
	return stock >= quantity, nil
}

// Reserve decrements stock by quantity. The row is locked with FOR UPDATE
// and the stock re-checked under that lock, so two concurrent reservations
// for the same SKU cannot both pass the check.
func (Ledger) Reserve(ctx context.Context, q postgres.Querier, t Target, quantity int) error {
	if quantity <= 0 {
		return errs.Validationf("quantity must be positive")
	}
	stock, err := currentStock(ctx, q, t, " FOR UPDATE")
	if err != nil {
		return err
	}
	if stock < quantity {
		return &errs.InsufficientStock{ProductID: t.ProductID, Required: quantity, Available: stock}
	}
	_, err = q.Exec(ctx,
		`UPDATE `+t.table()+` SET stock_quantity = stock_quantity - $2, updated_at = now() WHERE id = $1`,
		t.id(), quantity)
	return err
}

// Release puts quantity back. Increments cannot race each other, so no lock
// is taken; it still needs the caller's transaction for atomicity with the
// rest of a cancellation.
func (Ledger) Release(ctx context.Context, q postgres.Querier, t Target, quantity int) error {
	if quantity <= 0 {
		return errs.Validationf("quantity must be positive")
	}
	ct, err := q.Exec(ctx,
		`UPDATE `+t.table()+` SET stock_quantity = stock_quantity + $2, updated_at = now() WHERE id = $1`,
		t.id(), quantity)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return errs.NotFoundf("stock target %s", t.id())
	}
	return nil
}

// SetStock writes an absolute stock value (vendor stock correction).
func (Ledger) SetStock(ctx context.Context, q postgres.Querier, t Target, quantity int) error {
	if quantity < 0 {
		return errs.Validationf("stock must not be negative")
	}
	ct, err := q.Exec(ctx,
		`UPDATE `+t.table()+` SET stock_quantity = $2, updated_at = now() WHERE id = $1`,
		t.id(), quantity)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return errs.NotFoundf("stock target %s", t.id())
	}
	return nil
}

func currentStock(ctx context.Context, q postgres.Querier, t Target, lock string) (int, error) {
	sql := `SELECT stock_quantity FROM ` + t.table() + ` WHERE id = $1`
	if t.VariantID == nil {
		sql += ` AND deleted_at IS NULL`
	}
	var stock int
	err := q.QueryRow(ctx, sql+lock, t.id()).Scan(&stock)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, errs.NotFoundf("stock target %s", t.id())
	}
	if err != nil {
		return 0, err
	}
	return stock, nil
}
