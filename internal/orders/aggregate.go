package orders

import (
	"fmt"
	"time"

	"github.com/ariefcatur/go-shop-api.git/internal/errs"
)

// Transition functions operate on the in-memory record only; the repo
// persists the result. Keeping the state machine off the store makes it
// testable without a database.

func MarkShipped(o *Order, now time.Time) error {
	if o.Status != StatusPending && o.Status != StatusProcessing {
		return transitionErr(o.Status, StatusShipped)
	}
	o.Status = StatusShipped
	o.ShippedAt = &now
	return nil
}

func MarkDelivered(o *Order, now time.Time) error {
	if o.Status != StatusShipped {
		return transitionErr(o.Status, StatusDelivered)
	}
	o.Status = StatusDelivered
	o.DeliveredAt = &now
	return nil
}

func Cancel(o *Order, now time.Time) error {
	if !CanBeCancelled(o.Status) {
		return transitionErr(o.Status, StatusCancelled)
	}
	o.Status = StatusCancelled
	o.CancelledAt = &now
	return nil
}

// SetStatus is the generic path for statuses without a timestamped marker
// (e.g. processing). The transition table keeps the lifecycle one-way.
func SetStatus(o *Order, to Status) error {
	if !ValidStatus(to) {
		return errs.Validationf("unknown status %q", to)
	}
	if !CanTransition(o.Status, to) {
		return transitionErr(o.Status, to)
	}
	o.Status = to
	return nil
}

func transitionErr(from, to Status) error {
	return fmt.Errorf("cannot transition order from %s to %s: %w", from, to, errs.ErrInvalidTransition)
}

// SumItems computes the order total from its items. The total column is
// written exactly once per transaction from this sum, never accumulated
// in place, so readers outside the transaction never see a partial total.
func SumItems(items []OrderItem) int64 {
	var total int64
	for _, it := range items {
		total += it.TotalCents
	}
	return total
}
