package orders

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-shop-api.git/internal/errs"
)

func TestMarkShipped(t *testing.T) {
	now := time.Date(2025, 11, 20, 10, 0, 0, 0, time.UTC)

	for _, from := range []Status{StatusPending, StatusProcessing} {
		o := &Order{Status: from}
		require.NoError(t, MarkShipped(o, now))
		assert.Equal(t, StatusShipped, o.Status)
		require.NotNil(t, o.ShippedAt)
		assert.Equal(t, now, *o.ShippedAt)
	}

	for _, from := range []Status{StatusShipped, StatusDelivered, StatusCancelled} {
		o := &Order{Status: from}
		err := MarkShipped(o, now)
		assert.ErrorIs(t, err, errs.ErrInvalidTransition, "from %s", from)
		assert.Equal(t, from, o.Status, "status must not change on rejected transition")
	}
}

func TestMarkDelivered(t *testing.T) {
	now := time.Now().UTC()

	o := &Order{Status: StatusShipped}
	require.NoError(t, MarkDelivered(o, now))
	assert.Equal(t, StatusDelivered, o.Status)
	require.NotNil(t, o.DeliveredAt)

	for _, from := range []Status{StatusPending, StatusProcessing, StatusDelivered, StatusCancelled} {
		o := &Order{Status: from}
		assert.ErrorIs(t, MarkDelivered(o, now), errs.ErrInvalidTransition, "from %s", from)
	}
}

func TestCancel(t *testing.T) {
	now := time.Now().UTC()

	for _, from := range []Status{StatusPending, StatusProcessing} {
		o := &Order{Status: from}
		require.NoError(t, Cancel(o, now))
		assert.Equal(t, StatusCancelled, o.Status)
		require.NotNil(t, o.CancelledAt)
	}

	for _, from := range []Status{StatusShipped, StatusDelivered, StatusCancelled} {
		o := &Order{Status: from}
		assert.ErrorIs(t, Cancel(o, now), errs.ErrInvalidTransition, "from %s", from)
	}
}

func TestSetStatus(t *testing.T) {
	o := &Order{Status: StatusPending}
	require.NoError(t, SetStatus(o, StatusProcessing))
	assert.Equal(t, StatusProcessing, o.Status)
	assert.Nil(t, o.ShippedAt, "generic path must not touch markers")

	// terminal states are never a source
	for _, from := range []Status{StatusDelivered, StatusCancelled} {
		o := &Order{Status: from}
		assert.ErrorIs(t, SetStatus(o, StatusProcessing), errs.ErrInvalidTransition)
	}

	assert.ErrorIs(t, SetStatus(&Order{Status: StatusPending}, Status("refunded")), errs.ErrValidation)
}

func TestSumItems(t *testing.T) {
	// 2 x 10.00 + 3 x 5.00 = 35.00
	items := []OrderItem{
		{UnitPriceCents: 1000, Quantity: 2, TotalCents: 2000},
		{UnitPriceCents: 500, Quantity: 3, TotalCents: 1500},
	}
	assert.Equal(t, int64(3500), SumItems(items))
	assert.Equal(t, int64(0), SumItems(nil))
}
