package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-shop-api.git/internal/catalog"
	"github.com/ariefcatur/go-shop-api.git/internal/events"
	kafkax "github.com/ariefcatur/go-shop-api.git/internal/kafka"
	"github.com/ariefcatur/go-shop-api.git/internal/redisx"
)

// Notifier consumes the post-commit side-effect topics. Delivery here is a
// structured log line standing in for the mail transport; the producing
// transaction committed long ago and is never affected by anything below.
type Notifier struct {
	Redis       *redis.Client
	ServiceName string
	Log         *zap.Logger
}

// HandleStatusUpdated composes the customer-facing status mail.
func (n *Notifier) HandleStatusUpdated(ctx context.Context, m kafkago.Message) error {
	env, ok, err := n.decode(ctx, m, events.EventOrderStatusUpdated)
	if err != nil || !ok {
		return err
	}
	p, err := kafkax.UnwrapPayload[events.OrderStatusUpdatedPayload](env.Payload)
	if err != nil {
		return err
	}
	n.Log.Info("sending order status mail",
		zap.String("to", p.CustomerEmail),
		zap.String("subject", fmt.Sprintf("Order %s Status Updated", p.OrderNumber)),
		zap.String("body", fmt.Sprintf("Your order status has been updated from %s to %s. Order total: %s.",
			p.OldStatus, p.NewStatus, catalog.FormatPrice(p.TotalCents))),
	)
	return nil
}

// HandleLowStock surfaces low-stock warnings for vendors.
func (n *Notifier) HandleLowStock(ctx context.Context, m kafkago.Message) error {
	env, ok, err := n.decode(ctx, m, events.EventLowStock)
	if err != nil || !ok {
		return err
	}
	p, err := kafkax.UnwrapPayload[events.LowStockPayload](env.Payload)
	if err != nil {
		return err
	}
	n.Log.Warn("low stock alert",
		zap.String("product_id", p.ProductID),
		zap.String("name", p.Name),
		zap.String("sku", p.SKU),
		zap.Int("stock", p.StockQuantity),
		zap.Int("threshold", p.Threshold),
	)
	return nil
}

// decode unwraps the envelope and dedups by event id so redeliveries are
// dropped instead of re-notifying.
func (n *Notifier) decode(ctx context.Context, m kafkago.Message, wantType string) (events.Envelope, bool, error) {
	var env events.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return env, false, err
	}
	if env.EventType != wantType {
		return env, false, nil // ignore
	}
	dkey := fmt.Sprintf(redisx.KeyDedup, n.ServiceName, env.EventID)
	exists, _ := redisx.Exists(ctx, n.Redis, dkey)
	if exists {
		return env, false, nil
	}
	_ = n.Redis.Set(ctx, dkey, "1", redisx.TTLDedup).Err()
	return env, true, nil
}
