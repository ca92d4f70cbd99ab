package inventory

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-shop-api.git/internal/events"
	kafkax "github.com/ariefcatur/go-shop-api.git/internal/kafka"
)

// Watcher flags products whose stock fell to or below their threshold.
// It only observes: it re-reads the committed counter and publishes a
// warning event; it never mutates stock. Safe to call repeatedly.
type Watcher struct {
	DB          *pgxpool.Pool
	Producer    *kafkax.Producer
	ServiceName string
	Log         *zap.Logger
}

func (w *Watcher) Check(ctx context.Context, productID string) {
	var p events.LowStockPayload
	var threshold int
	err := w.DB.QueryRow(ctx, `SELECT id, name, sku, stock_quantity, low_stock_threshold
		FROM products WHERE id=$1 AND deleted_at IS NULL`, productID).
		Scan(&p.ProductID, &p.Name, &p.SKU, &p.StockQuantity, &threshold)
	if errors.Is(err, pgx.ErrNoRows) {
		return
	}
	if err != nil {
		w.Log.Warn("low-stock check failed", zap.String("product_id", productID), zap.Error(err))
		return
	}
	if p.StockQuantity > threshold {
		return
	}
	p.Threshold = threshold

	ev := events.NewEnvelope(events.EventLowStock, w.ServiceName, productID, kafkax.MustMarshal(p))
	w.Producer.Publish(events.PartitionKey(productID), kafkax.MustMarshal(ev),
		kafka.Header{Key: "x-event-type", Value: []byte(events.EventLowStock)},
		kafka.Header{Key: "x-event-version", Value: []byte("1")},
	)
	w.Log.Info("low stock",
		zap.String("product_id", p.ProductID),
		zap.String("sku", p.SKU),
		zap.Int("stock", p.StockQuantity),
		zap.Int("threshold", threshold),
	)
}
