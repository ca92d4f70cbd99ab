package orders

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-shop-api.git/internal/catalog"
	"github.com/ariefcatur/go-shop-api.git/internal/errs"
	"github.com/ariefcatur/go-shop-api.git/internal/events"
	"github.com/ariefcatur/go-shop-api.git/internal/inventory"
	kafkax "github.com/ariefcatur/go-shop-api.git/internal/kafka"
)

// maxNumberRetries bounds regeneration when the generated order number hits
// the unique constraint. Collisions need the same second and the same 4-digit
// suffix, so this is practically never taken.
const maxNumberRetries = 3

type ItemInput struct {
	ProductID string  `json:"product_id"`
	VariantID *string `json:"variant_id,omitempty"`
	Quantity  int     `json:"quantity"`
}

type CreateOrderInput struct {
	UserID          string
	ShippingAddress string
	BillingAddress  string
	CustomerEmail   string
	CustomerPhone   string
	Notes           string
	Items           []ItemInput
}

// Service coordinates order creation and cancellation against the catalog,
// the inventory ledger and the order repo, each call one atomic transaction.
type Service struct {
	DB          *pgxpool.Pool
	Repo        *Repo
	Catalog     *catalog.Repo
	Ledger      inventory.Ledger
	Watcher     *inventory.Watcher
	Producer    *kafkax.Producer
	ServiceName string
	Log         *zap.Logger
}

// CreateOrder validates and reserves stock for every item, snapshots catalog
// data into order items and writes the summed total, all inside one
// transaction. Any failure leaves no order, no items and no stock change.
func (s *Service) CreateOrder(ctx context.Context, in CreateOrderInput) (*Order, error) {
	if err := validateCreate(in); err != nil {
		return nil, err
	}

	var out *Order
	var err error
	for attempt := 0; attempt < maxNumberRetries; attempt++ {
		out, err = s.createOrderOnce(ctx, in)
		if err != nil && isOrderNumberConflict(err) {
			continue
		}
		break
	}
	if err != nil {
		return nil, err
	}

	// post-commit: low-stock warnings on current counters
	seen := map[string]bool{}
	for _, it := range out.Items {
		if !seen[it.ProductID] {
			seen[it.ProductID] = true
			s.Watcher.Check(ctx, it.ProductID)
		}
	}
	return out, nil
}

func (s *Service) createOrderOnce(ctx context.Context, in CreateOrderInput) (*Order, error) {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	order := &Order{
		OrderNumber:     NewOrderNumber(time.Now()),
		UserID:          in.UserID,
		Status:          StatusPending,
		ShippingAddress: in.ShippingAddress,
		BillingAddress:  in.BillingAddress,
		CustomerEmail:   in.CustomerEmail,
		CustomerPhone:   in.CustomerPhone,
		Notes:           in.Notes,
	}
	if err := s.Repo.insertShell(ctx, tx, order); err != nil {
		return nil, err
	}

	items := make([]OrderItem, 0, len(in.Items))
	for _, req := range in.Items {
		product, err := s.Catalog.GetProduct(ctx, tx, req.ProductID)
		if err != nil {
			return nil, err
		}

		target := inventory.Target{ProductID: product.ID, VariantID: req.VariantID}
		unitPrice := product.PriceCents
		sku := product.SKU
		if req.VariantID != nil {
			variant, err := s.Catalog.GetVariant(ctx, tx, *req.VariantID)
			if err != nil {
				return nil, err
			}
			if variant.ProductID != product.ID {
				return nil, errs.Validationf("variant %s does not belong to product %s", variant.ID, product.ID)
			}
			sku = variant.SKU
			if variant.PriceCents != nil {
				unitPrice = *variant.PriceCents
			}
		}

		item := OrderItem{
			OrderID:        order.ID,
			ProductID:      product.ID,
			VariantID:      req.VariantID,
			ProductName:    product.Name,
			SKU:            sku,
			UnitPriceCents: unitPrice,
			Quantity:       req.Quantity,
			TotalCents:     unitPrice * int64(req.Quantity),
		}
		if err := s.Repo.insertItem(ctx, tx, &item); err != nil {
			return nil, err
		}

		// availability check and decrement are one step under the row lock;
		// a separate pre-check would be a race
		if err := s.Ledger.Reserve(ctx, tx, target, req.Quantity); err != nil {
			var ins *errs.InsufficientStock
			if errors.As(err, &ins) {
				ins.ProductName = product.Name
			}
			return nil, err
		}
		items = append(items, item)
	}

	order.TotalCents = SumItems(items)
	if err := s.Repo.setTotal(ctx, tx, order.ID, order.TotalCents); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	order.Items = items
	return s.Repo.GetOrder(ctx, s.DB, order.ID)
}

// CancelOrder releases every reserved item and transitions the order to
// cancelled, atomically. The order row is locked so a concurrent cancel
// cannot release stock twice.
func (s *Service) CancelOrder(ctx context.Context, orderID string) (*Order, error) {
	order, _, err := s.cancelOrder(ctx, orderID)
	return order, err
}

// cancelOrder also reports the status the order had under the row lock, so
// the event published after commit never carries a stale old status.
func (s *Service) cancelOrder(ctx context.Context, orderID string) (*Order, Status, error) {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, "", err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	order, err := s.Repo.GetOrderForUpdate(ctx, tx, orderID)
	if err != nil {
		return nil, "", err
	}
	old := order.Status
	if err := Cancel(order, time.Now().UTC()); err != nil {
		return nil, "", err
	}
	for _, it := range order.Items {
		target := inventory.Target{ProductID: it.ProductID, VariantID: it.VariantID}
		if err := s.Ledger.Release(ctx, tx, target, it.Quantity); err != nil {
			return nil, "", err
		}
	}
	if err := s.Repo.saveStatus(ctx, tx, order); err != nil {
		return nil, "", err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, "", err
	}
	return order, old, nil
}

// UpdateOrderStatus routes shipped/delivered through the timestamped
// transitions and cancelled through CancelOrder (so stock restoration can
// never be skipped); anything else is a plain status write. A change
// publishes a status event after commit; the notifier's fate never rolls
// back the update.
func (s *Service) UpdateOrderStatus(ctx context.Context, orderID string, to Status) (*Order, error) {
	if to == StatusCancelled {
		order, old, err := s.cancelOrder(ctx, orderID)
		if err != nil {
			return nil, err
		}
		s.publishStatus(order, old)
		return order, nil
	}

	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	order, err := s.Repo.GetOrderForUpdate(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	old := order.Status

	now := time.Now().UTC()
	switch to {
	case StatusShipped:
		err = MarkShipped(order, now)
	case StatusDelivered:
		err = MarkDelivered(order, now)
	default:
		err = SetStatus(order, to)
	}
	if err != nil {
		return nil, err
	}

	if err := s.Repo.saveStatus(ctx, tx, order); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	if old != order.Status {
		s.publishStatus(order, old)
	}
	return order, nil
}

func (s *Service) publishStatus(o *Order, old Status) {
	payload := events.OrderStatusUpdatedPayload{
		OrderID:       o.ID,
		OrderNumber:   o.OrderNumber,
		CustomerEmail: o.CustomerEmail,
		OldStatus:     string(old),
		NewStatus:     string(o.Status),
		TotalCents:    o.TotalCents,
	}
	ev := events.NewEnvelope(events.EventOrderStatusUpdated, s.ServiceName, o.ID, kafkax.MustMarshal(payload))
	s.Producer.Publish(events.PartitionKey(o.ID), kafkax.MustMarshal(ev),
		kafka.Header{Key: "x-event-type", Value: []byte(events.EventOrderStatusUpdated)},
		kafka.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

func (s *Service) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	return s.Repo.GetOrder(ctx, s.DB, orderID)
}

func (s *Service) GetOrderByNumber(ctx context.Context, number string) (*Order, error) {
	return s.Repo.FindByNumber(ctx, number)
}

func (s *Service) ListOrders(ctx context.Context, f Filter) ([]Order, error) {
	return s.Repo.ListOrders(ctx, f)
}

func validateCreate(in CreateOrderInput) error {
	switch {
	case in.UserID == "":
		return errs.Validationf("user is required")
	case in.ShippingAddress == "":
		return errs.Validationf("shipping_address is required")
	case in.BillingAddress == "":
		return errs.Validationf("billing_address is required")
	case in.CustomerEmail == "":
		return errs.Validationf("customer_email is required")
	case len(in.Items) == 0:
		return errs.Validationf("at least one item is required")
	}
	for _, it := range in.Items {
		if it.ProductID == "" {
			return errs.Validationf("item product_id is required")
		}
		if it.Quantity <= 0 {
			return errs.Validationf("item quantity must be positive")
		}
	}
	return nil
}
