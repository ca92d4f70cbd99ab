//go:build integration

package test

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-shop-api.git/internal/catalog"
	"github.com/ariefcatur/go-shop-api.git/internal/errs"
	"github.com/ariefcatur/go-shop-api.git/internal/inventory"
	kafkax "github.com/ariefcatur/go-shop-api.git/internal/kafka"
	"github.com/ariefcatur/go-shop-api.git/internal/orders"
)

type fixture struct {
	pool   *pgxpool.Pool
	orders *orders.Service
	userID string
}

// newFixture wires the order service against a real postgres container.
// Producers are never started, so published events just sit in the buffer
// and no broker is needed.
func newFixture(ctx context.Context, t *testing.T) *fixture {
	t.Helper()

	pg := SetupPostgres(ctx, t)
	t.Cleanup(pg.Cleanup)

	pool := Pool(ctx, t, pg.ConnStr)
	t.Cleanup(pool.Close)

	log := zap.NewNop()
	stockProducer := kafkax.NewProducer([]string{"localhost:9092"}, "product.stock.low", 1024)
	statusProducer := kafkax.NewProducer([]string{"localhost:9092"}, "order.status.updated", 1024)

	watcher := &inventory.Watcher{
		DB:          pool,
		Producer:    stockProducer,
		ServiceName: "api-test",
		Log:         log,
	}

	svc := &orders.Service{
		DB:          pool,
		Repo:        &orders.Repo{DB: pool},
		Catalog:     &catalog.Repo{DB: pool},
		Ledger:      inventory.Ledger{},
		Watcher:     watcher,
		Producer:    statusProducer,
		ServiceName: "api-test",
		Log:         log,
	}

	f := &fixture{pool: pool, orders: svc, userID: uuid.NewString()}
	_, err := pool.Exec(ctx, `INSERT INTO users (id, name, email, password_hash, role)
		VALUES ($1, 'Toko Tester', $2, $3, 'vendor')`,
		f.userID, uuid.NewString()+"@example.com", []byte("x"))
	require.NoError(t, err)
	return f
}

func (f *fixture) seedProduct(ctx context.Context, t *testing.T, name string, priceCents int64, stock, threshold int) string {
	t.Helper()
	id := uuid.NewString()
	_, err := f.pool.Exec(ctx, `INSERT INTO products
		(id, user_id, name, sku, price_cents, stock_quantity, low_stock_threshold)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id, f.userID, name, "SKU-"+id[:8], priceCents, stock, threshold)
	require.NoError(t, err)
	return id
}

func (f *fixture) seedVariant(ctx context.Context, t *testing.T, productID string, priceCents *int64, stock int) string {
	t.Helper()
	id := uuid.NewString()
	_, err := f.pool.Exec(ctx, `INSERT INTO product_variants
		(id, product_id, size, sku, price_cents, stock_quantity)
		VALUES ($1, $2, 'M', $3, $4, $5)`,
		id, productID, "VSKU-"+id[:8], priceCents, stock)
	require.NoError(t, err)
	return id
}

func (f *fixture) productStock(ctx context.Context, t *testing.T, id string) int {
	t.Helper()
	var n int
	require.NoError(t, f.pool.QueryRow(ctx,
		`SELECT stock_quantity FROM products WHERE id=$1`, id).Scan(&n))
	return n
}

func (f *fixture) variantStock(ctx context.Context, t *testing.T, id string) int {
	t.Helper()
	var n int
	require.NoError(t, f.pool.QueryRow(ctx,
		`SELECT stock_quantity FROM product_variants WHERE id=$1`, id).Scan(&n))
	return n
}

func (f *fixture) countRows(ctx context.Context, t *testing.T, table string) int {
	t.Helper()
	var n int
	require.NoError(t, f.pool.QueryRow(ctx, `SELECT count(*) FROM `+table).Scan(&n))
	return n
}

func createInput(f *fixture, items ...orders.ItemInput) orders.CreateOrderInput {
	return orders.CreateOrderInput{
		UserID:          f.userID,
		ShippingAddress: "Jl. Sudirman No. 1, Jakarta",
		BillingAddress:  "Jl. Sudirman No. 1, Jakarta",
		CustomerEmail:   "buyer@example.com",
		CustomerPhone:   "+628123456789",
		Items:           items,
	}
}

func itemFor(t *testing.T, o *orders.Order, productID string) orders.OrderItem {
	t.Helper()
	for _, it := range o.Items {
		if it.ProductID == productID {
			return it
		}
	}
	t.Fatalf("order has no item for product %s", productID)
	return orders.OrderItem{}
}

func TestCreateOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(ctx, t)

	shirtID := f.seedProduct(ctx, t, "Kaos Polos", 1000, 10, 2)
	mugID := f.seedProduct(ctx, t, "Mug Keramik", 500, 10, 2)

	order, err := f.orders.CreateOrder(ctx, createInput(f,
		orders.ItemInput{ProductID: shirtID, Quantity: 2},
		orders.ItemInput{ProductID: mugID, Quantity: 3},
	))
	require.NoError(t, err)

	assert.Equal(t, orders.StatusPending, order.Status)
	assert.Equal(t, int64(3500), order.TotalCents)
	assert.Regexp(t, `^ORD-\d{18}$`, order.OrderNumber)
	require.Len(t, order.Items, 2)

	// snapshot columns carry catalog data at time of purchase
	shirt := itemFor(t, order, shirtID)
	assert.Equal(t, "Kaos Polos", shirt.ProductName)
	assert.Equal(t, int64(1000), shirt.UnitPriceCents)
	assert.Equal(t, int64(2000), shirt.TotalCents)

	assert.Equal(t, 8, f.productStock(ctx, t, shirtID))
	assert.Equal(t, 7, f.productStock(ctx, t, mugID))
}

func TestCreateOrderInsufficientStock(t *testing.T) {
	ctx := context.Background()
	f := newFixture(ctx, t)

	id := f.seedProduct(ctx, t, "Stok Tipis", 1000, 1, 0)

	_, err := f.orders.CreateOrder(ctx, createInput(f,
		orders.ItemInput{ProductID: id, Quantity: 2},
	))

	var ins *errs.InsufficientStock
	require.ErrorAs(t, err, &ins)
	assert.Equal(t, "Stok Tipis", ins.ProductName)
	assert.Equal(t, 2, ins.Required)
	assert.Equal(t, 1, ins.Available)

	// nothing written, nothing reserved
	assert.Equal(t, 1, f.productStock(ctx, t, id))
	assert.Equal(t, 0, f.countRows(ctx, t, "orders"))
	assert.Equal(t, 0, f.countRows(ctx, t, "order_items"))
}

func TestCreateOrderConcurrentReservation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(ctx, t)

	// stock for exactly one of the two concurrent requests
	id := f.seedProduct(ctx, t, "Barang Langka", 1000, 1, 0)

	results := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.orders.CreateOrder(ctx, createInput(f,
				orders.ItemInput{ProductID: id, Quantity: 1},
			))
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var succeeded, rejected int
	for err := range results {
		if err == nil {
			succeeded++
			continue
		}
		var ins *errs.InsufficientStock
		require.ErrorAs(t, err, &ins)
		rejected++
	}

	// the row lock serializes the reservations: one wins, one is refused
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, rejected)
	assert.Equal(t, 0, f.productStock(ctx, t, id))
	assert.Equal(t, 1, f.countRows(ctx, t, "orders"))
	assert.Equal(t, 1, f.countRows(ctx, t, "order_items"))
}

func TestCreateOrderUnknownProduct(t *testing.T) {
	ctx := context.Background()
	f := newFixture(ctx, t)

	knownID := f.seedProduct(ctx, t, "Ada", 1000, 10, 0)

	_, err := f.orders.CreateOrder(ctx, createInput(f,
		orders.ItemInput{ProductID: knownID, Quantity: 1},
		orders.ItemInput{ProductID: uuid.NewString(), Quantity: 1},
	))
	require.ErrorIs(t, err, errs.ErrNotFound)

	// the known item's reservation rolls back with the rest
	assert.Equal(t, 10, f.productStock(ctx, t, knownID))
	assert.Equal(t, 0, f.countRows(ctx, t, "orders"))
	assert.Equal(t, 0, f.countRows(ctx, t, "order_items"))
}

func TestCreateOrderRollsBackAllItems(t *testing.T) {
	ctx := context.Background()
	f := newFixture(ctx, t)

	okID := f.seedProduct(ctx, t, "Cukup", 1000, 10, 0)
	shortID := f.seedProduct(ctx, t, "Kurang", 1000, 1, 0)

	_, err := f.orders.CreateOrder(ctx, createInput(f,
		orders.ItemInput{ProductID: okID, Quantity: 5},
		orders.ItemInput{ProductID: shortID, Quantity: 2},
	))
	require.Error(t, err)

	// the first item's reservation must not survive the second item's failure
	assert.Equal(t, 10, f.productStock(ctx, t, okID))
	assert.Equal(t, 1, f.productStock(ctx, t, shortID))
	assert.Equal(t, 0, f.countRows(ctx, t, "orders"))
	assert.Equal(t, 0, f.countRows(ctx, t, "order_items"))
}

func TestCancelOrderRestoresStock(t *testing.T) {
	ctx := context.Background()
	f := newFixture(ctx, t)

	id := f.seedProduct(ctx, t, "Sepatu", 2500, 10, 0)

	order, err := f.orders.CreateOrder(ctx, createInput(f,
		orders.ItemInput{ProductID: id, Quantity: 4},
	))
	require.NoError(t, err)
	require.Equal(t, 6, f.productStock(ctx, t, id))

	cancelled, err := f.orders.CancelOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancelledAt)

	assert.Equal(t, 10, f.productStock(ctx, t, id))

	// a second cancel must fail and must not release stock again
	_, err = f.orders.CancelOrder(ctx, order.ID)
	require.ErrorIs(t, err, errs.ErrInvalidTransition)
	assert.Equal(t, 10, f.productStock(ctx, t, id))
}

func TestCreateOrderWithVariant(t *testing.T) {
	ctx := context.Background()
	f := newFixture(ctx, t)

	productID := f.seedProduct(ctx, t, "Jaket", 5000, 3, 0)
	override := int64(5500)
	variantID := f.seedVariant(ctx, t, productID, &override, 8)

	order, err := f.orders.CreateOrder(ctx, createInput(f,
		orders.ItemInput{ProductID: productID, VariantID: &variantID, Quantity: 2},
	))
	require.NoError(t, err)

	// variant price overrides the product price
	assert.Equal(t, int64(5500), order.Items[0].UnitPriceCents)
	assert.Equal(t, int64(11000), order.TotalCents)

	// the variant counter is decremented, the product counter untouched
	assert.Equal(t, 6, f.variantStock(ctx, t, variantID))
	assert.Equal(t, 3, f.productStock(ctx, t, productID))
}

func TestCreateOrderVariantOfOtherProduct(t *testing.T) {
	ctx := context.Background()
	f := newFixture(ctx, t)

	aID := f.seedProduct(ctx, t, "Produk A", 1000, 10, 0)
	bID := f.seedProduct(ctx, t, "Produk B", 1000, 10, 0)
	bVariant := f.seedVariant(ctx, t, bID, nil, 10)

	_, err := f.orders.CreateOrder(ctx, createInput(f,
		orders.ItemInput{ProductID: aID, VariantID: &bVariant, Quantity: 1},
	))
	require.ErrorIs(t, err, errs.ErrValidation)
	assert.Equal(t, 0, f.countRows(ctx, t, "orders"))
}

func TestUpdateOrderStatusFlow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(ctx, t)

	id := f.seedProduct(ctx, t, "Topi", 1500, 10, 0)
	order, err := f.orders.CreateOrder(ctx, createInput(f,
		orders.ItemInput{ProductID: id, Quantity: 1},
	))
	require.NoError(t, err)

	shipped, err := f.orders.UpdateOrderStatus(ctx, order.ID, orders.StatusShipped)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusShipped, shipped.Status)
	require.NotNil(t, shipped.ShippedAt)

	delivered, err := f.orders.UpdateOrderStatus(ctx, order.ID, orders.StatusDelivered)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusDelivered, delivered.Status)
	require.NotNil(t, delivered.DeliveredAt)

	// delivered is terminal
	_, err = f.orders.UpdateOrderStatus(ctx, order.ID, orders.StatusCancelled)
	require.ErrorIs(t, err, errs.ErrInvalidTransition)
	assert.Equal(t, 9, f.productStock(ctx, t, id))
}

func TestUpdateStatusToCancelledRestoresStock(t *testing.T) {
	ctx := context.Background()
	f := newFixture(ctx, t)

	id := f.seedProduct(ctx, t, "Payung", 2000, 8, 0)
	order, err := f.orders.CreateOrder(ctx, createInput(f,
		orders.ItemInput{ProductID: id, Quantity: 3},
	))
	require.NoError(t, err)
	require.Equal(t, 5, f.productStock(ctx, t, id))

	// the generic status path must route through cancellation, never a
	// plain status write that would leak the reservation
	cancelled, err := f.orders.UpdateOrderStatus(ctx, order.ID, orders.StatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancelledAt)
	assert.Equal(t, 8, f.productStock(ctx, t, id))
}

func TestCancelAfterShipFails(t *testing.T) {
	ctx := context.Background()
	f := newFixture(ctx, t)

	id := f.seedProduct(ctx, t, "Tas", 3000, 5, 0)
	order, err := f.orders.CreateOrder(ctx, createInput(f,
		orders.ItemInput{ProductID: id, Quantity: 2},
	))
	require.NoError(t, err)

	_, err = f.orders.UpdateOrderStatus(ctx, order.ID, orders.StatusShipped)
	require.NoError(t, err)

	_, err = f.orders.CancelOrder(ctx, order.ID)
	require.ErrorIs(t, err, errs.ErrInvalidTransition)
	assert.Equal(t, 3, f.productStock(ctx, t, id))
}

func TestLedgerAvailability(t *testing.T) {
	ctx := context.Background()
	f := newFixture(ctx, t)

	id := f.seedProduct(ctx, t, "Botol", 800, 3, 0)
	ledger := inventory.Ledger{}
	target := inventory.Target{ProductID: id}

	ok, err := ledger.CheckAvailability(ctx, f.pool, target, 3)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = ledger.CheckAvailability(ctx, f.pool, target, 4)
	require.NoError(t, err)
	assert.False(t, ok)
}
