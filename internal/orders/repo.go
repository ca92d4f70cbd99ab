package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ariefcatur/go-shop-api.git/internal/errs"
	"github.com/ariefcatur/go-shop-api.git/internal/postgres"
)

type Repo struct{ DB *pgxpool.Pool }

const orderCols = `id, order_number, user_id, total_cents, status, shipping_address, billing_address,
	customer_email, COALESCE(customer_phone,''), COALESCE(notes,''), cancelled_at, shipped_at, delivered_at,
	created_at, updated_at`

func scanOrder(row pgx.Row, o *Order) error {
	return row.Scan(&o.ID, &o.OrderNumber, &o.UserID, &o.TotalCents, &o.Status,
		&o.ShippingAddress, &o.BillingAddress, &o.CustomerEmail, &o.CustomerPhone, &o.Notes,
		&o.CancelledAt, &o.ShippedAt, &o.DeliveredAt, &o.CreatedAt, &o.UpdatedAt)
}

// insertShell persists the order row with a zero total; the real total is
// written once after all items are attached, in the same transaction.
func (r *Repo) insertShell(ctx context.Context, q postgres.Querier, o *Order) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	_, err := q.Exec(ctx, `
		INSERT INTO orders(id, order_number, user_id, total_cents, status, shipping_address, billing_address,
			customer_email, customer_phone, notes)
		VALUES ($1,$2,$3,0,$4,$5,$6,$7,NULLIF($8,''),NULLIF($9,''))`,
		o.ID, o.OrderNumber, o.UserID, o.Status, o.ShippingAddress, o.BillingAddress,
		o.CustomerEmail, o.CustomerPhone, o.Notes)
	return err
}

func (r *Repo) insertItem(ctx context.Context, q postgres.Querier, it *OrderItem) error {
	if it.ID == "" {
		it.ID = uuid.NewString()
	}
	_, err := q.Exec(ctx, `
		INSERT INTO order_items(id, order_id, product_id, product_variant_id, product_name, sku,
			unit_price_cents, quantity, total_cents)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		it.ID, it.OrderID, it.ProductID, it.VariantID, it.ProductName, it.SKU,
		it.UnitPriceCents, it.Quantity, it.TotalCents)
	return err
}

func (r *Repo) setTotal(ctx context.Context, q postgres.Querier, orderID string, total int64) error {
	_, err := q.Exec(ctx, `UPDATE orders SET total_cents=$2, updated_at=now() WHERE id=$1`, orderID, total)
	return err
}

func (r *Repo) saveStatus(ctx context.Context, q postgres.Querier, o *Order) error {
	_, err := q.Exec(ctx, `
		UPDATE orders SET status=$2, cancelled_at=$3, shipped_at=$4, delivered_at=$5, updated_at=now()
		WHERE id=$1`,
		o.ID, o.Status, o.CancelledAt, o.ShippedAt, o.DeliveredAt)
	return err
}

func (r *Repo) GetOrder(ctx context.Context, q postgres.Querier, id string) (*Order, error) {
	var o Order
	if err := scanOrder(q.QueryRow(ctx, `SELECT `+orderCols+` FROM orders WHERE id=$1`, id), &o); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.NotFoundf("order %s", id)
		}
		return nil, err
	}
	items, err := r.itemsOf(ctx, q, id)
	if err != nil {
		return nil, err
	}
	o.Items = items
	return &o, nil
}

// GetOrderForUpdate locks the order row for the duration of the caller's
// transaction, so concurrent cancellations cannot both release stock.
func (r *Repo) GetOrderForUpdate(ctx context.Context, q postgres.Querier, id string) (*Order, error) {
	var o Order
	if err := scanOrder(q.QueryRow(ctx, `SELECT `+orderCols+` FROM orders WHERE id=$1 FOR UPDATE`, id), &o); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.NotFoundf("order %s", id)
		}
		return nil, err
	}
	items, err := r.itemsOf(ctx, q, id)
	if err != nil {
		return nil, err
	}
	o.Items = items
	return &o, nil
}

func (r *Repo) FindByNumber(ctx context.Context, number string) (*Order, error) {
	var o Order
	err := scanOrder(r.DB.QueryRow(ctx, `SELECT `+orderCols+` FROM orders WHERE order_number=$1`, number), &o)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.NotFoundf("order %s", number)
	}
	if err != nil {
		return nil, err
	}
	items, err := r.itemsOf(ctx, r.DB, o.ID)
	if err != nil {
		return nil, err
	}
	o.Items = items
	return &o, nil
}

func (r *Repo) itemsOf(ctx context.Context, q postgres.Querier, orderID string) ([]OrderItem, error) {
	rows, err := q.Query(ctx, `
		SELECT id, order_id, product_id, product_variant_id, product_name, sku, unit_price_cents, quantity, total_cents
		FROM order_items WHERE order_id=$1 ORDER BY created_at, id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OrderItem
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.VariantID, &it.ProductName,
			&it.SKU, &it.UnitPriceCents, &it.Quantity, &it.TotalCents); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

type Filter struct {
	UserID string
	Status Status
	Search string
	Limit  int
}

func (r *Repo) ListOrders(ctx context.Context, f Filter) ([]Order, error) {
	sql := `SELECT ` + orderCols + ` FROM orders WHERE true`
	args := []any{}
	n := 0
	if f.UserID != "" {
		n++
		sql += fmt.Sprintf(" AND user_id=$%d", n)
		args = append(args, f.UserID)
	}
	if f.Status != "" {
		n++
		sql += fmt.Sprintf(" AND status=$%d", n)
		args = append(args, f.Status)
	}
	if f.Search != "" {
		n++
		sql += fmt.Sprintf(" AND (order_number ILIKE $%d OR customer_email ILIKE $%d)", n, n)
		args = append(args, "%"+f.Search+"%")
	}
	sql += " ORDER BY created_at DESC"
	if f.Limit > 0 {
		n++
		sql += fmt.Sprintf(" LIMIT $%d", n)
		args = append(args, f.Limit)
	}

	rows, err := r.DB.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		var o Order
		if err := scanOrder(rows, &o); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		items, err := r.itemsOf(ctx, r.DB, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Items = items
	}
	return out, nil
}

func isOrderNumberConflict(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == "orders_order_number_key"
}
