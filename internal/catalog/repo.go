package catalog

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

const productCols = `id, user_id, name, COALESCE(description,''), sku, price_cents,
	stock_quantity, low_stock_threshold, is_active, created_at, updated_at, deleted_at`

func scanProduct(row pgx.Row, p *Product) error {
	return row.Scan(&p.ID, &p.UserID, &p.Name, &p.Description, &p.SKU, &p.PriceCents,
		&p.StockQuantity, &p.LowStockThreshold, &p.IsActive, &p.CreatedAt, &p.UpdatedAt, &p.DeletedAt)
}

// GetProduct resolves a live (non-deleted) product and its variants.
func (r *Repo) GetProduct(ctx context.Context, q postgres.Querier, id string) (*Product, error) {
	var p Product
	row := q.QueryRow(ctx, `SELECT `+productCols+` FROM products WHERE id=$1 AND deleted_at IS NULL`, id)
	if err := scanProduct(row, &p); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.NotFoundf("product %s", id)
		}
		return nil, err
	}
	vs, err := r.variantsOf(ctx, q, id)
	if err != nil {
		return nil, err
	}
	p.Variants = vs
	return &p, nil
}

func (r *Repo) GetVariant(ctx context.Context, q postgres.Querier, id string) (*Variant, error) {
	var v Variant
	err := q.QueryRow(ctx, `SELECT id, product_id, COALESCE(size,''), COALESCE(color,''), COALESCE(material,''),
			sku, price_cents, stock_quantity, created_at, updated_at
		FROM product_variants WHERE id=$1`, id).
		Scan(&v.ID, &v.ProductID, &v.Size, &v.Color, &v.Material, &v.SKU, &v.PriceCents,
			&v.StockQuantity, &v.CreatedAt, &v.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.NotFoundf("variant %s", id)
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *Repo) variantsOf(ctx context.Context, q postgres.Querier, productID string) ([]Variant, error) {
	rows, err := q.Query(ctx, `SELECT id, product_id, COALESCE(size,''), COALESCE(color,''), COALESCE(material,''),
			sku, price_cents, stock_quantity, created_at, updated_at
		FROM product_variants WHERE product_id=$1 ORDER BY sku`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Variant
	for rows.Next() {
		var v Variant
		if err := rows.Scan(&v.ID, &v.ProductID, &v.Size, &v.Color, &v.Material, &v.SKU,
			&v.PriceCents, &v.StockQuantity, &v.CreatedAt, &v.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

type Filter struct {
	UserID   string
	Search   string
	LowStock bool
	Limit    int
}

func (r *Repo) ListProducts(ctx context.Context, f Filter) ([]Product, error) {
	sql := `SELECT ` + productCols + ` FROM products WHERE deleted_at IS NULL`
	args := []any{}
	n := 0
	if f.UserID != "" {
		n++
		sql += fmt.Sprintf(" AND user_id=$%d", n)
		args = append(args, f.UserID)
	}
	if f.Search != "" {
		n++
		sql += fmt.Sprintf(" AND (name ILIKE $%d OR sku ILIKE $%d)", n, n)
		args = append(args, "%"+f.Search+"%")
	}
	if f.LowStock {
		sql += " AND stock_quantity <= low_stock_threshold AND is_active"
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

	var out []Product
	for rows.Next() {
		var p Product
		if err := scanProduct(rows, &p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repo) insertProduct(ctx context.Context, q postgres.Querier, p *Product) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	_, err := q.Exec(ctx, `
		INSERT INTO products(id, user_id, name, description, sku, price_cents, stock_quantity, low_stock_threshold, is_active)
		VALUES ($1,$2,$3,NULLIF($4,''),$5,$6,$7,$8,$9)`,
		p.ID, p.UserID, p.Name, p.Description, p.SKU, p.PriceCents, p.StockQuantity, p.LowStockThreshold, p.IsActive)
	if isUniqueViolation(err) {
		return errs.Validationf("sku %s already exists", p.SKU)
	}
	return err
}

func (r *Repo) insertVariant(ctx context.Context, q postgres.Querier, v *Variant) error {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	_, err := q.Exec(ctx, `
		INSERT INTO product_variants(id, product_id, size, color, material, sku, price_cents, stock_quantity)
		VALUES ($1,$2,NULLIF($3,''),NULLIF($4,''),NULLIF($5,''),$6,$7,$8)`,
		v.ID, v.ProductID, v.Size, v.Color, v.Material, v.SKU, v.PriceCents, v.StockQuantity)
	if isUniqueViolation(err) {
		return errs.Validationf("sku %s already exists", v.SKU)
	}
	return err
}

func (r *Repo) updateVariant(ctx context.Context, q postgres.Querier, v *Variant) error {
	ct, err := q.Exec(ctx, `
		UPDATE product_variants SET size=NULLIF($3,''), color=NULLIF($4,''), material=NULLIF($5,''),
			sku=$6, price_cents=$7, updated_at=now()
		WHERE id=$1 AND product_id=$2`,
		v.ID, v.ProductID, v.Size, v.Color, v.Material, v.SKU, v.PriceCents)
	if isUniqueViolation(err) {
		return errs.Validationf("sku %s already exists", v.SKU)
	}
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return errs.NotFoundf("variant %s", v.ID)
	}
	return nil
}

func (r *Repo) updateProduct(ctx context.Context, q postgres.Querier, p *Product) error {
	ct, err := q.Exec(ctx, `
		UPDATE products SET name=$2, description=NULLIF($3,''), price_cents=$4,
			low_stock_threshold=$5, is_active=$6, updated_at=now()
		WHERE id=$1 AND deleted_at IS NULL`,
		p.ID, p.Name, p.Description, p.PriceCents, p.LowStockThreshold, p.IsActive)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return errs.NotFoundf("product %s", p.ID)
	}
	return nil
}

// softDelete marks the product deleted and removes its variants. Variants are
// owned exclusively by the product, so they go with it.
func (r *Repo) softDelete(ctx context.Context, q postgres.Querier, productID string) error {
	ct, err := q.Exec(ctx, `UPDATE products SET deleted_at=now(), updated_at=now() WHERE id=$1 AND deleted_at IS NULL`, productID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return errs.NotFoundf("product %s", productID)
	}
	_, err = q.Exec(ctx, `DELETE FROM product_variants WHERE product_id=$1`, productID)
	return err
}

// StockSnapshot re-reads the current stock counters; the low-stock watcher
// must decide on the value now, not the value at trigger time.
func (r *Repo) StockSnapshot(ctx context.Context, productID string) (*Product, error) {
	var p Product
	err := r.DB.QueryRow(ctx, `SELECT id, name, sku, stock_quantity, low_stock_threshold, is_active
		FROM products WHERE id=$1 AND deleted_at IS NULL`, productID).
		Scan(&p.ID, &p.Name, &p.SKU, &p.StockQuantity, &p.LowStockThreshold, &p.IsActive)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.NotFoundf("product %s", productID)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
