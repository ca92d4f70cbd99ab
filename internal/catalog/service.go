package catalog

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-shop-api.git/internal/errs"
	"github.com/ariefcatur/go-shop-api.git/internal/inventory"
)

// Service owns product lifecycle. Stock counters are only ever touched via
// the inventory ledger; everything else is plain catalog CRUD.
type Service struct {
	DB      *pgxpool.Pool
	Repo    *Repo
	Ledger  inventory.Ledger
	Watcher *inventory.Watcher
	Log     *zap.Logger
}

func validateProduct(p *Product) error {
	switch {
	case p.Name == "":
		return errs.Validationf("name is required")
	case p.SKU == "":
		return errs.Validationf("sku is required")
	case p.PriceCents < 0:
		return errs.Validationf("price must not be negative")
	case p.StockQuantity < 0:
		return errs.Validationf("stock_quantity must not be negative")
	case p.LowStockThreshold < 0:
		return errs.Validationf("low_stock_threshold must not be negative")
	}
	return nil
}

func (s *Service) CreateProduct(ctx context.Context, p *Product, variants []Variant) (*Product, error) {
	if err := validateProduct(p); err != nil {
		return nil, err
	}

	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := s.Repo.insertProduct(ctx, tx, p); err != nil {
		return nil, err
	}
	for i := range variants {
		variants[i].ProductID = p.ID
		if err := s.Repo.insertVariant(ctx, tx, &variants[i]); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return s.Repo.GetProduct(ctx, s.DB, p.ID)
}

// UpdateProduct updates catalog fields and upserts the supplied variants:
// a variant with an id is updated in place, one without is created.
func (s *Service) UpdateProduct(ctx context.Context, p *Product, variants []Variant) (*Product, error) {
	if err := validateProduct(p); err != nil {
		return nil, err
	}

	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := s.Repo.updateProduct(ctx, tx, p); err != nil {
		return nil, err
	}
	for i := range variants {
		variants[i].ProductID = p.ID
		if variants[i].ID != "" {
			err = s.Repo.updateVariant(ctx, tx, &variants[i])
		} else {
			err = s.Repo.insertVariant(ctx, tx, &variants[i])
		}
		if err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return s.Repo.GetProduct(ctx, s.DB, p.ID)
}

func (s *Service) DeleteProduct(ctx context.Context, productID string) error {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := s.Repo.softDelete(ctx, tx, productID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// UpdateStock sets the product stock to an absolute value, then lets the
// watcher re-check the threshold on the committed counter.
func (s *Service) UpdateStock(ctx context.Context, productID string, quantity int) error {
	if quantity < 0 {
		return errs.Validationf("stock_quantity must not be negative")
	}
	if err := s.Ledger.SetStock(ctx, s.DB, inventory.Target{ProductID: productID}, quantity); err != nil {
		return err
	}
	s.Watcher.Check(ctx, productID)
	return nil
}

func (s *Service) LowStockProducts(ctx context.Context) ([]Product, error) {
	return s.Repo.ListProducts(ctx, Filter{LowStock: true})
}
