package catalog

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ProductCreator is what the importer needs from the catalog service.
type ProductCreator interface {
	CreateProduct(ctx context.Context, p *Product, variants []Variant) (*Product, error)
}

type ImportResult struct {
	Success int      `json:"success"`
	Errors  []string `json:"errors"`
}

// Importer reads CSV rows with columns name, sku, price, stock_quantity,
// low_stock_threshold and optional description. Rows fail independently:
// a bad row is reported and the import keeps going. This is deliberately
// the opposite of order creation, which is all-or-nothing.
type Importer struct {
	Creator ProductCreator
}

func (imp *Importer) ImportCSV(ctx context.Context, userID string, r io.Reader) (ImportResult, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return ImportResult{}, fmt.Errorf("read csv header: %w", err)
	}
	idx := map[string]int{}
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}

	res := ImportResult{}
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("row %d: %v", line, err))
			continue
		}

		field := func(name string) string {
			i, ok := idx[name]
			if !ok || i >= len(rec) {
				return ""
			}
			return strings.TrimSpace(rec[i])
		}

		p, err := buildRow(userID, field)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("row %d: %v", line, err))
			continue
		}
		if _, err := imp.Creator.CreateProduct(ctx, p, nil); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("row %d: failed to import: %v", line, err))
			continue
		}
		res.Success++
	}
	return res, nil
}

func buildRow(userID string, field func(string) string) (*Product, error) {
	name := field("name")
	if name == "" {
		return nil, fmt.Errorf("name is required")
	}
	sku := field("sku")
	if sku == "" {
		return nil, fmt.Errorf("sku is required")
	}
	price, err := ParsePrice(field("price"))
	if err != nil {
		return nil, fmt.Errorf("invalid price %q", field("price"))
	}
	stock, err := nonNegativeInt(field("stock_quantity"))
	if err != nil {
		return nil, fmt.Errorf("invalid stock_quantity %q", field("stock_quantity"))
	}
	threshold, err := nonNegativeInt(field("low_stock_threshold"))
	if err != nil {
		return nil, fmt.Errorf("invalid low_stock_threshold %q", field("low_stock_threshold"))
	}

	return &Product{
		UserID:            userID,
		Name:              name,
		Description:       field("description"),
		SKU:               sku,
		PriceCents:        price,
		StockQuantity:     stock,
		LowStockThreshold: threshold,
		IsActive:          true,
	}, nil
}

func nonNegativeInt(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("must not be negative")
	}
	return n, nil
}
