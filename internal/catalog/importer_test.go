package catalog

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-shop-api.git/internal/errs"
)

type fakeCreator struct {
	created []*Product
	seen    map[string]bool
}

func (f *fakeCreator) CreateProduct(_ context.Context, p *Product, _ []Variant) (*Product, error) {
	if f.seen == nil {
		f.seen = map[string]bool{}
	}
	if f.seen[p.SKU] {
		return nil, errs.Validationf("sku %s already exists", p.SKU)
	}
	f.seen[p.SKU] = true
	f.created = append(f.created, p)
	return p, nil
}

func TestImportCSV_PartialSuccess(t *testing.T) {
	csv := strings.Join([]string{
		"name,sku,price,stock_quantity,low_stock_threshold,description",
		"Widget,W-001,10.00,5,2,A widget",
		",W-002,9.99,3,1,missing name",
		"Gadget,G-001,abc,3,1,bad price",
		"Gizmo,Z-001,7.50,-1,1,negative stock",
		"Doodad,D-001,3.25,10,2,",
		"Dup,W-001,1.00,1,1,duplicate sku",
	}, "\n")

	f := &fakeCreator{}
	imp := &Importer{Creator: f}

	res, err := imp.ImportCSV(context.Background(), "vendor-1", strings.NewReader(csv))
	require.NoError(t, err)

	// rows fail independently; the import never aborts
	assert.Equal(t, 2, res.Success)
	assert.Len(t, res.Errors, 4)

	require.Len(t, f.created, 2)
	first := f.created[0]
	assert.Equal(t, "Widget", first.Name)
	assert.Equal(t, "W-001", first.SKU)
	assert.Equal(t, int64(1000), first.PriceCents)
	assert.Equal(t, 5, first.StockQuantity)
	assert.Equal(t, 2, first.LowStockThreshold)
	assert.Equal(t, "vendor-1", first.UserID)
	assert.True(t, first.IsActive)
}

func TestImportCSV_HeaderOrderIrrelevant(t *testing.T) {
	csv := "sku,name,low_stock_threshold,stock_quantity,price\nA-1,Thing,1,4,2.50\n"

	f := &fakeCreator{}
	imp := &Importer{Creator: f}

	res, err := imp.ImportCSV(context.Background(), "vendor-1", strings.NewReader(csv))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Success)
	assert.Empty(t, res.Errors)
	require.Len(t, f.created, 1)
	assert.Equal(t, int64(250), f.created[0].PriceCents)
	assert.Empty(t, f.created[0].Description)
}

func TestImportCSV_BadHeader(t *testing.T) {
	imp := &Importer{Creator: &fakeCreator{}}
	_, err := imp.ImportCSV(context.Background(), "vendor-1", strings.NewReader(""))
	assert.Error(t, err)
}
