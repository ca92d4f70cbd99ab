package httpx

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ariefcatur/go-shop-api.git/internal/auth"
	"github.com/ariefcatur/go-shop-api.git/internal/catalog"
	"github.com/ariefcatur/go-shop-api.git/internal/errs"
	"github.com/ariefcatur/go-shop-api.git/internal/inventory"
)

type ProductsHandler struct {
	DB       *pgxpool.Pool
	Svc      *catalog.Service
	Repo     *catalog.Repo
	Importer *catalog.Importer
	Ledger   inventory.Ledger
	Auth     *auth.Service
}

func (h *ProductsHandler) Register(r *chi.Mux) {
	// public search
	r.Get("/v1/search/products", h.search)

	r.Group(func(r chi.Router) {
		r.Use(RequireAuth(h.Auth))
		r.Get("/v1/products", h.list)
		r.Get("/v1/products/{id}", h.get)
		r.Get("/v1/products/{id}/availability", h.availability)

		r.Group(func(r chi.Router) {
			r.Use(RequireRole(auth.RoleVendor))
			r.Post("/v1/products", h.create)
			r.Put("/v1/products/{id}", h.update)
			r.Delete("/v1/products/{id}", h.delete)
			r.Patch("/v1/products/{id}/stock", h.updateStock)
			r.Get("/v1/products/low-stock/alerts", h.lowStock)
			r.Post("/v1/products/import", h.importCSV)
		})
	})
}

type variantReq struct {
	ID       string `json:"id,omitempty"`
	Size     string `json:"size,omitempty"`
	Color    string `json:"color,omitempty"`
	Material string `json:"material,omitempty"`
	SKU      string `json:"sku"`
	Price    string `json:"price,omitempty"`
	Stock    int    `json:"stock_quantity"`
}

type productReq struct {
	Name              string       `json:"name"`
	Description       string       `json:"description,omitempty"`
	SKU               string       `json:"sku"`
	Price             string       `json:"price"`
	StockQuantity     int          `json:"stock_quantity"`
	LowStockThreshold int          `json:"low_stock_threshold"`
	IsActive          *bool        `json:"is_active,omitempty"`
	Variants          []variantReq `json:"variants,omitempty"`
}

func (req *productReq) toModel(userID string) (*catalog.Product, []catalog.Variant, error) {
	price, err := catalog.ParsePrice(req.Price)
	if err != nil {
		return nil, nil, err
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	p := &catalog.Product{
		UserID:            userID,
		Name:              req.Name,
		Description:       req.Description,
		SKU:               req.SKU,
		PriceCents:        price,
		StockQuantity:     req.StockQuantity,
		LowStockThreshold: req.LowStockThreshold,
		IsActive:          active,
	}
	var vs []catalog.Variant
	for _, vr := range req.Variants {
		v := catalog.Variant{
			ID:            vr.ID,
			Size:          vr.Size,
			Color:         vr.Color,
			Material:      vr.Material,
			SKU:           vr.SKU,
			StockQuantity: vr.Stock,
		}
		if vr.Price != "" {
			cents, err := catalog.ParsePrice(vr.Price)
			if err != nil {
				return nil, nil, err
			}
			v.PriceCents = &cents
		}
		vs = append(vs, v)
	}
	return p, vs, nil
}

func (h *ProductsHandler) create(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFrom(r.Context())
	var req productReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	p, vs, err := req.toModel(id.UserID)
	if err != nil {
		writeErr(w, err)
		return
	}
	out, err := h.Svc.CreateProduct(r.Context(), p, vs)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

// owned loads the product and enforces vendor ownership; admins may touch
// any product.
func (h *ProductsHandler) owned(r *http.Request) (*catalog.Product, error) {
	id, _ := IdentityFrom(r.Context())
	p, err := h.Repo.GetProduct(r.Context(), h.DB, chi.URLParam(r, "id"))
	if err != nil {
		return nil, err
	}
	if id.Role != auth.RoleAdmin && p.UserID != id.UserID {
		return nil, errs.ErrUnauthorized
	}
	return p, nil
}

func (h *ProductsHandler) update(w http.ResponseWriter, r *http.Request) {
	existing, err := h.owned(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	var req productReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	p, vs, err := req.toModel(existing.UserID)
	if err != nil {
		writeErr(w, err)
		return
	}
	p.ID = existing.ID
	p.SKU = existing.SKU // sku immutable on update
	p.StockQuantity = existing.StockQuantity
	for i := range vs {
		vs[i].ProductID = p.ID
	}
	out, err := h.Svc.UpdateProduct(r.Context(), p, vs)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *ProductsHandler) delete(w http.ResponseWriter, r *http.Request) {
	p, err := h.owned(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	if err := h.Svc.DeleteProduct(r.Context(), p.ID); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "deleted"})
}

type stockReq struct {
	StockQuantity int `json:"stock_quantity"`
}

func (h *ProductsHandler) updateStock(w http.ResponseWriter, r *http.Request) {
	p, err := h.owned(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	var req stockReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if err := h.Svc.UpdateStock(r.Context(), p.ID, req.StockQuantity); err != nil {
		writeErr(w, err)
		return
	}
	out, err := h.Repo.StockSnapshot(r.Context(), p.ID)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":             out.ID,
		"sku":            out.SKU,
		"stock_quantity": out.StockQuantity,
		"low_stock":      out.IsLowStock(),
	})
}

func (h *ProductsHandler) get(w http.ResponseWriter, r *http.Request) {
	p, err := h.Repo.GetProduct(r.Context(), h.DB, chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *ProductsHandler) list(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFrom(r.Context())
	f := catalog.Filter{Search: r.URL.Query().Get("search"), Limit: 50}
	// vendors see their own catalog; customers browse everything
	if id.Role == auth.RoleVendor {
		f.UserID = id.UserID
	}
	ps, err := h.Repo.ListProducts(r.Context(), f)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

func (h *ProductsHandler) lowStock(w http.ResponseWriter, r *http.Request) {
	ps, err := h.Svc.LowStockProducts(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

func (h *ProductsHandler) search(w http.ResponseWriter, r *http.Request) {
	ps, err := h.Repo.ListProducts(r.Context(), catalog.Filter{Search: r.URL.Query().Get("q"), Limit: 50})
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

func (h *ProductsHandler) availability(w http.ResponseWriter, r *http.Request) {
	qty, err := strconv.Atoi(r.URL.Query().Get("quantity"))
	if err != nil || qty <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid quantity"})
		return
	}
	target := inventory.Target{ProductID: chi.URLParam(r, "id")}
	if v := r.URL.Query().Get("variant_id"); v != "" {
		target.VariantID = &v
	}
	ok, err := h.Ledger.CheckAvailability(r.Context(), h.DB, target, qty)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"available": ok})
}

func (h *ProductsHandler) importCSV(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFrom(r.Context())
	file, _, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "file is required"})
		return
	}
	defer file.Close()

	res, err := h.Importer.ImportCSV(r.Context(), id.UserID, file)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
