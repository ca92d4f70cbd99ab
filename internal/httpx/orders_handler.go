package httpx

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/ariefcatur/go-shop-api.git/internal/auth"
	"github.com/ariefcatur/go-shop-api.git/internal/errs"
	"github.com/ariefcatur/go-shop-api.git/internal/orders"
	"github.com/ariefcatur/go-shop-api.git/internal/redisx"
)

type OrdersHandler struct {
	Svc   *orders.Service
	Redis *redis.Client
	Auth  *auth.Service
}

func (h *OrdersHandler) Register(r *chi.Mux) {
	r.Group(func(r chi.Router) {
		r.Use(RequireAuth(h.Auth))
		r.Post("/v1/orders", h.create)
		r.Get("/v1/orders", h.list)
		r.Get("/v1/orders/{id}", h.get)
		r.Get("/v1/orders/number/{number}", h.getByNumber)
		r.Get("/v1/orders/{id}/status", h.status)
		r.Post("/v1/orders/{id}/cancel", h.cancel)
		r.Patch("/v1/orders/{id}/status", h.updateStatus)
	})
}

type createOrderReq struct {
	ShippingAddress string             `json:"shipping_address"`
	BillingAddress  string             `json:"billing_address"`
	CustomerEmail   string             `json:"customer_email"`
	CustomerPhone   string             `json:"customer_phone,omitempty"`
	Notes           string             `json:"notes,omitempty"`
	Items           []orders.ItemInput `json:"items"`
}

func (h *OrdersHandler) create(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFrom(r.Context())
	var req createOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	order, err := h.Svc.CreateOrder(r.Context(), orders.CreateOrderInput{
		UserID:          id.UserID,
		ShippingAddress: req.ShippingAddress,
		BillingAddress:  req.BillingAddress,
		CustomerEmail:   req.CustomerEmail,
		CustomerPhone:   req.CustomerPhone,
		Notes:           req.Notes,
		Items:           req.Items,
	})
	if err != nil {
		writeErr(w, err)
		return
	}

	h.cacheStatus(r, order)
	writeJSON(w, http.StatusCreated, order)
}

// loadOwned fetches the order and enforces customer ownership; admins see
// every order.
func (h *OrdersHandler) loadOwned(r *http.Request) (*orders.Order, error) {
	id, _ := IdentityFrom(r.Context())
	order, err := h.Svc.GetOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		return nil, err
	}
	if id.Role != auth.RoleAdmin && order.UserID != id.UserID {
		return nil, errs.ErrUnauthorized
	}
	return order, nil
}

func (h *OrdersHandler) get(w http.ResponseWriter, r *http.Request) {
	order, err := h.loadOwned(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *OrdersHandler) getByNumber(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFrom(r.Context())
	order, err := h.Svc.GetOrderByNumber(r.Context(), chi.URLParam(r, "number"))
	if err != nil {
		writeErr(w, err)
		return
	}
	if id.Role != auth.RoleAdmin && order.UserID != id.UserID {
		writeErr(w, errs.ErrUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *OrdersHandler) list(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFrom(r.Context())
	f := orders.Filter{
		Status: orders.Status(r.URL.Query().Get("status")),
		Search: r.URL.Query().Get("search"),
		Limit:  50,
	}
	if id.Role != auth.RoleAdmin {
		f.UserID = id.UserID
	}
	out, err := h.Svc.ListOrders(r.Context(), f)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

type cachedStatus struct {
	Status orders.Status `json:"status"`
	UserID string        `json:"user_id"`
}

// status reads from the redis cache first and falls back to the store. The
// cached entry carries the owner so the hit path still enforces ownership.
func (h *OrdersHandler) status(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFrom(r.Context())
	key := fmt.Sprintf(redisx.KeyOrderStatus, chi.URLParam(r, "id"))
	if s, err := h.Redis.Get(r.Context(), key).Result(); err == nil && s != "" {
		var cached cachedStatus
		if json.Unmarshal([]byte(s), &cached) == nil {
			if id.Role != auth.RoleAdmin && cached.UserID != id.UserID {
				writeErr(w, errs.ErrUnauthorized)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"status": cached.Status})
			return
		}
	}

	order, err := h.loadOwned(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	h.cacheStatus(r, order)
	writeJSON(w, http.StatusOK, map[string]any{"status": order.Status})
}

func (h *OrdersHandler) cancel(w http.ResponseWriter, r *http.Request) {
	if _, err := h.loadOwned(r); err != nil {
		writeErr(w, err)
		return
	}
	order, err := h.Svc.CancelOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	h.cacheStatus(r, order)
	writeJSON(w, http.StatusOK, order)
}

type updateStatusReq struct {
	Status orders.Status `json:"status"`
}

func (h *OrdersHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFrom(r.Context())
	if id.Role == auth.RoleCustomer {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "forbidden"})
		return
	}
	var req updateStatusReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	order, err := h.Svc.UpdateOrderStatus(r.Context(), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		writeErr(w, err)
		return
	}
	h.cacheStatus(r, order)
	writeJSON(w, http.StatusOK, order)
}

func (h *OrdersHandler) cacheStatus(r *http.Request, o *orders.Order) {
	key := fmt.Sprintf(redisx.KeyOrderStatus, o.ID)
	body, _ := json.Marshal(cachedStatus{Status: o.Status, UserID: o.UserID})
	_ = h.Redis.Set(r.Context(), key, body, redisx.TTLStatusCache).Err()
}
