package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/ariefcatur/go-storefront-orders/internal/inventory"
	"github.com/ariefcatur/go-storefront-orders/internal/orders"
)

// StockHandler exposes the ledger for operators: read, adjust and seed a
// variant's counter.
type StockHandler struct {
	Ledger  inventory.StockLedger
	Seeder  inventory.Seeder
	Log     zerolog.Logger
	Timeout time.Duration
}

type stockResp struct {
	orders.Variant
	Sufficient *bool `json:"sufficient,omitempty"`
}

func variant(pid, key string, qty int) stockResp {
	return stockResp{Variant: orders.Variant{ProductID: pid, VariantKey: key, StockQty: qty}}
}

type adjustReq struct {
	Delta int `json:"delta"`
}

type seedReq struct {
	Qty int `json:"qty"`
}

func (h *StockHandler) Register(r chi.Router) {
	r.Route("/products/{productID}/variants/{key}/stock", func(r chi.Router) {
		r.Get("/", h.check)
		r.Post("/", h.adjust)
		r.Put("/", h.seed)
	})
}

func (h *StockHandler) ctx(r *http.Request) (context.Context, context.CancelFunc) {
	d := h.Timeout
	if d <= 0 {
		d = 5 * time.Second
	}
	return context.WithTimeout(r.Context(), d)
}

func (h *StockHandler) check(w http.ResponseWriter, r *http.Request) {
	pid, key := chi.URLParam(r, "productID"), chi.URLParam(r, "key")
	requested := 0
	if q := r.URL.Query().Get("qty"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n < 0 {
			badRequest(w, "qty", "must be a non-negative integer")
			return
		}
		requested = n
	}

	ctx, cancel := h.ctx(r)
	defer cancel()

	ok, available, err := h.Ledger.CheckStock(ctx, pid, key, requested)
	if err != nil {
		writeError(w, err)
		return
	}
	resp := variant(pid, key, available)
	if requested > 0 {
		resp.Sufficient = &ok
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *StockHandler) adjust(w http.ResponseWriter, r *http.Request) {
	pid, key := chi.URLParam(r, "productID"), chi.URLParam(r, "key")
	var req adjustReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "body", "invalid json")
		return
	}

	ctx, cancel := h.ctx(r)
	defer cancel()

	qty, err := h.Ledger.AdjustStock(ctx, pid, key, req.Delta)
	if err != nil {
		h.Log.Info().Err(err).Str("product_id", pid).Str("variant", key).Int("delta", req.Delta).Msg("stock adjust rejected")
		writeError(w, err)
		return
	}
	h.Log.Info().Str("product_id", pid).Str("variant", key).Int("delta", req.Delta).Int("stock", qty).Msg("stock adjusted")
	writeJSON(w, http.StatusOK, variant(pid, key, qty))
}

func (h *StockHandler) seed(w http.ResponseWriter, r *http.Request) {
	pid, key := chi.URLParam(r, "productID"), chi.URLParam(r, "key")
	var req seedReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "body", "invalid json")
		return
	}
	if req.Qty < 0 {
		badRequest(w, "qty", "must not be negative")
		return
	}
	if h.Seeder == nil {
		writeJSON(w, http.StatusNotImplemented, errorBody{Error: "stock seeding disabled", Kind: "unsupported"})
		return
	}

	ctx, cancel := h.ctx(r)
	defer cancel()

	if err := h.Seeder.Put(ctx, pid, key, req.Qty); err != nil {
		h.Log.Error().Err(err).Str("product_id", pid).Str("variant", key).Msg("stock seed failed")
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, variant(pid, key, req.Qty))
}
