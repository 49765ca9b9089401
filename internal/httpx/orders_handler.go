package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/ariefcatur/go-storefront-orders/internal/orders"
	"github.com/ariefcatur/go-storefront-orders/internal/redisx"
)

// OrderService is the lifecycle surface the handler drives.
type OrderService interface {
	PlaceOrder(ctx context.Context, userID string, draft orders.Draft) (string, error)
	CancelOrder(ctx context.Context, userID, orderID string) error
	AdvanceStatus(ctx context.Context, userID, orderID string, to orders.Status) error
	GetOrder(ctx context.Context, userID, orderID string) (orders.Order, error)
	ListUserOrders(ctx context.Context, userID string) ([]orders.Order, error)
}

type OrdersHandler struct {
	Service OrderService
	Redis   *redis.Client // optional, enables Idempotency-Key
	Log     zerolog.Logger
	Timeout time.Duration
}

type PlaceOrderResp struct {
	OrderID    string `json:"order_id"`
	Idempotent bool   `json:"idempotent"`
}

type advanceStatusReq struct {
	Status orders.Status `json:"status"`
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Route("/users/{userID}/orders", func(r chi.Router) {
		r.Post("/", h.placeOrder)
		r.Get("/", h.listOrders)
		r.Get("/{orderID}", h.getOrder)
		r.Post("/{orderID}/cancel", h.cancelOrder)
		r.Post("/{orderID}/status", h.advanceStatus)
	})
}

func (h *OrdersHandler) ctx(r *http.Request) (context.Context, context.CancelFunc) {
	d := h.Timeout
	if d <= 0 {
		d = 5 * time.Second
	}
	return context.WithTimeout(r.Context(), d)
}

func (h *OrdersHandler) placeOrder(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	var draft orders.Draft
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		badRequest(w, "body", "invalid json")
		return
	}

	ctx, cancel := h.ctx(r)
	defer cancel()

	idemKey := ""
	if k := r.Header.Get("Idempotency-Key"); k != "" && h.Redis != nil {
		key := redisx.IdemKey(userID, k)
		claimed, existing, err := h.claim(ctx, key)
		switch {
		case err != nil:
			// redis is a shortcut, not the source of truth
			h.Log.Warn().Err(err).Str("user_id", userID).Msg("idempotency claim failed, placing without it")
		case !claimed && existing == idemPending:
			writeJSON(w, http.StatusConflict, errorBody{
				Error: "an order with this idempotency key is still being placed", Kind: kindInProgress,
			})
			return
		case !claimed:
			writeJSON(w, http.StatusOK, PlaceOrderResp{OrderID: existing, Idempotent: true})
			return
		default:
			idemKey = key
		}
	}

	orderID, err := h.Service.PlaceOrder(ctx, userID, draft)
	if err != nil {
		if idemKey != "" {
			// let the client retry with the same key
			_ = h.Redis.Del(context.WithoutCancel(ctx), idemKey).Err()
		}
		h.logFailure(r, err, "place order failed")
		writeError(w, err)
		return
	}
	if idemKey != "" {
		if err := h.Redis.Set(context.WithoutCancel(ctx), idemKey, orderID, redisx.TTLIdempotency).Err(); err != nil {
			h.Log.Warn().Err(err).Str("order_id", orderID).Msg("store idempotency key")
		}
	}
	writeJSON(w, http.StatusCreated, PlaceOrderResp{OrderID: orderID})
}

const (
	idemPending    = "pending"
	kindInProgress = "in_progress"
)

// claim takes the idempotency key with SET NX. When another request holds it,
// existing is either idemPending or the order id that request created.
func (h *OrdersHandler) claim(ctx context.Context, key string) (claimed bool, existing string, err error) {
	claimed, err = h.Redis.SetNX(ctx, key, idemPending, redisx.TTLIdempotencyClaim).Result()
	if err != nil || claimed {
		return claimed, "", err
	}
	existing, err = h.Redis.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		// holder gave up between our SETNX and GET
		return h.claim(ctx, key)
	}
	return false, existing, err
}

func (h *OrdersHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.ctx(r)
	defer cancel()

	out, err := h.Service.ListUserOrders(ctx, chi.URLParam(r, "userID"))
	if err != nil {
		h.logFailure(r, err, "list orders failed")
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.ctx(r)
	defer cancel()

	o, err := h.Service.GetOrder(ctx, chi.URLParam(r, "userID"), chi.URLParam(r, "orderID"))
	if err != nil {
		h.logFailure(r, err, "get order failed")
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.ctx(r)
	defer cancel()

	userID, orderID := chi.URLParam(r, "userID"), chi.URLParam(r, "orderID")
	if err := h.Service.CancelOrder(ctx, userID, orderID); err != nil {
		h.logFailure(r, err, "cancel order failed")
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"order_id": orderID, "status": string(orders.StatusCancelled)})
}

func (h *OrdersHandler) advanceStatus(w http.ResponseWriter, r *http.Request) {
	var req advanceStatusReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "body", "invalid json")
		return
	}

	ctx, cancel := h.ctx(r)
	defer cancel()

	userID, orderID := chi.URLParam(r, "userID"), chi.URLParam(r, "orderID")
	if err := h.Service.AdvanceStatus(ctx, userID, orderID, req.Status); err != nil {
		h.logFailure(r, err, "advance status failed")
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"order_id": orderID, "status": string(req.Status)})
}

func (h *OrdersHandler) logFailure(r *http.Request, err error, msg string) {
	kind := orders.KindOf(err)
	ev := h.Log.Info()
	if kind == orders.KindInternal || kind == orders.KindPersistence || kind == orders.KindConflictExhausted {
		ev = h.Log.Error()
	}
	ev.Err(err).Str("kind", kind).Str("path", r.URL.Path).Msg(msg)
}
