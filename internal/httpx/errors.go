package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ariefcatur/go-storefront-orders/internal/orders"
)

type lineItemBody struct {
	Index      int    `json:"index"`
	ProductID  string `json:"product_id"`
	VariantKey string `json:"variant_key,omitempty"`
	Name       string `json:"name,omitempty"`
}

type errorBody struct {
	Error     string        `json:"error"`
	Kind      string        `json:"kind"`
	LineItem  *lineItemBody `json:"line_item,omitempty"`
	Available *int          `json:"available,omitempty"`
}

func statusFor(kind string) int {
	switch kind {
	case orders.KindValidation:
		return http.StatusBadRequest
	case orders.KindNotFound:
		return http.StatusNotFound
	case orders.KindInsufficientStock, orders.KindInvalidTransition:
		return http.StatusConflict
	case orders.KindConflictExhausted:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	kind := orders.KindOf(err)
	body := errorBody{Error: err.Error(), Kind: kind}

	var line *orders.LineItemError
	if errors.As(err, &line) {
		body.LineItem = &lineItemBody{
			Index: line.Index, ProductID: line.ProductID, VariantKey: line.VariantKey, Name: line.Name,
		}
	}
	var stock *orders.InsufficientStockError
	if errors.As(err, &stock) {
		available := stock.Available
		body.Available = &available
	}
	if kind == orders.KindInternal || kind == orders.KindPersistence {
		// storage details stay in the logs
		body.Error = http.StatusText(http.StatusInternalServerError)
	}
	writeJSON(w, statusFor(kind), body)
}

func badRequest(w http.ResponseWriter, field, reason string) {
	writeError(w, &orders.ValidationError{Field: field, Reason: reason})
}
