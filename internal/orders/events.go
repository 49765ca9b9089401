package orders

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	EventOrderPlaced        = "OrderPlaced"
	EventOrderCancelled     = "OrderCancelled"
	EventOrderStatusChanged = "OrderStatusChanged"
	EventStockRestoreFailed = "StockRestoreFailed"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order id, or placement id before one exists
	Payload       json.RawMessage `json:"payload"`
}

// NewEnvelope wraps payload in a v1 envelope. correlationID doubles as the
// partition key.
func NewEnvelope(eventType, producer, correlationID string, payload any) (Envelope, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s payload: %w", eventType, err)
	}
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      producer,
		CorrelationID: correlationID,
		Payload:       b,
	}, nil
}

// ---- payloads ----

type ItemQty struct {
	ProductID  string `json:"product_id"`
	VariantKey string `json:"variant_key,omitempty"`
	Qty        int    `json:"qty"`
}

type OrderPlacedPayload struct {
	OrderID    string    `json:"order_id"`
	UserID     string    `json:"user_id"`
	Items      []ItemQty `json:"items"`
	TotalCents int       `json:"total_cents"`
}

type OrderCancelledPayload struct {
	OrderID        string    `json:"order_id"`
	UserID         string    `json:"user_id"`
	PreviousStatus Status    `json:"previous_status"`
	Restored       []ItemQty `json:"restored"`
	Unrestored     []ItemQty `json:"unrestored,omitempty"`
}

type OrderStatusChangedPayload struct {
	OrderID string `json:"order_id"`
	UserID  string `json:"user_id"`
	From    Status `json:"from"`
	To      Status `json:"to"`
}

// StockRestoreFailedPayload is consumed by the reconciler, which retries the
// restore out-of-band.
type StockRestoreFailedPayload struct {
	OrderID     string `json:"order_id,omitempty"`     // empty for a placement rollback
	PlacementID string `json:"placement_id,omitempty"` // set for a placement rollback
	UserID      string `json:"user_id"`
	ProductID   string `json:"product_id"`
	VariantKey  string `json:"variant_key"`
	Qty         int    `json:"qty"`
	Reason      string `json:"reason"`
	Cause       string `json:"cause"` // "placement_rollback" | "cancellation"
}

func ItemQtys(items []LineItem) []ItemQty {
	out := make([]ItemQty, 0, len(items))
	for _, it := range items {
		out = append(out, ItemQty{ProductID: it.ProductID, VariantKey: it.VariantKey, Qty: it.Quantity})
	}
	return out
}
