package inventory

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ariefcatur/go-storefront-orders/internal/metrics"
	"github.com/ariefcatur/go-storefront-orders/internal/orders"
)

const DefaultCompensationTimeout = 10 * time.Second

// StockLedger is the part of *Ledger the coordinator drives.
type StockLedger interface {
	CheckStock(ctx context.Context, productID, variantKey string, requested int) (bool, int, error)
	AdjustStock(ctx context.Context, productID, variantKey string, delta int) (int, error)
}

// Reservation is one committed decrement. It only lives for the call that
// made it.
type Reservation struct {
	ProductID  string
	VariantKey string
	Quantity   int
}

type RestoreFailure struct {
	Reservation
	Err error
}

// ReservationsFor lists the stock-tracked lines of items as reservations,
// which is what a cancelled order hands back.
func ReservationsFor(items []orders.LineItem) []Reservation {
	out := make([]Reservation, 0, len(items))
	for _, it := range items {
		if it.Tracked() {
			out = append(out, Reservation{ProductID: it.ProductID, VariantKey: it.VariantKey, Quantity: it.Quantity})
		}
	}
	return out
}

// Coordinator turns line items into ledger adjustments with all-or-nothing
// semantics per order: stop at the first failure and undo the prefix.
type Coordinator struct {
	ledger              StockLedger
	compensationTimeout time.Duration
	log                 zerolog.Logger
	metrics             *metrics.Metrics
	tracer              trace.Tracer
}

func NewCoordinator(ledger StockLedger, log zerolog.Logger, m *metrics.Metrics, compensationTimeout time.Duration) *Coordinator {
	if m == nil {
		m = metrics.Discard()
	}
	if compensationTimeout <= 0 {
		compensationTimeout = DefaultCompensationTimeout
	}
	return &Coordinator{
		ledger:              ledger,
		compensationTimeout: compensationTimeout,
		log:                 log,
		metrics:             m,
		tracer:              otel.Tracer("inventory"),
	}
}

// Reserve decrements stock for every tracked line in list order. On failure
// the lines already committed are restored before returning, and the error
// is wrapped in *orders.LineItemError naming the failing line.
func (c *Coordinator) Reserve(ctx context.Context, items []orders.LineItem) ([]Reservation, error) {
	ctx, span := c.tracer.Start(ctx, "inventory.Reserve", trace.WithAttributes(attribute.Int("items", len(items))))
	defer span.End()

	committed := make([]Reservation, 0, len(items))
	for i, it := range items {
		if !it.Tracked() {
			continue
		}
		if err := c.reserveOne(ctx, it); err != nil {
			lineErr := &orders.LineItemError{
				Index: i, ProductID: it.ProductID, VariantKey: it.VariantKey, Name: it.Name, Err: err,
			}
			span.RecordError(lineErr)
			span.SetStatus(codes.Error, "reservation failed")

			failed := c.Release(ctx, committed)
			c.log.Warn().Err(err).
				Int("line", i).Str("product_id", it.ProductID).Str("variant", it.VariantKey).
				Int("compensated", len(committed)-len(failed)).Int("compensation_failures", len(failed)).
				Msg("reservation failed, prefix compensated")
			return nil, lineErr
		}
		committed = append(committed, Reservation{ProductID: it.ProductID, VariantKey: it.VariantKey, Quantity: it.Quantity})
	}

	span.SetAttributes(attribute.Int("reserved", len(committed)))
	return committed, nil
}

func (c *Coordinator) reserveOne(ctx context.Context, it orders.LineItem) error {
	if it.Quantity <= 0 {
		return &orders.ValidationError{Field: "quantity", Reason: "quantity must be positive"}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	ok, available, err := c.ledger.CheckStock(ctx, it.ProductID, it.VariantKey, it.Quantity)
	if err != nil {
		return err
	}
	if !ok {
		return &orders.InsufficientStockError{
			ProductID: it.ProductID, VariantKey: it.VariantKey, Requested: it.Quantity, Available: available,
		}
	}
	_, err = c.ledger.AdjustStock(ctx, it.ProductID, it.VariantKey, -it.Quantity)
	return err
}

// Release restores every reservation exactly once, newest first. It runs
// detached from ctx's cancellation (bounded by the compensation timeout) so
// an expired caller deadline still gets its rollback. Failures are returned
// and logged; they never stop the remaining restores.
func (c *Coordinator) Release(ctx context.Context, committed []Reservation) []RestoreFailure {
	if len(committed) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.compensationTimeout)
	defer cancel()

	var failed []RestoreFailure
	for i := len(committed) - 1; i >= 0; i-- {
		r := committed[i]
		if _, err := c.ledger.AdjustStock(ctx, r.ProductID, r.VariantKey, r.Quantity); err != nil {
			c.metrics.Compensations.WithLabelValues("failed").Inc()
			c.log.Error().Err(err).
				Str("product_id", r.ProductID).Str("variant", r.VariantKey).Int("qty", r.Quantity).
				Msg("stock restore failed")
			failed = append(failed, RestoreFailure{Reservation: r, Err: err})
			continue
		}
		c.metrics.Compensations.WithLabelValues("ok").Inc()
	}
	return failed
}
