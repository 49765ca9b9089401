package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/ariefcatur/go-storefront-orders/internal/kafka"
	"github.com/ariefcatur/go-storefront-orders/internal/metrics"
	"github.com/ariefcatur/go-storefront-orders/internal/orders"
	"github.com/ariefcatur/go-storefront-orders/internal/redisx"
)

// Reconciler replays stock restores that failed during compensation or
// cancellation. It is installed as a Kafka consumer handler.
type Reconciler struct {
	Ledger      StockLedger
	Redis       *redis.Client
	Log         zerolog.Logger
	Metrics     *metrics.Metrics
	ServiceName string
}

// HandleRestoreFailed returns nil only when the offset may be committed.
func (r *Reconciler) HandleRestoreFailed(ctx context.Context, m kafkago.Message) error {
	env, err := kafkax.UnmarshalEnvelope(m.Value)
	if err != nil {
		r.count("malformed")
		r.Log.Error().Err(err).Int64("offset", m.Offset).Msg("drop undecodable envelope")
		return nil
	}
	if env.EventType != orders.EventStockRestoreFailed {
		return nil
	}

	dkey := redisx.DedupKey(r.ServiceName, env.EventID)
	if r.Redis != nil {
		if seen, _ := redisx.Exists(ctx, r.Redis, dkey); seen {
			r.count("duplicate")
			return nil
		}
	}

	p, err := kafkax.UnwrapPayload[orders.StockRestoreFailedPayload](env.Payload)
	if err != nil {
		r.count("malformed")
		r.Log.Error().Err(err).Str("event_id", env.EventID).Msg("drop undecodable payload")
		return nil
	}
	if p.Qty <= 0 || p.VariantKey == "" {
		r.count("malformed")
		return nil
	}

	log := r.Log.With().Str("event_id", env.EventID).Str("correlation_id", env.CorrelationID).
		Str("order_id", p.OrderID).Str("placement_id", p.PlacementID).Str("user_id", p.UserID).
		Str("product_id", p.ProductID).Str("variant", p.VariantKey).Int("qty", p.Qty).Logger()

	qty, err := r.Ledger.AdjustStock(ctx, p.ProductID, p.VariantKey, p.Qty)
	var notFound *orders.NotFoundError
	switch {
	case errors.As(err, &notFound):
		// variant left the catalog; nothing to give the stock back to
		r.count("variant_gone")
		log.Warn().Msg("restore skipped, variant no longer exists")
	case err != nil:
		r.count("retry")
		return fmt.Errorf("reconcile restore %s: %w", env.CorrelationID, err)
	default:
		r.count("restored")
		log.Info().Int("stock", qty).Str("cause", p.Cause).Msg("stock restored out-of-band")
	}

	if r.Redis != nil {
		_ = r.Redis.Set(ctx, dkey, "1", redisx.TTLDedup).Err()
	}
	return nil
}

func (r *Reconciler) count(result string) {
	if r.Metrics != nil {
		r.Metrics.ReconcilerEvents.WithLabelValues(result).Inc()
	}
}
