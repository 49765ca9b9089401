package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "storefront"

// Metrics groups the collectors for order placement and stock movement.
type Metrics struct {
	OrdersPlaced      prometheus.Counter
	PlacementFailures *prometheus.CounterVec // label: kind
	OrdersCancelled   prometheus.Counter
	StatusChanges     *prometheus.CounterVec // label: to
	StockAdjustments  *prometheus.CounterVec // label: result
	StockConflicts    prometheus.Counter
	Compensations     *prometheus.CounterVec // label: outcome
	RestoreFailures   *prometheus.CounterVec // label: cause
	ReconcilerEvents  *prometheus.CounterVec // label: result
	PublishFailures   *prometheus.CounterVec // label: event_type
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		OrdersPlaced: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "orders_placed_total",
			Help: "Orders persisted after a successful stock reservation.",
		}),
		PlacementFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "order_placement_failures_total",
			Help: "Failed PlaceOrder calls by error kind.",
		}, []string{"kind"}),
		OrdersCancelled: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "orders_cancelled_total",
			Help: "Orders moved to cancelled.",
		}),
		StatusChanges: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "order_status_changes_total",
			Help: "Fulfillment status transitions by target status.",
		}, []string{"to"}),
		StockAdjustments: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "stock_adjustments_total",
			Help: "Ledger adjust calls by result.",
		}, []string{"result"}),
		StockConflicts: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "stock_cas_conflicts_total",
			Help: "Optimistic stock writes that lost a race and were retried.",
		}),
		Compensations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "stock_compensations_total",
			Help: "Compensating stock restores by outcome.",
		}, []string{"outcome"}),
		RestoreFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "stock_restore_failures_total",
			Help: "Stock restores left for out-of-band reconciliation.",
		}, []string{"cause"}),
		ReconcilerEvents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "reconciler_events_total",
			Help: "Restore-failure events handled by the reconciler.",
		}, []string{"result"}),
		PublishFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "event_publish_failures_total",
			Help: "Lifecycle events dropped because they could not be handed to the broker in time.",
		}, []string{"event_type"}),
	}
}

// Discard returns collectors registered nowhere, for tests and optional wiring.
func Discard() *Metrics {
	return New(prometheus.NewRegistry())
}
