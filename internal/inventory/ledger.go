package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"

	"github.com/ariefcatur/go-storefront-orders/internal/metrics"
	"github.com/ariefcatur/go-storefront-orders/internal/orders"
)

const (
	DefaultMaxTries  = 5
	DefaultBaseDelay = 5 * time.Millisecond
)

var errWriteConflict = errors.New("stock version changed")

// Ledger is the only writer of variant stock counters. Every mutation is a
// read-verify-CAS loop against a single key with bounded retries.
type Ledger struct {
	store     Store
	maxTries  int
	baseDelay time.Duration
	log       zerolog.Logger
	metrics   *metrics.Metrics
}

type LedgerOption func(*Ledger)

func WithMaxTries(n int) LedgerOption {
	return func(l *Ledger) {
		if n > 0 {
			l.maxTries = n
		}
	}
}

// WithBaseDelay sets the first backoff interval. Zero disables waiting.
func WithBaseDelay(d time.Duration) LedgerOption {
	return func(l *Ledger) { l.baseDelay = d }
}

func WithLogger(log zerolog.Logger) LedgerOption {
	return func(l *Ledger) { l.log = log }
}

func WithMetrics(m *metrics.Metrics) LedgerOption {
	return func(l *Ledger) {
		if m != nil {
			l.metrics = m
		}
	}
}

func NewLedger(store Store, opts ...LedgerOption) *Ledger {
	l := &Ledger{
		store:     store,
		maxTries:  DefaultMaxTries,
		baseDelay: DefaultBaseDelay,
		log:       zerolog.Nop(),
		metrics:   metrics.Discard(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// CheckStock is read-only. ok=false with a nil error means there is not
// enough stock right now.
func (l *Ledger) CheckStock(ctx context.Context, productID, variantKey string, requested int) (ok bool, available int, err error) {
	snap, err := l.store.Load(ctx, productID, variantKey)
	if err != nil {
		return false, 0, err
	}
	return snap.Qty >= requested, snap.Qty, nil
}

// AdjustStock applies delta (negative for a sale, positive for a restore) and
// returns the new quantity. A lost CAS race re-reads and tries again; the
// counter is never written below zero.
func (l *Ledger) AdjustStock(ctx context.Context, productID, variantKey string, delta int) (int, error) {
	attempts := 0
	op := func() (int, error) {
		attempts++
		snap, err := l.store.Load(ctx, productID, variantKey)
		if err != nil {
			return 0, backoff.Permanent(err)
		}
		next := snap.Qty + delta
		if next < 0 {
			return 0, backoff.Permanent(&orders.InsufficientStockError{
				ProductID: productID, VariantKey: variantKey, Requested: -delta, Available: snap.Qty,
			})
		}
		if delta == 0 {
			return snap.Qty, nil
		}
		swapped, err := l.store.CompareAndSwap(ctx, productID, variantKey, snap.Version, next)
		if err != nil {
			return 0, backoff.Permanent(err)
		}
		if !swapped {
			l.metrics.StockConflicts.Inc()
			return 0, errWriteConflict
		}
		return next, nil
	}

	qty, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(l.backoff()),
		backoff.WithMaxTries(uint(l.maxTries)),
	)
	if err != nil {
		// the last try comes back still wrapped
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			err = perm.Unwrap()
		}
		if errors.Is(err, errWriteConflict) {
			err = &orders.ConflictExhaustedError{ProductID: productID, VariantKey: variantKey, Attempts: attempts}
		}
		l.metrics.StockAdjustments.WithLabelValues(orders.KindOf(err)).Inc()
		l.log.Debug().Err(err).
			Str("product_id", productID).Str("variant", variantKey).
			Int("delta", delta).Int("attempts", attempts).
			Msg("stock adjust failed")
		return 0, err
	}

	l.metrics.StockAdjustments.WithLabelValues("ok").Inc()
	return qty, nil
}

func (l *Ledger) backoff() backoff.BackOff {
	if l.baseDelay <= 0 {
		return &backoff.ZeroBackOff{}
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = l.baseDelay
	b.MaxInterval = 20 * l.baseDelay
	return b
}
