package checkout

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ariefcatur/go-storefront-orders/internal/inventory"
	"github.com/ariefcatur/go-storefront-orders/internal/metrics"
	"github.com/ariefcatur/go-storefront-orders/internal/orders"
)

// Reserver is the reservation coordinator as seen by the service.
type Reserver interface {
	Reserve(ctx context.Context, items []orders.LineItem) ([]inventory.Reservation, error)
	Release(ctx context.Context, committed []inventory.Reservation) []inventory.RestoreFailure
}

// Publisher delivers lifecycle events. Publishing is best effort: a failed
// publish is logged and counted and never fails the order operation.
type Publisher interface {
	Publish(ctx context.Context, topic string, env orders.Envelope) error
}

type Service struct {
	reserver  Reserver
	store     orders.Store
	publisher Publisher
	log       zerolog.Logger
	metrics   *metrics.Metrics
	tracer    trace.Tracer
	producer  string

	publishTimeout time.Duration
}

const DefaultPublishTimeout = 2 * time.Second

type Option func(*Service)

func WithPublisher(p Publisher) Option { return func(s *Service) { s.publisher = p } }

func WithLogger(log zerolog.Logger) Option { return func(s *Service) { s.log = log } }

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithProducerName sets the producer field of published envelopes.
func WithProducerName(name string) Option { return func(s *Service) { s.producer = name } }

// WithPublishTimeout bounds how long an operation waits to hand one event to
// the publisher. The caller's cancellation does not cut a publish short.
func WithPublishTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.publishTimeout = d
		}
	}
}

func NewService(reserver Reserver, store orders.Store, opts ...Option) *Service {
	s := &Service{
		reserver: reserver,
		store:    store,
		log:      zerolog.Nop(),
		metrics:  metrics.Discard(),
		tracer:   otel.Tracer("checkout"),
		producer: "order-api",

		publishTimeout: DefaultPublishTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PlaceOrder reserves stock for every tracked line and then persists the
// order as pending. A reservation failure leaves no residue; a persistence
// failure after a good reservation hands all reserved stock back before
// returning *orders.PersistenceError.
func (s *Service) PlaceOrder(ctx context.Context, userID string, draft orders.Draft) (string, error) {
	ctx, span := s.tracer.Start(ctx, "checkout.PlaceOrder", trace.WithAttributes(
		attribute.String("user_id", userID), attribute.Int("items", len(draft.Items))))
	defer span.End()

	orderID, err := s.placeOrder(ctx, userID, draft)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, orders.KindOf(err))
		s.metrics.PlacementFailures.WithLabelValues(orders.KindOf(err)).Inc()
		return "", err
	}
	span.SetAttributes(attribute.String("order_id", orderID))
	s.metrics.OrdersPlaced.Inc()
	return orderID, nil
}

func (s *Service) placeOrder(ctx context.Context, userID string, draft orders.Draft) (string, error) {
	if userID == "" {
		return "", &orders.ValidationError{Field: "user_id", Reason: "missing user id"}
	}
	if err := draft.Validate(); err != nil {
		return "", err
	}

	// correlates the reservation with a rollback when no order id exists yet
	placementID := uuid.NewString()
	log := s.log.With().Str("user_id", userID).Str("placement_id", placementID).Logger()

	committed, err := s.reserver.Reserve(ctx, draft.Items)
	if err != nil {
		log.Info().Err(err).Msg("order rejected at reservation")
		return "", err
	}

	orderID, err := s.store.Create(ctx, userID, draft.Order(userID))
	if err != nil {
		failed := s.reserver.Release(ctx, committed)
		s.reportRestoreFailures(ctx, placementID, orders.StockRestoreFailedPayload{
			PlacementID: placementID, UserID: userID, Cause: "placement_rollback",
		}, failed)
		log.Error().Err(err).Int("released", len(committed)-len(failed)).
			Int("release_failures", len(failed)).Msg("order write failed, reservation rolled back")

		var perr *orders.PersistenceError
		if !errors.As(err, &perr) {
			err = &orders.PersistenceError{Op: "create order", Err: err}
		}
		return "", err
	}

	log.Info().Str("order_id", orderID).Int("reserved_lines", len(committed)).
		Int("total_cents", draft.TotalCents).Msg("order placed")
	s.publish(ctx, orders.TopicOrderPlaced, orders.EventOrderPlaced, orderID, orders.OrderPlacedPayload{
		OrderID:    orderID,
		UserID:     userID,
		Items:      orders.ItemQtys(draft.Items),
		TotalCents: draft.TotalCents,
	})
	return orderID, nil
}

// CancelOrder moves a pending or confirmed order to cancelled and hands its
// reserved stock back. The status write claims the cancellation first, so
// of two racing cancels only one restores stock. Restore failures are logged,
// counted and published for reconciliation; they do not undo the cancel.
func (s *Service) CancelOrder(ctx context.Context, userID, orderID string) error {
	ctx, span := s.tracer.Start(ctx, "checkout.CancelOrder", trace.WithAttributes(
		attribute.String("user_id", userID), attribute.String("order_id", orderID)))
	defer span.End()

	err := s.cancelOrder(ctx, userID, orderID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, orders.KindOf(err))
	}
	return err
}

func (s *Service) cancelOrder(ctx context.Context, userID, orderID string) error {
	o, err := s.store.Get(ctx, userID, orderID)
	if err != nil {
		return err
	}
	if !o.Status.Cancellable() {
		return &orders.InvalidTransitionError{From: o.Status, To: orders.StatusCancelled}
	}
	if err := s.store.UpdateStatus(ctx, userID, orderID, orders.StatusCancelled); err != nil {
		return err
	}
	s.metrics.OrdersCancelled.Inc()

	toRestore := inventory.ReservationsFor(o.Items)
	failed := s.reserver.Release(ctx, toRestore)
	s.reportRestoreFailures(ctx, orderID, orders.StockRestoreFailedPayload{
		OrderID: orderID, UserID: userID, Cause: "cancellation",
	}, failed)

	s.log.Info().Str("user_id", userID).Str("order_id", orderID).Str("previous_status", string(o.Status)).
		Int("restored", len(toRestore)-len(failed)).Int("restore_failures", len(failed)).
		Msg("order cancelled")

	s.publish(ctx, orders.TopicOrderCancelled, orders.EventOrderCancelled, orderID, orders.OrderCancelledPayload{
		OrderID:        orderID,
		UserID:         userID,
		PreviousStatus: o.Status,
		Restored:       restoredQtys(toRestore, failed),
		Unrestored:     failedQtys(failed),
	})
	return nil
}

// AdvanceStatus moves an order along the fulfillment path. Cancellation is
// rejected here because it must go through CancelOrder to restore stock.
func (s *Service) AdvanceStatus(ctx context.Context, userID, orderID string, to orders.Status) error {
	if !to.Valid() {
		return &orders.ValidationError{Field: "status", Reason: "unknown status " + string(to)}
	}
	if to == orders.StatusCancelled {
		return &orders.ValidationError{Field: "status", Reason: "use cancel to cancel an order"}
	}
	o, err := s.store.Get(ctx, userID, orderID)
	if err != nil {
		return err
	}
	if err := s.store.UpdateStatus(ctx, userID, orderID, to); err != nil {
		return err
	}
	s.metrics.StatusChanges.WithLabelValues(string(to)).Inc()
	s.publish(ctx, orders.TopicOrderStatusChanged, orders.EventOrderStatusChanged, orderID, orders.OrderStatusChangedPayload{
		OrderID: orderID, UserID: userID, From: o.Status, To: to,
	})
	return nil
}

func (s *Service) GetOrder(ctx context.Context, userID, orderID string) (orders.Order, error) {
	return s.store.Get(ctx, userID, orderID)
}

// ListUserOrders returns the user's orders newest first.
func (s *Service) ListUserOrders(ctx context.Context, userID string) ([]orders.Order, error) {
	out, err := s.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	orders.SortNewestFirst(out)
	return out, nil
}

// reportRestoreFailures publishes one event per failed restore, keyed by
// correlationID so all of them land on the same partition.
func (s *Service) reportRestoreFailures(ctx context.Context, correlationID string, base orders.StockRestoreFailedPayload, failed []inventory.RestoreFailure) {
	for _, f := range failed {
		s.metrics.RestoreFailures.WithLabelValues(base.Cause).Inc()
		p := base
		p.ProductID, p.VariantKey, p.Qty = f.ProductID, f.VariantKey, f.Quantity
		p.Reason = f.Err.Error()
		s.publish(ctx, orders.TopicStockRestoreFailed, orders.EventStockRestoreFailed, correlationID, p)
	}
}

// publish hands one event to the publisher, waiting at most publishTimeout.
// The event is dropped and counted when that runs out.
func (s *Service) publish(ctx context.Context, topic, eventType, correlationID string, payload any) {
	if s.publisher == nil {
		return
	}
	env, err := orders.NewEnvelope(eventType, s.producer, correlationID, payload)
	if err == nil {
		if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
			env.TraceID = sc.TraceID().String()
		}
		pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.publishTimeout)
		err = s.publisher.Publish(pctx, topic, env)
		cancel()
	}
	if err != nil {
		s.metrics.PublishFailures.WithLabelValues(eventType).Inc()
		s.log.Error().Err(err).Str("event_type", eventType).Str("correlation_id", correlationID).Msg("publish event failed, dropped")
	}
}

func restoredQtys(all []inventory.Reservation, failed []inventory.RestoreFailure) []orders.ItemQty {
	bad := make(map[inventory.Reservation]int, len(failed))
	for _, f := range failed {
		bad[f.Reservation]++
	}
	out := make([]orders.ItemQty, 0, len(all))
	for _, r := range all {
		if bad[r] > 0 {
			bad[r]--
			continue
		}
		out = append(out, orders.ItemQty{ProductID: r.ProductID, VariantKey: r.VariantKey, Qty: r.Quantity})
	}
	return out
}

func failedQtys(failed []inventory.RestoreFailure) []orders.ItemQty {
	if len(failed) == 0 {
		return nil
	}
	out := make([]orders.ItemQty, 0, len(failed))
	for _, f := range failed {
		out = append(out, orders.ItemQty{ProductID: f.ProductID, VariantKey: f.VariantKey, Qty: f.Quantity})
	}
	return out
}
