package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-storefront-orders/internal/orders"
)

type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	fail   bool
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fail {
		return errors.New("leader not available")
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
	return nil
}

func TestProducerPublishesEnvelope(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, 8, zerolog.Nop())
	p.Start()

	env, err := orders.NewEnvelope(orders.EventOrderPlaced, "order-api", "o-1", orders.OrderPlacedPayload{OrderID: "o-1", UserID: "u1"})
	require.NoError(t, err)
	require.NoError(t, p.Publish(context.Background(), orders.TopicOrderPlaced, env))

	p.Close()
	p.WaitClosed()

	require.Len(t, w.msgs, 1)
	m := w.msgs[0]
	assert.Equal(t, orders.TopicOrderPlaced, m.Topic)
	assert.Equal(t, "o-1", string(m.Key))
	assert.Equal(t, "x-event-type", m.Headers[0].Key)
	assert.Equal(t, orders.EventOrderPlaced, string(m.Headers[0].Value))
	assert.True(t, w.closed)

	got, err := UnmarshalEnvelope(m.Value)
	require.NoError(t, err)
	assert.Equal(t, env.EventID, got.EventID)

	payload, err := UnwrapPayload[orders.OrderPlacedPayload](got.Payload)
	require.NoError(t, err)
	assert.Equal(t, "u1", payload.UserID)
}

func TestProducerRejectsAfterClose(t *testing.T) {
	p := newProducer(&fakeWriter{}, 1, zerolog.Nop())
	p.Start()
	p.Close()
	p.Close()
	p.WaitClosed()

	err := p.Publish(context.Background(), orders.TopicOrderPlaced, orders.Envelope{})
	assert.ErrorIs(t, err, ErrProducerClosed)
}

func TestProducerWriteFailureDoesNotBlock(t *testing.T) {
	w := &fakeWriter{fail: true}
	p := newProducer(w, 2, zerolog.Nop())
	p.Start()
	for i := 0; i < 5; i++ {
		require.NoError(t, p.Publish(context.Background(), orders.TopicOrderCancelled, orders.Envelope{CorrelationID: "o"}))
	}
	p.Close()
	p.WaitClosed()
	assert.Empty(t, w.msgs)
}

func TestPublishHonoursContextWhenFull(t *testing.T) {
	p := newProducer(&fakeWriter{}, 1, zerolog.Nop())
	// loop not started, so the inbox fills
	require.NoError(t, p.Publish(context.Background(), orders.TopicOrderPlaced, orders.Envelope{}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := p.Publish(ctx, orders.TopicOrderPlaced, orders.Envelope{})
	assert.ErrorIs(t, err, context.Canceled)
}
