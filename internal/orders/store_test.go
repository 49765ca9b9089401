package orders

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore() *MemoryStore {
	s := NewMemoryStore()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	n := 0
	s.now = func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Minute)
	}
	return s
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()

	in := validDraft().Order("u1")
	id, err := s.Create(ctx, "u1", in)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	got, err := s.Get(ctx, "u1", id)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, got.Status)
	assert.Equal(t, in.Items, got.Items)
	assert.Equal(t, in.TotalCents, got.TotalCents)
	assert.Equal(t, "cod", got.PaymentMethod)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestMemoryStoreScopesByUser(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()
	id, err := s.Create(ctx, "u1", validDraft().Order("u1"))
	require.NoError(t, err)

	_, err = s.Get(ctx, "u2", id)
	var nf *NotFoundError
	assert.True(t, errors.As(err, &nf))

	err = s.UpdateStatus(ctx, "u2", id, StatusConfirmed)
	assert.True(t, errors.As(err, &nf))

	_, err = s.Get(ctx, "u1", "missing")
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestMemoryStoreListNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()
	first, _ := s.Create(ctx, "u1", validDraft().Order("u1"))
	_, _ = s.Create(ctx, "u2", validDraft().Order("u2"))
	second, _ := s.Create(ctx, "u1", validDraft().Order("u1"))

	list, err := s.ListByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second, list[0].ID)
	assert.Equal(t, first, list[1].ID)

	empty, err := s.ListByUser(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestMemoryStoreUpdateStatus(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()
	id, _ := s.Create(ctx, "u1", validDraft().Order("u1"))

	for _, to := range []Status{StatusConfirmed, StatusProcessing, StatusShipped, StatusDelivered} {
		require.NoError(t, s.UpdateStatus(ctx, "u1", id, to))
	}
	err := s.UpdateStatus(ctx, "u1", id, StatusCancelled)
	assert.Equal(t, KindInvalidTransition, KindOf(err))

	got, _ := s.Get(ctx, "u1", id)
	assert.Equal(t, StatusDelivered, got.Status)
	assert.True(t, got.UpdatedAt.After(got.CreatedAt))
}

func TestMemoryStoreCreateHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewMemoryStore().Create(ctx, "u1", validDraft().Order("u1"))
	assert.Equal(t, KindPersistence, KindOf(err))
}
