package inventory

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-storefront-orders/internal/orders"
	"github.com/ariefcatur/go-storefront-orders/internal/postgres"
)

func newPostgresStore(t *testing.T) *PostgresStore {
	t.Helper()
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	db, err := postgres.Connect(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(db.Close)
	require.NoError(t, postgres.Migrate(ctx, db))
	return &PostgresStore{DB: db}
}

func TestPostgresStoreCompareAndSwap(t *testing.T) {
	ctx := context.Background()
	s := newPostgresStore(t)
	pid := "test-" + uuid.NewString()

	_, err := s.Load(ctx, pid, "M")
	assert.Equal(t, orders.KindNotFound, orders.KindOf(err))

	require.NoError(t, s.Put(ctx, pid, "M", 10))
	snap, err := s.Load(ctx, pid, "M")
	require.NoError(t, err)
	assert.Equal(t, 10, snap.Qty)

	swapped, err := s.CompareAndSwap(ctx, pid, "M", snap.Version, 7)
	require.NoError(t, err)
	assert.True(t, swapped)

	swapped, err = s.CompareAndSwap(ctx, pid, "M", snap.Version, 1)
	require.NoError(t, err)
	assert.False(t, swapped)

	qty, err := NewLedger(s).AdjustStock(ctx, pid, "M", -7)
	require.NoError(t, err)
	assert.Equal(t, 0, qty)

	_, err = NewLedger(s).AdjustStock(ctx, pid, "M", -1)
	assert.Equal(t, orders.KindInsufficientStock, orders.KindOf(err))
}
