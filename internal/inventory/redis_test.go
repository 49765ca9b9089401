package inventory

import (
	"context"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-storefront-orders/internal/orders"
	"github.com/ariefcatur/go-storefront-orders/internal/redisx"
)

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisStore(rdb), mr
}

func TestRedisStoreLoadAndPut(t *testing.T) {
	ctx := context.Background()
	s, mr := newRedisStore(t)

	_, err := s.Load(ctx, "p1", "M")
	assert.Equal(t, orders.KindNotFound, orders.KindOf(err))

	require.NoError(t, s.Put(ctx, "p1", "M", 8))
	snap, err := s.Load(ctx, "p1", "M")
	require.NoError(t, err)
	assert.Equal(t, 8, snap.Qty)
	assert.EqualValues(t, 1, snap.Version)
	assert.Equal(t, "8", mr.HGet(redisx.StockKey("p1", "M"), "qty"))

	require.NoError(t, s.Put(ctx, "p1", "M", 3))
	snap, _ = s.Load(ctx, "p1", "M")
	assert.Equal(t, 3, snap.Qty)
	assert.EqualValues(t, 2, snap.Version)
}

func TestRedisStoreCompareAndSwap(t *testing.T) {
	ctx := context.Background()
	s, _ := newRedisStore(t)
	require.NoError(t, s.Put(ctx, "p1", "M", 8))

	swapped, err := s.CompareAndSwap(ctx, "p1", "M", 1, 6)
	require.NoError(t, err)
	assert.True(t, swapped)

	// stale version
	swapped, err = s.CompareAndSwap(ctx, "p1", "M", 1, 0)
	require.NoError(t, err)
	assert.False(t, swapped)

	snap, _ := s.Load(ctx, "p1", "M")
	assert.Equal(t, 6, snap.Qty)
	assert.EqualValues(t, 2, snap.Version)

	_, err = s.CompareAndSwap(ctx, "p9", "M", 1, 1)
	assert.Equal(t, orders.KindNotFound, orders.KindOf(err))
}

func TestRedisStoreUnavailableIsPersistence(t *testing.T) {
	s, mr := newRedisStore(t)
	mr.Close()

	_, err := s.Load(context.Background(), "p1", "M")
	assert.Equal(t, orders.KindPersistence, orders.KindOf(err))
}

func TestLedgerOverRedisNeverOversells(t *testing.T) {
	ctx := context.Background()
	s, _ := newRedisStore(t)
	require.NoError(t, s.Put(ctx, "p1", "M", 5))
	l := NewLedger(s, WithMaxTries(50), WithBaseDelay(0))

	var wg sync.WaitGroup
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = l.AdjustStock(ctx, "p1", "M", -1)
		}()
	}
	wg.Wait()

	snap, err := s.Load(ctx, "p1", "M")
	require.NoError(t, err)
	assert.Equal(t, 0, snap.Qty)
}
