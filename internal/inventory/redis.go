package inventory

import (
	"context"
	"errors"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/ariefcatur/go-storefront-orders/internal/orders"
	"github.com/ariefcatur/go-storefront-orders/internal/redisx"
)

// RedisStore keeps each variant as a hash {qty, ver}. CompareAndSwap runs as
// a Lua script so the version check and the write are one atomic step.
type RedisStore struct {
	rdb *redis.Client
}

var _ Store = (*RedisStore)(nil)

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

// KEYS[1]: stock hash, ARGV[1]: expected version, ARGV[2]: new qty.
// Returns -1 when the variant is missing, 0 on version mismatch, 1 on write.
var casScript = redis.NewScript(`
local ver = redis.call('HGET', KEYS[1], 'ver')
if not ver then
    return -1
end
if tonumber(ver) ~= tonumber(ARGV[1]) then
    return 0
end
redis.call('HSET', KEYS[1], 'qty', ARGV[2], 'ver', tostring(tonumber(ver) + 1))
return 1
`)

func (s *RedisStore) Load(ctx context.Context, productID, variant string) (Snapshot, error) {
	vals, err := s.rdb.HGetAll(ctx, redisx.StockKey(productID, variant)).Result()
	if err != nil {
		return Snapshot{}, &orders.PersistenceError{Op: "load stock", Err: err}
	}
	if len(vals) == 0 {
		return Snapshot{}, notFound(productID, variant)
	}
	qty, err := strconv.Atoi(vals["qty"])
	if err != nil {
		return Snapshot{}, &orders.PersistenceError{Op: "decode stock qty", Err: err}
	}
	ver, err := strconv.ParseInt(vals["ver"], 10, 64)
	if err != nil {
		return Snapshot{}, &orders.PersistenceError{Op: "decode stock version", Err: err}
	}
	return Snapshot{Qty: qty, Version: ver}, nil
}

func (s *RedisStore) CompareAndSwap(ctx context.Context, productID, variant string, expected int64, newQty int) (bool, error) {
	res, err := casScript.Run(ctx, s.rdb, []string{redisx.StockKey(productID, variant)}, expected, newQty).Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		return false, &orders.PersistenceError{Op: "update stock", Err: err}
	}
	switch res {
	case 1:
		return true, nil
	case -1:
		return false, notFound(productID, variant)
	default:
		return false, nil
	}
}

// Put seeds or overwrites a counter and bumps its version so in-flight CAS
// attempts against the old value fail.
func (s *RedisStore) Put(ctx context.Context, productID, variant string, qty int) error {
	key := redisx.StockKey(productID, variant)
	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, key, "qty", qty)
	pipe.HIncrBy(ctx, key, "ver", 1)
	if _, err := pipe.Exec(ctx); err != nil {
		return &orders.PersistenceError{Op: "seed stock", Err: err}
	}
	return nil
}
