package orders

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ariefcatur/go-storefront-orders/internal/redisx"
)

// CachedStore puts a Redis read-through cache in front of Get. The wrapped
// store stays the source of truth; cache errors only cost a round trip.
//
// Each entry is a hash {ver, body} where ver is the order's UpdatedAt in
// microseconds. Writes never replace a newer version, so a reader that
// loaded the order before a status change cannot put the old copy back.
type CachedStore struct {
	Store
	Redis *redis.Client
	TTL   time.Duration
}

// KEYS[1]: order hash, ARGV[1]: version, ARGV[2]: body, ARGV[3]: ttl ms.
// Returns 0 when an equal or newer version is already cached.
var cacheFillScript = redis.NewScript(`
local cur = redis.call('HGET', KEYS[1], 'ver')
if cur and tonumber(cur) >= tonumber(ARGV[1]) then
    return 0
end
redis.call('HSET', KEYS[1], 'ver', ARGV[1], 'body', ARGV[2])
redis.call('PEXPIRE', KEYS[1], ARGV[3])
return 1
`)

func (c *CachedStore) Get(ctx context.Context, userID, orderID string) (Order, error) {
	key := redisx.OrderKey(userID, orderID)
	if b, err := c.Redis.HGet(ctx, key, "body").Bytes(); err == nil && len(b) > 0 {
		var o Order
		if json.Unmarshal(b, &o) == nil {
			return o, nil
		}
	}

	o, err := c.Store.Get(ctx, userID, orderID)
	if err != nil {
		return o, err
	}
	c.fill(ctx, o)
	return o, nil
}

// UpdateStatus writes through: after the store accepts the change the fresh
// order replaces whatever is cached. If it cannot be re-read, a newer empty
// entry blocks older copies until it expires.
func (c *CachedStore) UpdateStatus(ctx context.Context, userID, orderID string, to Status) error {
	err := c.Store.UpdateStatus(ctx, userID, orderID, to)
	if fresh, gerr := c.Store.Get(ctx, userID, orderID); gerr == nil {
		c.fill(ctx, fresh)
	} else {
		c.write(ctx, redisx.OrderKey(userID, orderID), time.Now().UnixMicro(), nil)
	}
	return err
}

func (c *CachedStore) fill(ctx context.Context, o Order) {
	b, err := json.Marshal(o)
	if err != nil {
		return
	}
	c.write(ctx, redisx.OrderKey(o.UserID, o.ID), o.UpdatedAt.UnixMicro(), b)
}

func (c *CachedStore) write(ctx context.Context, key string, ver int64, body []byte) {
	_ = cacheFillScript.Run(ctx, c.Redis, []string{key}, ver, body, c.ttl().Milliseconds()).Err()
}

func (c *CachedStore) ttl() time.Duration {
	if c.TTL > 0 {
		return c.TTL
	}
	return redisx.TTLOrderCache
}
