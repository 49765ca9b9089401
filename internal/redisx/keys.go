package redisx

import (
	"fmt"
	"time"
)

const (
	// Idempotent placement: idem:order:create:{user_id}:{key} -> order_id
	KeyIdemOrderCreate = "idem:order:create:%s:%s"

	// Order read cache: order:{user_id}:{order_id} -> hash {ver, body}
	KeyOrder = "order:%s:%s"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"

	// Stock counter hash {qty, ver}: stock:{product_id}:{variant_key}
	KeyStock = "stock:{%s}:%s"
)

var (
	TTLIdempotency = 24 * time.Hour
	// held while a placement is in flight; outlives any request timeout
	TTLIdempotencyClaim = time.Minute
	TTLOrderCache       = 5 * time.Minute
	TTLDedup            = 48 * time.Hour
)

func IdemKey(userID, key string) string         { return fmt.Sprintf(KeyIdemOrderCreate, userID, key) }
func OrderKey(userID, orderID string) string    { return fmt.Sprintf(KeyOrder, userID, orderID) }
func DedupKey(service, eventID string) string   { return fmt.Sprintf(KeyDedup, service, eventID) }
func StockKey(productID, variant string) string { return fmt.Sprintf(KeyStock, productID, variant) }
