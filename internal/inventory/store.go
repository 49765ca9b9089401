package inventory

import (
	"context"
	"sync"

	"github.com/ariefcatur/go-storefront-orders/internal/orders"
)

// Snapshot is one read of a variant counter. Version changes on every write.
type Snapshot struct {
	Qty     int
	Version int64
}

// Store is the per-key atomic primitive the ledger is built on. There is no
// multi-key transaction; CompareAndSwap only touches one variant.
type Store interface {
	// Load returns *orders.NotFoundError for unknown variants.
	Load(ctx context.Context, productID, variantKey string) (Snapshot, error)
	// CompareAndSwap writes newQty only if the stored version still equals
	// expected. swapped=false means another writer got there first.
	CompareAndSwap(ctx context.Context, productID, variantKey string, expected int64, newQty int) (swapped bool, err error)
}

// Seeder is implemented by stores that accept catalog stock levels.
type Seeder interface {
	Put(ctx context.Context, productID, variantKey string, qty int) error
}

type variantKey struct{ product, variant string }

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu   sync.Mutex
	rows map[variantKey]Snapshot
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rows: map[variantKey]Snapshot{}}
}

func (s *MemoryStore) Put(_ context.Context, productID, variant string, qty int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := variantKey{productID, variant}
	cur := s.rows[k]
	s.rows[k] = Snapshot{Qty: qty, Version: cur.Version + 1}
	return nil
}

func (s *MemoryStore) Load(ctx context.Context, productID, variant string) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.rows[variantKey{productID, variant}]
	if !ok {
		return Snapshot{}, notFound(productID, variant)
	}
	return snap, nil
}

func (s *MemoryStore) CompareAndSwap(ctx context.Context, productID, variant string, expected int64, newQty int) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	k := variantKey{productID, variant}
	cur, ok := s.rows[k]
	if !ok {
		return false, notFound(productID, variant)
	}
	if cur.Version != expected {
		return false, nil
	}
	s.rows[k] = Snapshot{Qty: newQty, Version: cur.Version + 1}
	return true, nil
}

func notFound(productID, variant string) error {
	return &orders.NotFoundError{Resource: "variant", ID: productID + "/" + variant}
}
