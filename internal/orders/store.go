package orders

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store persists orders scoped per user. Implementations must check status
// edges with CanTransition in the same atomic step as the write.
type Store interface {
	Create(ctx context.Context, userID string, o Order) (string, error)
	Get(ctx context.Context, userID, orderID string) (Order, error)
	ListByUser(ctx context.Context, userID string) ([]Order, error)
	UpdateStatus(ctx context.Context, userID, orderID string, to Status) error
}

// MemoryStore keeps orders in process memory. Used by tests and local runs.
type MemoryStore struct {
	mu     sync.RWMutex
	orders map[string]Order // by order id
	now    func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{orders: map[string]Order{}, now: time.Now}
}

func (s *MemoryStore) Create(ctx context.Context, userID string, o Order) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", &PersistenceError{Op: "create order", Err: err}
	}
	now := s.now().UTC()
	o.ID = uuid.NewString()
	o.UserID = userID
	o.Status = StatusPending
	o.CreatedAt, o.UpdatedAt = now, now
	o.Items = cloneItems(o.Items)

	s.mu.Lock()
	s.orders[o.ID] = o
	s.mu.Unlock()
	return o.ID, nil
}

func (s *MemoryStore) Get(_ context.Context, userID, orderID string) (Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[orderID]
	if !ok || o.UserID != userID {
		return Order{}, &NotFoundError{Resource: "order", ID: orderID}
	}
	o.Items = cloneItems(o.Items)
	return o, nil
}

func (s *MemoryStore) ListByUser(_ context.Context, userID string) ([]Order, error) {
	s.mu.RLock()
	out := make([]Order, 0)
	for _, o := range s.orders {
		if o.UserID == userID {
			o.Items = cloneItems(o.Items)
			out = append(out, o)
		}
	}
	s.mu.RUnlock()
	SortNewestFirst(out)
	return out, nil
}

func (s *MemoryStore) UpdateStatus(_ context.Context, userID, orderID string, to Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok || o.UserID != userID {
		return &NotFoundError{Resource: "order", ID: orderID}
	}
	if err := Transition(o.Status, to); err != nil {
		return err
	}
	o.Status = to
	o.UpdatedAt = s.now().UTC()
	s.orders[orderID] = o
	return nil
}

func SortNewestFirst(os []Order) {
	sort.SliceStable(os, func(i, j int) bool {
		return os[i].CreatedAt.After(os[j].CreatedAt)
	})
}

func cloneItems(items []LineItem) []LineItem {
	if items == nil {
		return nil
	}
	out := make([]LineItem, len(items))
	copy(out, items)
	return out
}
