package orders

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	cases := []struct {
		err  error
		kind string
	}{
		{nil, ""},
		{&ValidationError{Field: "items", Reason: "empty"}, KindValidation},
		{&NotFoundError{Resource: "order", ID: "o1"}, KindNotFound},
		{&InsufficientStockError{ProductID: "p", VariantKey: "v", Requested: 3, Available: 1}, KindInsufficientStock},
		{&ConflictExhaustedError{ProductID: "p", VariantKey: "v", Attempts: 5}, KindConflictExhausted},
		{&InvalidTransitionError{From: StatusPending, To: StatusShipped}, KindInvalidTransition},
		{&PersistenceError{Op: "create order", Err: errors.New("boom")}, KindPersistence},
		{context.DeadlineExceeded, KindInternal},
	}
	for _, c := range cases {
		assert.Equal(t, c.kind, KindOf(c.err), "%v", c.err)
	}
}

func TestKindOfSeesThroughWrapping(t *testing.T) {
	inner := &InsufficientStockError{ProductID: "p1", VariantKey: "M", Requested: 2, Available: 0}
	err := fmt.Errorf("reserve: %w", &LineItemError{Index: 1, ProductID: "p1", VariantKey: "M", Name: "Tee", Err: inner})

	assert.Equal(t, KindInsufficientStock, KindOf(err))
	assert.Contains(t, err.Error(), "line 1 (Tee)")

	var stock *InsufficientStockError
	assert.True(t, errors.As(err, &stock))
	assert.Equal(t, 0, stock.Available)
}

func TestPersistenceWrappingNotFoundStaysPersistence(t *testing.T) {
	err := &PersistenceError{Op: "load", Err: &NotFoundError{Resource: "order", ID: "x"}}
	assert.Equal(t, KindPersistence, KindOf(err))
}
