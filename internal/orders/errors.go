package orders

import (
	"errors"
	"fmt"
)

// Kinds are stable identifiers surfaced to API clients.
const (
	KindValidation        = "validation"
	KindNotFound          = "not_found"
	KindInsufficientStock = "insufficient_stock"
	KindInvalidTransition = "invalid_transition"
	KindPersistence       = "persistence"
	KindConflictExhausted = "conflict_exhausted"
	KindInternal          = "internal"
)

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NotFoundError covers both missing variants and missing orders.
type NotFoundError struct {
	Resource string // "variant" | "order"
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

type InsufficientStockError struct {
	ProductID  string
	VariantKey string
	Requested  int
	Available  int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s/%s: requested %d, available %d",
		e.ProductID, e.VariantKey, e.Requested, e.Available)
}

// ConflictExhaustedError means every optimistic write lost its race. It is
// fatal for the calling operation and does not mean stock ran out.
type ConflictExhaustedError struct {
	ProductID  string
	VariantKey string
	Attempts   int
}

func (e *ConflictExhaustedError) Error() string {
	return fmt.Sprintf("stock update for %s/%s conflicted %d times", e.ProductID, e.VariantKey, e.Attempts)
}

type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	if e.To == StatusCancelled {
		return fmt.Sprintf("cannot cancel order in status %s: order already in fulfillment or already terminal", e.From)
	}
	return fmt.Sprintf("invalid status transition %s -> %s", e.From, e.To)
}

type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// LineItemError pins a reservation failure to the line that caused it.
type LineItemError struct {
	Index      int
	ProductID  string
	VariantKey string
	Name       string
	Err        error
}

func (e *LineItemError) Error() string {
	label := e.Name
	if label == "" {
		label = e.ProductID
	}
	return fmt.Sprintf("line %d (%s): %v", e.Index, label, e.Err)
}

func (e *LineItemError) Unwrap() error { return e.Err }

// KindOf maps any error to its stable kind. Unknown errors are internal.
func KindOf(err error) string {
	var (
		validation *ValidationError
		notFound   *NotFoundError
		stock      *InsufficientStockError
		conflict   *ConflictExhaustedError
		transition *InvalidTransitionError
		persist    *PersistenceError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &validation):
		return KindValidation
	case errors.As(err, &stock):
		return KindInsufficientStock
	case errors.As(err, &conflict):
		return KindConflictExhausted
	case errors.As(err, &transition):
		return KindInvalidTransition
	case errors.As(err, &persist):
		return KindPersistence
	case errors.As(err, &notFound):
		return KindNotFound
	default:
		return KindInternal
	}
}

func itemField(i int, name string) string {
	return fmt.Sprintf("items[%d].%s", i, name)
}
