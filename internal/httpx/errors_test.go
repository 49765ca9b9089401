package httpx

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ariefcatur/go-storefront-orders/internal/orders"
)

func TestWriteErrorStatus(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{&orders.ValidationError{Field: "items", Reason: "empty"}, http.StatusBadRequest},
		{&orders.NotFoundError{Resource: "order", ID: "x"}, http.StatusNotFound},
		{&orders.InsufficientStockError{Available: 1}, http.StatusConflict},
		{&orders.InvalidTransitionError{From: orders.StatusShipped, To: orders.StatusCancelled}, http.StatusConflict},
		{&orders.ConflictExhaustedError{Attempts: 5}, http.StatusServiceUnavailable},
		{&orders.PersistenceError{Op: "create order", Err: errors.New("pq: secret detail")}, http.StatusInternalServerError},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		rec := httptest.NewRecorder()
		writeError(rec, c.err)
		assert.Equal(t, c.code, rec.Code, "%v", c.err)
		assert.Contains(t, rec.Body.String(), `"kind":"`+orders.KindOf(c.err)+`"`)
	}
}

func TestWriteErrorHidesStorageDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, &orders.PersistenceError{Op: "create order", Err: errors.New("pq: secret detail")})
	assert.NotContains(t, rec.Body.String(), "secret")
}
