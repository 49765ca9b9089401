package orders

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	allowed := [][2]Status{
		{StatusPending, StatusConfirmed},
		{StatusPending, StatusCancelled},
		{StatusConfirmed, StatusProcessing},
		{StatusConfirmed, StatusCancelled},
		{StatusProcessing, StatusShipped},
		{StatusShipped, StatusDelivered},
	}
	for _, e := range allowed {
		assert.True(t, CanTransition(e[0], e[1]), "%s -> %s", e[0], e[1])
	}

	denied := [][2]Status{
		{StatusPending, StatusShipped},
		{StatusProcessing, StatusCancelled},
		{StatusShipped, StatusCancelled},
		{StatusDelivered, StatusCancelled},
		{StatusCancelled, StatusPending},
		{StatusCancelled, StatusCancelled},
		{StatusDelivered, StatusDelivered},
		{Status("bogus"), StatusConfirmed},
	}
	for _, e := range denied {
		assert.False(t, CanTransition(e[0], e[1]), "%s -> %s", e[0], e[1])
	}
}

func TestStatusPredicates(t *testing.T) {
	assert.True(t, StatusDelivered.Terminal())
	assert.True(t, StatusCancelled.Terminal())
	assert.False(t, StatusShipped.Terminal())
	assert.False(t, Status("bogus").Terminal())

	assert.True(t, StatusPending.Cancellable())
	assert.True(t, StatusConfirmed.Cancellable())
	assert.False(t, StatusProcessing.Cancellable())

	assert.True(t, StatusShipped.Valid())
	assert.False(t, Status("").Valid())
}

func TestTransitionError(t *testing.T) {
	require.NoError(t, Transition(StatusPending, StatusConfirmed))

	err := Transition(StatusShipped, StatusCancelled)
	var te *InvalidTransitionError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, StatusShipped, te.From)
	assert.Contains(t, err.Error(), "already in fulfillment")
	assert.Equal(t, KindInvalidTransition, KindOf(err))
}
