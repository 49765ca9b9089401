package orders

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validDraft() Draft {
	return Draft{
		Items: []LineItem{
			{ProductID: "p1", VariantKey: "M", UnitPriceCents: 1500, Quantity: 2, Name: "Tee"},
			{ProductID: "p2", UnitPriceCents: 500, Quantity: 1, Name: "Sticker"},
		},
		ItemsSubtotalCents: 3500,
		ShippingCents:      1000,
		TotalCents:         4500,
		ShippingMethod:     "standard",
		PaymentMethod:      "cod",
		PaymentAuthorized:  true,
	}
}

func TestDraftValidate(t *testing.T) {
	require.NoError(t, validDraft().Validate())

	cases := map[string]struct {
		mutate func(*Draft)
		field  string
	}{
		"no items":        {func(d *Draft) { d.Items = nil }, "items"},
		"zero quantity":   {func(d *Draft) { d.Items[1].Quantity = 0 }, "items[1].quantity"},
		"missing product": {func(d *Draft) { d.Items[0].ProductID = "" }, "items[0].product_id"},
		"negative price":  {func(d *Draft) { d.Items[0].UnitPriceCents = -1 }, "items[0].unit_price_cents"},
		"negative total":  {func(d *Draft) { d.TotalCents = -5 }, "total_cents"},
		"unpaid":          {func(d *Draft) { d.PaymentAuthorized = false }, "payment_authorized"},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			d := validDraft()
			c.mutate(&d)
			var ve *ValidationError
			require.True(t, errors.As(d.Validate(), &ve))
			assert.Equal(t, c.field, ve.Field)
		})
	}
}

func TestDraftOrderCopiesItems(t *testing.T) {
	d := validDraft()
	o := d.Order("u1")
	d.Items[0].Quantity = 99

	assert.Equal(t, "u1", o.UserID)
	assert.Equal(t, 2, o.Items[0].Quantity)
	assert.Equal(t, 4500, o.TotalCents)
	assert.True(t, o.Items[0].Tracked())
	assert.False(t, o.Items[1].Tracked())
}
