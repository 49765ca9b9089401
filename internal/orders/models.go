package orders

import "time"

// Variant is the catalog view of a purchasable SKU. Only StockQty is owned by
// this service, and only the inventory ledger writes it.
type Variant struct {
	ProductID      string `json:"product_id"`
	VariantKey     string `json:"variant_key"`
	UnitPriceCents int    `json:"unit_price_cents,omitempty"`
	StockQty       int    `json:"stock_qty"`
}

// LineItem is a snapshot taken when the order is placed. An empty VariantKey
// marks a legacy product whose stock is not tracked.
type LineItem struct {
	ProductID      string `json:"product_id"`
	VariantKey     string `json:"variant_key,omitempty"`
	UnitPriceCents int    `json:"unit_price_cents"`
	Quantity       int    `json:"quantity"`
	Name           string `json:"name"`
	ImageURL       string `json:"image_url,omitempty"`
}

func (li LineItem) Tracked() bool { return li.VariantKey != "" }

type Order struct {
	ID                 string     `json:"id"`
	UserID             string     `json:"user_id"`
	Items              []LineItem `json:"items"`
	ItemsSubtotalCents int        `json:"items_subtotal_cents"`
	DiscountCents      int        `json:"discount_cents"`
	ShippingCents      int        `json:"shipping_cents"`
	TotalCents         int        `json:"total_cents"`
	ShippingMethod     string     `json:"shipping_method"`
	PaymentMethod      string     `json:"payment_method"`
	Status             Status     `json:"status"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// Draft is what the checkout layer submits. Prices, discount and total are
// computed upstream; PaymentAuthorized is true for cash on delivery.
type Draft struct {
	Items              []LineItem `json:"items"`
	ItemsSubtotalCents int        `json:"items_subtotal_cents"`
	DiscountCents      int        `json:"discount_cents"`
	ShippingCents      int        `json:"shipping_cents"`
	TotalCents         int        `json:"total_cents"`
	ShippingMethod     string     `json:"shipping_method"`
	PaymentMethod      string     `json:"payment_method"`
	PaymentAuthorized  bool       `json:"payment_authorized"`
}

// Order builds the record handed to the store. Items are copied so later
// edits to the draft slice cannot reach the persisted order.
func (d Draft) Order(userID string) Order {
	items := make([]LineItem, len(d.Items))
	copy(items, d.Items)
	return Order{
		UserID:             userID,
		Items:              items,
		ItemsSubtotalCents: d.ItemsSubtotalCents,
		DiscountCents:      d.DiscountCents,
		ShippingCents:      d.ShippingCents,
		TotalCents:         d.TotalCents,
		ShippingMethod:     d.ShippingMethod,
		PaymentMethod:      d.PaymentMethod,
	}
}

// Validate rejects drafts before any side effect happens.
func (d Draft) Validate() error {
	if len(d.Items) == 0 {
		return &ValidationError{Field: "items", Reason: "order must have at least one item"}
	}
	for i, it := range d.Items {
		if it.ProductID == "" {
			return &ValidationError{Field: itemField(i, "product_id"), Reason: "missing product id"}
		}
		if it.Quantity <= 0 {
			return &ValidationError{Field: itemField(i, "quantity"), Reason: "quantity must be positive"}
		}
		if it.UnitPriceCents < 0 {
			return &ValidationError{Field: itemField(i, "unit_price_cents"), Reason: "price must not be negative"}
		}
	}
	switch {
	case d.ItemsSubtotalCents < 0:
		return &ValidationError{Field: "items_subtotal_cents", Reason: "must not be negative"}
	case d.DiscountCents < 0:
		return &ValidationError{Field: "discount_cents", Reason: "must not be negative"}
	case d.ShippingCents < 0:
		return &ValidationError{Field: "shipping_cents", Reason: "must not be negative"}
	case d.TotalCents < 0:
		return &ValidationError{Field: "total_cents", Reason: "must not be negative"}
	case !d.PaymentAuthorized:
		return &ValidationError{Field: "payment_authorized", Reason: "payment not authorized"}
	}
	return nil
}
