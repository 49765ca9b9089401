package orders

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repo is the Postgres-backed Store. Orders and their items are written in
// one transaction; status changes lock the order row first.
type Repo struct{ DB *pgxpool.Pool }

var _ Store = (*Repo)(nil)

func (r *Repo) Create(ctx context.Context, userID string, o Order) (string, error) {
	orderID := uuid.NewString()
	now := time.Now().UTC()

	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return "", &PersistenceError{Op: "create order", Err: err}
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO orders(id, user_id, items_subtotal_cents, discount_cents, shipping_cents,
		                   total_cents, shipping_method, payment_method, status, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$10)`,
		orderID, userID, o.ItemsSubtotalCents, o.DiscountCents, o.ShippingCents,
		o.TotalCents, o.ShippingMethod, o.PaymentMethod, string(StatusPending), now)
	if err != nil {
		return "", &PersistenceError{Op: "create order", Err: err}
	}

	batch := &pgx.Batch{}
	for i, it := range o.Items {
		batch.Queue(`
			INSERT INTO order_items(order_id, line_no, product_id, variant_key, unit_price_cents, qty, name, image_url)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			orderID, i, it.ProductID, nullIfEmpty(it.VariantKey), it.UnitPriceCents, it.Quantity, it.Name, it.ImageURL)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return "", &PersistenceError{Op: "create order items", Err: err}
	}

	if err := tx.Commit(ctx); err != nil {
		return "", &PersistenceError{Op: "commit order", Err: err}
	}
	return orderID, nil
}

const orderColumns = `id, user_id, items_subtotal_cents, discount_cents, shipping_cents, total_cents,
	shipping_method, payment_method, status, created_at, updated_at`

func scanOrder(row pgx.Row) (Order, error) {
	var (
		o      Order
		status string
	)
	err := row.Scan(&o.ID, &o.UserID, &o.ItemsSubtotalCents, &o.DiscountCents, &o.ShippingCents,
		&o.TotalCents, &o.ShippingMethod, &o.PaymentMethod, &status, &o.CreatedAt, &o.UpdatedAt)
	o.Status = Status(status)
	return o, err
}

func (r *Repo) Get(ctx context.Context, userID, orderID string) (Order, error) {
	o, err := scanOrder(r.DB.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id=$1 AND user_id=$2`, orderID, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, &NotFoundError{Resource: "order", ID: orderID}
	}
	if err != nil {
		return Order{}, &PersistenceError{Op: "get order", Err: err}
	}

	items, err := r.items(ctx, []string{orderID})
	if err != nil {
		return Order{}, err
	}
	o.Items = items[orderID]
	return o, nil
}

func (r *Repo) ListByUser(ctx context.Context, userID string) ([]Order, error) {
	rows, err := r.DB.Query(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE user_id=$1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, &PersistenceError{Op: "list orders", Err: err}
	}
	defer rows.Close()

	out := make([]Order, 0)
	ids := make([]string, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, &PersistenceError{Op: "scan order", Err: err}
		}
		out = append(out, o)
		ids = append(ids, o.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, &PersistenceError{Op: "list orders", Err: err}
	}
	if len(ids) == 0 {
		return out, nil
	}

	items, err := r.items(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Items = items[out[i].ID]
	}
	return out, nil
}

func (r *Repo) items(ctx context.Context, orderIDs []string) (map[string][]LineItem, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT order_id, product_id, variant_key, unit_price_cents, qty, name, image_url
		FROM order_items WHERE order_id = ANY($1) ORDER BY order_id, line_no`, orderIDs)
	if err != nil {
		return nil, &PersistenceError{Op: "load order items", Err: err}
	}
	defer rows.Close()

	out := make(map[string][]LineItem, len(orderIDs))
	for rows.Next() {
		var (
			orderID string
			variant *string
			it      LineItem
		)
		if err := rows.Scan(&orderID, &it.ProductID, &variant, &it.UnitPriceCents, &it.Quantity, &it.Name, &it.ImageURL); err != nil {
			return nil, &PersistenceError{Op: "scan order item", Err: err}
		}
		if variant != nil {
			it.VariantKey = *variant
		}
		out[orderID] = append(out[orderID], it)
	}
	if err := rows.Err(); err != nil {
		return nil, &PersistenceError{Op: "load order items", Err: err}
	}
	return out, nil
}

func (r *Repo) UpdateStatus(ctx context.Context, userID, orderID string, to Status) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return &PersistenceError{Op: "update status", Err: err}
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var current string
	err = tx.QueryRow(ctx,
		`SELECT status FROM orders WHERE id=$1 AND user_id=$2 FOR UPDATE`, orderID, userID).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return &NotFoundError{Resource: "order", ID: orderID}
	}
	if err != nil {
		return &PersistenceError{Op: "lock order", Err: err}
	}
	if err := Transition(Status(current), to); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx,
		`UPDATE orders SET status=$2, updated_at=NOW() WHERE id=$1`, orderID, string(to)); err != nil {
		return &PersistenceError{Op: "update status", Err: err}
	}
	if err := tx.Commit(ctx); err != nil {
		return &PersistenceError{Op: "commit status", Err: err}
	}
	return nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
