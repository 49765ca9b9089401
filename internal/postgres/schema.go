package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS product_variants (
		product_id       TEXT        NOT NULL,
		variant_key      TEXT        NOT NULL,
		unit_price_cents INTEGER     NOT NULL DEFAULT 0,
		stock_qty        INTEGER     NOT NULL CHECK (stock_qty >= 0),
		version          BIGINT      NOT NULL DEFAULT 1,
		updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (product_id, variant_key)
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id                   TEXT        PRIMARY KEY,
		user_id              TEXT        NOT NULL,
		items_subtotal_cents INTEGER     NOT NULL,
		discount_cents       INTEGER     NOT NULL,
		shipping_cents       INTEGER     NOT NULL,
		total_cents          INTEGER     NOT NULL,
		shipping_method      TEXT        NOT NULL DEFAULT '',
		payment_method       TEXT        NOT NULL DEFAULT '',
		status               TEXT        NOT NULL,
		created_at           TIMESTAMPTZ NOT NULL,
		updated_at           TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS orders_user_created_idx ON orders (user_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS order_items (
		order_id         TEXT    NOT NULL REFERENCES orders(id),
		line_no          INTEGER NOT NULL,
		product_id       TEXT    NOT NULL,
		variant_key      TEXT,
		unit_price_cents INTEGER NOT NULL,
		qty              INTEGER NOT NULL CHECK (qty > 0),
		name             TEXT    NOT NULL DEFAULT '',
		image_url        TEXT    NOT NULL DEFAULT '',
		PRIMARY KEY (order_id, line_no)
	)`,
}

// Migrate creates the tables the stores need. Statements are idempotent.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
