package inventory

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ariefcatur/go-storefront-orders/internal/orders"
)

// PostgresStore keeps one product_variants row per SKU. The version column
// carries the optimistic lock; no row lock is held between Load and CAS.
type PostgresStore struct{ DB *pgxpool.Pool }

var _ Store = (*PostgresStore)(nil)

func (s *PostgresStore) Load(ctx context.Context, productID, variant string) (Snapshot, error) {
	var snap Snapshot
	err := s.DB.QueryRow(ctx, `
		SELECT stock_qty, version FROM product_variants
		WHERE product_id=$1 AND variant_key=$2`, productID, variant).Scan(&snap.Qty, &snap.Version)
	if errors.Is(err, pgx.ErrNoRows) {
		return Snapshot{}, notFound(productID, variant)
	}
	if err != nil {
		return Snapshot{}, &orders.PersistenceError{Op: "load stock", Err: err}
	}
	return snap, nil
}

func (s *PostgresStore) CompareAndSwap(ctx context.Context, productID, variant string, expected int64, newQty int) (bool, error) {
	ct, err := s.DB.Exec(ctx, `
		UPDATE product_variants
		SET stock_qty=$4, version=version+1, updated_at=NOW()
		WHERE product_id=$1 AND variant_key=$2 AND version=$3`,
		productID, variant, expected, newQty)
	if err != nil {
		return false, &orders.PersistenceError{Op: "update stock", Err: err}
	}
	return ct.RowsAffected() == 1, nil
}

func (s *PostgresStore) Put(ctx context.Context, productID, variant string, qty int) error {
	_, err := s.DB.Exec(ctx, `
		INSERT INTO product_variants(product_id, variant_key, stock_qty)
		VALUES ($1,$2,$3)
		ON CONFLICT (product_id, variant_key)
		DO UPDATE SET stock_qty=EXCLUDED.stock_qty, version=product_variants.version+1, updated_at=NOW()`,
		productID, variant, qty)
	if err != nil {
		return &orders.PersistenceError{Op: "seed stock", Err: err}
	}
	return nil
}
