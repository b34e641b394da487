// Package query implements the Query Surface (C5): a single read-only
// repository method backing GET /inventory/:sku. It takes no locks and
// runs outside any transaction, so it only ever sees the last committed
// snapshot of each batch — safe to run concurrently with every writer.
package query

import (
	"context"
	"database/sql"

	"github.com/nabis/inventory-core/internal/domain"
	"github.com/nabis/inventory-core/pkg/database"
)

// Repository is the query surface's persistence boundary.
type Repository struct {
	db *database.DB
}

// NewRepository creates a query repository.
func NewRepository(db *database.DB) *Repository {
	return &Repository{db: db}
}

// GetSKUByCode looks up a SKU's id by its code, returning nil if absent.
func (r *Repository) GetSKUByCode(ctx context.Context, code string) (*domain.SKU, error) {
	var s domain.SKU
	err := r.db.GetContext(ctx, &s, `SELECT id, code, name, created_at FROM skus WHERE code = $1`, code)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// GetAvailableInventory joins SKU to Batch and returns every batch for
// skuCode ordered by expiresAt ascending (nulls last), then id ascending,
// per spec.md §4.5. No locks are taken.
func (r *Repository) GetAvailableInventory(ctx context.Context, skuCode string) ([]domain.BatchAvailability, error) {
	query := `
		SELECT b.id, b.external_batch_id, b.lot_number, b.expires_at,
		       b.available_quantity, b.total_quantity
		FROM batches b
		JOIN skus s ON s.id = b.sku_id
		WHERE s.code = $1
		ORDER BY b.expires_at ASC NULLS LAST, b.id ASC
	`
	var rows []domain.BatchAvailability
	if err := r.db.SelectContext(ctx, &rows, query, skuCode); err != nil {
		return nil, err
	}
	return rows, nil
}
