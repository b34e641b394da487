package wmsoutbound

import (
	"context"
	"database/sql"

	"github.com/nabis/inventory-core/pkg/database"
)

// Repository is the WMS outbound worker's persistence boundary: it only
// ever reads a batch's externalBatchId (read-only, per spec) and appends
// an audit ledger entry — it never touches available_quantity.
type Repository struct {
	db *database.DB
}

// NewRepository creates a WMS outbound worker repository.
func NewRepository(db *database.DB) *Repository {
	return &Repository{db: db}
}

// GetExternalBatchID looks up a batch's external WMS identifier without
// locking the row.
func (r *Repository) GetExternalBatchID(ctx context.Context, batchID int64) (*string, error) {
	var externalID sql.NullString
	err := r.db.GetContext(ctx, &externalID, `SELECT external_batch_id FROM batches WHERE id = $1`, batchID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	if !externalID.Valid {
		return nil, nil
	}
	return &externalID.String, nil
}

// InsertAuditEntry appends a zero-delta ADJUSTMENT/WMS_OUTBOUND ledger row
// recording that a movement was mirrored into the WMS. metadata is a
// JSON-encoded object (e.g. {"action":"allocate"}); it is passed as a
// string since a []byte argument would bind as bytea, which Postgres
// refuses to implicitly cast to the jsonb column.
func (r *Repository) InsertAuditEntry(ctx context.Context, batchID int64, orderID string, metadata string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO ledger_entries (batch_id, type, quantity_delta, source, reference_id, metadata)
		VALUES ($1, 'ADJUSTMENT', 0, 'WMS_OUTBOUND', $2, $3)
	`, batchID, orderID, metadata)
	return err
}
