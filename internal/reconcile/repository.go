package reconcile

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/lib/pq"

	"github.com/nabis/inventory-core/internal/domain"
	"github.com/nabis/inventory-core/pkg/database"
)

// jsonMarshal marshals a metadata map to the string form lib/pq needs to
// bind against a jsonb column (a []byte argument is sent as bytea, which
// Postgres refuses to implicitly cast to json).
func jsonMarshal(m map[string]interface{}) (string, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Repository is the reconciliation engine's persistence boundary.
type Repository struct {
	db *database.DB
}

// NewRepository creates a reconciliation repository.
func NewRepository(db *database.DB) *Repository {
	return &Repository{db: db}
}

// GetSyncRequest fetches a sync request by id.
func (r *Repository) GetSyncRequest(ctx context.Context, id int64) (*domain.SyncRequest, error) {
	var sr domain.SyncRequest
	query := `
		SELECT id, requested_by, reason, batch_id, priority, status, created_at, updated_at, completed_at, error
		FROM sync_requests WHERE id = $1
	`
	if err := r.db.GetContext(ctx, &sr, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &sr, nil
}

// InsertSyncRequest creates a new PENDING sync request (used by the admin
// handler that enqueues the ForceWmsSync command).
func (r *Repository) InsertSyncRequest(ctx context.Context, sr *domain.SyncRequest) error {
	query := `
		INSERT INTO sync_requests (requested_by, reason, batch_id, priority, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`
	return r.db.QueryRowxContext(ctx, query, sr.RequestedBy, sr.Reason, sr.BatchID, sr.Priority, sr.Status).
		Scan(&sr.ID, &sr.CreatedAt, &sr.UpdatedAt)
}

// UpdateSyncRequestStatus transitions a sync request to a new status.
func (r *Repository) UpdateSyncRequestStatus(ctx context.Context, id int64, status string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sync_requests SET status = $2, updated_at = NOW() WHERE id = $1`,
		id, status,
	)
	return err
}

// CompleteSyncRequest transitions a sync request to DONE or FAILED,
// recording the completion time and, on failure, the error message.
func (r *Repository) CompleteSyncRequest(ctx context.Context, id int64, status string, errMsg *string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sync_requests SET status = $2, completed_at = NOW(), error = $3, updated_at = NOW() WHERE id = $1`,
		id, status, errMsg,
	)
	return err
}

// ResolveBatchByExternalID finds the local batch id matching a WMS batch
// identifier. A nil result means the WMS-reported batch has no local
// counterpart (an unmatched WMS batch, per spec.md §4.4 step 3).
func (r *Repository) ResolveBatchByExternalID(ctx context.Context, wmsBatchID string) (*int64, error) {
	var id int64
	err := r.db.GetContext(ctx, &id, `SELECT id FROM batches WHERE external_batch_id = $1`, wmsBatchID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &id, nil
}

// GetBatch fetches a single batch without locking it.
func (r *Repository) GetBatch(ctx context.Context, id int64) (*domain.Batch, error) {
	var b domain.Batch
	query := `
		SELECT id, sku_id, external_batch_id, lot_number, expires_at,
		       total_quantity, unallocatable_quantity, available_quantity, version, updated_at
		FROM batches WHERE id = $1
	`
	if err := r.db.GetContext(ctx, &b, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &b, nil
}

// LockBatches acquires an exclusive row lock on every batch in ids, in
// ascending id order — the same global lock discipline
// internal/reservation.Repository.LockBatches uses, so reconciliation and
// Reserve/Release never deadlock against each other.
func (r *Repository) LockBatches(ctx context.Context, ids []int64) (map[int64]*domain.Batch, error) {
	if len(ids) == 0 {
		return map[int64]*domain.Batch{}, nil
	}
	query := `
		SELECT id, sku_id, external_batch_id, lot_number, expires_at,
		       total_quantity, unallocatable_quantity, available_quantity, version, updated_at
		FROM batches
		WHERE id = ANY($1)
		ORDER BY id ASC
		FOR UPDATE
	`
	var rows []domain.Batch
	if err := r.db.SelectContext(ctx, &rows, query, pq.Array(ids)); err != nil {
		return nil, err
	}
	out := make(map[int64]*domain.Batch, len(rows))
	for i := range rows {
		out[rows[i].ID] = &rows[i]
	}
	return out, nil
}

// UpdateBatchAvailable sets available_quantity directly to newAvailable
// (reconciliation sets an absolute value from the WMS snapshot, unlike
// Reserve/Release's relative deltas).
func (r *Repository) UpdateBatchAvailable(ctx context.Context, batchID int64, newAvailable int) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE batches SET available_quantity = $2, version = version + 1, updated_at = NOW() WHERE id = $1`,
		batchID, newAvailable,
	)
	return err
}

// InsertWmsSnapshot appends an audit row for a WMS-reported quantity.
func (r *Repository) InsertWmsSnapshot(ctx context.Context, s *domain.WmsSnapshot) error {
	query := `
		INSERT INTO wms_snapshots (wms_batch_id, batch_id, reported_orderable, reported_unallocatable, reported_at, raw_payload)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`
	return r.db.QueryRowxContext(ctx, query,
		s.WmsBatchID, s.BatchID, s.ReportedOrderable, s.ReportedUnallocatable, s.ReportedAt, string(s.RawPayload),
	).Scan(&s.ID, &s.CreatedAt)
}

// InsertLedgerEntry appends an immutable ledger row.
func (r *Repository) InsertLedgerEntry(ctx context.Context, e *domain.LedgerEntry) error {
	query := `
		INSERT INTO ledger_entries (batch_id, type, quantity_delta, source, reference_id, metadata)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`
	var metadata interface{}
	if e.Metadata != nil {
		b, err := jsonMarshal(e.Metadata)
		if err != nil {
			return err
		}
		metadata = b
	}
	return r.db.QueryRowxContext(ctx, query, e.BatchID, e.Type, e.QuantityDelta, e.Source, e.ReferenceID, metadata).
		Scan(&e.ID, &e.CreatedAt)
}

// InsertOutboxEvent writes a PENDING outbox row in the same transaction as
// the batch/ledger writes it announces.
func (r *Repository) InsertOutboxEvent(ctx context.Context, e *domain.OutboxEvent) error {
	query := `
		INSERT INTO outbox_events (type, payload, status)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at
	`
	return r.db.QueryRowxContext(ctx, query, e.Type, string(e.Payload), e.Status).
		Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
}

// GetSyncState fetches the id=1 singleton sync state row.
func (r *Repository) GetSyncState(ctx context.Context) (*domain.SyncState, error) {
	var s domain.SyncState
	err := r.db.GetContext(ctx, &s,
		`SELECT id, last_full_sync_at, last_incremental_token FROM sync_state WHERE id = 1`)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// UpdateSyncState updates the singleton's full-sync timestamp and/or
// incremental token. A nil argument leaves that column unchanged.
func (r *Repository) UpdateSyncState(ctx context.Context, lastFullSyncAt *time.Time, lastIncrementalToken *string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE sync_state
		SET last_full_sync_at = COALESCE($1, last_full_sync_at),
		    last_incremental_token = COALESCE($2, last_incremental_token)
		WHERE id = 1
	`, lastFullSyncAt, lastIncrementalToken)
	return err
}
