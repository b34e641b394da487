package reservation

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/lib/pq"

	"github.com/nabis/inventory-core/internal/domain"
	"github.com/nabis/inventory-core/pkg/database"
)

// toJSONB marshals a metadata map to the string form lib/pq needs to bind
// against a jsonb column (a []byte argument is sent as bytea, which
// Postgres refuses to implicitly cast to json).
func toJSONB(m map[string]interface{}) string {
	b, err := json.Marshal(m)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// Repository is the reservation engine's persistence boundary. Every
// method is context-aware and participates in whatever transaction the
// caller's context carries via database.DB.Transaction.
type Repository struct {
	db *database.DB
}

// NewRepository creates a reservation repository.
func NewRepository(db *database.DB) *Repository {
	return &Repository{db: db}
}

// LockBatches acquires an exclusive row lock on every batch in ids, in
// ascending id order, and returns them keyed by id. Every writer touching
// batch rows must go through this method to preserve the deadlock-free
// global lock order.
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

// UpdateBatchAvailable sets the batch's available_quantity and bumps its
// version and updated_at. Constraint violations (available > total,
// negative quantities) surface as a *pq.Error, returned to the caller
// unmapped.
func (r *Repository) UpdateBatchAvailable(ctx context.Context, batchID int64, newAvailable int) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE batches SET available_quantity = $2, version = version + 1, updated_at = NOW() WHERE id = $1`,
		batchID, newAvailable,
	)
	return err
}

// GetReservationsByOrder fetches every reservation row for orderId,
// regardless of status, for the idempotency probe.
func (r *Repository) GetReservationsByOrder(ctx context.Context, orderID string) ([]domain.Reservation, error) {
	var rows []domain.Reservation
	query := `
		SELECT id, order_id, batch_id, quantity, status, created_at, updated_at, expires_at
		FROM reservations WHERE order_id = $1
	`
	if err := r.db.SelectContext(ctx, &rows, query, orderID); err != nil {
		return nil, err
	}
	return rows, nil
}

// GetPendingReservationsForUpdate locks and fetches every PENDING
// reservation for orderId, ordered by batch_id ascending.
func (r *Repository) GetPendingReservationsForUpdate(ctx context.Context, orderID string) ([]domain.Reservation, error) {
	var rows []domain.Reservation
	query := `
		SELECT id, order_id, batch_id, quantity, status, created_at, updated_at, expires_at
		FROM reservations
		WHERE order_id = $1 AND status = $2
		ORDER BY batch_id ASC
		FOR UPDATE
	`
	if err := r.db.SelectContext(ctx, &rows, query, orderID, domain.ReservationPending); err != nil {
		return nil, err
	}
	return rows, nil
}

// InsertReservation inserts a new PENDING reservation row.
func (r *Repository) InsertReservation(ctx context.Context, res *domain.Reservation) error {
	query := `
		INSERT INTO reservations (order_id, batch_id, quantity, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`
	return r.db.QueryRowxContext(ctx, query, res.OrderID, res.BatchID, res.Quantity, res.Status).
		Scan(&res.ID, &res.CreatedAt, &res.UpdatedAt)
}

// UpdateReservationStatus transitions a reservation to a new status.
func (r *Repository) UpdateReservationStatus(ctx context.Context, id int64, status string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE reservations SET status = $2, updated_at = NOW() WHERE id = $1`,
		id, status,
	)
	return err
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
		metadata = toJSONB(e.Metadata)
	}
	return r.db.QueryRowxContext(ctx, query, e.BatchID, e.Type, e.QuantityDelta, e.Source, e.ReferenceID, metadata).
		Scan(&e.ID, &e.CreatedAt)
}

// InsertOutboxEvent writes a PENDING outbox row in the same transaction as
// the business state change it announces.
func (r *Repository) InsertOutboxEvent(ctx context.Context, e *domain.OutboxEvent) error {
	query := `
		INSERT INTO outbox_events (type, payload, status)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at
	`
	return r.db.QueryRowxContext(ctx, query, e.Type, string(e.Payload), e.Status).
		Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
}
