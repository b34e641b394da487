package outbox

import (
	"context"

	"github.com/nabis/inventory-core/internal/domain"
	"github.com/nabis/inventory-core/pkg/database"
)

// Repository is the outbox dispatcher's persistence boundary.
type Repository struct {
	db *database.DB
}

// NewRepository creates an outbox repository.
func NewRepository(db *database.DB) *Repository {
	return &Repository{db: db}
}

// SelectPendingForUpdate selects up to batchSize PENDING events ordered by
// createdAt, using FOR UPDATE SKIP LOCKED so multiple dispatcher instances
// can drain the table concurrently without double-delivering a row.
func (r *Repository) SelectPendingForUpdate(ctx context.Context, batchSize int) ([]domain.OutboxEvent, error) {
	var rows []domain.OutboxEvent
	query := `
		SELECT id, type, payload, status, retry_count, error, created_at, updated_at
		FROM outbox_events
		WHERE status = $1
		ORDER BY created_at ASC
		FOR UPDATE SKIP LOCKED
		LIMIT $2
	`
	if err := r.db.SelectContext(ctx, &rows, query, domain.OutboxPending, batchSize); err != nil {
		return nil, err
	}
	return rows, nil
}

// MarkSent transitions an outbox row to SENT, its terminal success state.
func (r *Repository) MarkSent(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE outbox_events SET status = $2, updated_at = NOW() WHERE id = $1`,
		id, domain.OutboxSent,
	)
	return err
}

// MarkFailed transitions an outbox row to FAILED, incrementing its retry
// count and recording the publish error. FAILED rows are not retried
// automatically — re-queuing them to PENDING is an operator action.
func (r *Repository) MarkFailed(ctx context.Context, id int64, publishErr string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE outbox_events SET status = $2, retry_count = retry_count + 1, error = $3, updated_at = NOW() WHERE id = $1`,
		id, domain.OutboxFailed, publishErr,
	)
	return err
}
