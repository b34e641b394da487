// Package outbox implements the transactional outbox dispatcher (C2): the
// mechanism that turns a local ACID write into an externally observable
// broker message. It never decides business outcomes — it only drains
// rows the reservation engine already committed.
package outbox

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/nabis/inventory-core/pkg/database"
	"github.com/nabis/inventory-core/pkg/logger"
)

// Publisher is the subset of messaging.Publisher the dispatcher depends on,
// kept as an interface so tests can substitute a fake without a broker.
type Publisher interface {
	Publish(ctx context.Context, messageID, eventType string, data interface{}) error
}

// Dispatcher continuously drains PENDING outbox rows to the broker.
type Dispatcher struct {
	repo         *Repository
	db           *database.DB
	publisher    Publisher
	batchSize    int
	pollInterval time.Duration
	logger       *logger.Logger
	cancel       context.CancelFunc
}

// NewDispatcher creates an outbox dispatcher. batchSize bounds how many
// rows are locked per tick; pollInterval is the sleep between ticks
// (default 200ms per spec).
func NewDispatcher(db *database.DB, repo *Repository, publisher Publisher, batchSize int, pollInterval time.Duration, log *logger.Logger) *Dispatcher {
	if batchSize <= 0 {
		batchSize = 100
	}
	if pollInterval <= 0 {
		pollInterval = 200 * time.Millisecond
	}
	return &Dispatcher{
		repo:         repo,
		db:           db,
		publisher:    publisher,
		batchSize:    batchSize,
		pollInterval: pollInterval,
		logger:       log,
	}
}

// Start runs the dispatcher loop in a background goroutine until ctx is
// cancelled or Stop is called.
func (d *Dispatcher) Start(ctx context.Context) {
	ctx, d.cancel = context.WithCancel(ctx)

	go func() {
		d.logger.Info().Dur("poll_interval", d.pollInterval).Int("batch_size", d.batchSize).Msg("outbox dispatcher started")

		ticker := time.NewTicker(d.pollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				d.logger.Info().Msg("outbox dispatcher stopped")
				return
			case <-ticker.C:
				d.runTick(ctx)
			}
		}
	}()
}

// Stop stops the dispatcher goroutine.
func (d *Dispatcher) Stop() {
	if d.cancel != nil {
		d.cancel()
	}
}

// runTick drains up to batchSize PENDING events in one transaction. Each
// event's publish outcome (SENT or FAILED) is committed alongside the
// lock release, so a crash mid-tick leaves untouched rows PENDING for the
// next tick (or another dispatcher instance) to pick up.
func (d *Dispatcher) runTick(ctx context.Context) {
	err := d.db.Transaction(ctx, func(ctx context.Context) error {
		events, err := d.repo.SelectPendingForUpdate(ctx, d.batchSize)
		if err != nil {
			return err
		}
		if len(events) == 0 {
			return nil
		}

		for _, e := range events {
			messageID := strconv.FormatInt(e.ID, 10)
			publishErr := d.publisher.Publish(ctx, messageID, e.Type, json.RawMessage(e.Payload))
			if publishErr != nil {
				d.logger.Warn().Err(publishErr).Int64("event_id", e.ID).Str("event_type", e.Type).Msg("failed to publish outbox event")
				if err := d.repo.MarkFailed(ctx, e.ID, publishErr.Error()); err != nil {
					return err
				}
				continue
			}
			if err := d.repo.MarkSent(ctx, e.ID); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		d.logger.Error().Err(err).Msg("outbox dispatcher tick failed")
	}
}
