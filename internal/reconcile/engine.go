// Package reconcile implements the Reconciliation Engine (C4): the
// component that adjusts local available quantities against an
// authoritative external WMS snapshot without racing the hot path. It
// locks the same batch rows Reserve/Release lock, in the same ascending-
// id order, so the two subsystems never deadlock against each other and
// never interleave on a single batch.
package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/nabis/inventory-core/internal/domain"
	"github.com/nabis/inventory-core/internal/wmsclient"
	"github.com/nabis/inventory-core/pkg/database"
	"github.com/nabis/inventory-core/pkg/logger"
	"github.com/nabis/inventory-core/pkg/messaging"
	"github.com/nabis/inventory-core/pkg/tracing"
)

// Engine runs one ForceWmsSync command to completion.
type Engine struct {
	repo   *Repository
	db     *database.DB
	wms    wmsclient.Client
	logger *logger.Logger
}

// NewEngine creates a reconciliation engine.
func NewEngine(db *database.DB, repo *Repository, wms wmsclient.Client, log *logger.Logger) *Engine {
	return &Engine{db: db, repo: repo, wms: wms, logger: log}
}

// ProcessSyncRequest runs the full reconciliation protocol for one
// ForceWmsSync command, per spec.md §4.4's numbered steps.
func (e *Engine) ProcessSyncRequest(ctx context.Context, cmd messaging.ForceWmsSyncCommand) (err error) {
	ctx, span := tracing.Start(ctx, "reconcile.ProcessSyncRequest", tracing.String("syncRequestId", cmd.SyncRequestID))
	defer func() { tracing.End(span, err) }()

	requestID, err := parseSyncRequestID(cmd.SyncRequestID)
	if err != nil {
		return messaging.NonRetriable(err)
	}

	if err := e.repo.UpdateSyncRequestStatus(ctx, requestID, domain.SyncInProgress); err != nil {
		return fmt.Errorf("transition sync request to in_progress: %w", err)
	}

	query := wmsclient.SnapshotQuery{}
	if cmd.BatchID != nil {
		externalID, lookupErr := e.externalBatchID(ctx, *cmd.BatchID)
		if lookupErr != nil {
			return e.fail(ctx, requestID, lookupErr)
		}
		query.ExternalBatchID = externalID
	} else {
		state, stateErr := e.repo.GetSyncState(ctx)
		if stateErr != nil {
			return e.fail(ctx, requestID, stateErr)
		}
		if state.LastIncrementalToken != nil {
			query.IncrementalToken = *state.LastIncrementalToken
		}
	}

	result, err := e.wms.FetchSnapshot(ctx, query)
	if err != nil {
		return e.fail(ctx, requestID, err)
	}

	for _, snapshot := range result.Snapshots {
		if err := e.applySnapshot(ctx, snapshot); err != nil {
			return e.fail(ctx, requestID, err)
		}
	}

	if err := e.repo.CompleteSyncRequest(ctx, requestID, domain.SyncDone, nil); err != nil {
		return fmt.Errorf("complete sync request: %w", err)
	}

	if cmd.BatchID == nil {
		if err := e.repo.UpdateSyncState(ctx, timeNowPtr(), tokenPtr(result.NextToken)); err != nil {
			return fmt.Errorf("update sync state: %w", err)
		}
	}

	return nil
}

// applySnapshot persists one WMS snapshot entry and, if it resolves to a
// local batch, reconciles that batch's available quantity against it, all
// in a single transaction per spec.md §4.4 step 3.
func (e *Engine) applySnapshot(ctx context.Context, snapshot wmsclient.Snapshot) error {
	return e.db.Transaction(ctx, func(ctx context.Context) error {
		batchID, err := e.repo.ResolveBatchByExternalID(ctx, snapshot.WmsBatchID)
		if err != nil {
			return err
		}

		if err := e.repo.InsertWmsSnapshot(ctx, &domain.WmsSnapshot{
			WmsBatchID:            snapshot.WmsBatchID,
			BatchID:               batchID,
			ReportedOrderable:     snapshot.ReportedOrderable,
			ReportedUnallocatable: snapshot.ReportedUnallocatable,
			ReportedAt:            snapshot.ReportedAt,
			RawPayload:            snapshot.RawPayload,
		}); err != nil {
			return err
		}

		if batchID == nil {
			// Unmatched WMS batch: only the audit snapshot is recorded.
			return nil
		}

		batches, err := e.repo.LockBatches(ctx, []int64{*batchID})
		if err != nil {
			return err
		}
		batch, ok := batches[*batchID]
		if !ok {
			return nil
		}

		delta := snapshot.ReportedOrderable - batch.AvailableQuantity
		if delta == 0 {
			return nil
		}

		previous := batch.AvailableQuantity
		if err := e.repo.UpdateBatchAvailable(ctx, *batchID, snapshot.ReportedOrderable); err != nil {
			return err
		}

		ref := snapshot.WmsBatchID
		if err := e.repo.InsertLedgerEntry(ctx, &domain.LedgerEntry{
			BatchID:       *batchID,
			Type:          domain.LedgerAdjustment,
			QuantityDelta: delta,
			Source:        domain.SourceWmsSync,
			ReferenceID:   &ref,
			Metadata:      map[string]interface{}{"previous": previous, "new": snapshot.ReportedOrderable},
		}); err != nil {
			return err
		}

		payload, err := json.Marshal(messaging.InventoryAdjustedEvent{
			BatchID:       *batchID,
			QuantityDelta: delta,
			NewAvailable:  snapshot.ReportedOrderable,
			Source:        domain.SourceWmsSync,
			Reason:        "wms reconciliation",
			Timestamp:     snapshot.ReportedAt,
		})
		if err != nil {
			return err
		}
		return e.repo.InsertOutboxEvent(ctx, &domain.OutboxEvent{
			Type:    messaging.EventInventoryAdjusted,
			Payload: payload,
			Status:  domain.OutboxPending,
		})
	})
}

func (e *Engine) fail(ctx context.Context, requestID int64, cause error) error {
	msg := cause.Error()
	if err := e.repo.CompleteSyncRequest(ctx, requestID, domain.SyncFailed, &msg); err != nil {
		e.logger.Error().Err(err).Int64("sync_request_id", requestID).Msg("failed to mark sync request failed")
	}
	return cause
}

func (e *Engine) externalBatchID(ctx context.Context, batchID int64) (string, error) {
	b, err := e.repo.GetBatch(ctx, batchID)
	if err != nil {
		return "", err
	}
	if b == nil || b.ExternalBatchID == nil {
		return "", fmt.Errorf("batch %d has no externalBatchId to scope a sync to", batchID)
	}
	return *b.ExternalBatchID, nil
}

// parseSyncRequestID parses the SyncRequestID string carried on a
// ForceWmsSync command back into the sync_requests row id the admin
// handler created when it enqueued the command.
func parseSyncRequestID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid syncRequestId %q: %w", s, err)
	}
	return id, nil
}

func timeNowPtr() *time.Time {
	now := time.Now().UTC()
	return &now
}

func tokenPtr(token string) *string {
	if token == "" {
		return nil
	}
	return &token
}
