// Package wmsoutbound implements the WMS Outbound Worker (C3): the
// consumer that mirrors committed allocations and releases into the
// external warehouse management system, off the hot path.
package wmsoutbound

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nabis/inventory-core/internal/wmsclient"
	"github.com/nabis/inventory-core/pkg/logger"
	"github.com/nabis/inventory-core/pkg/messaging"
)

// Worker mirrors InventoryAllocated/InventoryReleased events into the WMS
// and records an audit ledger entry for each successful mirror.
type Worker struct {
	repo     *Repository
	wms      wmsclient.Client
	consumer *messaging.Consumer
	logger   *logger.Logger
}

// NewWorker wires a WMS outbound worker onto an already-constructed
// messaging.Consumer (its queue and prefetch are configured by the
// caller, per spec.md's worker-prefetch configuration).
func NewWorker(repo *Repository, wms wmsclient.Client, consumer *messaging.Consumer, log *logger.Logger) *Worker {
	w := &Worker{repo: repo, wms: wms, consumer: consumer, logger: log}
	consumer.RegisterHandler(messaging.EventInventoryAllocated, w.handleAllocated)
	consumer.RegisterHandler(messaging.EventInventoryReleased, w.handleReleased)
	return w
}

// Start begins consuming. Binding the queue to the inventory events
// exchange is the caller's responsibility (via consumer.Subscribe),
// since the exact routing key pattern is deployment config, not a worker
// concern.
func (w *Worker) Start(ctx context.Context) error {
	return w.consumer.Start(ctx)
}

func (w *Worker) handleAllocated(ctx context.Context, event *messaging.Event) error {
	var e messaging.InventoryAllocatedEvent
	if err := event.UnmarshalData(&e); err != nil {
		return messaging.NonRetriable(fmt.Errorf("unmarshal InventoryAllocated: %w", err))
	}
	return w.mirror(ctx, e.BatchID, e.OrderID, e.Quantity, wmsclient.ActionAllocate)
}

func (w *Worker) handleReleased(ctx context.Context, event *messaging.Event) error {
	var e messaging.InventoryReleasedEvent
	if err := event.UnmarshalData(&e); err != nil {
		return messaging.NonRetriable(fmt.Errorf("unmarshal InventoryReleased: %w", err))
	}
	return w.mirror(ctx, e.BatchID, e.OrderID, e.Quantity, wmsclient.ActionRelease)
}

func (w *Worker) mirror(ctx context.Context, batchID int64, orderID string, quantity int, action wmsclient.Action) error {
	externalBatchID, err := w.repo.GetExternalBatchID(ctx, batchID)
	if err != nil {
		return fmt.Errorf("look up external batch id: %w", err)
	}
	if externalBatchID == nil {
		// No WMS-side batch to mirror to; nothing more to do.
		w.logger.Debug().Int64("batch_id", batchID).Msg("batch has no externalBatchId, skipping wms mirror")
		return nil
	}

	req := wmsclient.MovementRequest{ExternalBatchID: *externalBatchID, Quantity: quantity, OrderRef: orderID}

	var wmsErr error
	switch action {
	case wmsclient.ActionAllocate:
		_, wmsErr = w.wms.Allocate(ctx, req)
	case wmsclient.ActionRelease:
		_, wmsErr = w.wms.Release(ctx, req)
	}
	if wmsErr != nil {
		return wmsErr
	}

	metadata, err := json.Marshal(map[string]interface{}{"action": string(action)})
	if err != nil {
		return err
	}
	if err := w.repo.InsertAuditEntry(ctx, batchID, orderID, string(metadata)); err != nil {
		return fmt.Errorf("insert wms outbound audit entry: %w", err)
	}

	return nil
}
