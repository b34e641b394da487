// Package reservation implements the reservation/release transactional
// protocol (C1): the component that prevents overselling under concurrent
// requests by serializing all mutation of a batch's quantity fields
// behind a single exclusive row lock, acquired in ascending batch id
// order across every writer (Reserve, Release, Adjust, and the
// reconciliation engine).
package reservation

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/nabis/inventory-core/internal/domain"
	"github.com/nabis/inventory-core/pkg/apperr"
	"github.com/nabis/inventory-core/pkg/database"
	"github.com/nabis/inventory-core/pkg/messaging"
	"github.com/nabis/inventory-core/pkg/tracing"
)

// Engine implements Reserve, Release and Adjust. All three run inside a
// single database transaction: a rollback anywhere leaves no visible
// state, including no outbox event.
type Engine struct {
	repo *Repository
	db   *database.DB
}

// NewEngine creates a reservation engine.
func NewEngine(db *database.DB, repo *Repository) *Engine {
	return &Engine{db: db, repo: repo}
}

// Line is one requested batch/quantity pair in a Reserve call.
type Line struct {
	BatchID  int64
	Quantity int
}

// Reserve attempts to allocate every line against its batch, atomically.
// It is idempotent: calling it again with the exact same orderId and
// lines (as an unordered multiset keyed by batchId) after a prior success
// returns nil without any further side effects. If any existing
// reservation for the order is CANCELLED, the call fails
// ORDER_ALREADY_RESERVED.
func (e *Engine) Reserve(ctx context.Context, orderID string, lines []Line) (err error) {
	ctx, span := tracing.Start(ctx, "reservation.Reserve", tracing.String("orderId", orderID))
	defer func() { tracing.End(span, err) }()

	if len(lines) == 0 {
		return apperr.InvalidQuantity("lines must not be empty")
	}
	for _, l := range lines {
		if l.Quantity <= 0 {
			return apperr.InvalidQuantity("quantity must be a positive integer")
		}
	}

	return e.db.Transaction(ctx, func(ctx context.Context) error {
		existing, err := e.repo.GetReservationsByOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			if reservationsMatch(existing, lines) {
				return nil
			}
			return apperr.OrderAlreadyReserved(orderID)
		}

		batchIDs := uniqueSortedBatchIDs(lines)
		batches, err := e.repo.LockBatches(ctx, batchIDs)
		if err != nil {
			return err
		}

		for _, l := range lines {
			b, ok := batches[l.BatchID]
			if !ok {
				return apperr.BatchNotFound(l.BatchID)
			}
			if b.AvailableQuantity < l.Quantity {
				return apperr.InsufficientInventory(l.BatchID, l.Quantity, b.AvailableQuantity)
			}
		}

		now := time.Now().UTC()
		for _, l := range lines {
			b := batches[l.BatchID]
			newAvailable := b.AvailableQuantity - l.Quantity
			if err := e.repo.UpdateBatchAvailable(ctx, l.BatchID, newAvailable); err != nil {
				return err
			}
			b.AvailableQuantity = newAvailable

			ref := orderID
			if err := e.repo.InsertLedgerEntry(ctx, &domain.LedgerEntry{
				BatchID:       l.BatchID,
				Type:          domain.LedgerOrderAllocate,
				QuantityDelta: -l.Quantity,
				Source:        domain.SourceNabisOrder,
				ReferenceID:   &ref,
			}); err != nil {
				return err
			}

			if err := e.repo.InsertReservation(ctx, &domain.Reservation{
				OrderID:  orderID,
				BatchID:  l.BatchID,
				Quantity: l.Quantity,
				Status:   domain.ReservationPending,
			}); err != nil {
				return err
			}

			payload, err := json.Marshal(messaging.InventoryAllocatedEvent{
				OrderID:   orderID,
				BatchID:   l.BatchID,
				Quantity:  l.Quantity,
				Timestamp: now,
			})
			if err != nil {
				return err
			}
			if err := e.repo.InsertOutboxEvent(ctx, &domain.OutboxEvent{
				Type:    messaging.EventInventoryAllocated,
				Payload: payload,
				Status:  domain.OutboxPending,
			}); err != nil {
				return err
			}
		}

		return nil
	})
}

// Release reverses every PENDING reservation for orderId. Calling it for
// an order that has reservations but none of them PENDING (for instance
// all already CANCELLED by a previous release) returns nil idempotently;
// calling it for an order with no reservations at all fails
// ORDER_NOT_FOUND.
func (e *Engine) Release(ctx context.Context, orderID string, reason *string) (err error) {
	ctx, span := tracing.Start(ctx, "reservation.Release", tracing.String("orderId", orderID))
	defer func() { tracing.End(span, err) }()

	return e.db.Transaction(ctx, func(ctx context.Context) error {
		pending, err := e.repo.GetPendingReservationsForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if len(pending) == 0 {
			any, err := e.repo.GetReservationsByOrder(ctx, orderID)
			if err != nil {
				return err
			}
			if len(any) > 0 {
				return nil
			}
			return apperr.OrderNotFound(orderID)
		}

		batchIDs := uniqueSortedBatchIDsFromReservations(pending)
		batches, err := e.repo.LockBatches(ctx, batchIDs)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		for _, r := range pending {
			b, ok := batches[r.BatchID]
			if !ok {
				return apperr.BatchNotFound(r.BatchID)
			}
			newAvailable := b.AvailableQuantity + r.Quantity
			if err := e.repo.UpdateBatchAvailable(ctx, r.BatchID, newAvailable); err != nil {
				return err
			}
			b.AvailableQuantity = newAvailable

			ref := orderID
			if err := e.repo.InsertLedgerEntry(ctx, &domain.LedgerEntry{
				BatchID:       r.BatchID,
				Type:          domain.LedgerOrderRelease,
				QuantityDelta: r.Quantity,
				Source:        domain.SourceNabisOrder,
				ReferenceID:   &ref,
				Metadata:      reasonMetadata(reason),
			}); err != nil {
				return err
			}

			if err := e.repo.UpdateReservationStatus(ctx, r.ID, domain.ReservationCancelled); err != nil {
				return err
			}

			payload, err := json.Marshal(messaging.InventoryReleasedEvent{
				OrderID:   orderID,
				BatchID:   r.BatchID,
				Quantity:  r.Quantity,
				Reason:    derefString(reason),
				Timestamp: now,
			})
			if err != nil {
				return err
			}
			if err := e.repo.InsertOutboxEvent(ctx, &domain.OutboxEvent{
				Type:    messaging.EventInventoryReleased,
				Payload: payload,
				Status:  domain.OutboxPending,
			}); err != nil {
				return err
			}
		}

		return nil
	})
}

// Adjust applies a signed delta to a batch's available quantity and
// returns the resulting available quantity. The delta must keep
// availableQuantity within [0, totalQuantity]; violating that is reported
// as INVALID_QUANTITY rather than a fatal constraint error, since it is
// caller input, not a programmer error.
func (e *Engine) Adjust(ctx context.Context, batchID int64, delta int, reason string) (newAvailable int, err error) {
	ctx, span := tracing.Start(ctx, "reservation.Adjust", tracing.Int64("batchId", batchID))
	defer func() { tracing.End(span, err) }()

	err = e.db.Transaction(ctx, func(ctx context.Context) error {
		batches, err := e.repo.LockBatches(ctx, []int64{batchID})
		if err != nil {
			return err
		}
		b, ok := batches[batchID]
		if !ok {
			return apperr.BatchNotFound(batchID)
		}

		candidate := b.AvailableQuantity + delta
		if candidate < 0 || candidate > b.TotalQuantity {
			return apperr.InvalidQuantity(fmt.Sprintf(
				"adjustment would set available quantity to %d, violating 0 <= available <= total (%d)",
				candidate, b.TotalQuantity,
			))
		}

		if err := e.repo.UpdateBatchAvailable(ctx, batchID, candidate); err != nil {
			return err
		}
		newAvailable = candidate

		if err := e.repo.InsertLedgerEntry(ctx, &domain.LedgerEntry{
			BatchID:       batchID,
			Type:          domain.LedgerAdjustment,
			QuantityDelta: delta,
			Source:        domain.SourceManualAdjustment,
			Metadata:      map[string]interface{}{"reason": reason},
		}); err != nil {
			return err
		}

		payload, err := json.Marshal(messaging.InventoryAdjustedEvent{
			BatchID:       batchID,
			QuantityDelta: delta,
			NewAvailable:  newAvailable,
			Source:        domain.SourceManualAdjustment,
			Reason:        reason,
			Timestamp:     time.Now().UTC(),
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
	return newAvailable, err
}

// reservationsMatch reports whether existing reservations equal lines
// exactly as an unordered multiset keyed by batchId with identical
// quantities. A CANCELLED row never matches, so a set containing one is a
// conflict.
func reservationsMatch(existing []domain.Reservation, lines []Line) bool {
	if len(existing) != len(lines) {
		return false
	}
	want := make(map[int64]int, len(lines))
	for _, l := range lines {
		want[l.BatchID] = l.Quantity
	}
	seen := make(map[int64]bool, len(existing))
	for _, r := range existing {
		if r.Status == domain.ReservationCancelled {
			return false
		}
		q, ok := want[r.BatchID]
		if !ok || q != r.Quantity || seen[r.BatchID] {
			return false
		}
		seen[r.BatchID] = true
	}
	return len(seen) == len(want)
}

func uniqueSortedBatchIDs(lines []Line) []int64 {
	set := make(map[int64]struct{}, len(lines))
	for _, l := range lines {
		set[l.BatchID] = struct{}{}
	}
	ids := make([]int64, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func uniqueSortedBatchIDsFromReservations(rs []domain.Reservation) []int64 {
	lines := make([]Line, len(rs))
	for i, r := range rs {
		lines[i] = Line{BatchID: r.BatchID}
	}
	return uniqueSortedBatchIDs(lines)
}

func reasonMetadata(reason *string) map[string]interface{} {
	if reason == nil || *reason == "" {
		return nil
	}
	return map[string]interface{}{"reason": *reason}
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
