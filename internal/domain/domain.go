// Package domain holds the entity types shared by the reservation engine,
// outbox dispatcher, WMS outbound worker, reconciliation engine and query
// surface. None of these types carry persistence concerns directly — that
// is the job of each component's repository.
package domain

import "time"

// Ledger entry types.
const (
	LedgerReceipt        = "RECEIPT"
	LedgerOrderAllocate  = "ORDER_ALLOCATE"
	LedgerOrderRelease   = "ORDER_RELEASE"
	LedgerAdjustment     = "ADJUSTMENT"
)

// Ledger entry sources.
const (
	SourceNabisOrder      = "NABIS_ORDER"
	SourceWmsSync         = "WMS_SYNC"
	SourceManualAdjustment = "MANUAL_ADJUSTMENT"
	SourceWmsOutbound     = "WMS_OUTBOUND"
)

// Reservation statuses.
const (
	ReservationPending   = "PENDING"
	ReservationConfirmed = "CONFIRMED"
	ReservationCancelled = "CANCELLED"
	ReservationExpired   = "EXPIRED"
)

// Outbox event statuses.
const (
	OutboxPending = "PENDING"
	OutboxSent    = "SENT"
	OutboxFailed  = "FAILED"
)

// Sync request statuses.
const (
	SyncPending    = "PENDING"
	SyncInProgress = "IN_PROGRESS"
	SyncDone       = "DONE"
	SyncFailed     = "FAILED"
)

// SKU is an immutable product identifier.
type SKU struct {
	ID        int64     `db:"id"`
	Code      string    `db:"code"`
	Name      *string   `db:"name"`
	CreatedAt time.Time `db:"created_at"`
}

// Batch is the concurrency unit: every mutation of its quantity fields
// must hold an exclusive row lock on it, acquired in ascending id order
// alongside every other batch touched in the same transaction.
type Batch struct {
	ID                    int64      `db:"id"`
	SKUID                 int64      `db:"sku_id"`
	ExternalBatchID       *string    `db:"external_batch_id"`
	LotNumber             *string    `db:"lot_number"`
	ExpiresAt             *time.Time `db:"expires_at"`
	TotalQuantity         int        `db:"total_quantity"`
	UnallocatableQuantity int        `db:"unallocatable_quantity"`
	AvailableQuantity     int        `db:"available_quantity"`
	Version               int        `db:"version"`
	UpdatedAt             time.Time  `db:"updated_at"`
}

// LedgerEntry is an append-only record of a signed quantity change against
// a batch. The sum of all entries for a batch plus its starting quantity
// must always equal batch.AvailableQuantity.
type LedgerEntry struct {
	ID            int64                  `db:"id"`
	BatchID       int64                  `db:"batch_id"`
	Type          string                 `db:"type"`
	QuantityDelta int                    `db:"quantity_delta"`
	Source        string                 `db:"source"`
	ReferenceID   *string                `db:"reference_id"`
	Metadata      map[string]interface{} `db:"metadata"`
	CreatedAt     time.Time              `db:"created_at"`
}

// Reservation ties an order's hold on a batch to a signed quantity. At
// most one row exists per (OrderID, BatchID).
type Reservation struct {
	ID        int64      `db:"id"`
	OrderID   string     `db:"order_id"`
	BatchID   int64      `db:"batch_id"`
	Quantity  int        `db:"quantity"`
	Status    string     `db:"status"`
	CreatedAt time.Time  `db:"created_at"`
	UpdatedAt time.Time  `db:"updated_at"`
	ExpiresAt *time.Time `db:"expires_at"`
}

// OutboxEvent is a domain event written in the same transaction as the
// business state change it announces. The dispatcher drains PENDING rows
// to the broker and transitions them to SENT or FAILED.
type OutboxEvent struct {
	ID         int64     `db:"id"`
	Type       string    `db:"type"`
	Payload    []byte    `db:"payload"`
	Status     string    `db:"status"`
	RetryCount int       `db:"retry_count"`
	Error      *string   `db:"error"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

// WmsSnapshot is an append-only audit record of a WMS report, matched to a
// local batch when possible.
type WmsSnapshot struct {
	ID                    int64     `db:"id"`
	WmsBatchID            string    `db:"wms_batch_id"`
	BatchID               *int64    `db:"batch_id"`
	ReportedOrderable     int       `db:"reported_orderable"`
	ReportedUnallocatable *int      `db:"reported_unallocatable"`
	ReportedAt            time.Time `db:"reported_at"`
	RawPayload            []byte    `db:"raw_payload"`
	CreatedAt             time.Time `db:"created_at"`
}

// SyncRequest tracks one reconciliation run through its irreversible
// state machine: PENDING -> IN_PROGRESS -> {DONE, FAILED}.
type SyncRequest struct {
	ID          int64      `db:"id"`
	RequestedBy string     `db:"requested_by"`
	Reason      *string    `db:"reason"`
	BatchID     *int64     `db:"batch_id"`
	Priority    int        `db:"priority"`
	Status      string     `db:"status"`
	CreatedAt   time.Time  `db:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at"`
	CompletedAt *time.Time `db:"completed_at"`
	Error       *string    `db:"error"`
}

// SyncState is the id=1 singleton tracking incremental reconciliation
// progress across runs.
type SyncState struct {
	ID                   int       `db:"id"`
	LastFullSyncAt       *time.Time `db:"last_full_sync_at"`
	LastIncrementalToken *string    `db:"last_incremental_token"`
}

// BatchAvailability is the Query Surface's projection of a single batch
// for getAvailableInventory.
type BatchAvailability struct {
	BatchID           int64      `json:"batchId" db:"id"`
	ExternalBatchID   *string    `json:"externalBatchId,omitempty" db:"external_batch_id"`
	LotNumber         *string    `json:"lotNumber,omitempty" db:"lot_number"`
	ExpiresAt         *time.Time `json:"expiresAt,omitempty" db:"expires_at"`
	AvailableQuantity int        `json:"availableQuantity" db:"available_quantity"`
	TotalQuantity     int        `json:"totalQuantity" db:"total_quantity"`
}
