package messaging

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event types. Routing keys on the domain-events exchange are
// "inventory.<eventType>"; the command exchange carries ForceWmsSync
// messages under "wms.forceSync" directly.
const (
	EventInventoryAllocated = "InventoryAllocated"
	EventInventoryReleased  = "InventoryReleased"
	EventInventoryAdjusted  = "InventoryAdjusted"

	CommandForceWmsSync = "ForceWmsSync"
)

// Exchange names, bit-exact per the broker topology: one durable topic
// exchange for domain events, one for commands, and a dead-letter exchange
// shared by all consumers for messages that exhaust their retries.
const (
	ExchangeInventoryEvents = "inventory.events"
	ExchangeWmsForceSync    = "wms.forceSync"
	ExchangeDeadLetter      = "dlx.events"
)

// Event is the base envelope published to the domain-events exchange.
// Publisher.Publish sets ID to the messageID it is given (the outbox
// dispatcher passes the originating OutboxEvent's id) so consumers can
// deduplicate on redelivery.
type Event struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// NewEvent creates a new event with the given type and data.
func NewEvent(eventType string, data interface{}) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:        GenerateEventID(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Data:      dataBytes,
	}, nil
}

// UnmarshalData unmarshals the event data into the provided struct.
func (e *Event) UnmarshalData(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// InventoryAllocatedEvent is emitted by the Reservation Engine's Reserve
// protocol, one per reserved line, in the same transaction as the
// batch/ledger/reservation writes.
type InventoryAllocatedEvent struct {
	OrderID   string    `json:"orderId"`
	BatchID   int64     `json:"batchId"`
	Quantity  int       `json:"quantity"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// InventoryReleasedEvent is emitted by the Reservation Engine's Release
// protocol, one per cancelled reservation.
type InventoryReleasedEvent struct {
	OrderID   string    `json:"orderId"`
	BatchID   int64     `json:"batchId"`
	Quantity  int       `json:"quantity"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// InventoryAdjustedEvent is emitted by both the manual Adjust protocol and
// the Reconciliation Engine whenever a batch's availableQuantity changes
// outside of a reservation/release.
type InventoryAdjustedEvent struct {
	BatchID      int64     `json:"batchId"`
	QuantityDelta int      `json:"quantityDelta"`
	NewAvailable int       `json:"newAvailable"`
	Source       string    `json:"source"`
	Reason       string    `json:"reason,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// ForceWmsSyncCommand is consumed by the Reconciliation Engine from the
// wms.forceSync exchange. BatchID is optional: present scopes the sync to
// that one batch; absent means an unscoped sync, incremental from the
// stored token when one exists and a full snapshot otherwise.
type ForceWmsSyncCommand struct {
	SyncRequestID string `json:"syncRequestId"`
	BatchID       *int64 `json:"batchId,omitempty"`
}

// GenerateEventID generates a unique event ID, used as the AMQP message ID.
func GenerateEventID() string {
	return fmt.Sprintf("%d-%d", time.Now().UnixNano(), time.Now().Nanosecond()%10000)
}
