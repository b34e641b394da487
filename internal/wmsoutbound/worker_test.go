package wmsoutbound

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nabis/inventory-core/internal/wmsclient"
	"github.com/nabis/inventory-core/pkg/database"
	"github.com/nabis/inventory-core/pkg/logger"
	"github.com/nabis/inventory-core/pkg/messaging"
	"github.com/nabis/inventory-core/pkg/testutil"
)

func newTestWorker(t *testing.T, mockDB *testutil.MockDB, wms wmsclient.Client) *Worker {
	t.Helper()
	repo := NewRepository(database.NewWithSqlxDB(mockDB.DB, logger.New("wmsoutbound-test", "test")))
	return &Worker{repo: repo, wms: wms, logger: logger.New("wmsoutbound-test", "test")}
}

func allocatedEvent(t *testing.T, batchID int64, orderID string, qty int) *messaging.Event {
	t.Helper()
	data, err := json.Marshal(messaging.InventoryAllocatedEvent{OrderID: orderID, BatchID: batchID, Quantity: qty, Timestamp: time.Now().UTC()})
	require.NoError(t, err)
	return &messaging.Event{Type: messaging.EventInventoryAllocated, Data: data}
}

func TestWorker_HandleAllocated_MirrorsAndAudits(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	rows := testutil.MockRows("external_batch_id").AddRow("ext-1")
	mockDB.ExpectQuery(`SELECT external_batch_id FROM batches WHERE id = $1`).WithArgs(int64(10)).WillReturnRows(rows)
	mockDB.ExpectExec(`
		INSERT INTO ledger_entries (batch_id, type, quantity_delta, source, reference_id, metadata)
		VALUES ($1, 'ADJUSTMENT', 0, 'WMS_OUTBOUND', $2, $3)
	`).WithArgs(int64(10), "order-1", `{"action":"allocate"}`).WillReturnResult(sqlmock.NewResult(1, 1))

	wms := wmsclient.NewMockClient()
	w := newTestWorker(t, mockDB, wms)

	err := w.handleAllocated(context.Background(), allocatedEvent(t, 10, "order-1", 3))
	require.NoError(t, err)

	calls := wms.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "ext-1", calls[0].ExternalBatchID)
	assert.Equal(t, 3, calls[0].Quantity)

	mockDB.ExpectationsWereMet(t)
}

func TestWorker_HandleAllocated_NoExternalBatchIDSkipsMirror(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	rows := testutil.MockRows("external_batch_id").AddRow(nil)
	mockDB.ExpectQuery(`SELECT external_batch_id FROM batches WHERE id = $1`).WithArgs(int64(11)).WillReturnRows(rows)

	wms := wmsclient.NewMockClient()
	w := newTestWorker(t, mockDB, wms)

	err := w.handleAllocated(context.Background(), allocatedEvent(t, 11, "order-2", 1))
	require.NoError(t, err)
	assert.Empty(t, wms.Calls())

	mockDB.ExpectationsWereMet(t)
}

type failingWmsClient struct{ err error }

func (f *failingWmsClient) Allocate(ctx context.Context, req wmsclient.MovementRequest) (*wmsclient.MovementResponse, error) {
	return nil, f.err
}
func (f *failingWmsClient) Release(ctx context.Context, req wmsclient.MovementRequest) (*wmsclient.MovementResponse, error) {
	return nil, f.err
}
func (f *failingWmsClient) FetchSnapshot(ctx context.Context, q wmsclient.SnapshotQuery) (*wmsclient.SnapshotResult, error) {
	return nil, f.err
}

func TestWorker_HandleAllocated_PropagatesWmsErrorForConsumerRetryClassification(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	rows := testutil.MockRows("external_batch_id").AddRow("ext-2")
	mockDB.ExpectQuery(`SELECT external_batch_id FROM batches WHERE id = $1`).WithArgs(int64(12)).WillReturnRows(rows)

	wms := &failingWmsClient{err: messaging.NonRetriable(assertErr)}
	w := newTestWorker(t, mockDB, wms)

	err := w.handleAllocated(context.Background(), allocatedEvent(t, 12, "order-3", 2))
	require.Error(t, err)
	assert.True(t, messaging.IsNonRetriable(err))

	mockDB.ExpectationsWereMet(t)
}

var assertErr = assertError("wms rejected movement")

type assertError string

func (e assertError) Error() string { return string(e) }
