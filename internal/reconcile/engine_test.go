package reconcile_test

import (
	"context"
	"log"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nabis/inventory-core/internal/domain"
	"github.com/nabis/inventory-core/internal/reconcile"
	"github.com/nabis/inventory-core/internal/wmsclient"
	"github.com/nabis/inventory-core/pkg/logger"
	"github.com/nabis/inventory-core/pkg/messaging"
	"github.com/nabis/inventory-core/pkg/testutil"
)

var suite *testutil.IntegrationSuite

func TestMain(m *testing.M) {
	if testing.Short() {
		os.Exit(m.Run())
	}

	ctx := context.Background()

	var err error
	suite, err = testutil.NewIntegrationSuite(ctx)
	if err != nil {
		log.Fatalf("failed to create integration suite: %v", err)
	}
	defer testutil.TerminateContainer(ctx)

	os.Exit(m.Run())
}

func newTestEngine(t *testing.T, wms wmsclient.Client) (*reconcile.Engine, *reconcile.Repository) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	suite.Reset(ctx, t)
	repo := reconcile.NewRepository(suite.DB)
	log := logger.New("reconcile-test", "test")
	return reconcile.NewEngine(suite.DB, repo, wms, log), repo
}

func createSyncRequest(t *testing.T, repo *reconcile.Repository, batchID *int64) int64 {
	t.Helper()
	ctx := context.Background()
	sr := &domain.SyncRequest{RequestedBy: "operator", BatchID: batchID, Status: domain.SyncPending}
	require.NoError(t, repo.InsertSyncRequest(ctx, sr))
	return sr.ID
}

func TestEngine_ProcessSyncRequest_ScopedBatchAdjustsAvailable(t *testing.T) {
	wms := wmsclient.NewMockClient()
	eng, repo := newTestEngine(t, wms)
	ctx := context.Background()

	externalID := "ext-batch-1"
	_, batchID, err := suite.Fixtures.InsertSKUWithBatch(ctx, suite.RawDB, 100, 90)
	require.NoError(t, err)
	_, err = suite.RawDB.ExecContext(ctx, `UPDATE batches SET external_batch_id = $1 WHERE id = $2`, externalID, batchID)
	require.NoError(t, err)

	wms.Seed(externalID, wmsclient.Snapshot{
		WmsBatchID:        externalID,
		ReportedOrderable: 85,
		ReportedAt:        time.Now().UTC(),
	})

	requestID := createSyncRequest(t, repo, &batchID)
	cmd := messaging.ForceWmsSyncCommand{SyncRequestID: strconv.FormatInt(requestID, 10), BatchID: &batchID}

	require.NoError(t, eng.ProcessSyncRequest(ctx, cmd))

	var available int
	require.NoError(t, suite.RawDB.GetContext(ctx, &available, `SELECT available_quantity FROM batches WHERE id = $1`, batchID))
	assert.Equal(t, 85, available)

	var delta int
	require.NoError(t, suite.RawDB.GetContext(ctx, &delta,
		`SELECT quantity_delta FROM ledger_entries WHERE batch_id = $1 AND type = 'ADJUSTMENT' AND source = 'WMS_SYNC'`, batchID))
	assert.Equal(t, -5, delta)

	var outboxCount int
	require.NoError(t, suite.RawDB.GetContext(ctx, &outboxCount,
		`SELECT COUNT(*) FROM outbox_events WHERE type = 'InventoryAdjusted'`))
	assert.Equal(t, 1, outboxCount)

	var status string
	require.NoError(t, suite.RawDB.GetContext(ctx, &status, `SELECT status FROM sync_requests WHERE id = $1`, requestID))
	assert.Equal(t, "DONE", status)
}

func TestEngine_ProcessSyncRequest_NoDeltaIsNoOp(t *testing.T) {
	wms := wmsclient.NewMockClient()
	eng, repo := newTestEngine(t, wms)
	ctx := context.Background()

	externalID := "ext-batch-2"
	_, batchID, err := suite.Fixtures.InsertSKUWithBatch(ctx, suite.RawDB, 50, 50)
	require.NoError(t, err)
	_, err = suite.RawDB.ExecContext(ctx, `UPDATE batches SET external_batch_id = $1 WHERE id = $2`, externalID, batchID)
	require.NoError(t, err)

	wms.Seed(externalID, wmsclient.Snapshot{WmsBatchID: externalID, ReportedOrderable: 50, ReportedAt: time.Now().UTC()})

	requestID := createSyncRequest(t, repo, &batchID)
	cmd := messaging.ForceWmsSyncCommand{SyncRequestID: strconv.FormatInt(requestID, 10), BatchID: &batchID}
	require.NoError(t, eng.ProcessSyncRequest(ctx, cmd))

	var outboxCount int
	require.NoError(t, suite.RawDB.GetContext(ctx, &outboxCount, `SELECT COUNT(*) FROM outbox_events`))
	assert.Equal(t, 0, outboxCount)
}

func TestEngine_ProcessSyncRequest_UnmatchedWmsBatchOnlyRecordsSnapshot(t *testing.T) {
	wms := wmsclient.NewMockClient()
	eng, repo := newTestEngine(t, wms)
	ctx := context.Background()

	wms.Seed("unmatched-ext-batch", wmsclient.Snapshot{WmsBatchID: "unmatched-ext-batch", ReportedOrderable: 10, ReportedAt: time.Now().UTC()})

	requestID := createSyncRequest(t, repo, nil)
	cmd := messaging.ForceWmsSyncCommand{SyncRequestID: strconv.FormatInt(requestID, 10)}
	require.NoError(t, eng.ProcessSyncRequest(ctx, cmd))

	var snapshotCount int
	require.NoError(t, suite.RawDB.GetContext(ctx, &snapshotCount,
		`SELECT COUNT(*) FROM wms_snapshots WHERE wms_batch_id = 'unmatched-ext-batch' AND batch_id IS NULL`))
	assert.Equal(t, 1, snapshotCount)
}
