package reservation_test

import (
	"context"
	"log"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nabis/inventory-core/internal/reservation"
	"github.com/nabis/inventory-core/pkg/apperr"
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

func newEngine(t *testing.T) *reservation.Engine {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	suite.Reset(ctx, t)
	repo := reservation.NewRepository(suite.DB)
	return reservation.NewEngine(suite.DB, repo)
}

func TestEngine_Reserve_HappyPath(t *testing.T) {
	ctx := context.Background()
	eng := newEngine(t)

	_, batchID, err := suite.Fixtures.InsertSKUWithBatch(ctx, suite.RawDB, 10, 10)
	require.NoError(t, err)

	err = eng.Reserve(ctx, "order-1", []reservation.Line{{BatchID: batchID, Quantity: 4}})
	require.NoError(t, err)

	var available int
	require.NoError(t, suite.RawDB.GetContext(ctx, &available, `SELECT available_quantity FROM batches WHERE id = $1`, batchID))
	assert.Equal(t, 6, available)

	var outboxCount int
	require.NoError(t, suite.RawDB.GetContext(ctx, &outboxCount,
		`SELECT COUNT(*) FROM outbox_events WHERE type = 'InventoryAllocated'`))
	assert.Equal(t, 1, outboxCount)
}

func TestEngine_Reserve_InsufficientInventory(t *testing.T) {
	ctx := context.Background()
	eng := newEngine(t)

	_, batchID, err := suite.Fixtures.InsertSKUWithBatch(ctx, suite.RawDB, 5, 5)
	require.NoError(t, err)

	err = eng.Reserve(ctx, "order-2", []reservation.Line{{BatchID: batchID, Quantity: 6}})
	require.Error(t, err)

	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperr.CodeInsufficientInventory, appErr.Code)
}

func TestEngine_Reserve_IsIdempotent(t *testing.T) {
	ctx := context.Background()
	eng := newEngine(t)

	_, batchID, err := suite.Fixtures.InsertSKUWithBatch(ctx, suite.RawDB, 10, 10)
	require.NoError(t, err)

	lines := []reservation.Line{{BatchID: batchID, Quantity: 3}}
	require.NoError(t, eng.Reserve(ctx, "order-3", lines))
	require.NoError(t, eng.Reserve(ctx, "order-3", lines))

	var available int
	require.NoError(t, suite.RawDB.GetContext(ctx, &available, `SELECT available_quantity FROM batches WHERE id = $1`, batchID))
	assert.Equal(t, 7, available, "second identical Reserve must be a no-op")
}

func TestEngine_Reserve_ConflictingRetryIsRejected(t *testing.T) {
	ctx := context.Background()
	eng := newEngine(t)

	_, batchID, err := suite.Fixtures.InsertSKUWithBatch(ctx, suite.RawDB, 10, 10)
	require.NoError(t, err)

	require.NoError(t, eng.Reserve(ctx, "order-4", []reservation.Line{{BatchID: batchID, Quantity: 3}}))

	err = eng.Reserve(ctx, "order-4", []reservation.Line{{BatchID: batchID, Quantity: 4}})
	require.Error(t, err)

	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperr.CodeOrderAlreadyReserved, appErr.Code)
}

func TestEngine_Release_ReversesReservation(t *testing.T) {
	ctx := context.Background()
	eng := newEngine(t)

	_, batchID, err := suite.Fixtures.InsertSKUWithBatch(ctx, suite.RawDB, 10, 10)
	require.NoError(t, err)

	require.NoError(t, eng.Reserve(ctx, "order-5", []reservation.Line{{BatchID: batchID, Quantity: 4}}))
	require.NoError(t, eng.Release(ctx, "order-5", nil))

	var available int
	require.NoError(t, suite.RawDB.GetContext(ctx, &available, `SELECT available_quantity FROM batches WHERE id = $1`, batchID))
	assert.Equal(t, 10, available)

	var status string
	require.NoError(t, suite.RawDB.GetContext(ctx, &status,
		`SELECT status FROM reservations WHERE order_id = $1`, "order-5"))
	assert.Equal(t, "CANCELLED", status)
}

func TestEngine_Release_UnknownOrderFails(t *testing.T) {
	ctx := context.Background()
	eng := newEngine(t)

	err := eng.Release(ctx, "no-such-order", nil)
	require.Error(t, err)

	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperr.CodeOrderNotFound, appErr.Code)
}

func TestEngine_Release_AlreadyReleasedIsIdempotent(t *testing.T) {
	ctx := context.Background()
	eng := newEngine(t)

	_, batchID, err := suite.Fixtures.InsertSKUWithBatch(ctx, suite.RawDB, 10, 10)
	require.NoError(t, err)

	require.NoError(t, eng.Reserve(ctx, "order-6", []reservation.Line{{BatchID: batchID, Quantity: 2}}))
	require.NoError(t, eng.Release(ctx, "order-6", nil))
	require.NoError(t, eng.Release(ctx, "order-6", nil))
}

func TestEngine_Adjust_UpdatesAvailableAndLedger(t *testing.T) {
	ctx := context.Background()
	eng := newEngine(t)

	_, batchID, err := suite.Fixtures.InsertSKUWithBatch(ctx, suite.RawDB, 20, 10)
	require.NoError(t, err)

	newAvailable, err := eng.Adjust(ctx, batchID, 5, "cycle count correction")
	require.NoError(t, err)
	assert.Equal(t, 15, newAvailable)

	var delta int
	require.NoError(t, suite.RawDB.GetContext(ctx, &delta,
		`SELECT quantity_delta FROM ledger_entries WHERE batch_id = $1 AND type = 'ADJUSTMENT'`, batchID))
	assert.Equal(t, 5, delta)
}

func TestEngine_Adjust_RejectsOverTotal(t *testing.T) {
	ctx := context.Background()
	eng := newEngine(t)

	_, batchID, err := suite.Fixtures.InsertSKUWithBatch(ctx, suite.RawDB, 10, 10)
	require.NoError(t, err)

	_, err = eng.Adjust(ctx, batchID, 1, "overshoot")
	require.Error(t, err)

	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperr.CodeInvalidQuantity, appErr.Code)
}
