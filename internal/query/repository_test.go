package query_test

import (
	"context"
	"log"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nabis/inventory-core/internal/query"
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

func newTestRepo(t *testing.T) *query.Repository {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	suite.Reset(context.Background(), t)
	return query.NewRepository(suite.DB)
}

func TestRepository_GetAvailableInventory_OrdersByExpiryThenID(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	skuID, err := suite.Fixtures.InsertSKU(ctx, suite.RawDB, "SKU-ORDER-1")
	require.NoError(t, err)

	farBatchID, err := suite.Fixtures.InsertBatch(ctx, suite.RawDB, testutil.BatchFixture{SKUID: skuID, TotalQuantity: 10, AvailableQuantity: 10})
	require.NoError(t, err)
	_, err = suite.RawDB.ExecContext(ctx, `UPDATE batches SET expires_at = NOW() + interval '30 days' WHERE id = $1`, farBatchID)
	require.NoError(t, err)

	nearBatchID, err := suite.Fixtures.InsertBatch(ctx, suite.RawDB, testutil.BatchFixture{SKUID: skuID, TotalQuantity: 20, AvailableQuantity: 15})
	require.NoError(t, err)
	_, err = suite.RawDB.ExecContext(ctx, `UPDATE batches SET expires_at = NOW() + interval '5 days' WHERE id = $1`, nearBatchID)
	require.NoError(t, err)

	noExpiryBatchID, err := suite.Fixtures.InsertBatch(ctx, suite.RawDB, testutil.BatchFixture{SKUID: skuID, TotalQuantity: 5, AvailableQuantity: 5})
	require.NoError(t, err)

	rows, err := repo.GetAvailableInventory(ctx, "SKU-ORDER-1")
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, nearBatchID, rows[0].BatchID)
	assert.Equal(t, farBatchID, rows[1].BatchID)
	assert.Equal(t, noExpiryBatchID, rows[2].BatchID)
}

func TestRepository_GetAvailableInventory_UnknownSkuReturnsEmpty(t *testing.T) {
	repo := newTestRepo(t)
	rows, err := repo.GetAvailableInventory(context.Background(), "NO-SUCH-SKU")
	require.NoError(t, err)
	assert.Empty(t, rows)
}
