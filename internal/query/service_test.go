package query_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nabis/inventory-core/internal/query"
	"github.com/nabis/inventory-core/pkg/testutil"
)

func TestService_GetInventory_SumsAvailableAcrossBatches(t *testing.T) {
	repo := newTestRepo(t)
	svc := query.NewService(repo)
	ctx := context.Background()

	skuID, err := suite.Fixtures.InsertSKU(ctx, suite.RawDB, "SKU-SVC-1")
	require.NoError(t, err)
	_, err = suite.Fixtures.InsertBatch(ctx, suite.RawDB, testutil.BatchFixture{SKUID: skuID, TotalQuantity: 10, AvailableQuantity: 4})
	require.NoError(t, err)
	_, err = suite.Fixtures.InsertBatch(ctx, suite.RawDB, testutil.BatchFixture{SKUID: skuID, TotalQuantity: 20, AvailableQuantity: 9})
	require.NoError(t, err)

	inv, err := svc.GetInventory(ctx, "SKU-SVC-1")
	require.NoError(t, err)
	assert.Equal(t, "SKU-SVC-1", inv.SKUCode)
	assert.Equal(t, 13, inv.TotalAvailable)
	assert.Len(t, inv.Batches, 2)
}

func TestService_GetInventory_UnknownSkuReturnsZeroTotal(t *testing.T) {
	repo := newTestRepo(t)
	svc := query.NewService(repo)

	inv, err := svc.GetInventory(context.Background(), "NO-SUCH-SKU")
	require.NoError(t, err)
	assert.Equal(t, 0, inv.TotalAvailable)
	assert.Empty(t, inv.Batches)
}
