package httpapi_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/nabis/inventory-core/internal/httpapi"
	"github.com/nabis/inventory-core/internal/query"
	"github.com/nabis/inventory-core/pkg/logger"
	"github.com/nabis/inventory-core/pkg/testutil"
)

func newQueryHandler(t *testing.T) *httpapi.QueryHandler {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	suite.Reset(context.Background(), t)
	repo := query.NewRepository(suite.DB)
	svc := query.NewService(repo)
	return httpapi.NewQueryHandler(svc, logger.New("httpapi-test", "test"))
}

func TestQueryHandler_GetInventory_ReturnsBatches(t *testing.T) {
	h := newQueryHandler(t)
	ctx := context.Background()

	skuID, err := suite.Fixtures.InsertSKU(ctx, suite.RawDB, "SKU-HTTP-1")
	require.NoError(t, err)
	_, err = suite.Fixtures.InsertBatch(ctx, suite.RawDB, testutil.BatchFixture{SKUID: skuID, TotalQuantity: 10, AvailableQuantity: 7})
	require.NoError(t, err)

	router := chi.NewRouter()
	router.Get("/inventory/{sku}", h.GetInventory)

	req := testutil.NewHTTPRequest(http.MethodGet, "/inventory/SKU-HTTP-1", nil)
	rr := testutil.ExecuteRequest(router, req)

	testutil.AssertStatus(t, rr, http.StatusOK)
	testutil.AssertBodyContains(t, rr, `"skuCode":"SKU-HTTP-1"`)
	testutil.AssertBodyContains(t, rr, `"totalAvailable":7`)
}

func TestQueryHandler_GetInventory_UnknownSkuReturnsEmptyOK(t *testing.T) {
	h := newQueryHandler(t)

	router := chi.NewRouter()
	router.Get("/inventory/{sku}", h.GetInventory)

	req := testutil.NewHTTPRequest(http.MethodGet, "/inventory/NO-SUCH-SKU", nil)
	rr := testutil.ExecuteRequest(router, req)

	testutil.AssertStatus(t, rr, http.StatusOK)
	testutil.AssertBodyContains(t, rr, `"totalAvailable":0`)
}
