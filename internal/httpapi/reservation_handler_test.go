package httpapi_test

import (
	"context"
	"log"
	"net/http"
	"os"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nabis/inventory-core/internal/httpapi"
	"github.com/nabis/inventory-core/internal/reservation"
	"github.com/nabis/inventory-core/pkg/logger"
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

func newReservationHandler(t *testing.T) *httpapi.ReservationHandler {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	suite.Reset(context.Background(), t)
	repo := reservation.NewRepository(suite.DB)
	engine := reservation.NewEngine(suite.DB, repo)
	return httpapi.NewReservationHandler(engine, logger.New("httpapi-test", "test"))
}

func TestReservationHandler_Reserve_Success(t *testing.T) {
	h := newReservationHandler(t)
	ctx := context.Background()
	_, batchID, err := suite.Fixtures.InsertSKUWithBatch(ctx, suite.RawDB, 100, 100)
	require.NoError(t, err)

	router := chi.NewRouter()
	router.Post("/inventory/reserve", h.Reserve)

	body := map[string]interface{}{
		"orderId": "order-1",
		"lines":   []map[string]interface{}{{"batchId": batchID, "quantity": 10}},
	}
	req := testutil.NewHTTPRequest(http.MethodPost, "/inventory/reserve", body)
	rr := testutil.ExecuteRequest(router, req)

	testutil.AssertStatus(t, rr, http.StatusCreated)
	testutil.AssertBodyContains(t, rr, `"orderId":"order-1"`)
}

func TestReservationHandler_Reserve_InsufficientInventoryReturns409(t *testing.T) {
	h := newReservationHandler(t)
	ctx := context.Background()
	_, batchID, err := suite.Fixtures.InsertSKUWithBatch(ctx, suite.RawDB, 5, 5)
	require.NoError(t, err)

	router := chi.NewRouter()
	router.Post("/inventory/reserve", h.Reserve)

	body := map[string]interface{}{
		"orderId": "order-2",
		"lines":   []map[string]interface{}{{"batchId": batchID, "quantity": 100}},
	}
	req := testutil.NewHTTPRequest(http.MethodPost, "/inventory/reserve", body)
	rr := testutil.ExecuteRequest(router, req)

	testutil.AssertStatus(t, rr, http.StatusConflict)
	testutil.AssertBodyContains(t, rr, "INSUFFICIENT_INVENTORY")
}

func TestReservationHandler_Reserve_EmptyLinesReturns400(t *testing.T) {
	h := newReservationHandler(t)

	router := chi.NewRouter()
	router.Post("/inventory/reserve", h.Reserve)

	body := map[string]interface{}{"orderId": "order-3", "lines": []map[string]interface{}{}}
	req := testutil.NewHTTPRequest(http.MethodPost, "/inventory/reserve", body)
	rr := testutil.ExecuteRequest(router, req)

	testutil.AssertStatus(t, rr, http.StatusBadRequest)
}

func TestReservationHandler_Release_UnknownOrderReturns404(t *testing.T) {
	h := newReservationHandler(t)

	router := chi.NewRouter()
	router.Post("/inventory/release", h.Release)

	body := map[string]interface{}{"orderId": "no-such-order"}
	req := testutil.NewHTTPRequest(http.MethodPost, "/inventory/release", body)
	rr := testutil.ExecuteRequest(router, req)

	testutil.AssertStatus(t, rr, http.StatusNotFound)
	testutil.AssertBodyContains(t, rr, "ORDER_NOT_FOUND")
}

func TestReservationHandler_Adjust_Success(t *testing.T) {
	h := newReservationHandler(t)
	ctx := context.Background()
	_, batchID, err := suite.Fixtures.InsertSKUWithBatch(ctx, suite.RawDB, 100, 50)
	require.NoError(t, err)

	router := chi.NewRouter()
	router.Post("/admin/inventory/adjust", h.Adjust)

	body := map[string]interface{}{"batchId": batchID, "quantityDelta": 10, "reason": "cycle count"}
	req := testutil.NewHTTPRequest(http.MethodPost, "/admin/inventory/adjust", body)
	rr := testutil.ExecuteRequest(router, req)

	testutil.AssertStatus(t, rr, http.StatusOK)

	var resp map[string]interface{}
	testutil.ParseJSONBody(t, rr, &resp)
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, float64(60), data["newAvailableQuantity"])
}
