package httpapi_test

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"

	"github.com/nabis/inventory-core/internal/httpapi"
	"github.com/nabis/inventory-core/internal/reconcile"
	"github.com/nabis/inventory-core/pkg/logger"
	"github.com/nabis/inventory-core/pkg/testutil"
)

type fakeCommandPublisher struct {
	mu       sync.Mutex
	commands []interface{}
}

func (f *fakeCommandPublisher) PublishCommand(ctx context.Context, messageID, routingKey string, data interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commands = append(f.commands, data)
	return nil
}

func (f *fakeCommandPublisher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.commands)
}

func newWmsSyncHandler(t *testing.T) (*httpapi.WmsSyncHandler, *fakeCommandPublisher) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	suite.Reset(context.Background(), t)
	repo := reconcile.NewRepository(suite.DB)
	pub := &fakeCommandPublisher{}
	return httpapi.NewWmsSyncHandler(repo, pub, logger.New("httpapi-test", "test")), pub
}

func TestWmsSyncHandler_Enqueue_CreatesRequestAndPublishes(t *testing.T) {
	h, pub := newWmsSyncHandler(t)

	router := chi.NewRouter()
	router.Post("/admin/wms/sync", h.Enqueue)

	req := testutil.NewHTTPRequest(http.MethodPost, "/admin/wms/sync", map[string]interface{}{"reason": "nightly reconciliation"})
	rr := testutil.ExecuteRequest(router, req)

	testutil.AssertStatus(t, rr, http.StatusAccepted)
	testutil.AssertBodyContains(t, rr, `"status":"queued"`)
	assert.Equal(t, 1, pub.count())
}

func TestWmsSyncHandler_Get_ReturnsRequestStatus(t *testing.T) {
	h, _ := newWmsSyncHandler(t)

	enqueueRouter := chi.NewRouter()
	enqueueRouter.Post("/admin/wms/sync", h.Enqueue)
	enqueueReq := testutil.NewHTTPRequest(http.MethodPost, "/admin/wms/sync", map[string]interface{}{})
	enqueueRR := testutil.ExecuteRequest(enqueueRouter, enqueueReq)

	var enqueueResp map[string]interface{}
	testutil.ParseJSONBody(t, enqueueRR, &enqueueResp)
	data := enqueueResp["data"].(map[string]interface{})
	requestID := data["requestId"].(float64)

	getRouter := chi.NewRouter()
	getRouter.Get("/admin/wms/sync/{id}", h.Get)
	getReq := testutil.NewHTTPRequest(http.MethodGet, fmt.Sprintf("/admin/wms/sync/%d", int64(requestID)), nil)
	getRR := testutil.ExecuteRequest(getRouter, getReq)

	testutil.AssertStatus(t, getRR, http.StatusOK)
	testutil.AssertBodyContains(t, getRR, `"status":"PENDING"`)
}

func TestWmsSyncHandler_Get_UnknownIDReturns404(t *testing.T) {
	h, _ := newWmsSyncHandler(t)

	router := chi.NewRouter()
	router.Get("/admin/wms/sync/{id}", h.Get)

	req := testutil.NewHTTPRequest(http.MethodGet, "/admin/wms/sync/999999", nil)
	rr := testutil.ExecuteRequest(router, req)

	testutil.AssertStatus(t, rr, http.StatusNotFound)
}
