package wmsclient_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nabis/inventory-core/internal/wmsclient"
	"github.com/nabis/inventory-core/pkg/logger"
	"github.com/nabis/inventory-core/pkg/messaging"
)

func newTestLogger() *logger.Logger {
	return logger.New("wmsclient-test", "test")
}

func TestHTTPClient_Allocate_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	c := wmsclient.NewHTTPClient(srv.URL, "test-key", time.Second, newTestLogger())
	resp, err := c.Allocate(context.Background(), wmsclient.MovementRequest{ExternalBatchID: "ext-1", Quantity: 3, OrderRef: "order-1"})
	require.NoError(t, err)
	assert.True(t, resp.Accepted)
}

func TestHTTPClient_Allocate_RetriableStatusIsNotNonRetriable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := wmsclient.NewHTTPClient(srv.URL, "test-key", time.Second, newTestLogger())
	_, err := c.Allocate(context.Background(), wmsclient.MovementRequest{ExternalBatchID: "ext-1", Quantity: 3, OrderRef: "order-1"})
	require.Error(t, err)
	assert.False(t, messaging.IsNonRetriable(err))
}

func TestHTTPClient_Release_NonRetriableStatusIsNonRetriable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := wmsclient.NewHTTPClient(srv.URL, "test-key", time.Second, newTestLogger())
	_, err := c.Release(context.Background(), wmsclient.MovementRequest{ExternalBatchID: "ext-1", Quantity: 3, OrderRef: "order-1"})
	require.Error(t, err)
	assert.True(t, messaging.IsNonRetriable(err))
}

func TestMockClient_AllocateRecordsCall(t *testing.T) {
	c := wmsclient.NewMockClient()
	_, err := c.Allocate(context.Background(), wmsclient.MovementRequest{ExternalBatchID: "ext-1", Quantity: 2, OrderRef: "order-9"})
	require.NoError(t, err)

	calls := c.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "ext-1", calls[0].ExternalBatchID)
}

func TestMockClient_FetchSnapshotReturnsSeeded(t *testing.T) {
	c := wmsclient.NewMockClient()
	c.Seed("ext-2", wmsclient.Snapshot{WmsBatchID: "ext-2", ReportedOrderable: 42, ReportedAt: time.Now().UTC()})

	result, err := c.FetchSnapshot(context.Background(), wmsclient.SnapshotQuery{ExternalBatchID: "ext-2"})
	require.NoError(t, err)
	require.Len(t, result.Snapshots, 1)
	assert.Equal(t, 42, result.Snapshots[0].ReportedOrderable)
}
