package wmsclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/nabis/inventory-core/pkg/apperr"
	"github.com/nabis/inventory-core/pkg/logger"
	"github.com/nabis/inventory-core/pkg/messaging"
)

// retriableStatus reports whether status is one of the retriable WMS
// response codes per spec.md §7 (429, 503, 504). Every other non-2xx
// status is non-retriable and must be rejected straight to the
// dead-letter queue by the calling consumer.
func retriableStatus(status int) bool {
	switch status {
	case http.StatusTooManyRequests, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// HTTPClient is the production Client implementation, talking to a real
// WMS over HTTP. For Allocate and Release, transport failures are retried
// with exponential backoff (at most two retries) and returned as a
// messaging.NonRetriable error if they persist. A 429, 503 or 504 response
// is returned as a plain WMS_API_ERROR without retrying, so the consumer
// requeues the message; any other non-2xx status is returned as
// messaging.NonRetriable so the consumer sends the message straight to
// its dead-letter queue.
type HTTPClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *logger.Logger
}

// NewHTTPClient creates an HTTP-backed WMS client.
func NewHTTPClient(baseURL, apiKey string, timeout time.Duration, log *logger.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     log,
	}
}

func (c *HTTPClient) Allocate(ctx context.Context, req MovementRequest) (*MovementResponse, error) {
	return c.doMovement(ctx, "/api/v1/allocations", req)
}

func (c *HTTPClient) Release(ctx context.Context, req MovementRequest) (*MovementResponse, error) {
	return c.doMovement(ctx, "/api/v1/releases", req)
}

func (c *HTTPClient) doMovement(ctx context.Context, path string, req MovementRequest) (*MovementResponse, error) {
	body, err := json.Marshal(struct {
		ExternalBatchID string `json:"externalBatchId"`
		Quantity        int    `json:"quantity"`
		OrderRef        string `json:"orderRef"`
	}{req.ExternalBatchID, req.Quantity, req.OrderRef})
	if err != nil {
		return nil, messaging.NonRetriable(fmt.Errorf("marshal wms request: %w", err))
	}

	// Only transient network-level failures (connection refused, reset,
	// DNS hiccups) are retried here, with a short bounded backoff; this
	// is transport-level resilience, distinct from the retriable/non-
	// retriable classification of a WMS response, which is the broker
	// consumer's job via the returned error.
	var resp *http.Response
	op := func() error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

		resp, err = c.httpClient.Do(httpReq)
		return err
	}

	bo := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 2)
	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		return nil, messaging.NonRetriable(fmt.Errorf("wms %s unreachable: %w", path, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return &MovementResponse{Accepted: true}, nil
	}

	respBody, _ := io.ReadAll(resp.Body)
	wmsErr := apperr.WmsAPIError(fmt.Sprintf("wms %s returned %d: %s", path, resp.StatusCode, string(respBody)))
	if retriableStatus(resp.StatusCode) {
		return nil, wmsErr
	}
	return nil, messaging.NonRetriable(wmsErr)
}

func (c *HTTPClient) FetchSnapshot(ctx context.Context, query SnapshotQuery) (*SnapshotResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/snapshots", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	q := req.URL.Query()
	if query.ExternalBatchID != "" {
		q.Set("batchId", query.ExternalBatchID)
	}
	if query.IncrementalToken != "" {
		q.Set("since", query.IncrementalToken)
	}
	req.URL.RawQuery = q.Encode()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return nil, apperr.WmsAPIError(fmt.Sprintf("wms snapshot fetch returned %d: %s", resp.StatusCode, string(body)))
	}

	var wire struct {
		Snapshots []struct {
			WmsBatchID            string     `json:"wmsBatchId"`
			BatchID               *int64     `json:"batchId"`
			ReportedOrderable     int        `json:"reportedOrderable"`
			ReportedUnallocatable *int       `json:"reportedUnallocatable"`
			ReportedAt            time.Time  `json:"reportedAt"`
		} `json:"snapshots"`
		NextToken string `json:"nextToken"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, fmt.Errorf("decode wms snapshot response: %w", err)
	}

	out := make([]Snapshot, 0, len(wire.Snapshots))
	for _, s := range wire.Snapshots {
		raw, _ := json.Marshal(s)
		out = append(out, Snapshot{
			WmsBatchID:            s.WmsBatchID,
			BatchID:               s.BatchID,
			ReportedOrderable:     s.ReportedOrderable,
			ReportedUnallocatable: s.ReportedUnallocatable,
			ReportedAt:            s.ReportedAt,
			RawPayload:            raw,
		})
	}

	return &SnapshotResult{Snapshots: out, NextToken: wire.NextToken}, nil
}
