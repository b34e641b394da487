package wmsclient

import (
	"context"
	"sync"
	"time"
)

// MockClient is an in-memory Client used for local development (WMS mode
// "mock") and for tests that don't want to spin up an HTTP fixture. Every
// allocate/release call is accepted; snapshots are whatever the caller
// seeds via Seed.
type MockClient struct {
	mu        sync.Mutex
	snapshots map[string]Snapshot
	calls     []MovementRequest
}

// NewMockClient creates a mock WMS client with no seeded snapshots.
func NewMockClient() *MockClient {
	return &MockClient{snapshots: make(map[string]Snapshot)}
}

// Seed registers a snapshot to be returned for a given external batch id.
func (m *MockClient) Seed(externalBatchID string, s Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots[externalBatchID] = s
}

// Calls returns every Allocate/Release request received so far, in order.
func (m *MockClient) Calls() []MovementRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MovementRequest, len(m.calls))
	copy(out, m.calls)
	return out
}

func (m *MockClient) Allocate(ctx context.Context, req MovementRequest) (*MovementResponse, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	m.mu.Unlock()
	return &MovementResponse{Accepted: true}, nil
}

func (m *MockClient) Release(ctx context.Context, req MovementRequest) (*MovementResponse, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	m.mu.Unlock()
	return &MovementResponse{Accepted: true}, nil
}

func (m *MockClient) FetchSnapshot(ctx context.Context, query SnapshotQuery) (*SnapshotResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if query.ExternalBatchID != "" {
		s, ok := m.snapshots[query.ExternalBatchID]
		if !ok {
			return &SnapshotResult{}, nil
		}
		return &SnapshotResult{Snapshots: []Snapshot{s}}, nil
	}

	all := make([]Snapshot, 0, len(m.snapshots))
	for _, s := range m.snapshots {
		all = append(all, s)
	}
	return &SnapshotResult{Snapshots: all, NextToken: time.Now().UTC().Format(time.RFC3339Nano)}, nil
}
