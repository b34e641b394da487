package query

import (
	"context"
	"time"
)

// Inventory is the GET /inventory/:sku response shape: a SKU code, its
// total available quantity across all batches, and the per-batch detail
// spec.md §4.5 orders by expiry.
type Inventory struct {
	SKUCode        string                    `json:"skuCode"`
	TotalAvailable int                       `json:"totalAvailable"`
	Batches        []BatchAvailabilityOutput `json:"batches"`
}

// BatchAvailabilityOutput is the wire shape of one batch in an Inventory
// response.
type BatchAvailabilityOutput struct {
	BatchID           int64   `json:"batchId"`
	ExternalBatchID   *string `json:"externalBatchId,omitempty"`
	LotNumber         *string `json:"lotNumber,omitempty"`
	ExpiresAt         *string `json:"expiresAt,omitempty"`
	AvailableQuantity int     `json:"availableQuantity"`
	TotalQuantity     int     `json:"totalQuantity"`
}

// Service is the query surface's application layer: it has no business
// rules to enforce (the repository already does the one join and sort
// the spec names), only the job of shaping the read model into the HTTP
// response contract.
type Service struct {
	repo *Repository
}

// NewService creates a query service.
func NewService(repo *Repository) *Service {
	return &Service{repo: repo}
}

// GetInventory returns the full GET /inventory/:sku response for a SKU
// code. An unknown SKU code yields an empty, zero-total response rather
// than an error — spec.md's HTTP surface table lists no 404 for this
// route.
func (s *Service) GetInventory(ctx context.Context, skuCode string) (*Inventory, error) {
	rows, err := s.repo.GetAvailableInventory(ctx, skuCode)
	if err != nil {
		return nil, err
	}

	out := &Inventory{SKUCode: skuCode, Batches: make([]BatchAvailabilityOutput, 0, len(rows))}
	for _, b := range rows {
		out.TotalAvailable += b.AvailableQuantity
		var expiresAt *string
		if b.ExpiresAt != nil {
			s := b.ExpiresAt.UTC().Format(time.RFC3339Nano)
			expiresAt = &s
		}
		out.Batches = append(out.Batches, BatchAvailabilityOutput{
			BatchID:           b.BatchID,
			ExternalBatchID:   b.ExternalBatchID,
			LotNumber:         b.LotNumber,
			ExpiresAt:         expiresAt,
			AvailableQuantity: b.AvailableQuantity,
			TotalQuantity:     b.TotalQuantity,
		})
	}
	return out, nil
}
