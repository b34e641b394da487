package testutil

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// FixtureFactory inserts minimal rows needed by engine and repository tests
// directly against a connected database, returning the generated ids.
type FixtureFactory struct {
	seq int
}

// NewFixtureFactory creates a fixture factory with a fresh naming sequence.
func NewFixtureFactory() *FixtureFactory {
	return &FixtureFactory{}
}

func (f *FixtureFactory) next() int {
	f.seq++
	return f.seq
}

// InsertSKU inserts a SKU row and returns its id.
func (f *FixtureFactory) InsertSKU(ctx context.Context, db *sqlx.DB, code string) (int64, error) {
	if code == "" {
		code = fmt.Sprintf("SKU-%04d", f.next())
	}
	var id int64
	err := db.QueryRowxContext(ctx,
		`INSERT INTO skus (code, name) VALUES ($1, $2) RETURNING id`,
		code, "fixture "+code,
	).Scan(&id)
	return id, err
}

// BatchFixture describes a batch row to insert for a test.
type BatchFixture struct {
	SKUID             int64
	ExternalBatchID   *string
	TotalQuantity     int
	AvailableQuantity int
}

// InsertBatch inserts a batch row for skuID and returns its id.
func (f *FixtureFactory) InsertBatch(ctx context.Context, db *sqlx.DB, bf BatchFixture) (int64, error) {
	var id int64
	err := db.QueryRowxContext(ctx,
		`INSERT INTO batches (sku_id, external_batch_id, total_quantity, available_quantity)
		 VALUES ($1, $2, $3, $4) RETURNING id`,
		bf.SKUID, bf.ExternalBatchID, bf.TotalQuantity, bf.AvailableQuantity,
	).Scan(&id)
	return id, err
}

// InsertSKUWithBatch is a convenience wrapper creating a SKU and a single
// batch with the given available/total quantity, returning both ids.
func (f *FixtureFactory) InsertSKUWithBatch(ctx context.Context, db *sqlx.DB, total, available int) (skuID, batchID int64, err error) {
	skuID, err = f.InsertSKU(ctx, db, "")
	if err != nil {
		return 0, 0, err
	}
	batchID, err = f.InsertBatch(ctx, db, BatchFixture{SKUID: skuID, TotalQuantity: total, AvailableQuantity: available})
	if err != nil {
		return 0, 0, err
	}
	return skuID, batchID, nil
}

// TruncateAll clears every core table, preserving the sync_state singleton
// row. Intended for per-test cleanup against the shared test container.
func TruncateAll(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		TRUNCATE TABLE
			ledger_entries, reservations, outbox_events,
			wms_snapshots, sync_requests, batches, skus
		RESTART IDENTITY CASCADE;
		UPDATE sync_state SET last_full_sync_at = NULL, last_incremental_token = NULL WHERE id = 1;
	`)
	return err
}
