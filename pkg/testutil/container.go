// Package testutil provides testing utilities for the inventory core
// services: a shared PostgreSQL testcontainer, schema bootstrap, sqlmock
// factories, and common test fixtures.
package testutil

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// PostgresContainer wraps a testcontainers PostgreSQL instance
type PostgresContainer struct {
	*postgres.PostgresContainer
	DSN string
}

// PostgresContainerConfig configures the test PostgreSQL container
type PostgresContainerConfig struct {
	Database string
	Username string
	Password string
	Image    string // Optional: defaults to postgres:15-alpine
}

// DefaultPostgresConfig returns sensible defaults for test containers
func DefaultPostgresConfig() PostgresContainerConfig {
	return PostgresContainerConfig{
		Database: "inventory_core_test",
		Username: "test",
		Password: "test",
		Image:    "postgres:15-alpine",
	}
}

// NewPostgresContainer creates a new PostgreSQL test container.
//
// Usage:
//
//	func TestMain(m *testing.M) {
//	    ctx := context.Background()
//	    container, err := testutil.NewPostgresContainer(ctx, testutil.DefaultPostgresConfig())
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    defer container.Terminate(ctx)
//
//	    // Run tests
//	    code := m.Run()
//	    os.Exit(code)
//	}
func NewPostgresContainer(ctx context.Context, cfg PostgresContainerConfig) (*PostgresContainer, error) {
	if cfg.Image == "" {
		cfg.Image = "postgres:15-alpine"
	}
	if cfg.Database == "" {
		cfg.Database = "inventory_core_test"
	}
	if cfg.Username == "" {
		cfg.Username = "test"
	}
	if cfg.Password == "" {
		cfg.Password = "test"
	}

	container, err := postgres.RunContainer(ctx,
		testcontainers.WithImage(cfg.Image),
		postgres.WithDatabase(cfg.Database),
		postgres.WithUsername(cfg.Username),
		postgres.WithPassword(cfg.Password),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start postgres container: %w", err)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get connection string: %w", err)
	}

	return &PostgresContainer{
		PostgresContainer: container,
		DSN:               dsn,
	}, nil
}

// Connect returns a sqlx.DB connection to the container
func (c *PostgresContainer) Connect(ctx context.Context) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", c.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to test database: %w", err)
	}
	return db, nil
}

// Terminate stops and removes the container
func (c *PostgresContainer) Terminate(ctx context.Context) error {
	return c.PostgresContainer.Terminate(ctx)
}

// CreateSchema creates the inventory core's tables, constraints and
// indexes (bit-exact per the data model: uniqueness on
// reservations(order_id, batch_id), the batch quantity check
// constraints, and the ledger type/source enums).
func (c *PostgresContainer) CreateSchema(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, coreSchemaSQL); err != nil {
		return fmt.Errorf("failed to create inventory core schema: %w", err)
	}
	return nil
}

// coreSchemaSQL is the bootstrap DDL for the inventory consistency engine.
// It mirrors what a migration tool would apply in production; this module
// does not ship migration tooling (see SPEC_FULL.md), so tests bootstrap
// directly against this definition.
var coreSchemaSQL = `
	CREATE TABLE IF NOT EXISTS skus (
		id BIGSERIAL PRIMARY KEY,
		code VARCHAR(100) NOT NULL,
		name VARCHAR(255),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT skus_code_unique UNIQUE (code)
	);

	CREATE TABLE IF NOT EXISTS batches (
		id BIGSERIAL PRIMARY KEY,
		sku_id BIGINT NOT NULL REFERENCES skus(id),
		external_batch_id VARCHAR(100),
		lot_number VARCHAR(100),
		expires_at TIMESTAMPTZ,
		total_quantity INTEGER NOT NULL,
		unallocatable_quantity INTEGER NOT NULL DEFAULT 0,
		available_quantity INTEGER NOT NULL,
		version INTEGER NOT NULL DEFAULT 0,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT available_le_total CHECK (available_quantity <= total_quantity),
		CONSTRAINT quantity_non_negative CHECK (
			total_quantity >= 0 AND unallocatable_quantity >= 0 AND available_quantity >= 0
		)
	);
	CREATE INDEX IF NOT EXISTS idx_batches_sku ON batches(sku_id);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_batches_external_id ON batches(external_batch_id)
		WHERE external_batch_id IS NOT NULL;

	CREATE TABLE IF NOT EXISTS ledger_entries (
		id BIGSERIAL PRIMARY KEY,
		batch_id BIGINT NOT NULL REFERENCES batches(id) ON DELETE CASCADE,
		type VARCHAR(20) NOT NULL,
		quantity_delta INTEGER NOT NULL,
		source VARCHAR(30) NOT NULL,
		reference_id VARCHAR(100),
		metadata JSONB,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT ledger_entries_type_valid CHECK (
			type IN ('RECEIPT', 'ORDER_ALLOCATE', 'ORDER_RELEASE', 'ADJUSTMENT')
		),
		CONSTRAINT ledger_entries_source_valid CHECK (
			source IN ('NABIS_ORDER', 'WMS_SYNC', 'MANUAL_ADJUSTMENT', 'WMS_OUTBOUND')
		)
	);
	CREATE INDEX IF NOT EXISTS idx_ledger_entries_batch ON ledger_entries(batch_id);

	CREATE TABLE IF NOT EXISTS reservations (
		id BIGSERIAL PRIMARY KEY,
		order_id VARCHAR(100) NOT NULL,
		batch_id BIGINT NOT NULL REFERENCES batches(id) ON DELETE CASCADE,
		quantity INTEGER NOT NULL,
		status VARCHAR(20) NOT NULL DEFAULT 'PENDING',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		expires_at TIMESTAMPTZ,
		CONSTRAINT reservations_quantity_positive CHECK (quantity > 0),
		CONSTRAINT reservations_status_valid CHECK (
			status IN ('PENDING', 'CONFIRMED', 'CANCELLED', 'EXPIRED')
		),
		CONSTRAINT reservations_order_batch UNIQUE (order_id, batch_id)
	);
	CREATE INDEX IF NOT EXISTS idx_reservations_order ON reservations(order_id);

	CREATE TABLE IF NOT EXISTS outbox_events (
		id BIGSERIAL PRIMARY KEY,
		type VARCHAR(50) NOT NULL,
		payload JSONB NOT NULL,
		status VARCHAR(20) NOT NULL DEFAULT 'PENDING',
		retry_count INTEGER NOT NULL DEFAULT 0,
		error TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT outbox_events_status_valid CHECK (status IN ('PENDING', 'SENT', 'FAILED'))
	);
	CREATE INDEX IF NOT EXISTS idx_outbox_events_pending ON outbox_events(created_at)
		WHERE status = 'PENDING';

	CREATE TABLE IF NOT EXISTS wms_snapshots (
		id BIGSERIAL PRIMARY KEY,
		wms_batch_id VARCHAR(100) NOT NULL,
		batch_id BIGINT REFERENCES batches(id),
		reported_orderable INTEGER NOT NULL,
		reported_unallocatable INTEGER,
		reported_at TIMESTAMPTZ NOT NULL,
		raw_payload JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	CREATE INDEX IF NOT EXISTS idx_wms_snapshots_batch ON wms_snapshots(batch_id);

	CREATE TABLE IF NOT EXISTS sync_requests (
		id BIGSERIAL PRIMARY KEY,
		requested_by VARCHAR(100) NOT NULL,
		reason TEXT,
		batch_id BIGINT REFERENCES batches(id),
		priority INTEGER NOT NULL DEFAULT 0,
		status VARCHAR(20) NOT NULL DEFAULT 'PENDING',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		completed_at TIMESTAMPTZ,
		error TEXT,
		CONSTRAINT sync_requests_status_valid CHECK (
			status IN ('PENDING', 'IN_PROGRESS', 'DONE', 'FAILED')
		)
	);

	CREATE TABLE IF NOT EXISTS sync_state (
		id INTEGER PRIMARY KEY DEFAULT 1,
		last_full_sync_at TIMESTAMPTZ,
		last_incremental_token VARCHAR(255),
		CONSTRAINT sync_state_singleton CHECK (id = 1)
	);
	INSERT INTO sync_state (id) VALUES (1) ON CONFLICT (id) DO NOTHING;
`
