package wmsoutbound_test

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nabis/inventory-core/internal/wmsoutbound"
	"github.com/nabis/inventory-core/pkg/database"
	"github.com/nabis/inventory-core/pkg/testutil"
)

func TestRepository_GetExternalBatchID_Found(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	rows := testutil.MockRows("external_batch_id").AddRow("ext-77")
	mockDB.ExpectQuery(`SELECT external_batch_id FROM batches WHERE id = $1`).WithArgs(int64(1)).WillReturnRows(rows)

	repo := wmsoutbound.NewRepository(database.NewWithSqlxDB(mockDB.DB, nil))
	externalID, err := repo.GetExternalBatchID(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, externalID)
	assert.Equal(t, "ext-77", *externalID)

	mockDB.ExpectationsWereMet(t)
}

func TestRepository_GetExternalBatchID_NullIsNil(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	rows := testutil.MockRows("external_batch_id").AddRow(nil)
	mockDB.ExpectQuery(`SELECT external_batch_id FROM batches WHERE id = $1`).WithArgs(int64(2)).WillReturnRows(rows)

	repo := wmsoutbound.NewRepository(database.NewWithSqlxDB(mockDB.DB, nil))
	externalID, err := repo.GetExternalBatchID(context.Background(), 2)
	require.NoError(t, err)
	assert.Nil(t, externalID)

	mockDB.ExpectationsWereMet(t)
}

func TestRepository_InsertAuditEntry(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	mockDB.ExpectExec(`
		INSERT INTO ledger_entries (batch_id, type, quantity_delta, source, reference_id, metadata)
		VALUES ($1, 'ADJUSTMENT', 0, 'WMS_OUTBOUND', $2, $3)
	`).WithArgs(int64(5), "order-1", `{"action":"allocate"}`).WillReturnResult(sqlmock.NewResult(1, 1))

	repo := wmsoutbound.NewRepository(database.NewWithSqlxDB(mockDB.DB, nil))
	err := repo.InsertAuditEntry(context.Background(), 5, "order-1", `{"action":"allocate"}`)
	require.NoError(t, err)

	mockDB.ExpectationsWereMet(t)
}
