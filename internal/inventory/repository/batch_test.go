package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/farmastock/farmastock-backend/internal/inventory/repository"
	"github.com/farmastock/farmastock-backend/pkg/database"
	"github.com/farmastock/farmastock-backend/pkg/errors"
	"github.com/farmastock/farmastock-backend/pkg/logger"
	"github.com/farmastock/farmastock-backend/pkg/testutil"
)

func newBatchRepo(t *testing.T) (*repository.BatchRepository, *testutil.MockDB, *database.DB) {
	mockDB := testutil.NewMockDB(t)
	db := database.FromSqlx(mockDB.DB, logger.New("test", "test"))
	return repository.NewBatchRepository(db), mockDB, db
}

func batchColumns() []string {
	return []string{
		"id", "product_id", "batch_name", "expiration_date", "quantity",
		"unit_cost", "total_cost", "entry_date", "created_at", "updated_at",
	}
}

func TestAvailableStock(t *testing.T) {
	repo, mockDB, db := newBatchRepo(t)
	defer mockDB.Close()

	mockDB.ExpectQuery("SELECT COALESCE(SUM(quantity), 0) FROM product_batches").
		WithArgs(int64(7)).
		WillReturnRows(testutil.MockRows("coalesce").AddRow(15))

	total, err := repo.AvailableStock(context.Background(), db, 7)
	require.NoError(t, err)
	assert.Equal(t, 15, total)

	mockDB.ExpectationsWereMet(t)
}

func TestAvailableStockNoBatches(t *testing.T) {
	repo, mockDB, db := newBatchRepo(t)
	defer mockDB.Close()

	mockDB.ExpectQuery("SELECT COALESCE(SUM(quantity), 0) FROM product_batches").
		WithArgs(int64(7)).
		WillReturnRows(testutil.MockRows("coalesce").AddRow(0))

	total, err := repo.AvailableStock(context.Background(), db, 7)
	require.NoError(t, err)
	assert.Equal(t, 0, total)
}

func TestBatchesForDeductionOrder(t *testing.T) {
	repo, mockDB, _ := newBatchRepo(t)
	defer mockDB.Close()

	now := time.Now()
	jan := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	feb := time.Date(2026, 2, 15, 0, 0, 0, 0, time.UTC)

	mockDB.ExpectBegin()
	mockDB.ExpectQuery("FOR UPDATE").
		WithArgs(int64(1)).
		WillReturnRows(testutil.MockRows(batchColumns()...).
			AddRow(1, 1, "L-100", jan, 5, 10, 50, now, now, now).
			AddRow(2, 1, "L-101", feb, 10, 10, 100, now, now, now))

	tx, err := mockDB.DB.Beginx()
	require.NoError(t, err)

	batches, err := repo.BatchesForDeduction(context.Background(), tx, 1)
	require.NoError(t, err)
	require.Len(t, batches, 2)
	assert.Equal(t, int64(1), batches[0].ID)
	assert.Equal(t, 5, batches[0].Quantity)
	assert.Equal(t, int64(2), batches[1].ID)
}

func TestCreateBatchComputesTotalCost(t *testing.T) {
	repo, mockDB, db := newBatchRepo(t)
	defer mockDB.Close()

	now := time.Now()
	batch := &repository.Batch{
		ProductID:      3,
		BatchName:      "L-200",
		ExpirationDate: time.Date(2027, 6, 1, 0, 0, 0, 0, time.UTC),
		Quantity:       4,
		UnitCost:       25,
		EntryDate:      now,
	}

	mockDB.ExpectQuery("INSERT INTO product_batches").
		WithArgs(batch.ProductID, batch.BatchName, batch.ExpirationDate, 4, int64(25), int64(100), now).
		WillReturnRows(testutil.MockRows("id", "created_at", "updated_at").AddRow(9, now, now))

	err := repo.Create(context.Background(), db, batch)
	require.NoError(t, err)
	assert.Equal(t, int64(9), batch.ID)
	assert.Equal(t, int64(100), batch.TotalCost)

	mockDB.ExpectationsWereMet(t)
}

func TestCreateBatchRejectsNonPositiveQuantity(t *testing.T) {
	repo, mockDB, db := newBatchRepo(t)
	defer mockDB.Close()

	err := repo.Create(context.Background(), db, &repository.Batch{Quantity: 0})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrValidation))
}

func TestDepleteRejectsNegativeQuantity(t *testing.T) {
	repo, mockDB, _ := newBatchRepo(t)
	defer mockDB.Close()

	mockDB.ExpectBegin()
	tx, err := mockDB.DB.Beginx()
	require.NoError(t, err)

	err = repo.Deplete(context.Background(), tx, 1, -1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInternal))
}

func TestDepleteUnknownBatch(t *testing.T) {
	repo, mockDB, _ := newBatchRepo(t)
	defer mockDB.Close()

	mockDB.ExpectBegin()
	mockDB.ExpectExec("UPDATE product_batches SET quantity").
		WithArgs(int64(99), 0).
		WillReturnResult(sqlmock.NewResult(0, 0))

	tx, err := mockDB.DB.Beginx()
	require.NoError(t, err)

	err = repo.Deplete(context.Background(), tx, 99, 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}
