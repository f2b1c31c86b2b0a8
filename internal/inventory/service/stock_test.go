package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/farmastock/farmastock-backend/internal/inventory/repository"
	"github.com/farmastock/farmastock-backend/internal/inventory/service"
	"github.com/farmastock/farmastock-backend/pkg/clock"
	"github.com/farmastock/farmastock-backend/pkg/database"
	"github.com/farmastock/farmastock-backend/pkg/errors"
	"github.com/farmastock/farmastock-backend/pkg/logger"
	"github.com/farmastock/farmastock-backend/pkg/testutil"
)

func newStockService(t *testing.T, now time.Time) (*service.StockService, *testutil.MockDB) {
	mockDB := testutil.NewMockDB(t)
	log := logger.New("test", "test")
	db := database.FromSqlx(mockDB.DB, log)

	svc := service.NewStockService(repository.NewStockRepository(db), clock.Fixed{T: now}, log)
	return svc, mockDB
}

func expiringColumns() []string {
	return []string{
		"product_id", "product_name", "laboratory", "sales_price",
		"batch_id", "batch_name", "expiration_date", "quantity", "entry_date",
	}
}

func TestScanExpiringRejectsBadHorizon(t *testing.T) {
	svc, mockDB := newStockService(t, time.Now())
	defer mockDB.Close()

	for _, days := range []int{0, -1} {
		_, err := svc.ScanExpiring(context.Background(), days)
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrValidation))
	}
}

func TestScanExpiringGroupsAndSortsByUrgency(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	svc, mockDB := newStockService(t, now)
	defer mockDB.Close()

	// Rows arrive sorted by expiration: Amoxicillin in 3 days, Ibuprofen in
	// 10, then a second Amoxicillin batch in 25.
	in3 := time.Date(2026, 3, 13, 0, 0, 0, 0, time.UTC)
	in10 := time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC)
	in25 := time.Date(2026, 4, 4, 0, 0, 0, 0, time.UTC)
	entry := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	mockDB.ExpectQuery("FROM product_batches pb").
		WillReturnRows(testutil.MockRows(expiringColumns()...).
			AddRow(1, "Amoxicillin", "ACME Labs", 120, 10, "L-100", in3, 4, entry).
			AddRow(2, "Ibuprofen", "ACME Labs", 80, 11, "L-200", in10, 6, entry).
			AddRow(1, "Amoxicillin", "ACME Labs", 120, 12, "L-101", in25, 9, entry))

	report, err := svc.ScanExpiring(context.Background(), 30)
	require.NoError(t, err)
	require.Len(t, report, 2)

	// Amoxicillin first: its soonest batch expires in 3 days.
	assert.Equal(t, int64(1), report[0].ProductID)
	assert.Equal(t, 13, report[0].TotalStock)
	require.Len(t, report[0].Batches, 2)
	assert.Equal(t, 3, report[0].Batches[0].DaysToExpire)
	assert.Equal(t, 25, report[0].Batches[1].DaysToExpire)

	assert.Equal(t, int64(2), report[1].ProductID)
	require.Len(t, report[1].Batches, 1)
	assert.Equal(t, 10, report[1].Batches[0].DaysToExpire)

	mockDB.ExpectationsWereMet(t)
}

func TestScanExpiringEmptyHorizon(t *testing.T) {
	svc, mockDB := newStockService(t, time.Now())
	defer mockDB.Close()

	mockDB.ExpectQuery("FROM product_batches pb").
		WillReturnRows(testutil.MockRows(expiringColumns()...))

	report, err := svc.ScanExpiring(context.Background(), 7)
	require.NoError(t, err)
	assert.Empty(t, report)
}

func TestListStock(t *testing.T) {
	svc, mockDB := newStockService(t, time.Now())
	defer mockDB.Close()

	columns := []string{"id", "name", "laboratory_id", "laboratory", "description", "sales_price", "stock"}
	mockDB.ExpectQuery("FROM products p").
		WillReturnRows(testutil.MockRows(columns...).
			AddRow(1, "Amoxicillin", 1, "ACME Labs", nil, 120, 13).
			AddRow(2, "Ibuprofen", 1, "ACME Labs", nil, 80, 0))

	products, err := svc.ListStock(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, 13, products[0].Stock)
	assert.Equal(t, 0, products[1].Stock)
}
