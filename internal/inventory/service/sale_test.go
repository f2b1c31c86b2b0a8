package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	catalogrepo "github.com/farmastock/farmastock-backend/internal/catalog/repository"
	"github.com/farmastock/farmastock-backend/internal/inventory/repository"
	"github.com/farmastock/farmastock-backend/internal/inventory/service"
	"github.com/farmastock/farmastock-backend/pkg/clock"
	"github.com/farmastock/farmastock-backend/pkg/database"
	"github.com/farmastock/farmastock-backend/pkg/errors"
	"github.com/farmastock/farmastock-backend/pkg/logger"
	"github.com/farmastock/farmastock-backend/pkg/testutil"
)

func newSaleService(t *testing.T) (*service.SaleService, *testutil.MockDB) {
	mockDB := testutil.NewMockDB(t)
	log := logger.New("test", "test")
	db := database.FromSqlx(mockDB.DB, log)

	sales := repository.NewSaleRepository(db)
	ledger := repository.NewBatchRepository(db)
	products := catalogrepo.NewProductRepository(db)

	svc := service.NewSaleService(db, sales, ledger, products, nil, clock.Fixed{T: testNow}, log)
	return svc, mockDB
}

func saleBatchColumns() []string {
	return []string{
		"id", "product_id", "batch_name", "expiration_date", "quantity",
		"unit_cost", "total_cost", "entry_date", "created_at", "updated_at",
	}
}

// twoBatchRows returns product 1's ledger: 5 units expiring in January, 10 in
// February.
func twoBatchRows() *sqlmock.Rows {
	jan := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	feb := time.Date(2026, 2, 15, 0, 0, 0, 0, time.UTC)
	return testutil.MockRows(saleBatchColumns()...).
		AddRow(1, 1, "L-100", jan, 5, 10, 50, testNow, testNow, testNow).
		AddRow(2, 1, "L-101", feb, 10, 10, 100, testNow, testNow, testNow)
}

func TestCreateSaleDeductsFIFO(t *testing.T) {
	svc, mockDB := newSaleService(t)
	defer mockDB.Close()

	saleDate := clock.Midnight(testNow)

	mockDB.ExpectBegin()
	mockDB.ExpectQuery("SELECT id FROM products WHERE id = ANY").
		WillReturnRows(testutil.MockRows("id").AddRow(1))
	// Checking phase locks and sums the batches.
	mockDB.ExpectQuery("FOR UPDATE").
		WithArgs(int64(1)).
		WillReturnRows(twoBatchRows())
	// Deducting phase re-reads them.
	mockDB.ExpectQuery("FOR UPDATE").
		WithArgs(int64(1)).
		WillReturnRows(twoBatchRows())
	// 8 units: the January batch drains to 0, February drops to 7.
	mockDB.ExpectExec("UPDATE product_batches SET quantity").
		WithArgs(int64(1), 0).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mockDB.ExpectExec("UPDATE product_batches SET quantity").
		WithArgs(int64(2), 7).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mockDB.ExpectQuery("INSERT INTO sales").
		WillReturnRows(testutil.MockRows("id", "value", "sale_date", "description", "created_at").
			AddRow(11, 240, saleDate, nil, testNow))
	mockDB.ExpectQuery("INSERT INTO sale_lines").
		WillReturnRows(testutil.MockRows("id").AddRow(21))
	mockDB.ExpectCommit()

	result, err := svc.CreateSale(context.Background(), "", []service.SaleLineInput{
		{ProductID: 1, UnitPrice: 30, Quantity: 8},
	})
	require.NoError(t, err)

	assert.Equal(t, int64(11), result.Sale.ID)
	assert.Equal(t, int64(240), result.Summary.TotalValue)
	assert.Equal(t, 8, result.Summary.TotalItems)
	assert.Equal(t, 1, result.Summary.ProductCount)

	mockDB.ExpectationsWereMet(t)
}

func TestCreateSaleInsufficientStockRejectsWholeSale(t *testing.T) {
	svc, mockDB := newSaleService(t)
	defer mockDB.Close()

	mockDB.ExpectBegin()
	mockDB.ExpectQuery("SELECT id FROM products WHERE id = ANY").
		WillReturnRows(testutil.MockRows("id").AddRow(1))
	mockDB.ExpectQuery("FOR UPDATE").
		WithArgs(int64(1)).
		WillReturnRows(twoBatchRows())
	mockDB.ExpectRollback()

	result, err := svc.CreateSale(context.Background(), "", []service.SaleLineInput{
		{ProductID: 1, UnitPrice: 30, Quantity: 20},
	})
	require.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, errors.Is(err, errors.ErrInsufficientStock))

	var appErr *errors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "1", appErr.Details["product_id"])
	assert.Equal(t, "15", appErr.Details["available"])
	assert.Equal(t, "20", appErr.Details["required"])

	mockDB.ExpectationsWereMet(t)
}

func TestCreateSaleAggregatesDuplicateProductLines(t *testing.T) {
	svc, mockDB := newSaleService(t)
	defer mockDB.Close()

	// Two lines of 10 each against 15 available must fail up front, not
	// halfway through deduction.
	mockDB.ExpectBegin()
	mockDB.ExpectQuery("SELECT id FROM products WHERE id = ANY").
		WillReturnRows(testutil.MockRows("id").AddRow(1))
	mockDB.ExpectQuery("FOR UPDATE").
		WithArgs(int64(1)).
		WillReturnRows(twoBatchRows())
	mockDB.ExpectRollback()

	_, err := svc.CreateSale(context.Background(), "", []service.SaleLineInput{
		{ProductID: 1, UnitPrice: 30, Quantity: 10},
		{ProductID: 1, UnitPrice: 25, Quantity: 10},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInsufficientStock))

	var appErr *errors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "20", appErr.Details["required"])

	mockDB.ExpectationsWereMet(t)
}

func TestCreateSaleUnknownProduct(t *testing.T) {
	svc, mockDB := newSaleService(t)
	defer mockDB.Close()

	mockDB.ExpectBegin()
	mockDB.ExpectQuery("SELECT id FROM products WHERE id = ANY").
		WillReturnRows(testutil.MockRows("id"))
	mockDB.ExpectRollback()

	_, err := svc.CreateSale(context.Background(), "", []service.SaleLineInput{
		{ProductID: 42, UnitPrice: 30, Quantity: 1},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrReference))
}

func TestCreateSaleValidation(t *testing.T) {
	svc, mockDB := newSaleService(t)
	defer mockDB.Close()

	cases := []struct {
		name  string
		lines []service.SaleLineInput
	}{
		{"empty lines", nil},
		{"zero quantity", []service.SaleLineInput{{ProductID: 1, UnitPrice: 10, Quantity: 0}}},
		{"negative quantity", []service.SaleLineInput{{ProductID: 1, UnitPrice: 10, Quantity: -2}}},
		{"negative price", []service.SaleLineInput{{ProductID: 1, UnitPrice: -1, Quantity: 1}}},
		{"bad product id", []service.SaleLineInput{{ProductID: 0, UnitPrice: 10, Quantity: 1}}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateSale(context.Background(), "", tc.lines)
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrValidation))
		})
	}

	// Validation failures never touch the database.
	mockDB.ExpectationsWereMet(t)
}

func TestCheckStock(t *testing.T) {
	svc, mockDB := newSaleService(t)
	defer mockDB.Close()

	mockDB.ExpectQuery("SELECT COALESCE(SUM(quantity), 0) FROM product_batches").
		WithArgs(int64(1)).
		WillReturnRows(testutil.MockRows("coalesce").AddRow(15))

	check, err := svc.CheckStock(context.Background(), 1, 10)
	require.NoError(t, err)
	assert.True(t, check.Sufficient)
	assert.Equal(t, 15, check.Available)
	assert.Equal(t, 10, check.Required)
}

func TestCheckStockInvalidQuantity(t *testing.T) {
	svc, mockDB := newSaleService(t)
	defer mockDB.Close()

	_, err := svc.CheckStock(context.Background(), 1, 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrValidation))
}
