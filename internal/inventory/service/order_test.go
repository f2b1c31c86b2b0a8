package service_test

import (
	"context"
	"testing"
	"time"

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

var testNow = time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC)

func newOrderService(t *testing.T) (*service.OrderService, *testutil.MockDB) {
	mockDB := testutil.NewMockDB(t)
	log := logger.New("test", "test")
	db := database.FromSqlx(mockDB.DB, log)

	orders := repository.NewOrderRepository(db)
	ledger := repository.NewBatchRepository(db)
	products := catalogrepo.NewProductRepository(db)

	svc := service.NewOrderService(db, orders, ledger, products, nil, clock.Fixed{T: testNow}, log)
	return svc, mockDB
}

func TestCreateOrderSuccess(t *testing.T) {
	svc, mockDB := newOrderService(t)
	defer mockDB.Close()

	exp := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)
	lines := []service.OrderLineInput{
		{ProductID: 1, BatchName: "L-100", ExpirationDate: exp, Quantity: 10, UnitCost: 5},
		{ProductID: 2, BatchName: "L-200", ExpirationDate: exp, Quantity: 3, UnitCost: 20},
	}

	mockDB.ExpectBegin()
	mockDB.ExpectQuery("SELECT id FROM products WHERE id = ANY").
		WillReturnRows(testutil.MockRows("id").AddRow(1).AddRow(2))
	mockDB.ExpectQuery("INSERT INTO purchase_bills").
		WithArgs(int64(110)).
		WillReturnRows(testutil.MockRows("id", "created_at").AddRow(41, testNow))
	mockDB.ExpectQuery("INSERT INTO product_batches").
		WillReturnRows(testutil.MockRows("id", "created_at", "updated_at").AddRow(71, testNow, testNow))
	mockDB.ExpectQuery("INSERT INTO purchase_lines").
		WillReturnRows(testutil.MockRows("id").AddRow(101))
	mockDB.ExpectQuery("INSERT INTO product_batches").
		WillReturnRows(testutil.MockRows("id", "created_at", "updated_at").AddRow(72, testNow, testNow))
	mockDB.ExpectQuery("INSERT INTO purchase_lines").
		WillReturnRows(testutil.MockRows("id").AddRow(102))
	mockDB.ExpectCommit()

	result, err := svc.CreateOrder(context.Background(), lines)
	require.NoError(t, err)

	assert.Equal(t, int64(41), result.Bill.ID)
	assert.Equal(t, int64(110), result.Bill.Value)
	assert.Equal(t, 2, result.Summary.BatchCount)
	assert.Equal(t, 2, result.Summary.DistinctProductCount)
	assert.Equal(t, int64(110), result.Summary.TotalValue)

	require.Len(t, result.Lines, 2)
	assert.Equal(t, int64(71), result.Lines[0].BatchID)
	assert.Equal(t, int64(72), result.Lines[1].BatchID)
	assert.Equal(t, int64(50), result.Lines[0].Total)
	assert.Equal(t, int64(60), result.Lines[1].Total)

	mockDB.ExpectationsWereMet(t)
}

func TestCreateOrderUnknownProductAbortsEverything(t *testing.T) {
	svc, mockDB := newOrderService(t)
	defer mockDB.Close()

	exp := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)
	lines := []service.OrderLineInput{
		{ProductID: 1, BatchName: "L-100", ExpirationDate: exp, Quantity: 10, UnitCost: 5},
		{ProductID: 999, BatchName: "L-200", ExpirationDate: exp, Quantity: 3, UnitCost: 20},
	}

	mockDB.ExpectBegin()
	mockDB.ExpectQuery("SELECT id FROM products WHERE id = ANY").
		WillReturnRows(testutil.MockRows("id").AddRow(1))
	mockDB.ExpectRollback()

	result, err := svc.CreateOrder(context.Background(), lines)
	require.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, errors.Is(err, errors.ErrReference))

	var appErr *errors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "999", appErr.Details["product_ids"])

	mockDB.ExpectationsWereMet(t)
}

func TestCreateOrderValidation(t *testing.T) {
	svc, mockDB := newOrderService(t)
	defer mockDB.Close()

	exp := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		name  string
		lines []service.OrderLineInput
	}{
		{"empty lines", nil},
		{"zero quantity", []service.OrderLineInput{
			{ProductID: 1, BatchName: "L-100", ExpirationDate: exp, Quantity: 0, UnitCost: 5},
		}},
		{"missing batch name", []service.OrderLineInput{
			{ProductID: 1, ExpirationDate: exp, Quantity: 1, UnitCost: 5},
		}},
		{"missing expiration", []service.OrderLineInput{
			{ProductID: 1, BatchName: "L-100", Quantity: 1, UnitCost: 5},
		}},
		{"negative unit cost", []service.OrderLineInput{
			{ProductID: 1, BatchName: "L-100", ExpirationDate: exp, Quantity: 1, UnitCost: -5},
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateOrder(context.Background(), tc.lines)
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrValidation))
		})
	}

	// No transaction was ever opened.
	mockDB.ExpectationsWereMet(t)
}

func TestCreateOrderDuplicateProductCountsOnce(t *testing.T) {
	svc, mockDB := newOrderService(t)
	defer mockDB.Close()

	exp := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)
	lines := []service.OrderLineInput{
		{ProductID: 1, BatchName: "L-100", ExpirationDate: exp, Quantity: 5, UnitCost: 2},
		{ProductID: 1, BatchName: "L-101", ExpirationDate: exp.AddDate(0, 1, 0), Quantity: 5, UnitCost: 2},
	}

	mockDB.ExpectBegin()
	mockDB.ExpectQuery("SELECT id FROM products WHERE id = ANY").
		WillReturnRows(testutil.MockRows("id").AddRow(1))
	mockDB.ExpectQuery("INSERT INTO purchase_bills").
		WithArgs(int64(20)).
		WillReturnRows(testutil.MockRows("id", "created_at").AddRow(42, testNow))
	mockDB.ExpectQuery("INSERT INTO product_batches").
		WillReturnRows(testutil.MockRows("id", "created_at", "updated_at").AddRow(73, testNow, testNow))
	mockDB.ExpectQuery("INSERT INTO purchase_lines").
		WillReturnRows(testutil.MockRows("id").AddRow(103))
	mockDB.ExpectQuery("INSERT INTO product_batches").
		WillReturnRows(testutil.MockRows("id", "created_at", "updated_at").AddRow(74, testNow, testNow))
	mockDB.ExpectQuery("INSERT INTO purchase_lines").
		WillReturnRows(testutil.MockRows("id").AddRow(104))
	mockDB.ExpectCommit()

	result, err := svc.CreateOrder(context.Background(), lines)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Summary.BatchCount)
	assert.Equal(t, 1, result.Summary.DistinctProductCount)
}
