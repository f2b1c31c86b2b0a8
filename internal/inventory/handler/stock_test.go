package handler_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/farmastock/farmastock-backend/internal/inventory/handler"
	"github.com/farmastock/farmastock-backend/internal/inventory/repository"
	"github.com/farmastock/farmastock-backend/internal/inventory/service"
	"github.com/farmastock/farmastock-backend/pkg/clock"
	"github.com/farmastock/farmastock-backend/pkg/database"
	"github.com/farmastock/farmastock-backend/pkg/logger"
	"github.com/farmastock/farmastock-backend/pkg/testutil"
)

func newStockRouter(t *testing.T) (*chi.Mux, *testutil.MockDB) {
	mockDB := testutil.NewMockDB(t)
	log := logger.New("test", "test")
	db := database.FromSqlx(mockDB.DB, log)

	svc := service.NewStockService(repository.NewStockRepository(db), clock.Fixed{T: time.Now()}, log)
	h := handler.NewStockHandler(svc, log)

	r := chi.NewRouter()
	r.Get("/products", h.List)
	r.Get("/products/expiring", h.Expiring)
	r.Get("/products/{id}", h.Get)
	return r, mockDB
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Details map[string]string `json:"details"`
	} `json:"error"`
}

func doRequest(t *testing.T, r http.Handler, method, path string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	var body envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec, body
}

func TestExpiringRejectsNonNumericDays(t *testing.T) {
	r, mockDB := newStockRouter(t)
	defer mockDB.Close()

	rec, body := doRequest(t, r, http.MethodGet, "/products/expiring?days=soon")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, body.Error)
	assert.Equal(t, "VALIDATION_ERROR", body.Error.Code)
	assert.Contains(t, body.Error.Details, "days")
}

func TestExpiringRejectsZeroDays(t *testing.T) {
	r, mockDB := newStockRouter(t)
	defer mockDB.Close()

	rec, body := doRequest(t, r, http.MethodGet, "/products/expiring?days=0")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, body.Error)
	assert.Equal(t, "VALIDATION_ERROR", body.Error.Code)
}

func TestExpiringDefaultsHorizon(t *testing.T) {
	r, mockDB := newStockRouter(t)
	defer mockDB.Close()

	mockDB.ExpectQuery("FROM product_batches pb").
		WillReturnRows(testutil.MockRows(
			"product_id", "product_name", "laboratory", "sales_price",
			"batch_id", "batch_name", "expiration_date", "quantity", "entry_date",
		))

	rec, body := doRequest(t, r, http.MethodGet, "/products/expiring")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, body.Success)

	mockDB.ExpectationsWereMet(t)
}

func TestGetProductRejectsBadID(t *testing.T) {
	r, mockDB := newStockRouter(t)
	defer mockDB.Close()

	rec, body := doRequest(t, r, http.MethodGet, "/products/abc")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, body.Error)
	assert.Contains(t, body.Error.Details, "id")
}

func TestGetProductNotFound(t *testing.T) {
	r, mockDB := newStockRouter(t)
	defer mockDB.Close()

	mockDB.ExpectQuery("FROM products p").
		WillReturnRows(testutil.MockRows(
			"id", "name", "laboratory_id", "laboratory", "description", "sales_price", "stock",
		))

	rec, body := doRequest(t, r, http.MethodGet, "/products/42")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	require.NotNil(t, body.Error)
	assert.Equal(t, "NOT_FOUND", body.Error.Code)
}
