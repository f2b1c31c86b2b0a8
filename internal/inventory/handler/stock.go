package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/farmastock/farmastock-backend/internal/inventory/service"
	"github.com/farmastock/farmastock-backend/pkg/errors"
	"github.com/farmastock/farmastock-backend/pkg/httputil"
	"github.com/farmastock/farmastock-backend/pkg/logger"
)

// defaultExpiryHorizonDays is used when the expiring endpoint gets no days
// parameter.
const defaultExpiryHorizonDays = 30

// StockHandler handles the stock view endpoints
type StockHandler struct {
	service *service.StockService
	logger  *logger.Logger
}

// NewStockHandler creates a new stock handler
func NewStockHandler(svc *service.StockService, log *logger.Logger) *StockHandler {
	return &StockHandler{
		service: svc,
		logger:  log,
	}
}

// List lists all products with their aggregated stock
func (h *StockHandler) List(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.ListStock(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, products)
}

// ListForSale lists products with available stock
func (h *StockHandler) ListForSale(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.ListForSale(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, products)
}

// Get gets one product with its aggregated stock
func (h *StockHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httputil.Error(w, err)
		return
	}

	product, err := h.service.GetStock(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, product)
}

// Expiring reports batches expiring within the requested horizon
func (h *StockHandler) Expiring(w http.ResponseWriter, r *http.Request) {
	days := defaultExpiryHorizonDays
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			httputil.Error(w, errors.Validation(map[string]string{"days": "must be an integer"}))
			return
		}
		days = parsed
	}

	report, err := h.service.ScanExpiring(r.Context(), days)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, report)
}

// pathID parses a numeric URL parameter.
func pathID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.Validation(map[string]string{name: "must be a positive id"})
	}
	return id, nil
}
