package handler

import (
	"net/http"

	"github.com/farmastock/farmastock-backend/internal/inventory/service"
	"github.com/farmastock/farmastock-backend/pkg/httputil"
	"github.com/farmastock/farmastock-backend/pkg/logger"
)

// SaleHandler handles sale endpoints
type SaleHandler struct {
	service *service.SaleService
	logger  *logger.Logger
}

// NewSaleHandler creates a new sale handler
func NewSaleHandler(svc *service.SaleService, log *logger.Logger) *SaleHandler {
	return &SaleHandler{
		service: svc,
		logger:  log,
	}
}

type saleLineRequest struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
	UnitPrice int64 `json:"unit_price" validate:"gte=0"`
	Quantity  int   `json:"quantity" validate:"required,gt=0"`
}

type createSaleRequest struct {
	Description string            `json:"description"`
	Lines       []saleLineRequest `json:"lines" validate:"required,min=1,dive"`
}

type checkStockRequest struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
	Quantity  int   `json:"quantity" validate:"required,gt=0"`
}

// Create records a sale and deducts stock
func (h *SaleHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createSaleRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	lines := make([]service.SaleLineInput, 0, len(req.Lines))
	for _, line := range req.Lines {
		lines = append(lines, service.SaleLineInput{
			ProductID: line.ProductID,
			UnitPrice: line.UnitPrice,
			Quantity:  line.Quantity,
		})
	}

	result, err := h.service.CreateSale(r.Context(), req.Description, lines)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, result)
}

// List lists sales
func (h *SaleHandler) List(w http.ResponseWriter, r *http.Request) {
	sales, err := h.service.ListSales(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, sales)
}

// Get gets a sale with its lines
func (h *SaleHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httputil.Error(w, err)
		return
	}

	detail, err := h.service.GetSale(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, detail)
}

// CheckStock reports advisory availability for one product
func (h *SaleHandler) CheckStock(w http.ResponseWriter, r *http.Request) {
	var req checkStockRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	check, err := h.service.CheckStock(r.Context(), req.ProductID, req.Quantity)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, check)
}
