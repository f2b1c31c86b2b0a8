package handler

import (
	"net/http"
	"time"

	"github.com/farmastock/farmastock-backend/internal/catalog/service"
	"github.com/farmastock/farmastock-backend/pkg/errors"
	"github.com/farmastock/farmastock-backend/pkg/httputil"
	"github.com/farmastock/farmastock-backend/pkg/logger"
)

const dateLayout = "2006-01-02"

// ProductHandler handles product catalog endpoints
type ProductHandler struct {
	service *service.CatalogService
	logger  *logger.Logger
}

// NewProductHandler creates a new product handler
func NewProductHandler(svc *service.CatalogService, log *logger.Logger) *ProductHandler {
	return &ProductHandler{
		service: svc,
		logger:  log,
	}
}

type createProductRequest struct {
	LaboratoryID int64   `json:"laboratory_id" validate:"required,gt=0"`
	Name         string  `json:"name" validate:"required"`
	Description  *string `json:"description"`
	SalesPrice   *int64  `json:"sales_price" validate:"omitempty,gte=0"`

	BatchName      string `json:"batch_name"`
	ExpirationDate string `json:"expiration_date" validate:"omitempty,datetime=2006-01-02"`
	Quantity       int    `json:"quantity" validate:"gte=0"`
	UnitCost       int64  `json:"unit_cost" validate:"gte=0"`
}

type updateProductRequest struct {
	LaboratoryID *int64  `json:"laboratory_id" validate:"omitempty,gt=0"`
	Name         *string `json:"name"`
	Description  *string `json:"description"`
	SalesPrice   *int64  `json:"sales_price" validate:"omitempty,gte=0"`
}

// Create creates a new product, optionally with opening stock
func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createProductRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	input := service.ProductInput{
		LaboratoryID: req.LaboratoryID,
		Name:         req.Name,
		Description:  req.Description,
		SalesPrice:   req.SalesPrice,
		BatchName:    req.BatchName,
		Quantity:     req.Quantity,
		UnitCost:     req.UnitCost,
	}

	if req.ExpirationDate != "" {
		expiration, err := time.Parse(dateLayout, req.ExpirationDate)
		if err != nil {
			httputil.Error(w, errors.Validation(map[string]string{
				"expiration_date": "must be a date formatted as " + dateLayout,
			}))
			return
		}
		input.ExpirationDate = expiration
	}

	product, err := h.service.CreateProduct(r.Context(), input)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, product)
}

// Update updates product metadata
func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httputil.Error(w, err)
		return
	}

	var req updateProductRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	product, err := h.service.UpdateProduct(r.Context(), id, service.ProductUpdate{
		LaboratoryID: req.LaboratoryID,
		Name:         req.Name,
		Description:  req.Description,
		SalesPrice:   req.SalesPrice,
	})
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, product)
}
