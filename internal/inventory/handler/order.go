package handler

import (
	"net/http"
	"time"

	"github.com/farmastock/farmastock-backend/internal/inventory/service"
	"github.com/farmastock/farmastock-backend/pkg/errors"
	"github.com/farmastock/farmastock-backend/pkg/httputil"
	"github.com/farmastock/farmastock-backend/pkg/logger"
)

const dateLayout = "2006-01-02"

// OrderHandler handles purchase order endpoints
type OrderHandler struct {
	service *service.OrderService
	logger  *logger.Logger
}

// NewOrderHandler creates a new order handler
func NewOrderHandler(svc *service.OrderService, log *logger.Logger) *OrderHandler {
	return &OrderHandler{
		service: svc,
		logger:  log,
	}
}

type orderLineRequest struct {
	ProductID      int64  `json:"product_id" validate:"required,gt=0"`
	BatchName      string `json:"batch_name" validate:"required"`
	ExpirationDate string `json:"expiration_date" validate:"required,datetime=2006-01-02"`
	Quantity       int    `json:"quantity" validate:"required,gt=0"`
	UnitCost       int64  `json:"unit_cost" validate:"gte=0"`
}

type createOrderRequest struct {
	Lines []orderLineRequest `json:"lines" validate:"required,min=1,dive"`
}

// Create records a purchase order
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	lines := make([]service.OrderLineInput, 0, len(req.Lines))
	for _, line := range req.Lines {
		expiration, err := time.Parse(dateLayout, line.ExpirationDate)
		if err != nil {
			httputil.Error(w, errors.Validation(map[string]string{
				"expiration_date": "must be a date formatted as " + dateLayout,
			}))
			return
		}

		lines = append(lines, service.OrderLineInput{
			ProductID:      line.ProductID,
			BatchName:      line.BatchName,
			ExpirationDate: expiration,
			Quantity:       line.Quantity,
			UnitCost:       line.UnitCost,
		})
	}

	result, err := h.service.CreateOrder(r.Context(), lines)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, result)
}

// List lists purchase bills
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	bills, err := h.service.ListOrders(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, bills)
}

// Get gets a purchase bill with its lines
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httputil.Error(w, err)
		return
	}

	detail, err := h.service.GetOrder(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, detail)
}
