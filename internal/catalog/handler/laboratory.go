package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/farmastock/farmastock-backend/internal/catalog/service"
	"github.com/farmastock/farmastock-backend/pkg/errors"
	"github.com/farmastock/farmastock-backend/pkg/httputil"
	"github.com/farmastock/farmastock-backend/pkg/logger"
)

// LaboratoryHandler handles laboratory endpoints
type LaboratoryHandler struct {
	service *service.CatalogService
	logger  *logger.Logger
}

// NewLaboratoryHandler creates a new laboratory handler
func NewLaboratoryHandler(svc *service.CatalogService, log *logger.Logger) *LaboratoryHandler {
	return &LaboratoryHandler{
		service: svc,
		logger:  log,
	}
}

type createLaboratoryRequest struct {
	Name string `json:"name" validate:"required"`
}

// List lists laboratories
func (h *LaboratoryHandler) List(w http.ResponseWriter, r *http.Request) {
	labs, err := h.service.ListLaboratories(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, labs)
}

// Get gets a laboratory by ID
func (h *LaboratoryHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httputil.Error(w, err)
		return
	}

	lab, err := h.service.GetLaboratory(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, lab)
}

// Create creates a new laboratory
func (h *LaboratoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createLaboratoryRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	lab, err := h.service.CreateLaboratory(r.Context(), req.Name)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, lab)
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
