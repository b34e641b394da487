package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nabis/inventory-core/internal/query"
	"github.com/nabis/inventory-core/pkg/httputil"
	"github.com/nabis/inventory-core/pkg/logger"
)

// QueryHandler serves the read-only inventory lookup route.
type QueryHandler struct {
	service *query.Service
	logger  *logger.Logger
}

// NewQueryHandler creates a query handler.
func NewQueryHandler(service *query.Service, log *logger.Logger) *QueryHandler {
	return &QueryHandler{service: service, logger: log}
}

// GetInventory handles GET /inventory/:sku.
func (h *QueryHandler) GetInventory(w http.ResponseWriter, r *http.Request) {
	skuCode := chi.URLParam(r, "sku")

	inv, err := h.service.GetInventory(r.Context(), skuCode)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, inv)
}
