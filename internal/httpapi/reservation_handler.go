package httpapi

import (
	"net/http"

	"github.com/nabis/inventory-core/internal/reservation"
	"github.com/nabis/inventory-core/pkg/apperr"
	"github.com/nabis/inventory-core/pkg/httputil"
	"github.com/nabis/inventory-core/pkg/logger"
)

// ReservationHandler serves the hot-path reserve/release routes.
type ReservationHandler struct {
	engine *reservation.Engine
	logger *logger.Logger
}

// NewReservationHandler creates a reservation handler.
func NewReservationHandler(engine *reservation.Engine, log *logger.Logger) *ReservationHandler {
	return &ReservationHandler{engine: engine, logger: log}
}

type reserveLine struct {
	BatchID  int64 `json:"batchId" validate:"required"`
	Quantity int   `json:"quantity" validate:"required,gt=0"`
}

type reserveRequest struct {
	OrderID string        `json:"orderId" validate:"required"`
	Lines   []reserveLine `json:"lines" validate:"required,min=1,dive"`
}

// Reserve handles POST /inventory/reserve.
func (h *ReservationHandler) Reserve(w http.ResponseWriter, r *http.Request) {
	var req reserveRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	lines := make([]reservation.Line, len(req.Lines))
	for i, l := range req.Lines {
		lines[i] = reservation.Line{BatchID: l.BatchID, Quantity: l.Quantity}
	}

	if err := h.engine.Reserve(r.Context(), req.OrderID, lines); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, map[string]interface{}{"status": "ok", "orderId": req.OrderID})
}

type releaseRequest struct {
	OrderID string  `json:"orderId" validate:"required"`
	Reason  *string `json:"reason"`
}

// Release handles POST /inventory/release.
func (h *ReservationHandler) Release(w http.ResponseWriter, r *http.Request) {
	var req releaseRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	if err := h.engine.Release(r.Context(), req.OrderID, req.Reason); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]interface{}{"status": "ok", "orderId": req.OrderID})
}

type adjustRequest struct {
	BatchID       int64  `json:"batchId" validate:"required"`
	QuantityDelta int    `json:"quantityDelta" validate:"required"`
	Reason        string `json:"reason" validate:"required"`
}

// Adjust handles POST /admin/inventory/adjust.
func (h *ReservationHandler) Adjust(w http.ResponseWriter, r *http.Request) {
	var req adjustRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}
	if req.QuantityDelta == 0 {
		httputil.Error(w, apperr.InvalidQuantity("quantityDelta must not be zero"))
		return
	}

	newAvailable, err := h.engine.Adjust(r.Context(), req.BatchID, req.QuantityDelta, req.Reason)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]interface{}{"status": "ok", "newAvailableQuantity": newAvailable})
}
