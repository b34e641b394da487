package httpapi

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nabis/inventory-core/internal/domain"
	"github.com/nabis/inventory-core/internal/reconcile"
	"github.com/nabis/inventory-core/pkg/apperr"
	"github.com/nabis/inventory-core/pkg/httputil"
	"github.com/nabis/inventory-core/pkg/logger"
	"github.com/nabis/inventory-core/pkg/messaging"
)

// CommandPublisher is the subset of messaging.Publisher the admin WMS
// sync route depends on, kept as an interface so handler tests can
// substitute a fake without a broker.
type CommandPublisher interface {
	PublishCommand(ctx context.Context, messageID, routingKey string, data interface{}) error
}

// WmsSyncHandler serves the admin routes that enqueue and inspect
// ForceWmsSync reconciliation runs.
type WmsSyncHandler struct {
	repo      *reconcile.Repository
	publisher CommandPublisher
	logger    *logger.Logger
}

// NewWmsSyncHandler creates a WMS sync admin handler.
func NewWmsSyncHandler(repo *reconcile.Repository, publisher CommandPublisher, log *logger.Logger) *WmsSyncHandler {
	return &WmsSyncHandler{repo: repo, publisher: publisher, logger: log}
}

type syncRequestBody struct {
	BatchID *int64  `json:"batchId"`
	Reason  *string `json:"reason"`
}

// Enqueue handles POST /admin/wms/sync: it records a PENDING sync request
// and publishes the ForceWmsSync command that the Reconciliation Engine
// consumes, bypassing the outbox since this is an operator-triggered
// command rather than a business-state change (per spec.md §4.4 — only
// the sync request row itself is the durable record of intent).
func (h *WmsSyncHandler) Enqueue(w http.ResponseWriter, r *http.Request) {
	var body syncRequestBody
	if err := httputil.DecodeJSON(r, &body); err != nil {
		httputil.Error(w, err)
		return
	}

	sr := &domain.SyncRequest{
		RequestedBy: "operator",
		Reason:      body.Reason,
		BatchID:     body.BatchID,
		Priority:    0,
		Status:      domain.SyncPending,
	}
	if err := h.repo.InsertSyncRequest(r.Context(), sr); err != nil {
		httputil.Error(w, apperr.Internal("failed to create sync request"))
		return
	}

	requestID := strconv.FormatInt(sr.ID, 10)
	cmd := messaging.ForceWmsSyncCommand{SyncRequestID: requestID, BatchID: body.BatchID}
	if err := h.publisher.PublishCommand(r.Context(), requestID, messaging.CommandForceWmsSync, cmd); err != nil {
		h.logger.Error().Err(err).Int64("sync_request_id", sr.ID).Msg("failed to publish ForceWmsSync command")
		httputil.Error(w, apperr.Internal("failed to enqueue sync request"))
		return
	}

	httputil.JSON(w, http.StatusAccepted, map[string]interface{}{"requestId": sr.ID, "status": "queued"})
}

// Get handles GET /admin/wms/sync/:id.
func (h *WmsSyncHandler) Get(w http.ResponseWriter, r *http.Request) {
	idParam := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(idParam, 10, 64)
	if err != nil {
		httputil.Error(w, apperr.BadRequest("invalid sync request id"))
		return
	}

	sr, err := h.repo.GetSyncRequest(r.Context(), id)
	if err != nil {
		httputil.Error(w, apperr.Internal("failed to fetch sync request"))
		return
	}
	if sr == nil {
		httputil.Error(w, apperr.NotFound("sync request not found"))
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]interface{}{
		"requestId":   sr.ID,
		"status":      sr.Status,
		"batchId":     sr.BatchID,
		"reason":      sr.Reason,
		"createdAt":   sr.CreatedAt,
		"completedAt": sr.CompletedAt,
		"error":       sr.Error,
	})
}
