// Routes handled:
//   - POST   /api/schools/{id}/quota/storage -> ConsumeStorage
//   - DELETE /api/schools/{id}/quota/storage -> ReleaseStorage
//   - POST   /api/schools/{id}/quota/sms     -> ConsumeSMS
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/darasahq/darasa/internal/domain"
	"github.com/darasahq/darasa/internal/service"
)

// QuotaHandler records quota consumption against the ledger.
type QuotaHandler struct {
	quotas service.QuotaService
	logger *slog.Logger
}

// NewQuotaHandler creates a new QuotaHandler.
func NewQuotaHandler(quotas service.QuotaService, logger *slog.Logger) *QuotaHandler {
	return &QuotaHandler{
		quotas: quotas,
		logger: logger,
	}
}

// RegisterRoutes registers quota routes on the provided mux.
func (h *QuotaHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/schools/{id}/quota/storage", h.ConsumeStorage)
	mux.HandleFunc("DELETE /api/schools/{id}/quota/storage", h.ReleaseStorage)
	mux.HandleFunc("POST /api/schools/{id}/quota/sms", h.ConsumeSMS)
}

type storageRequest struct {
	Bytes int64 `json:"bytes"`
}

type smsRequest struct {
	Count int `json:"count"`
}

// ConsumeStorage records bytes of new storage against the school's limit.
func (h *QuotaHandler) ConsumeStorage(w http.ResponseWriter, r *http.Request) {
	id, ok := schoolIDFromPath(w, r, h.logger)
	if !ok {
		return
	}
	var req storageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Bytes <= 0 {
		ErrorResponse(w, r, h.logger, domain.Invalid("handler.consume_storage", "bytes must be a positive integer"))
		return
	}

	if err := h.quotas.IncrementStorageUsed(r.Context(), id, req.Bytes); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"recorded": req.Bytes})
}

// ReleaseStorage returns bytes of storage to the school's allowance.
func (h *QuotaHandler) ReleaseStorage(w http.ResponseWriter, r *http.Request) {
	id, ok := schoolIDFromPath(w, r, h.logger)
	if !ok {
		return
	}
	var req storageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Bytes <= 0 {
		ErrorResponse(w, r, h.logger, domain.Invalid("handler.release_storage", "bytes must be a positive integer"))
		return
	}

	if err := h.quotas.DecrementStorageUsed(r.Context(), id, req.Bytes); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"released": req.Bytes})
}

// ConsumeSMS records count sent messages against the monthly quota.
func (h *QuotaHandler) ConsumeSMS(w http.ResponseWriter, r *http.Request) {
	id, ok := schoolIDFromPath(w, r, h.logger)
	if !ok {
		return
	}
	var req smsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Count < 0 {
		ErrorResponse(w, r, h.logger, domain.Invalid("handler.consume_sms", "count must be a non-negative integer"))
		return
	}

	if err := h.quotas.IncrementSMSUsed(r.Context(), id, req.Count); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"recorded": req.Count})
}
