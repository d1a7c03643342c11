// Routes handled:
//   - GET /api/schools/{id}/features/{feature} -> CheckFeature
//   - GET /api/schools/{id}/quota/storage      -> CheckStorage (?bytes=N)
//   - GET /api/schools/{id}/quota/sms          -> CheckSMS (?count=N)
package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/darasahq/darasa/internal/domain"
	"github.com/darasahq/darasa/internal/service"
)

// EntitlementHandler answers entitlement and quota pre-flight questions.
type EntitlementHandler struct {
	entitlements service.EntitlementService
	logger       *slog.Logger
}

// NewEntitlementHandler creates a new EntitlementHandler.
func NewEntitlementHandler(entitlements service.EntitlementService, logger *slog.Logger) *EntitlementHandler {
	return &EntitlementHandler{
		entitlements: entitlements,
		logger:       logger,
	}
}

// RegisterRoutes registers entitlement routes on the provided mux.
func (h *EntitlementHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/schools/{id}/features/{feature}", h.CheckFeature)
	mux.HandleFunc("GET /api/schools/{id}/quota/storage", h.CheckStorage)
	mux.HandleFunc("GET /api/schools/{id}/quota/sms", h.CheckSMS)
}

// CheckFeature decides whether the school may use the named feature.
func (h *EntitlementHandler) CheckFeature(w http.ResponseWriter, r *http.Request) {
	id, ok := schoolIDFromPath(w, r, h.logger)
	if !ok {
		return
	}
	feature := domain.Feature(r.PathValue("feature"))

	decision, err := h.entitlements.CheckFeatureAccess(r.Context(), id, feature)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeDecision(w, decision)
}

// CheckStorage decides whether the school may store ?bytes more.
func (h *EntitlementHandler) CheckStorage(w http.ResponseWriter, r *http.Request) {
	id, ok := schoolIDFromPath(w, r, h.logger)
	if !ok {
		return
	}
	bytes, err := strconv.ParseInt(r.URL.Query().Get("bytes"), 10, 64)
	if err != nil || bytes < 0 {
		ErrorResponse(w, r, h.logger, domain.Invalid("handler.check_storage", "bytes must be a non-negative integer"))
		return
	}

	decision, err := h.entitlements.CheckStorageQuota(r.Context(), id, bytes)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeDecision(w, decision)
}

// CheckSMS decides whether the school may send ?count more messages.
func (h *EntitlementHandler) CheckSMS(w http.ResponseWriter, r *http.Request) {
	id, ok := schoolIDFromPath(w, r, h.logger)
	if !ok {
		return
	}
	count, err := strconv.Atoi(r.URL.Query().Get("count"))
	if err != nil || count < 0 {
		ErrorResponse(w, r, h.logger, domain.Invalid("handler.check_sms", "count must be a non-negative integer"))
		return
	}

	decision, err := h.entitlements.CheckSMSQuota(r.Context(), id, count)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeDecision(w, decision)
}

// writeDecision renders an entitlement decision. Denials are 200 responses;
// the caller asked a question and got an answer.
func writeDecision(w http.ResponseWriter, d domain.Decision) {
	body := map[string]any{"allowed": d.Allowed}
	if d.Reason != "" {
		body["reason"] = d.Reason
	}
	writeJSON(w, http.StatusOK, body)
}
