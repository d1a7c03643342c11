// Routes handled (behind operator basic auth):
//   - POST /api/admin/jobs/{name} -> TriggerJob
package handler

import (
	"log/slog"
	"net/http"

	"github.com/darasahq/darasa/internal/cron"
)

// AdminHandler exposes operator actions.
type AdminHandler struct {
	scheduler *cron.Scheduler
	logger    *slog.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(scheduler *cron.Scheduler, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		scheduler: scheduler,
		logger:    logger,
	}
}

// RegisterRoutes registers admin routes on the provided mux. protect wraps
// each route with operator authentication.
func (h *AdminHandler) RegisterRoutes(mux *http.ServeMux, protect func(http.Handler) http.Handler) {
	mux.Handle("POST /api/admin/jobs/{name}", protect(http.HandlerFunc(h.TriggerJob)))
}

// TriggerJob runs a registered job outside its schedule. The run goes
// through the same audit and overlap handling as a scheduled fire.
func (h *AdminHandler) TriggerJob(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	if err := h.scheduler.Trigger(r.Context(), name); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	h.logger.Info("job triggered manually", "job", name)
	writeJSON(w, http.StatusOK, map[string]string{"job": name, "status": "ran"})
}
