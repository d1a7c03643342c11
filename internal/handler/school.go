// Package handler contains the JSON API handlers for the Darasa
// subscription service.
//
// Routes handled:
//   - POST /api/schools                     -> Register (rate limited)
//   - GET  /api/schools/{id}               -> Get
//   - POST /api/schools/{id}/referral-code -> CreateReferralCode
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/darasahq/darasa/internal/domain"
	"github.com/darasahq/darasa/internal/service"
	"github.com/google/uuid"
)

// SchoolHandler handles school account HTTP requests.
type SchoolHandler struct {
	schools   service.SchoolService
	referrals service.ReferralService
	logger    *slog.Logger
}

// NewSchoolHandler creates a new SchoolHandler.
func NewSchoolHandler(schools service.SchoolService, referrals service.ReferralService, logger *slog.Logger) *SchoolHandler {
	return &SchoolHandler{
		schools:   schools,
		referrals: referrals,
		logger:    logger,
	}
}

// RegisterRoutes registers school routes on the provided mux. limit wraps
// the registration endpoint with the signup rate limiter.
func (h *SchoolHandler) RegisterRoutes(mux *http.ServeMux, limit func(http.Handler) http.Handler) {
	mux.Handle("POST /api/schools", limit(http.HandlerFunc(h.Register)))
	mux.HandleFunc("GET /api/schools/{id}", h.Get)
	mux.HandleFunc("POST /api/schools/{id}/referral-code", h.CreateReferralCode)
}

type registerSchoolRequest struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	ReferralCode string `json:"referral_code,omitempty"`
}

// Register creates a new school on the free tier.
func (h *SchoolHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerSchoolRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid("handler.register_school", "invalid request body"))
		return
	}

	school, err := h.schools.Register(r.Context(), service.RegisterSchoolParams{
		Name:         req.Name,
		Email:        req.Email,
		ReferralCode: req.ReferralCode,
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, schoolResponse(school))
}

// Get returns one school's subscription state.
func (h *SchoolHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := schoolIDFromPath(w, r, h.logger)
	if !ok {
		return
	}

	school, err := h.schools.Get(r.Context(), id)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, schoolResponse(school))
}

// CreateReferralCode returns the school's referral code, generating one on
// first call.
func (h *SchoolHandler) CreateReferralCode(w http.ResponseWriter, r *http.Request) {
	id, ok := schoolIDFromPath(w, r, h.logger)
	if !ok {
		return
	}

	code, err := h.referrals.CreateReferralCode(r.Context(), id)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"referral_code": code})
}

// schoolIDFromPath parses the {id} path segment, writing the error response
// itself when the value is not a UUID.
func schoolIDFromPath(w http.ResponseWriter, r *http.Request, logger *slog.Logger) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		ErrorResponse(w, r, logger, domain.Invalid("handler.parse_school_id", "school ID must be a valid UUID"))
		return uuid.Nil, false
	}
	return id, true
}

// schoolResponse shapes a school for the API.
func schoolResponse(s *domain.School) map[string]any {
	body := map[string]any{
		"id":               s.ID,
		"name":             s.Name,
		"email":            s.Email,
		"tier":             s.Tier,
		"status":           s.Status,
		"storage_used":     s.StorageUsed,
		"sms_quota_used":   s.SMSQuotaUsed,
		"sms_quota_limit":  s.SMSQuotaLimit,
		"referral_credits": s.ReferralCredits,
		"created_at":       s.CreatedAt.Format(time.RFC3339),
	}
	if s.ExpiresAt != nil {
		body["expires_at"] = s.ExpiresAt.Format(time.RFC3339)
	}
	if s.ReferralCode != "" {
		body["referral_code"] = s.ReferralCode
	}
	return body
}
