// Routes handled:
//   - POST /api/schools/{id}/payments -> RecordPayment
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/darasahq/darasa/internal/domain"
	"github.com/darasahq/darasa/internal/service"
)

// SubscriptionHandler records subscription payments.
//
// Payments arrive here already settled by the external gateway; this
// endpoint applies the subscription time they bought.
type SubscriptionHandler struct {
	subscriptions service.SubscriptionService
	logger        *slog.Logger
}

// NewSubscriptionHandler creates a new SubscriptionHandler.
func NewSubscriptionHandler(subscriptions service.SubscriptionService, logger *slog.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{
		subscriptions: subscriptions,
		logger:        logger,
	}
}

// RegisterRoutes registers subscription routes on the provided mux.
func (h *SubscriptionHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/schools/{id}/payments", h.RecordPayment)
}

type recordPaymentRequest struct {
	Tier           string `json:"tier"`
	Amount         int64  `json:"amount"`
	DurationMonths int    `json:"duration_months"`
	Method         string `json:"method"`
	TransactionID  string `json:"transaction_id"`
	ReferralCode   string `json:"referral_code,omitempty"`
}

// RecordPayment applies a completed payment to the school's subscription.
func (h *SubscriptionHandler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := schoolIDFromPath(w, r, h.logger)
	if !ok {
		return
	}
	var req recordPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid("handler.record_payment", "invalid request body"))
		return
	}

	payment, err := h.subscriptions.ProcessPayment(r.Context(), domain.ProcessPaymentParams{
		SchoolID:       id,
		Tier:           domain.Tier(req.Tier),
		Amount:         req.Amount,
		DurationMonths: req.DurationMonths,
		Method:         req.Method,
		TransactionID:  req.TransactionID,
		ReferralCode:   req.ReferralCode,
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"id":              payment.ID,
		"school_id":       payment.SchoolID,
		"tier":            payment.Tier,
		"amount":          payment.Amount,
		"duration_months": payment.DurationMonths,
		"status":          payment.Status,
		"created_at":      payment.CreatedAt.Format(time.RFC3339),
	})
}
