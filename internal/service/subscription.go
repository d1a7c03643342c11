// Package service contains the business logic layer.
//
// This file implements the subscription state machine: payment-driven
// activation and extension, and the cron-driven downgrade once expiry plus
// the grace window has elapsed. Nothing re-activates a school
// automatically; the next completed payment moves it straight back to
// active.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/darasahq/darasa/internal/domain"
	"github.com/darasahq/darasa/internal/metrics"
	"github.com/google/uuid"
)

// =============================================================================
// Interface Definition
// =============================================================================

// SubscriptionService owns the tier/status/expiry transitions of schools.
type SubscriptionService interface {
	// ProcessPayment records a completed subscription payment and applies
	// its effects: tier set, expiry stacked, SMS limit refreshed, status
	// forced to active. First-ever payments and payments carrying a
	// referral code trigger referral conversion.
	ProcessPayment(ctx context.Context, params domain.ProcessPaymentParams) (*domain.SubscriptionPayment, error)

	// DowngradeToFree drops a school to the free tier with expired status
	// and zeroed SMS allowance. Idempotent.
	DowngradeToFree(ctx context.Context, schoolID uuid.UUID) error

	// CheckExpiredSubscriptions downgrades every paying school whose expiry
	// passed more than the grace window ago. Per-school failures are
	// isolated and collected into the summary.
	CheckExpiredSubscriptions(ctx context.Context) (domain.JobSummary, error)
}

// =============================================================================
// Implementation
// =============================================================================

type subscriptionService struct {
	store     domain.Store
	referrals ReferralService
	grace     time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

// NewSubscriptionService creates a new SubscriptionService. A non-positive
// grace falls back to DefaultGracePeriod.
func NewSubscriptionService(store domain.Store, referrals ReferralService, grace time.Duration, logger *slog.Logger) SubscriptionService {
	if grace <= 0 {
		grace = DefaultGracePeriod
	}
	return &subscriptionService{
		store:     store,
		referrals: referrals,
		grace:     grace,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *subscriptionService) ProcessPayment(ctx context.Context, params domain.ProcessPaymentParams) (*domain.SubscriptionPayment, error) {
	const op = "subscription.process_payment"

	if !params.Tier.Paid() {
		return nil, domain.Errorf(domain.EPAYMENT, op, "tier %q is not purchasable", params.Tier)
	}
	if params.DurationMonths <= 0 {
		return nil, domain.Errorf(domain.EPAYMENT, op, "duration must be at least one month")
	}

	school, err := s.store.GetSchool(ctx, params.SchoolID)
	if err != nil {
		return nil, err
	}

	payment := &domain.SubscriptionPayment{
		ID:             uuid.New(),
		SchoolID:       params.SchoolID,
		Tier:           params.Tier,
		Amount:         params.Amount,
		DurationMonths: params.DurationMonths,
		Method:         params.Method,
		TransactionID:  params.TransactionID,
		Status:         domain.PaymentStatusCompleted,
		ReferralCode:   params.ReferralCode,
	}
	if err := s.store.CreatePayment(ctx, payment); err != nil {
		return nil, err
	}

	// Stack from the later of now or a still-valid expiry so early renewals
	// extend rather than reset.
	now := s.now()
	base := now
	if school.ExpiresAt != nil && school.ExpiresAt.After(now) {
		base = *school.ExpiresAt
	}
	newExpiry := base.AddDate(0, params.DurationMonths, 0)

	upd := domain.SubscriptionUpdate{
		Tier:          params.Tier,
		Status:        domain.SubscriptionStatusActive,
		ExpiresAt:     &newExpiry,
		SMSQuotaLimit: domain.GetTierPlan(params.Tier).SMSPerMonth,
		SMSQuotaUsed:  school.SMSQuotaUsed,
	}
	if err := s.store.UpdateSubscription(ctx, params.SchoolID, upd); err != nil {
		return nil, domain.Internal(err, op, "payment recorded but subscription update failed")
	}

	metrics.PaymentsProcessed.WithLabelValues(string(params.Tier)).Inc()
	s.logger.Info("subscription payment processed",
		"school_id", params.SchoolID,
		"tier", params.Tier,
		"months", params.DurationMonths,
		"expires_at", newExpiry,
		"transaction_id", params.TransactionID,
	)

	// First completed payment ever, or an explicitly supplied code,
	// triggers conversion. ConvertReferral is a no-op when there is no
	// pending referral, so over-calling is harmless.
	completed, err := s.store.CountCompletedPayments(ctx, params.SchoolID)
	if err != nil {
		s.logger.Error("failed to count payments for referral conversion", "school_id", params.SchoolID, "error", err)
	} else if completed == 1 || params.ReferralCode != "" {
		if err := s.referrals.ConvertReferral(ctx, params.SchoolID); err != nil {
			// The payment itself succeeded; conversion failure must not
			// surface to the payer.
			s.logger.Error("referral conversion failed", "school_id", params.SchoolID, "error", err)
		}
	}

	return payment, nil
}

func (s *subscriptionService) DowngradeToFree(ctx context.Context, schoolID uuid.UUID) error {
	school, err := s.store.GetSchool(ctx, schoolID)
	if err != nil {
		return err
	}

	upd := domain.SubscriptionUpdate{
		Tier:          domain.TierFree,
		Status:        domain.SubscriptionStatusExpired,
		ExpiresAt:     school.ExpiresAt,
		SMSQuotaLimit: 0,
		SMSQuotaUsed:  0,
	}
	if err := s.store.UpdateSubscription(ctx, schoolID, upd); err != nil {
		return err
	}

	metrics.SubscriptionsDowngraded.Inc()
	s.logger.Info("school downgraded to free tier", "school_id", schoolID, "previous_tier", school.Tier)
	return nil
}

func (s *subscriptionService) CheckExpiredSubscriptions(ctx context.Context) (domain.JobSummary, error) {
	cutoff := s.now().Add(-s.grace)

	expired, err := s.store.ListExpiredBefore(ctx, cutoff)
	if err != nil {
		return domain.JobSummary{}, err
	}

	var summary domain.JobSummary
	for _, school := range expired {
		err := s.DowngradeToFree(ctx, school.ID)
		if err != nil {
			err = fmt.Errorf("school %s: %w", school.ID, err)
			s.logger.Error("expiry downgrade failed", "school_id", school.ID, "error", err)
		}
		summary.Record(err)
	}
	return summary, nil
}
