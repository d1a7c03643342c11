// Package service contains the business logic layer.
//
// This file implements the referral ledger: code generation, applying a
// code at signup, and the one-time conversion that credits the referrer
// when the referred school completes its first payment.
package service

import (
	"context"
	"crypto/rand"
	"log/slog"
	"math/big"
	"time"

	"github.com/darasahq/darasa/internal/domain"
	"github.com/darasahq/darasa/internal/metrics"
	"github.com/darasahq/darasa/internal/notify"
	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
)

const (
	// referralCodeLength is the length of generated referral codes.
	referralCodeLength = 8

	// referralCodeCharset avoids easily confused characters.
	referralCodeCharset = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

	// maxCodeCollisionRetries bounds regeneration attempts when a freshly
	// generated code collides with an existing one.
	maxCodeCollisionRetries = 10

	// referralRewardMonths is the subscription time credited to a referrer
	// per converted referral.
	referralRewardMonths = 1
)

// =============================================================================
// Interface Definition
// =============================================================================

// ReferralService manages referral codes and conversion credits.
type ReferralService interface {
	// CreateReferralCode returns the school's referral code, generating and
	// persisting one on first call. Idempotent.
	CreateReferralCode(ctx context.Context, schoolID uuid.UUID) (string, error)

	// ApplyReferralCode records that a newly signed-up school was referred
	// by the owner of code. Rejects unknown codes and self-referral.
	ApplyReferralCode(ctx context.Context, newSchoolID uuid.UUID, code string) error

	// ConvertReferral marks the school's pending referral converted and
	// credits the referrer with one month of subscription time. Calling it
	// again, or for a school with no pending referral, is a no-op.
	ConvertReferral(ctx context.Context, referredSchoolID uuid.UUID) error
}

// =============================================================================
// Implementation
// =============================================================================

type referralService struct {
	store    domain.Store
	notifier notify.Notifier
	logger   *slog.Logger
	now      func() time.Time
}

// NewReferralService creates a new ReferralService. notifier may be nil,
// in which case referrers are credited silently.
func NewReferralService(store domain.Store, notifier notify.Notifier, logger *slog.Logger) ReferralService {
	return &referralService{
		store:    store,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *referralService) CreateReferralCode(ctx context.Context, schoolID uuid.UUID) (string, error) {
	const op = "referral.create_code"

	school, err := s.store.GetSchool(ctx, schoolID)
	if err != nil {
		return "", err
	}
	if school.ReferralCode != "" {
		return school.ReferralCode, nil
	}

	var code string
	backoff := retry.WithMaxRetries(maxCodeCollisionRetries, retry.NewConstant(time.Millisecond))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		candidate, err := generateReferralCode()
		if err != nil {
			return err
		}
		if err := s.store.SetReferralCode(ctx, schoolID, candidate); err != nil {
			if domain.ErrorCode(err) == domain.ECONFLICT {
				return retry.RetryableError(err)
			}
			return err
		}
		code = candidate
		return nil
	})
	if err != nil {
		return "", domain.Internal(err, op, "failed to generate a unique referral code")
	}

	s.logger.Info("referral code created", "school_id", schoolID, "code", code)
	return code, nil
}

func (s *referralService) ApplyReferralCode(ctx context.Context, newSchoolID uuid.UUID, code string) error {
	const op = "referral.apply_code"

	if code == "" {
		return domain.Invalid(op, "referral code is required")
	}

	referrer, err := s.store.GetSchoolByReferralCode(ctx, code)
	if err != nil {
		return err
	}
	if referrer.ID == newSchoolID {
		return domain.Invalid(op, "a school cannot refer itself")
	}

	if err := s.store.SetReferredBy(ctx, newSchoolID, code); err != nil {
		return err
	}

	referral := &domain.Referral{
		ID:         uuid.New(),
		ReferrerID: referrer.ID,
		ReferredID: newSchoolID,
		Code:       code,
		Status:     domain.ReferralStatusPending,
	}
	if err := s.store.CreateReferral(ctx, referral); err != nil {
		return err
	}

	s.logger.Info("referral code applied",
		"referrer_id", referrer.ID,
		"referred_id", newSchoolID,
		"code", code,
	)
	return nil
}

func (s *referralService) ConvertReferral(ctx context.Context, referredSchoolID uuid.UUID) error {
	const op = "referral.convert"

	referral, err := s.store.GetPendingReferralByReferred(ctx, referredSchoolID)
	if err != nil {
		if domain.ErrorCode(err) == domain.ENOTFOUND {
			// No pending referral: nothing to convert. Covers both schools
			// that were never referred and repeated conversion calls.
			return nil
		}
		return err
	}

	now := s.now()
	converted, err := s.store.MarkReferralConverted(ctx, referral.ID, now)
	if err != nil {
		return err
	}
	if !converted {
		return nil
	}

	referrer, err := s.store.GetSchool(ctx, referral.ReferrerID)
	if err != nil {
		return domain.Internal(err, op, "referral converted but referrer could not be loaded")
	}

	// Extend from the later of now or the referrer's current expiry so an
	// active subscription stacks rather than resets.
	base := now
	if referrer.ExpiresAt != nil && referrer.ExpiresAt.After(now) {
		base = *referrer.ExpiresAt
	}
	newExpiry := base.AddDate(0, referralRewardMonths, 0)

	tier := referrer.Tier
	smsLimit := referrer.SMSQuotaLimit
	smsUsed := referrer.SMSQuotaUsed
	if tier == domain.TierFree {
		// A free-tier referrer gets the standard plan for the earned month.
		tier = domain.TierStandard
		smsLimit = domain.GetTierPlan(tier).SMSPerMonth
	}

	upd := domain.SubscriptionUpdate{
		Tier:          tier,
		Status:        domain.SubscriptionStatusActive,
		ExpiresAt:     &newExpiry,
		SMSQuotaLimit: smsLimit,
		SMSQuotaUsed:  smsUsed,
	}
	if err := s.store.UpdateSubscription(ctx, referrer.ID, upd); err != nil {
		return domain.Internal(err, op, "referral converted but referrer credit failed")
	}
	if err := s.store.AddReferralCredit(ctx, referrer.ID); err != nil {
		return domain.Internal(err, op, "referral converted but credit counter update failed")
	}

	metrics.ReferralsConverted.Inc()

	if s.notifier != nil {
		referrer.Tier = tier
		referrer.ExpiresAt = &newExpiry
		if err := s.notifier.SendReferralCreditNotice(ctx, *referrer, referralRewardMonths); err != nil {
			s.logger.Error("referral credit notice failed", "referrer_id", referrer.ID, "error", err)
		}
	}

	s.logger.Info("referral converted",
		"referral_id", referral.ID,
		"referrer_id", referrer.ID,
		"referred_id", referredSchoolID,
		"new_expiry", newExpiry,
	)
	return nil
}

// generateReferralCode returns a random 8-character code.
func generateReferralCode() (string, error) {
	buf := make([]byte, referralCodeLength)
	max := big.NewInt(int64(len(referralCodeCharset)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		buf[i] = referralCodeCharset[n.Int64()]
	}
	return string(buf), nil
}
