// Package service contains the business logic layer.
//
// This file implements the entitlement evaluator: the yes/no decision for
// whether a school may use a feature or consume quota right now, accounting
// for tier, expiry, and the grace window.
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

// DefaultGracePeriod is how long past expires_at a lapsed subscription
// still behaves as active.
const DefaultGracePeriod = 72 * time.Hour

// =============================================================================
// Interface Definition
// =============================================================================

// EntitlementService answers entitlement and quota questions for schools.
//
// Denials come back as domain.Decision values with a renderable reason;
// errors are reserved for missing schools and storage failures.
type EntitlementService interface {
	// CheckFeatureAccess decides whether the school may use the feature.
	CheckFeatureAccess(ctx context.Context, schoolID uuid.UUID, feature domain.Feature) (domain.Decision, error)

	// CheckStorageQuota decides whether the school may store additionalBytes
	// more. This is a pre-flight estimate; the quota ledger enforces the
	// ceiling atomically at write time.
	CheckStorageQuota(ctx context.Context, schoolID uuid.UUID, additionalBytes int64) (domain.Decision, error)

	// CheckSMSQuota decides whether the school may send count more messages.
	CheckSMSQuota(ctx context.Context, schoolID uuid.UUID, count int) (domain.Decision, error)
}

// =============================================================================
// Implementation
// =============================================================================

type entitlementService struct {
	store  domain.SchoolStore
	grace  time.Duration
	logger *slog.Logger
	now    func() time.Time
}

// NewEntitlementService creates an EntitlementService. A non-positive grace
// falls back to DefaultGracePeriod.
func NewEntitlementService(store domain.SchoolStore, grace time.Duration, logger *slog.Logger) EntitlementService {
	if grace <= 0 {
		grace = DefaultGracePeriod
	}
	return &entitlementService{
		store:  store,
		grace:  grace,
		logger: logger,
		now:    time.Now,
	}
}

// CheckFeatureAccess decides whether the school may use the feature.
//
// The expiry guard runs before the registry lookup: a school past
// expires_at plus the grace window is denied everything regardless of its
// persisted tier and status, covering the window before the expiry sweep
// has actually performed the downgrade.
func (s *entitlementService) CheckFeatureAccess(ctx context.Context, schoolID uuid.UUID, feature domain.Feature) (domain.Decision, error) {
	school, err := s.store.GetSchool(ctx, schoolID)
	if err != nil {
		return domain.Decision{}, err
	}

	if school.Lapsed(s.now(), s.grace) {
		metrics.EntitlementDenials.WithLabelValues("expired").Inc()
		return domain.Deny("Your subscription has expired. Renew to regain access."), nil
	}

	if domain.GetTierPlan(school.Tier).Grants(feature) {
		return domain.Allow(), nil
	}

	metrics.EntitlementDenials.WithLabelValues("tier").Inc()
	if minTier, ok := domain.MinimumTierFor(feature); ok {
		return domain.Deny(fmt.Sprintf("The %s feature requires the %s plan or higher.", feature, minTier)), nil
	}
	return domain.Deny(fmt.Sprintf("The %s feature is not available on any plan.", feature)), nil
}

// CheckStorageQuota decides whether additionalBytes more would fit under
// the tier's storage ceiling.
func (s *entitlementService) CheckStorageQuota(ctx context.Context, schoolID uuid.UUID, additionalBytes int64) (domain.Decision, error) {
	school, err := s.store.GetSchool(ctx, schoolID)
	if err != nil {
		return domain.Decision{}, err
	}

	if school.Lapsed(s.now(), s.grace) {
		metrics.EntitlementDenials.WithLabelValues("expired").Inc()
		return domain.Deny("Your subscription has expired. Renew to regain access."), nil
	}

	plan := domain.GetTierPlan(school.Tier)
	if plan.StorageLimit == 0 {
		metrics.EntitlementDenials.WithLabelValues("storage").Inc()
		return domain.Deny(storageUpgradeReason(school.Tier)), nil
	}
	if school.StorageUsed+additionalBytes > plan.StorageLimit {
		metrics.EntitlementDenials.WithLabelValues("storage").Inc()
		s.logger.Info("storage quota denied",
			"school_id", schoolID,
			"tier", school.Tier,
			"used", school.StorageUsed,
			"requested", additionalBytes,
			"limit", plan.StorageLimit,
		)
		return domain.Deny(storageUpgradeReason(school.Tier)), nil
	}
	return domain.Allow(), nil
}

// CheckSMSQuota decides whether count more sends fit under the tier's
// monthly SMS allowance.
func (s *entitlementService) CheckSMSQuota(ctx context.Context, schoolID uuid.UUID, count int) (domain.Decision, error) {
	if count <= 0 {
		count = 1
	}

	school, err := s.store.GetSchool(ctx, schoolID)
	if err != nil {
		return domain.Decision{}, err
	}

	if school.Lapsed(s.now(), s.grace) {
		metrics.EntitlementDenials.WithLabelValues("expired").Inc()
		return domain.Deny("Your subscription has expired. Renew to regain access."), nil
	}

	plan := domain.GetTierPlan(school.Tier)
	if plan.SMSPerMonth == 0 {
		metrics.EntitlementDenials.WithLabelValues("sms").Inc()
		return domain.Deny(smsUpgradeReason(school.Tier)), nil
	}
	if school.SMSQuotaUsed+count > plan.SMSPerMonth {
		metrics.EntitlementDenials.WithLabelValues("sms").Inc()
		return domain.Deny(fmt.Sprintf(
			"Monthly SMS quota reached (%d of %d used). %s",
			school.SMSQuotaUsed, plan.SMSPerMonth, smsUpgradeReason(school.Tier))), nil
	}
	return domain.Allow(), nil
}

// storageUpgradeReason names the cheapest tier whose storage ceiling is
// above the school's current one.
func storageUpgradeReason(current domain.Tier) string {
	currentLimit := domain.GetTierPlan(current).StorageLimit
	for _, t := range []domain.Tier{domain.TierStandard, domain.TierPro} {
		if domain.GetTierPlan(t).StorageLimit > currentLimit {
			return fmt.Sprintf("Storage limit reached. Upgrade to the %s plan for more space.", planTitle(t))
		}
	}
	return "Storage limit reached."
}

func smsUpgradeReason(current domain.Tier) string {
	currentLimit := domain.GetTierPlan(current).SMSPerMonth
	for _, t := range []domain.Tier{domain.TierStandard, domain.TierPro} {
		if domain.GetTierPlan(t).SMSPerMonth > currentLimit {
			return fmt.Sprintf("Upgrade to the %s plan for a larger SMS allowance.", planTitle(t))
		}
	}
	return "SMS allowance reached."
}

func planTitle(t domain.Tier) string {
	switch t {
	case domain.TierStandard:
		return "Standard"
	case domain.TierPro:
		return "Pro"
	default:
		return "Free"
	}
}
