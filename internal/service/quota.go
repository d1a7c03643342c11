// Package service contains the business logic layer.
//
// This file implements the quota ledger: the usage counter mutations that
// follow a successful upload or SMS send. Increments are atomic conditional
// updates in the store, so the entitlement check stays a pre-flight
// estimate and overshoot is impossible even under concurrent requests.
package service

import (
	"context"
	"log/slog"

	"github.com/darasahq/darasa/internal/domain"
	"github.com/darasahq/darasa/internal/metrics"
	"github.com/google/uuid"
)

// =============================================================================
// Interface Definition
// =============================================================================

// QuotaService mutates the persisted usage counters of a school.
type QuotaService interface {
	// IncrementStorageUsed records bytes of new storage. Returns an EQUOTA
	// error when the school lost the race to its last bytes of quota.
	IncrementStorageUsed(ctx context.Context, schoolID uuid.UUID, bytes int64) error

	// DecrementStorageUsed releases bytes of storage, flooring at zero.
	DecrementStorageUsed(ctx context.Context, schoolID uuid.UUID, bytes int64) error

	// IncrementSMSUsed records count sent messages against the monthly
	// allowance. Returns an EQUOTA error when the allowance is exhausted.
	IncrementSMSUsed(ctx context.Context, schoolID uuid.UUID, count int) error

	// ResetSMSQuota zeroes the school's monthly SMS counter.
	ResetSMSQuota(ctx context.Context, schoolID uuid.UUID) error
}

// =============================================================================
// Implementation
// =============================================================================

type quotaService struct {
	store  domain.SchoolStore
	logger *slog.Logger
}

// NewQuotaService creates a new QuotaService.
func NewQuotaService(store domain.SchoolStore, logger *slog.Logger) QuotaService {
	return &quotaService{
		store:  store,
		logger: logger,
	}
}

func (s *quotaService) IncrementStorageUsed(ctx context.Context, schoolID uuid.UUID, bytes int64) error {
	const op = "quota.increment_storage"

	if bytes < 0 {
		return domain.Invalid(op, "bytes must be non-negative")
	}

	school, err := s.store.GetSchool(ctx, schoolID)
	if err != nil {
		return err
	}
	limit := domain.GetTierPlan(school.Tier).StorageLimit

	if err := s.store.AddStorageUsed(ctx, schoolID, bytes, limit); err != nil {
		if domain.ErrorCode(err) == domain.EQUOTA {
			metrics.QuotaRaceLosses.WithLabelValues("storage").Inc()
			s.logger.Info("storage increment lost the quota race",
				"school_id", schoolID,
				"tier", school.Tier,
				"bytes", bytes,
				"limit", limit,
			)
		}
		return err
	}
	return nil
}

func (s *quotaService) DecrementStorageUsed(ctx context.Context, schoolID uuid.UUID, bytes int64) error {
	const op = "quota.decrement_storage"

	if bytes < 0 {
		return domain.Invalid(op, "bytes must be non-negative")
	}
	return s.store.ReleaseStorageUsed(ctx, schoolID, bytes)
}

func (s *quotaService) IncrementSMSUsed(ctx context.Context, schoolID uuid.UUID, count int) error {
	if count <= 0 {
		count = 1
	}

	if err := s.store.AddSMSUsed(ctx, schoolID, count); err != nil {
		if domain.ErrorCode(err) == domain.EQUOTA {
			metrics.QuotaRaceLosses.WithLabelValues("sms").Inc()
		}
		return err
	}
	metrics.SMSSent.Add(float64(count))
	return nil
}

func (s *quotaService) ResetSMSQuota(ctx context.Context, schoolID uuid.UUID) error {
	return s.store.ResetSMSUsed(ctx, schoolID)
}
