// Package service contains the business logic layer.
//
// This file implements school tenant registration. Every school starts on
// the free tier with no expiry; a referral code supplied at signup links
// the new school to its referrer.
package service

import (
	"context"
	"log/slog"
	"net/mail"
	"strings"

	"github.com/darasahq/darasa/internal/domain"
	"github.com/google/uuid"
)

// =============================================================================
// Interface Definition
// =============================================================================

// RegisterSchoolParams carries the inputs for creating a school tenant.
type RegisterSchoolParams struct {
	Name         string
	Email        string
	ReferralCode string // optional
}

// SchoolService manages school tenant accounts.
type SchoolService interface {
	// Register creates a new school on the free tier. A referral code, when
	// present, must resolve to an existing school.
	Register(ctx context.Context, params RegisterSchoolParams) (*domain.School, error)

	// Get loads one school by ID.
	Get(ctx context.Context, id uuid.UUID) (*domain.School, error)
}

// =============================================================================
// Implementation
// =============================================================================

type schoolService struct {
	store     domain.Store
	referrals ReferralService
	logger    *slog.Logger
}

// NewSchoolService creates a new SchoolService.
func NewSchoolService(store domain.Store, referrals ReferralService, logger *slog.Logger) SchoolService {
	return &schoolService{
		store:     store,
		referrals: referrals,
		logger:    logger,
	}
}

func (s *schoolService) Register(ctx context.Context, params RegisterSchoolParams) (*domain.School, error) {
	const op = "school.register"

	name := strings.TrimSpace(params.Name)
	if name == "" {
		return nil, domain.Invalid(op, "school name is required")
	}
	email := strings.ToLower(strings.TrimSpace(params.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, domain.Invalid(op, "a valid email address is required")
	}

	school := &domain.School{
		ID:     uuid.New(),
		Name:   name,
		Email:  email,
		Tier:   domain.TierFree,
		Status: domain.SubscriptionStatusActive,
	}
	if err := s.store.CreateSchool(ctx, school); err != nil {
		return nil, err
	}

	// The referral link is best-effort: a bad code fails the link, not the
	// registration that already committed.
	if code := strings.TrimSpace(params.ReferralCode); code != "" {
		if err := s.referrals.ApplyReferralCode(ctx, school.ID, code); err != nil {
			s.logger.Warn("referral code not applied at signup",
				"school_id", school.ID,
				"code", code,
				"error", err,
			)
		} else {
			school.ReferredBy = code
		}
	}

	s.logger.Info("school registered", "school_id", school.ID, "name", school.Name)
	return school, nil
}

func (s *schoolService) Get(ctx context.Context, id uuid.UUID) (*domain.School, error) {
	return s.store.GetSchool(ctx, id)
}
