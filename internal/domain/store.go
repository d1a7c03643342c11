// Package domain contains core business types and interfaces.
//
// This file defines the persistence collaborator consumed by the
// subscription engine. The repository package provides the postgres
// implementation; an in-memory implementation backs tests.
package domain

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// SubscriptionUpdate carries the subscription fields rewritten together on
// a tier change (payment, referral credit, downgrade). Writing them as one
// statement keeps the denormalized SMS limit in step with the tier.
type SubscriptionUpdate struct {
	Tier          Tier
	Status        SubscriptionStatus
	ExpiresAt     *time.Time
	SMSQuotaLimit int
	SMSQuotaUsed  int
}

// SchoolStore persists school tenants and their subscription counters.
type SchoolStore interface {
	CreateSchool(ctx context.Context, school *School) error
	GetSchool(ctx context.Context, id uuid.UUID) (*School, error)
	GetSchoolByReferralCode(ctx context.Context, code string) (*School, error)

	// UpdateSubscription rewrites the subscription fields of a school.
	UpdateSubscription(ctx context.Context, id uuid.UUID, upd SubscriptionUpdate) error

	// SetReferralCode stores a lazily generated code. It fails with
	// ECONFLICT when the code is already taken by another school.
	SetReferralCode(ctx context.Context, id uuid.UUID, code string) error

	// SetReferredBy stamps the referring code on a school, once.
	SetReferredBy(ctx context.Context, id uuid.UUID, code string) error

	// AddReferralCredit increments the referrer's earned-month counter.
	AddReferralCredit(ctx context.Context, id uuid.UUID) error

	// AddStorageUsed atomically adds delta bytes, failing with an EQUOTA
	// error when used+delta would exceed limit. The entitlement check is a
	// pre-flight estimate only; this is the enforcement point.
	AddStorageUsed(ctx context.Context, id uuid.UUID, delta, limit int64) error

	// ReleaseStorageUsed subtracts delta bytes, flooring at zero.
	ReleaseStorageUsed(ctx context.Context, id uuid.UUID, delta int64) error

	// AddSMSUsed atomically adds count sends against the school's cached
	// SMS limit, failing with an EQUOTA error when the limit is exhausted.
	AddSMSUsed(ctx context.Context, id uuid.UUID, count int) error

	// ResetSMSUsed zeroes one school's monthly SMS counter.
	ResetSMSUsed(ctx context.Context, id uuid.UUID) error

	// ResetAllSMSUsed zeroes the SMS counter for every paid-tier school and
	// returns the number of schools touched.
	ResetAllSMSUsed(ctx context.Context) (int64, error)

	// ListExpiredBefore returns paying schools whose expiry passed before
	// cutoff and that have not been downgraded yet.
	ListExpiredBefore(ctx context.Context, cutoff time.Time) ([]School, error)

	// ListExpiringBetween returns paying schools with expires_at inside
	// [start, end), used by the day-granularity reminder buckets.
	ListExpiringBetween(ctx context.Context, start, end time.Time) ([]School, error)
}

// PaymentStore persists the append-only subscription payment records.
type PaymentStore interface {
	CreatePayment(ctx context.Context, payment *SubscriptionPayment) error
	CountCompletedPayments(ctx context.Context, schoolID uuid.UUID) (int64, error)
}

// ReferralStore persists referral records.
type ReferralStore interface {
	CreateReferral(ctx context.Context, referral *Referral) error

	// GetPendingReferralByReferred returns the at-most-one pending referral
	// in which the school is the referred party, or ENOTFOUND.
	GetPendingReferralByReferred(ctx context.Context, referredID uuid.UUID) (*Referral, error)

	// MarkReferralConverted flips a pending referral to converted. It
	// reports false when the referral was already converted, which makes
	// conversion naturally idempotent.
	MarkReferralConverted(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
}

// CronRunStore persists the scheduled-job audit trail.
type CronRunStore interface {
	CreateCronRun(ctx context.Context, run *CronRun) error
	FinishCronRun(ctx context.Context, id uuid.UUID, status CronRunStatus, details json.RawMessage, at time.Time) error
}

// Store is the full persistence surface of the subscription engine.
type Store interface {
	SchoolStore
	PaymentStore
	ReferralStore
	CronRunStore
}
