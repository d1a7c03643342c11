// Package domain contains core business types and interfaces.
//
// This file defines the School tenant type, the unit of subscription,
// quota, and entitlement. These types are separate from the repository
// models so business logic never depends on the database layer.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Tier represents the subscription level of a school.
type Tier string

const (
	TierFree     Tier = "free"
	TierStandard Tier = "standard"
	TierPro      Tier = "pro"
)

// Valid reports whether t is a known tier.
func (t Tier) Valid() bool {
	switch t {
	case TierFree, TierStandard, TierPro:
		return true
	}
	return false
}

// Paid reports whether t is a purchasable tier.
func (t Tier) Paid() bool {
	return t == TierStandard || t == TierPro
}

// SubscriptionStatus represents the administrative state of a school's
// subscription. It is orthogonal to Tier: "expired" means the school has
// been downgraded by the expiry sweep, not merely that expires_at passed.
type SubscriptionStatus string

const (
	SubscriptionStatusActive  SubscriptionStatus = "active"
	SubscriptionStatusExpired SubscriptionStatus = "expired"
)

// School represents one tenant account.
//
// Subscription fields are mutated only by the subscription service and the
// quota ledger; everything else in the platform treats them as read-only.
type School struct {
	ID              uuid.UUID
	Name            string
	Email           string
	Tier            Tier
	Status          SubscriptionStatus
	ExpiresAt       *time.Time // nil means the subscription never expires
	StorageUsed     int64      // bytes, monotonic non-negative
	SMSQuotaUsed    int
	SMSQuotaLimit   int // denormalized copy of the tier's SMS allowance
	ReferralCode    string
	ReferredBy      string // referral code applied at signup, set once
	ReferralCredits int    // free months earned by referring other schools
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Lapsed reports whether the subscription expiry plus the grace window has
// passed at the given instant. A nil ExpiresAt never lapses.
func (s *School) Lapsed(now time.Time, grace time.Duration) bool {
	if s.ExpiresAt == nil {
		return false
	}
	return now.After(s.ExpiresAt.Add(grace))
}

// InGrace reports whether the school is past its expiry but still inside
// the grace window. The boundary is computed, never stored.
func (s *School) InGrace(now time.Time, grace time.Duration) bool {
	if s.ExpiresAt == nil {
		return false
	}
	return now.After(*s.ExpiresAt) && !now.After(s.ExpiresAt.Add(grace))
}

// Decision is the result of an entitlement or quota check.
//
// Denials are expected outcomes, not errors: Reason carries a user-facing
// message (including the upgrade path) that callers can render directly.
type Decision struct {
	Allowed bool
	Reason  string
}

// Allow returns an allowing decision.
func Allow() Decision {
	return Decision{Allowed: true}
}

// Deny returns a denying decision with the given reason.
func Deny(reason string) Decision {
	return Decision{Allowed: false, Reason: reason}
}
