// Package domain contains core business types and interfaces.
//
// This file defines the referral record linking a referring school to the
// school it brought in. A record transitions pending -> converted exactly
// once, when the referred school completes its first payment.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// ReferralStatus represents the state of a referral record.
type ReferralStatus string

const (
	ReferralStatusPending   ReferralStatus = "pending"
	ReferralStatusConverted ReferralStatus = "converted"
)

// Referral is created when a new school applies a referral code at signup.
//
// A school holds at most one pending referral as the referred party but may
// appear any number of times as the referrer.
type Referral struct {
	ID          uuid.UUID
	ReferrerID  uuid.UUID
	ReferredID  uuid.UUID
	Code        string
	Status      ReferralStatus
	ConvertedAt *time.Time
	CreatedAt   time.Time
}
