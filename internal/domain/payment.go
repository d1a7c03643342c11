// Package domain contains core business types and interfaces.
//
// This file defines the append-only subscription payment record. A row is
// created once per payment attempt and never mutated except for status.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// PaymentStatus represents the lifecycle state of a payment record.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

// SubscriptionPayment records one settled (or attempted) subscription
// purchase. Gateway integration lives outside this system; payments arrive
// here already carrying their external transaction reference.
type SubscriptionPayment struct {
	ID             uuid.UUID
	SchoolID       uuid.UUID
	Tier           Tier
	Amount         int64 // minor currency units
	DurationMonths int
	Method         string
	TransactionID  string
	Status         PaymentStatus
	ReferralCode   string // referral code applied with this payment, if any
	CreatedAt      time.Time
}

// ProcessPaymentParams carries the validated inputs for recording a
// completed subscription payment.
type ProcessPaymentParams struct {
	SchoolID       uuid.UUID
	Tier           Tier
	Amount         int64
	DurationMonths int
	Method         string
	TransactionID  string
	ReferralCode   string
}
