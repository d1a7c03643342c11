package repository

import (
	"context"

	"github.com/darasahq/darasa/internal/domain"
	"github.com/google/uuid"
)

// CreatePayment appends one subscription payment record.
func (p *Postgres) CreatePayment(ctx context.Context, payment *domain.SubscriptionPayment) error {
	const op = "repository.create_payment"

	_, err := p.db.ExecContext(ctx, `
		INSERT INTO subscription_payments (id, school_id, tier, amount, duration_months,
			method, transaction_id, status, referral_code)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		payment.ID, payment.SchoolID, payment.Tier, payment.Amount, payment.DurationMonths,
		payment.Method, toNullString(payment.TransactionID), payment.Status,
		toNullString(payment.ReferralCode),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Conflict(op, "payment with this transaction ID already recorded")
		}
		return domain.Internal(err, op, "failed to record payment")
	}
	return nil
}

// CountCompletedPayments returns the number of completed payments a school
// has ever made. Used to detect the first payment for referral conversion.
func (p *Postgres) CountCompletedPayments(ctx context.Context, schoolID uuid.UUID) (int64, error) {
	const op = "repository.count_completed_payments"

	var count int64
	err := p.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM subscription_payments
		WHERE school_id = $1 AND status = 'completed'`, schoolID).Scan(&count)
	if err != nil {
		return 0, domain.Internal(err, op, "failed to count payments")
	}
	return count, nil
}
