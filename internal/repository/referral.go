package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/darasahq/darasa/internal/domain"
	"github.com/google/uuid"
)

// CreateReferral inserts a pending referral record. The partial unique
// index on (referred_id) WHERE status = 'pending' enforces the at-most-one
// pending referral invariant.
func (p *Postgres) CreateReferral(ctx context.Context, referral *domain.Referral) error {
	const op = "repository.create_referral"

	_, err := p.db.ExecContext(ctx, `
		INSERT INTO referrals (id, referrer_id, referred_id, code, status)
		VALUES ($1, $2, $3, $4, $5)`,
		referral.ID, referral.ReferrerID, referral.ReferredID, referral.Code, referral.Status,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Conflict(op, "school already has a pending referral")
		}
		return domain.Internal(err, op, "failed to create referral")
	}
	return nil
}

// GetPendingReferralByReferred returns the pending referral in which the
// school is the referred party.
func (p *Postgres) GetPendingReferralByReferred(ctx context.Context, referredID uuid.UUID) (*domain.Referral, error) {
	const op = "repository.get_pending_referral"

	var (
		r           domain.Referral
		convertedAt sql.NullTime
	)
	err := p.db.QueryRowContext(ctx, `
		SELECT id, referrer_id, referred_id, code, status, converted_at, created_at
		FROM referrals
		WHERE referred_id = $1 AND status = 'pending'`, referredID).Scan(
		&r.ID, &r.ReferrerID, &r.ReferredID, &r.Code, &r.Status, &convertedAt, &r.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "pending referral for school", referredID.String())
		}
		return nil, domain.Internal(err, op, "failed to load referral")
	}
	if convertedAt.Valid {
		t := convertedAt.Time
		r.ConvertedAt = &t
	}
	return &r, nil
}

// MarkReferralConverted flips a pending referral to converted. The status
// filter makes a second call match no row, which callers treat as "already
// converted" rather than an error.
func (p *Postgres) MarkReferralConverted(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	const op = "repository.mark_referral_converted"

	res, err := p.db.ExecContext(ctx, `
		UPDATE referrals SET status = 'converted', converted_at = $2
		WHERE id = $1 AND status = 'pending'`, id, at)
	if err != nil {
		return false, domain.Internal(err, op, "failed to mark referral converted")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, domain.Internal(err, op, "failed to read result")
	}
	return n > 0, nil
}
