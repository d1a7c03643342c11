package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/darasahq/darasa/internal/domain"
	"github.com/google/uuid"
)

const schoolColumns = `id, name, email, tier, status, expires_at, storage_used,
	sms_quota_used, sms_quota_limit, referral_code, referred_by, referral_credits,
	created_at, updated_at`

func scanSchool(row interface{ Scan(...any) error }) (*domain.School, error) {
	var (
		s            domain.School
		expiresAt    sql.NullTime
		referralCode sql.NullString
		referredBy   sql.NullString
	)
	err := row.Scan(
		&s.ID, &s.Name, &s.Email, &s.Tier, &s.Status, &expiresAt, &s.StorageUsed,
		&s.SMSQuotaUsed, &s.SMSQuotaLimit, &referralCode, &referredBy, &s.ReferralCredits,
		&s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if expiresAt.Valid {
		t := expiresAt.Time
		s.ExpiresAt = &t
	}
	s.ReferralCode = referralCode.String
	s.ReferredBy = referredBy.String
	return &s, nil
}

func toNullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func toNullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// CreateSchool inserts a new school tenant.
func (p *Postgres) CreateSchool(ctx context.Context, school *domain.School) error {
	const op = "repository.create_school"

	_, err := p.db.ExecContext(ctx, `
		INSERT INTO schools (id, name, email, tier, status, expires_at, storage_used,
			sms_quota_used, sms_quota_limit, referral_code, referred_by, referral_credits)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		school.ID, school.Name, school.Email, school.Tier, school.Status,
		toNullTime(school.ExpiresAt), school.StorageUsed, school.SMSQuotaUsed,
		school.SMSQuotaLimit, toNullString(school.ReferralCode),
		toNullString(school.ReferredBy), school.ReferralCredits,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Conflict(op, "a school with this email already exists")
		}
		return domain.Internal(err, op, "failed to create school")
	}
	return nil
}

// GetSchool loads one school by ID.
func (p *Postgres) GetSchool(ctx context.Context, id uuid.UUID) (*domain.School, error) {
	const op = "repository.get_school"

	row := p.db.QueryRowContext(ctx,
		`SELECT `+schoolColumns+` FROM schools WHERE id = $1`, id)
	school, err := scanSchool(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "school", id.String())
		}
		return nil, domain.Internal(err, op, "failed to load school")
	}
	return school, nil
}

// GetSchoolByReferralCode resolves a referral code to its owning school.
func (p *Postgres) GetSchoolByReferralCode(ctx context.Context, code string) (*domain.School, error) {
	const op = "repository.get_school_by_referral_code"

	row := p.db.QueryRowContext(ctx,
		`SELECT `+schoolColumns+` FROM schools WHERE referral_code = $1`, code)
	school, err := scanSchool(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "referral code", code)
		}
		return nil, domain.Internal(err, op, "failed to resolve referral code")
	}
	return school, nil
}

// UpdateSubscription rewrites the subscription fields of a school in one
// statement so tier, status, expiry and the cached SMS limit stay in step.
func (p *Postgres) UpdateSubscription(ctx context.Context, id uuid.UUID, upd domain.SubscriptionUpdate) error {
	const op = "repository.update_subscription"

	res, err := p.db.ExecContext(ctx, `
		UPDATE schools
		SET tier = $2, status = $3, expires_at = $4, sms_quota_limit = $5,
			sms_quota_used = $6, updated_at = now()
		WHERE id = $1`,
		id, upd.Tier, upd.Status, toNullTime(upd.ExpiresAt), upd.SMSQuotaLimit, upd.SMSQuotaUsed,
	)
	if err != nil {
		return domain.Internal(err, op, "failed to update subscription")
	}
	return requireRow(res, op, "school", id.String())
}

// SetReferralCode stores a lazily generated referral code.
func (p *Postgres) SetReferralCode(ctx context.Context, id uuid.UUID, code string) error {
	const op = "repository.set_referral_code"

	res, err := p.db.ExecContext(ctx, `
		UPDATE schools SET referral_code = $2, updated_at = now()
		WHERE id = $1 AND referral_code IS NULL`,
		id, code,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Conflict(op, "referral code already in use")
		}
		return domain.Internal(err, op, "failed to set referral code")
	}
	return requireRow(res, op, "school", id.String())
}

// SetReferredBy stamps the referring code on a school. The guard on the
// WHERE clause makes a second application a conflict, not an overwrite.
func (p *Postgres) SetReferredBy(ctx context.Context, id uuid.UUID, code string) error {
	const op = "repository.set_referred_by"

	res, err := p.db.ExecContext(ctx, `
		UPDATE schools SET referred_by = $2, updated_at = now()
		WHERE id = $1 AND referred_by IS NULL`,
		id, code,
	)
	if err != nil {
		return domain.Internal(err, op, "failed to set referred_by")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return domain.Internal(err, op, "failed to read result")
	}
	if n == 0 {
		return domain.Conflict(op, "school already has a referral applied")
	}
	return nil
}

// AddReferralCredit increments the referrer's earned-month counter.
func (p *Postgres) AddReferralCredit(ctx context.Context, id uuid.UUID) error {
	const op = "repository.add_referral_credit"

	res, err := p.db.ExecContext(ctx, `
		UPDATE schools SET referral_credits = referral_credits + 1, updated_at = now()
		WHERE id = $1`, id)
	if err != nil {
		return domain.Internal(err, op, "failed to add referral credit")
	}
	return requireRow(res, op, "school", id.String())
}

// AddStorageUsed atomically adds delta bytes against the tier ceiling.
// Zero rows affected means the school either does not exist or lost the
// race to the last bytes of quota.
func (p *Postgres) AddStorageUsed(ctx context.Context, id uuid.UUID, delta, limit int64) error {
	const op = "repository.add_storage_used"

	res, err := p.db.ExecContext(ctx, `
		UPDATE schools SET storage_used = storage_used + $2, updated_at = now()
		WHERE id = $1 AND storage_used + $2 <= $3`,
		id, delta, limit,
	)
	if err != nil {
		return domain.Internal(err, op, "failed to add storage usage")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return domain.Internal(err, op, "failed to read result")
	}
	if n == 0 {
		return domain.QuotaRace(op, id.String())
	}
	return nil
}

// ReleaseStorageUsed subtracts delta bytes, flooring at zero.
func (p *Postgres) ReleaseStorageUsed(ctx context.Context, id uuid.UUID, delta int64) error {
	const op = "repository.release_storage_used"

	res, err := p.db.ExecContext(ctx, `
		UPDATE schools SET storage_used = GREATEST(storage_used - $2, 0), updated_at = now()
		WHERE id = $1`, id, delta)
	if err != nil {
		return domain.Internal(err, op, "failed to release storage usage")
	}
	return requireRow(res, op, "school", id.String())
}

// AddSMSUsed atomically adds count sends against the cached SMS limit.
func (p *Postgres) AddSMSUsed(ctx context.Context, id uuid.UUID, count int) error {
	const op = "repository.add_sms_used"

	res, err := p.db.ExecContext(ctx, `
		UPDATE schools SET sms_quota_used = sms_quota_used + $2, updated_at = now()
		WHERE id = $1 AND sms_quota_used + $2 <= sms_quota_limit`,
		id, count,
	)
	if err != nil {
		return domain.Internal(err, op, "failed to add sms usage")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return domain.Internal(err, op, "failed to read result")
	}
	if n == 0 {
		return domain.QuotaRace(op, id.String())
	}
	return nil
}

// ResetSMSUsed zeroes one school's monthly SMS counter.
func (p *Postgres) ResetSMSUsed(ctx context.Context, id uuid.UUID) error {
	const op = "repository.reset_sms_used"

	res, err := p.db.ExecContext(ctx, `
		UPDATE schools SET sms_quota_used = 0, updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return domain.Internal(err, op, "failed to reset sms usage")
	}
	return requireRow(res, op, "school", id.String())
}

// ResetAllSMSUsed zeroes the SMS counter for every paid-tier school.
func (p *Postgres) ResetAllSMSUsed(ctx context.Context) (int64, error) {
	const op = "repository.reset_all_sms_used"

	res, err := p.db.ExecContext(ctx, `
		UPDATE schools SET sms_quota_used = 0, updated_at = now()
		WHERE tier <> 'free' AND sms_quota_used > 0`)
	if err != nil {
		return 0, domain.Internal(err, op, "failed to reset sms usage")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, domain.Internal(err, op, "failed to read result")
	}
	return n, nil
}

// ListExpiredBefore returns paying schools whose expiry passed before
// cutoff and that have not been downgraded yet.
func (p *Postgres) ListExpiredBefore(ctx context.Context, cutoff time.Time) ([]domain.School, error) {
	const op = "repository.list_expired_before"

	rows, err := p.db.QueryContext(ctx, `
		SELECT `+schoolColumns+` FROM schools
		WHERE tier <> 'free' AND status <> 'expired'
			AND expires_at IS NOT NULL AND expires_at < $1
		ORDER BY expires_at`, cutoff)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to list expired schools")
	}
	return collectSchools(rows, op)
}

// ListExpiringBetween returns paying schools with expires_at in [start, end).
func (p *Postgres) ListExpiringBetween(ctx context.Context, start, end time.Time) ([]domain.School, error) {
	const op = "repository.list_expiring_between"

	rows, err := p.db.QueryContext(ctx, `
		SELECT `+schoolColumns+` FROM schools
		WHERE tier <> 'free' AND status <> 'expired'
			AND expires_at >= $1 AND expires_at < $2
		ORDER BY expires_at`, start, end)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to list expiring schools")
	}
	return collectSchools(rows, op)
}

func collectSchools(rows *sql.Rows, op string) ([]domain.School, error) {
	defer rows.Close()

	var schools []domain.School
	for rows.Next() {
		s, err := scanSchool(rows)
		if err != nil {
			return nil, domain.Internal(err, op, "failed to scan school")
		}
		schools = append(schools, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Internal(err, op, "failed to iterate schools")
	}
	return schools, nil
}

func requireRow(res sql.Result, op, resource, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return domain.Internal(err, op, "failed to read result")
	}
	if n == 0 {
		return domain.NotFound(op, resource, id)
	}
	return nil
}
