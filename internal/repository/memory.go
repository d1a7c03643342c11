package repository

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/darasahq/darasa/internal/domain"
	"github.com/google/uuid"
)

// Memory is an in-memory implementation of domain.Store.
//
// It mirrors the postgres semantics (conditional quota updates, pending
// status filters) behind a single mutex. Used by tests and by local
// development without a database.
type Memory struct {
	mu        sync.Mutex
	schools   map[uuid.UUID]*domain.School
	payments  map[uuid.UUID]*domain.SubscriptionPayment
	referrals map[uuid.UUID]*domain.Referral
	cronRuns  map[uuid.UUID]*domain.CronRun
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		schools:   make(map[uuid.UUID]*domain.School),
		payments:  make(map[uuid.UUID]*domain.SubscriptionPayment),
		referrals: make(map[uuid.UUID]*domain.Referral),
		cronRuns:  make(map[uuid.UUID]*domain.CronRun),
	}
}

func (m *Memory) CreateSchool(_ context.Context, school *domain.School) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *school
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	cp.UpdatedAt = cp.CreatedAt
	m.schools[cp.ID] = &cp
	return nil
}

func (m *Memory) GetSchool(_ context.Context, id uuid.UUID) (*domain.School, error) {
	const op = "memory.get_school"

	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.schools[id]
	if !ok {
		return nil, domain.NotFound(op, "school", id.String())
	}
	cp := *s
	return &cp, nil
}

func (m *Memory) GetSchoolByReferralCode(_ context.Context, code string) (*domain.School, error) {
	const op = "memory.get_school_by_referral_code"

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, s := range m.schools {
		if s.ReferralCode == code && code != "" {
			cp := *s
			return &cp, nil
		}
	}
	return nil, domain.NotFound(op, "referral code", code)
}

func (m *Memory) UpdateSubscription(_ context.Context, id uuid.UUID, upd domain.SubscriptionUpdate) error {
	const op = "memory.update_subscription"

	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.schools[id]
	if !ok {
		return domain.NotFound(op, "school", id.String())
	}
	s.Tier = upd.Tier
	s.Status = upd.Status
	s.ExpiresAt = upd.ExpiresAt
	s.SMSQuotaLimit = upd.SMSQuotaLimit
	s.SMSQuotaUsed = upd.SMSQuotaUsed
	s.UpdatedAt = time.Now()
	return nil
}

func (m *Memory) SetReferralCode(_ context.Context, id uuid.UUID, code string) error {
	const op = "memory.set_referral_code"

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, s := range m.schools {
		if s.ReferralCode == code {
			return domain.Conflict(op, "referral code already in use")
		}
	}
	s, ok := m.schools[id]
	if !ok {
		return domain.NotFound(op, "school", id.String())
	}
	if s.ReferralCode != "" {
		return domain.NotFound(op, "school", id.String())
	}
	s.ReferralCode = code
	s.UpdatedAt = time.Now()
	return nil
}

func (m *Memory) SetReferredBy(_ context.Context, id uuid.UUID, code string) error {
	const op = "memory.set_referred_by"

	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.schools[id]
	if !ok {
		return domain.NotFound(op, "school", id.String())
	}
	if s.ReferredBy != "" {
		return domain.Conflict(op, "school already has a referral applied")
	}
	s.ReferredBy = code
	s.UpdatedAt = time.Now()
	return nil
}

func (m *Memory) AddReferralCredit(_ context.Context, id uuid.UUID) error {
	const op = "memory.add_referral_credit"

	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.schools[id]
	if !ok {
		return domain.NotFound(op, "school", id.String())
	}
	s.ReferralCredits++
	s.UpdatedAt = time.Now()
	return nil
}

func (m *Memory) AddStorageUsed(_ context.Context, id uuid.UUID, delta, limit int64) error {
	const op = "memory.add_storage_used"

	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.schools[id]
	if !ok || s.StorageUsed+delta > limit {
		return domain.QuotaRace(op, id.String())
	}
	s.StorageUsed += delta
	s.UpdatedAt = time.Now()
	return nil
}

func (m *Memory) ReleaseStorageUsed(_ context.Context, id uuid.UUID, delta int64) error {
	const op = "memory.release_storage_used"

	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.schools[id]
	if !ok {
		return domain.NotFound(op, "school", id.String())
	}
	s.StorageUsed -= delta
	if s.StorageUsed < 0 {
		s.StorageUsed = 0
	}
	s.UpdatedAt = time.Now()
	return nil
}

func (m *Memory) AddSMSUsed(_ context.Context, id uuid.UUID, count int) error {
	const op = "memory.add_sms_used"

	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.schools[id]
	if !ok || s.SMSQuotaUsed+count > s.SMSQuotaLimit {
		return domain.QuotaRace(op, id.String())
	}
	s.SMSQuotaUsed += count
	s.UpdatedAt = time.Now()
	return nil
}

func (m *Memory) ResetSMSUsed(_ context.Context, id uuid.UUID) error {
	const op = "memory.reset_sms_used"

	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.schools[id]
	if !ok {
		return domain.NotFound(op, "school", id.String())
	}
	s.SMSQuotaUsed = 0
	s.UpdatedAt = time.Now()
	return nil
}

func (m *Memory) ResetAllSMSUsed(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for _, s := range m.schools {
		if s.Tier != domain.TierFree && s.SMSQuotaUsed > 0 {
			s.SMSQuotaUsed = 0
			s.UpdatedAt = time.Now()
			n++
		}
	}
	return n, nil
}

func (m *Memory) ListExpiredBefore(_ context.Context, cutoff time.Time) ([]domain.School, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []domain.School
	for _, s := range m.schools {
		if s.Tier == domain.TierFree || s.Status == domain.SubscriptionStatusExpired {
			continue
		}
		if s.ExpiresAt != nil && s.ExpiresAt.Before(cutoff) {
			out = append(out, *s)
		}
	}
	sortByExpiry(out)
	return out, nil
}

func (m *Memory) ListExpiringBetween(_ context.Context, start, end time.Time) ([]domain.School, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []domain.School
	for _, s := range m.schools {
		if s.Tier == domain.TierFree || s.Status == domain.SubscriptionStatusExpired || s.ExpiresAt == nil {
			continue
		}
		if !s.ExpiresAt.Before(start) && s.ExpiresAt.Before(end) {
			out = append(out, *s)
		}
	}
	sortByExpiry(out)
	return out, nil
}

func sortByExpiry(schools []domain.School) {
	sort.Slice(schools, func(i, j int) bool {
		return schools[i].ExpiresAt.Before(*schools[j].ExpiresAt)
	})
}

func (m *Memory) CreatePayment(_ context.Context, payment *domain.SubscriptionPayment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *payment
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	m.payments[cp.ID] = &cp
	return nil
}

func (m *Memory) CountCompletedPayments(_ context.Context, schoolID uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for _, p := range m.payments {
		if p.SchoolID == schoolID && p.Status == domain.PaymentStatusCompleted {
			n++
		}
	}
	return n, nil
}

func (m *Memory) CreateReferral(_ context.Context, referral *domain.Referral) error {
	const op = "memory.create_referral"

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range m.referrals {
		if r.ReferredID == referral.ReferredID && r.Status == domain.ReferralStatusPending {
			return domain.Conflict(op, "school already has a pending referral")
		}
	}
	cp := *referral
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	m.referrals[cp.ID] = &cp
	return nil
}

func (m *Memory) GetPendingReferralByReferred(_ context.Context, referredID uuid.UUID) (*domain.Referral, error) {
	const op = "memory.get_pending_referral"

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range m.referrals {
		if r.ReferredID == referredID && r.Status == domain.ReferralStatusPending {
			cp := *r
			return &cp, nil
		}
	}
	return nil, domain.NotFound(op, "pending referral for school", referredID.String())
}

func (m *Memory) MarkReferralConverted(_ context.Context, id uuid.UUID, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.referrals[id]
	if !ok || r.Status != domain.ReferralStatusPending {
		return false, nil
	}
	r.Status = domain.ReferralStatusConverted
	r.ConvertedAt = &at
	return true, nil
}

func (m *Memory) CreateCronRun(_ context.Context, run *domain.CronRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *run
	m.cronRuns[cp.ID] = &cp
	return nil
}

func (m *Memory) FinishCronRun(_ context.Context, id uuid.UUID, status domain.CronRunStatus, details json.RawMessage, at time.Time) error {
	const op = "memory.finish_cron_run"

	m.mu.Lock()
	defer m.mu.Unlock()

	run, ok := m.cronRuns[id]
	if !ok {
		return domain.NotFound(op, "cron run", id.String())
	}
	run.Status = status
	run.Details = details
	run.CompletedAt = &at
	return nil
}

// CronRuns returns a snapshot of all recorded runs, newest last. Test helper.
func (m *Memory) CronRuns() []domain.CronRun {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]domain.CronRun, 0, len(m.cronRuns))
	for _, r := range m.cronRuns {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out
}
