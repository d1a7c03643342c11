package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/darasahq/darasa/internal/domain"
	"github.com/darasahq/darasa/internal/repository"
	"github.com/google/uuid"
)

// testNow is the fixed clock for all service tests.
var testNow = time.Date(2026, 6, 15, 10, 0, 0, 0, time.UTC)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func timePtr(t time.Time) *time.Time { return &t }

func daysFromNow(days int) *time.Time {
	return timePtr(testNow.AddDate(0, 0, days))
}

// seedSchool creates an active school with the tier's SMS limit applied.
func seedSchool(t *testing.T, store *repository.Memory, tier domain.Tier, expiresAt *time.Time) *domain.School {
	t.Helper()

	school := &domain.School{
		ID:            uuid.New(),
		Name:          "Mwenge Secondary",
		Email:         fmt.Sprintf("admin+%s@mwenge.ac.tz", uuid.NewString()[:8]),
		Tier:          tier,
		Status:        domain.SubscriptionStatusActive,
		ExpiresAt:     expiresAt,
		SMSQuotaLimit: domain.GetTierPlan(tier).SMSPerMonth,
	}
	if err := store.CreateSchool(context.Background(), school); err != nil {
		t.Fatalf("seed school: %v", err)
	}
	return school
}

func newEntitlementService(store *repository.Memory) *entitlementService {
	svc := NewEntitlementService(store, DefaultGracePeriod, testLogger()).(*entitlementService)
	svc.now = func() time.Time { return testNow }
	return svc
}

func TestCheckFeatureAccess_GrantedByTier(t *testing.T) {
	store := repository.NewMemory()
	svc := newEntitlementService(store)
	school := seedSchool(t, store, domain.TierStandard, daysFromNow(30))

	decision, err := svc.CheckFeatureAccess(context.Background(), school.ID, domain.FeatureSMS)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !decision.Allowed {
		t.Errorf("standard school should have sms access, denied with %q", decision.Reason)
	}
}

func TestCheckFeatureAccess_DenialNamesMinimumTier(t *testing.T) {
	store := repository.NewMemory()
	svc := newEntitlementService(store)
	school := seedSchool(t, store, domain.TierStandard, daysFromNow(30))

	decision, err := svc.CheckFeatureAccess(context.Background(), school.ID, domain.FeatureOnlinePayment)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.Allowed {
		t.Fatal("online payments should be denied on standard")
	}
	if !strings.Contains(decision.Reason, "pro") {
		t.Errorf("denial should name the pro plan, got %q", decision.Reason)
	}
}

func TestCheckFeatureAccess_CoreFeatureAlwaysAllowed(t *testing.T) {
	store := repository.NewMemory()
	svc := newEntitlementService(store)
	school := seedSchool(t, store, domain.TierFree, nil)

	decision, err := svc.CheckFeatureAccess(context.Background(), school.ID, domain.FeatureAttendance)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !decision.Allowed {
		t.Errorf("core features must be allowed on free tier, denied with %q", decision.Reason)
	}
}

func TestCheckFeatureAccess_LapsedOverridesStaleStatus(t *testing.T) {
	store := repository.NewMemory()
	svc := newEntitlementService(store)

	// Paid school five days past expiry. The sweep has not run yet, so the
	// persisted status still says active.
	school := seedSchool(t, store, domain.TierPro, daysFromNow(-5))

	decision, err := svc.CheckFeatureAccess(context.Background(), school.ID, domain.FeatureSMS)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.Allowed {
		t.Fatal("lapsed school must be denied despite active status")
	}
	if !strings.Contains(decision.Reason, "expired") {
		t.Errorf("denial should mention expiry, got %q", decision.Reason)
	}
}

func TestCheckFeatureAccess_GraceWindowStillAllowed(t *testing.T) {
	store := repository.NewMemory()
	svc := newEntitlementService(store)

	// Expired two days ago; still inside the 72h grace window.
	school := seedSchool(t, store, domain.TierStandard, daysFromNow(-2))

	decision, err := svc.CheckFeatureAccess(context.Background(), school.ID, domain.FeatureSMS)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !decision.Allowed {
		t.Errorf("school inside grace should keep access, denied with %q", decision.Reason)
	}
}

func TestCheckFeatureAccess_UnknownSchool(t *testing.T) {
	store := repository.NewMemory()
	svc := newEntitlementService(store)

	_, err := svc.CheckFeatureAccess(context.Background(), uuid.New(), domain.FeatureSMS)
	if domain.ErrorCode(err) != domain.ENOTFOUND {
		t.Errorf("expected not_found, got %v", err)
	}
}

func TestCheckStorageQuota_AllowedWithinLimit(t *testing.T) {
	store := repository.NewMemory()
	svc := newEntitlementService(store)

	school := seedSchool(t, store, domain.TierStandard, daysFromNow(30))
	school.StorageUsed = 4 << 30 // 4 GiB of the 5 GiB allowance
	if err := store.CreateSchool(context.Background(), school); err != nil {
		t.Fatal(err)
	}

	decision, err := svc.CheckStorageQuota(context.Background(), school.ID, 1<<30)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !decision.Allowed {
		t.Errorf("4GiB+1GiB fits the 5GiB standard limit, denied with %q", decision.Reason)
	}
}

func TestCheckStorageQuota_StandardDenialSuggestsPro(t *testing.T) {
	store := repository.NewMemory()
	svc := newEntitlementService(store)

	school := seedSchool(t, store, domain.TierStandard, daysFromNow(30))
	school.StorageUsed = 4 << 30
	if err := store.CreateSchool(context.Background(), school); err != nil {
		t.Fatal(err)
	}

	decision, err := svc.CheckStorageQuota(context.Background(), school.ID, 2<<30)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.Allowed {
		t.Fatal("4GiB+2GiB exceeds the 5GiB standard limit")
	}
	if !strings.Contains(decision.Reason, "Pro") {
		t.Errorf("denial should suggest the Pro plan, got %q", decision.Reason)
	}
}

func TestCheckStorageQuota_ProAllowsSameRequest(t *testing.T) {
	store := repository.NewMemory()
	svc := newEntitlementService(store)

	school := seedSchool(t, store, domain.TierPro, daysFromNow(30))
	school.StorageUsed = 4 << 30
	if err := store.CreateSchool(context.Background(), school); err != nil {
		t.Fatal(err)
	}

	decision, err := svc.CheckStorageQuota(context.Background(), school.ID, 2<<30)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !decision.Allowed {
		t.Errorf("pro has 20GiB, denied with %q", decision.Reason)
	}
}

func TestCheckStorageQuota_FreeTierDenied(t *testing.T) {
	store := repository.NewMemory()
	svc := newEntitlementService(store)
	school := seedSchool(t, store, domain.TierFree, nil)

	decision, err := svc.CheckStorageQuota(context.Background(), school.ID, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.Allowed {
		t.Error("free tier has no storage allowance")
	}
}

func TestCheckSMSQuota(t *testing.T) {
	store := repository.NewMemory()
	svc := newEntitlementService(store)

	school := seedSchool(t, store, domain.TierStandard, daysFromNow(30))
	school.SMSQuotaUsed = 98
	if err := store.CreateSchool(context.Background(), school); err != nil {
		t.Fatal(err)
	}

	decision, err := svc.CheckSMSQuota(context.Background(), school.ID, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !decision.Allowed {
		t.Errorf("98+2 fits the 100 allowance, denied with %q", decision.Reason)
	}

	decision, err = svc.CheckSMSQuota(context.Background(), school.ID, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.Allowed {
		t.Error("98+3 exceeds the 100 allowance")
	}
	if !strings.Contains(decision.Reason, "98 of 100") {
		t.Errorf("denial should report usage, got %q", decision.Reason)
	}
}

func TestCheckSMSQuota_ZeroCountMeansOne(t *testing.T) {
	store := repository.NewMemory()
	svc := newEntitlementService(store)

	school := seedSchool(t, store, domain.TierStandard, daysFromNow(30))
	school.SMSQuotaUsed = 100
	if err := store.CreateSchool(context.Background(), school); err != nil {
		t.Fatal(err)
	}

	decision, err := svc.CheckSMSQuota(context.Background(), school.ID, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.Allowed {
		t.Error("a zero count still asks about one message")
	}
}
