package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/darasahq/darasa/internal/domain"
	"github.com/darasahq/darasa/internal/repository"
	"github.com/darasahq/darasa/internal/service"
	"github.com/google/uuid"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// noLimit is a pass-through stand-in for the signup rate limiter.
func noLimit(next http.Handler) http.Handler { return next }

// newTestAPI wires the full handler surface over an in-memory store.
func newTestAPI(t *testing.T) (*http.ServeMux, *repository.Memory) {
	t.Helper()
	store := repository.NewMemory()
	logger := testLogger()

	referrals := service.NewReferralService(store, nil, logger)
	schools := service.NewSchoolService(store, referrals, logger)
	entitlements := service.NewEntitlementService(store, service.DefaultGracePeriod, logger)
	quotas := service.NewQuotaService(store, logger)
	subscriptions := service.NewSubscriptionService(store, referrals, service.DefaultGracePeriod, logger)

	mux := http.NewServeMux()
	NewSchoolHandler(schools, referrals, logger).RegisterRoutes(mux, noLimit)
	NewEntitlementHandler(entitlements, logger).RegisterRoutes(mux)
	NewQuotaHandler(quotas, logger).RegisterRoutes(mux)
	NewSubscriptionHandler(subscriptions, logger).RegisterRoutes(mux)
	return mux, store
}

func doJSON(t *testing.T, mux *http.ServeMux, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("response is not valid JSON: %v", err)
	}
	return body
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	body := decodeBody(t, rec)
	errObj, ok := body["error"].(map[string]any)
	if !ok {
		t.Fatalf("expected error envelope, got %v", body)
	}
	code, _ := errObj["code"].(string)
	return code
}

func seedActiveSchool(t *testing.T, store *repository.Memory, tier domain.Tier, expiresAt *time.Time) domain.School {
	t.Helper()
	school := domain.School{
		ID:            uuid.New(),
		Name:          "Mwanza Primary",
		Email:         fmt.Sprintf("%s@school.test", uuid.NewString()[:8]),
		Tier:          tier,
		Status:        domain.SubscriptionStatusActive,
		ExpiresAt:     expiresAt,
		SMSQuotaLimit: domain.GetTierPlan(tier).SMSPerMonth,
	}
	if err := store.CreateSchool(context.Background(), &school); err != nil {
		t.Fatal(err)
	}
	return school
}

func futureExpiry(days int) *time.Time {
	t := time.Now().AddDate(0, 0, days)
	return &t
}

func TestRegisterSchool(t *testing.T) {
	mux, _ := newTestAPI(t)

	rec := doJSON(t, mux, http.MethodPost, "/api/schools",
		`{"name": "Arusha Academy", "email": "Head@Arusha.test"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	body := decodeBody(t, rec)
	if body["tier"] != "free" {
		t.Errorf("new schools start on the free tier, got %v", body["tier"])
	}
	if body["status"] != "active" {
		t.Errorf("new schools start active, got %v", body["status"])
	}
	if body["email"] != "head@arusha.test" {
		t.Errorf("email should be normalized, got %v", body["email"])
	}
}

func TestRegisterSchool_InvalidEmail(t *testing.T) {
	mux, _ := newTestAPI(t)

	rec := doJSON(t, mux, http.MethodPost, "/api/schools",
		`{"name": "Arusha Academy", "email": "not-an-email"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if code := errorCode(t, rec); code != domain.EINVALID {
		t.Errorf("expected EINVALID, got %s", code)
	}
}

func TestGetSchool_NotFound(t *testing.T) {
	mux, _ := newTestAPI(t)

	rec := doJSON(t, mux, http.MethodGet, "/api/schools/"+uuid.NewString(), "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if code := errorCode(t, rec); code != domain.ENOTFOUND {
		t.Errorf("expected ENOTFOUND, got %s", code)
	}
}

func TestGetSchool_BadID(t *testing.T) {
	mux, _ := newTestAPI(t)

	rec := doJSON(t, mux, http.MethodGet, "/api/schools/not-a-uuid", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestFeatureCheck(t *testing.T) {
	mux, store := newTestAPI(t)
	pro := seedActiveSchool(t, store, domain.TierPro, futureExpiry(30))
	free := seedActiveSchool(t, store, domain.TierFree, nil)

	rec := doJSON(t, mux, http.MethodGet,
		fmt.Sprintf("/api/schools/%s/features/online_payments", pro.ID), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if body := decodeBody(t, rec); body["allowed"] != true {
		t.Errorf("pro school should have online payments: %v", body)
	}

	// A denial is still a 200; the reason names the required plan.
	rec = doJSON(t, mux, http.MethodGet,
		fmt.Sprintf("/api/schools/%s/features/online_payments", free.ID), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["allowed"] != false {
		t.Errorf("free school should be denied: %v", body)
	}
	reason, _ := body["reason"].(string)
	if !strings.Contains(reason, "pro") {
		t.Errorf("denial should name the required plan, got %q", reason)
	}
}

func TestStorageQuota_ExceededMapsTo403(t *testing.T) {
	mux, store := newTestAPI(t)
	school := seedActiveSchool(t, store, domain.TierStandard, futureExpiry(30))

	// 5 GiB standard allowance; committing 6 GiB must be rejected.
	rec := doJSON(t, mux, http.MethodPost,
		fmt.Sprintf("/api/schools/%s/quota/storage", school.ID),
		fmt.Sprintf(`{"bytes": %d}`, int64(6)<<30))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", rec.Code, rec.Body.String())
	}
	if code := errorCode(t, rec); code != domain.EQUOTA {
		t.Errorf("expected EQUOTA, got %s", code)
	}
}

func TestProcessPayment_FreeTierMapsTo402(t *testing.T) {
	mux, store := newTestAPI(t)
	school := seedActiveSchool(t, store, domain.TierFree, nil)

	rec := doJSON(t, mux, http.MethodPost,
		fmt.Sprintf("/api/schools/%s/payments", school.ID),
		`{"tier": "free", "amount": 0, "duration_months": 1}`)
	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("expected 402, got %d", rec.Code)
	}
	if code := errorCode(t, rec); code != domain.EPAYMENT {
		t.Errorf("expected EPAYMENT, got %s", code)
	}
}

func TestProcessPayment_Success(t *testing.T) {
	mux, store := newTestAPI(t)
	school := seedActiveSchool(t, store, domain.TierFree, nil)

	rec := doJSON(t, mux, http.MethodPost,
		fmt.Sprintf("/api/schools/%s/payments", school.ID),
		`{"tier": "standard", "amount": 20000, "duration_months": 1, "method": "mpesa", "transaction_id": "MP-1"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, mux, http.MethodGet, "/api/schools/"+school.ID.String(), "")
	body := decodeBody(t, rec)
	if body["tier"] != "standard" {
		t.Errorf("payment should upgrade the tier, got %v", body["tier"])
	}
	if _, ok := body["expires_at"]; !ok {
		t.Error("paid school should carry an expiry")
	}
}

func TestReferralCode_Endpoint(t *testing.T) {
	mux, store := newTestAPI(t)
	school := seedActiveSchool(t, store, domain.TierStandard, futureExpiry(30))

	rec := doJSON(t, mux, http.MethodPost,
		fmt.Sprintf("/api/schools/%s/referral-code", school.ID), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	code, _ := body["referral_code"].(string)
	if len(code) != 8 {
		t.Errorf("expected an 8 character code, got %q", code)
	}

	// The endpoint is idempotent.
	rec = doJSON(t, mux, http.MethodPost,
		fmt.Sprintf("/api/schools/%s/referral-code", school.ID), "")
	if again := decodeBody(t, rec)["referral_code"]; again != code {
		t.Errorf("expected the same code on repeat calls, got %v", again)
	}
}
