package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTierPlans_Limits(t *testing.T) {
	assert.EqualValues(t, 0, GetTierPlan(TierFree).StorageLimit)
	assert.EqualValues(t, 0, GetTierPlan(TierFree).SMSPerMonth)

	assert.EqualValues(t, 5*gib, GetTierPlan(TierStandard).StorageLimit)
	assert.EqualValues(t, 100, GetTierPlan(TierStandard).SMSPerMonth)

	assert.EqualValues(t, 20*gib, GetTierPlan(TierPro).StorageLimit)
	assert.EqualValues(t, 500, GetTierPlan(TierPro).SMSPerMonth)
}

func TestGetTierPlan_UnknownTierDefaultsToFree(t *testing.T) {
	plan := GetTierPlan(Tier("enterprise"))
	assert.Equal(t, TierPlans[TierFree], plan)
}

func TestGrants_CoreFeaturesOnEveryTier(t *testing.T) {
	for feature := range CoreFeatures {
		for _, tier := range []Tier{TierFree, TierStandard, TierPro} {
			assert.True(t, GetTierPlan(tier).Grants(feature),
				"core feature %s should be granted on %s", feature, tier)
		}
	}
}

func TestGrants_GatedFeatures(t *testing.T) {
	tests := []struct {
		tier    Tier
		feature Feature
		want    bool
	}{
		{TierFree, FeatureSMS, false},
		{TierFree, FeatureFileStorage, false},
		{TierStandard, FeatureSMS, true},
		{TierStandard, FeatureReportCards, true},
		{TierStandard, FeatureOnlinePayment, false},
		{TierStandard, FeatureAPIAccess, false},
		{TierPro, FeatureOnlinePayment, true},
		{TierPro, FeatureCustomDomain, true},
	}

	for _, tc := range tests {
		got := GetTierPlan(tc.tier).Grants(tc.feature)
		assert.Equal(t, tc.want, got, "%s on %s", tc.feature, tc.tier)
	}
}

func TestMinimumTierFor(t *testing.T) {
	tier, ok := MinimumTierFor(FeatureSMS)
	assert.True(t, ok)
	assert.Equal(t, TierStandard, tier)

	tier, ok = MinimumTierFor(FeatureOnlinePayment)
	assert.True(t, ok)
	assert.Equal(t, TierPro, tier)

	tier, ok = MinimumTierFor(FeatureStudents)
	assert.True(t, ok)
	assert.Equal(t, TierFree, tier)

	_, ok = MinimumTierFor(Feature("holograms"))
	assert.False(t, ok)
}

func TestTier_Valid(t *testing.T) {
	assert.True(t, TierFree.Valid())
	assert.True(t, TierStandard.Valid())
	assert.True(t, TierPro.Valid())
	assert.False(t, Tier("enterprise").Valid())
}

func TestTier_Paid(t *testing.T) {
	assert.False(t, TierFree.Paid())
	assert.True(t, TierStandard.Paid())
	assert.True(t, TierPro.Paid())
}

func TestSchool_Lapsed(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	grace := 72 * time.Hour

	never := School{}
	assert.False(t, never.Lapsed(now, grace), "nil expiry never lapses")

	within := now.Add(-48 * time.Hour)
	s := School{ExpiresAt: &within}
	assert.False(t, s.Lapsed(now, grace), "expiry inside grace has not lapsed")
	assert.True(t, s.InGrace(now, grace))

	past := now.Add(-96 * time.Hour)
	s = School{ExpiresAt: &past}
	assert.True(t, s.Lapsed(now, grace), "expiry past grace has lapsed")
	assert.False(t, s.InGrace(now, grace))

	future := now.Add(24 * time.Hour)
	s = School{ExpiresAt: &future}
	assert.False(t, s.Lapsed(now, grace))
	assert.False(t, s.InGrace(now, grace))
}

func TestSchool_GraceBoundary(t *testing.T) {
	grace := 72 * time.Hour
	expiry := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	s := School{ExpiresAt: &expiry}

	atBoundary := expiry.Add(grace)
	assert.False(t, s.Lapsed(atBoundary, grace), "exactly at the boundary is still in grace")
	assert.True(t, s.InGrace(atBoundary, grace))

	justPast := atBoundary.Add(time.Second)
	assert.True(t, s.Lapsed(justPast, grace))
}

func TestDecision(t *testing.T) {
	allow := Allow()
	assert.True(t, allow.Allowed)
	assert.Empty(t, allow.Reason)

	deny := Deny("upgrade required")
	assert.False(t, deny.Allowed)
	assert.Equal(t, "upgrade required", deny.Reason)
}

func TestJobSummary_Record(t *testing.T) {
	var s JobSummary
	s.Record(nil)
	s.Record(nil)
	s.Record(assert.AnError)

	assert.Equal(t, 3, s.Processed)
	assert.Equal(t, 2, s.Succeeded)
	assert.Equal(t, 1, s.Failed)
	assert.Len(t, s.Errors, 1)
}
