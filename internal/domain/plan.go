// Package domain contains core business types and interfaces.
//
// This file defines the static tier registry: which features each
// subscription tier grants and the storage and SMS ceilings it carries.
// Pure data and lookup, no I/O.
package domain

// Feature identifies a gated capability of the platform.
type Feature string

const (
	FeatureSMS           Feature = "sms"
	FeatureFileStorage   Feature = "file_storage"
	FeatureBulkExport    Feature = "bulk_export"
	FeatureReportCards   Feature = "report_cards"
	FeatureOnlinePayment Feature = "online_payments"
	FeatureAPIAccess     Feature = "api_access"
	FeatureCustomDomain  Feature = "custom_domain"

	// Core record-keeping features. These are never tier-gated; they live
	// in CoreFeatures rather than in any plan's feature set.
	FeatureStudents   Feature = "students"
	FeatureStaff      Feature = "staff"
	FeatureClasses    Feature = "classes"
	FeatureAttendance Feature = "attendance"
	FeatureGradebook  Feature = "gradebook"
)

// CoreFeatures are always allowed for every tier, including free and
// lapsed schools that have been downgraded. A school must always be able
// to reach its own records.
var CoreFeatures = map[Feature]bool{
	FeatureStudents:   true,
	FeatureStaff:      true,
	FeatureClasses:    true,
	FeatureAttendance: true,
	FeatureGradebook:  true,
}

// TierPlan defines the entitlements of a subscription tier.
type TierPlan struct {
	Features     map[Feature]bool
	StorageLimit int64 // bytes; zero denies all storage use
	SMSPerMonth  int   // zero denies all SMS sends
}

const gib = int64(1) << 30

// TierPlans maps each tier to its plan. The free tier carries no storage
// or SMS allowance at all.
var TierPlans = map[Tier]TierPlan{
	TierFree: {
		Features:     map[Feature]bool{},
		StorageLimit: 0,
		SMSPerMonth:  0,
	},
	TierStandard: {
		Features: map[Feature]bool{
			FeatureSMS:         true,
			FeatureFileStorage: true,
			FeatureBulkExport:  true,
			FeatureReportCards: true,
		},
		StorageLimit: 5 * gib,
		SMSPerMonth:  100,
	},
	TierPro: {
		Features: map[Feature]bool{
			FeatureSMS:           true,
			FeatureFileStorage:   true,
			FeatureBulkExport:    true,
			FeatureReportCards:   true,
			FeatureOnlinePayment: true,
			FeatureAPIAccess:     true,
			FeatureCustomDomain:  true,
		},
		StorageLimit: 20 * gib,
		SMSPerMonth:  500,
	},
}

// GetTierPlan returns the plan for a tier, defaulting to the free plan
// for unknown tiers.
func GetTierPlan(tier Tier) TierPlan {
	if plan, ok := TierPlans[tier]; ok {
		return plan
	}
	return TierPlans[TierFree]
}

// Grants reports whether the plan includes the feature. Core features are
// granted on every plan.
func (p TierPlan) Grants(f Feature) bool {
	if CoreFeatures[f] {
		return true
	}
	return p.Features[f]
}

// tierOrder is the probing order for MinimumTierFor, cheapest first.
var tierOrder = []Tier{TierFree, TierStandard, TierPro}

// MinimumTierFor returns the cheapest tier that grants the feature and
// true, or "" and false when no tier grants it.
func MinimumTierFor(f Feature) (Tier, bool) {
	for _, t := range tierOrder {
		if GetTierPlan(t).Grants(f) {
			return t, true
		}
	}
	return "", false
}
