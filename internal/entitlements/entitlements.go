package entitlements

import (
	"teamspace-backend/internal/domain/billing"
	"teamspace-backend/internal/domain/plans"

	"gorm.io/gorm"
)

// FreeTierLimits is what an entity with no active subscription gets.
func FreeTierLimits() map[string]int64 {
	return map[string]int64{
		"projects": 1,
		"storage":  1,
		"members":  1,
		"apiCalls": 1000,
	}
}

// EffectiveLimits resolves the usage limits in force for an entity right now.
// It never fails: an entity with no active or trialing record falls back to
// the free tier, as does a record with an unreadable limits snapshot. This
// sits on the hot path gating feature access.
func EffectiveLimits(db *gorm.DB, referenceID string) map[string]int64 {
	sub, err := activeSubscription(db, referenceID)
	if err != nil || len(sub.Limits) == 0 {
		return FreeTierLimits()
	}

	limits := make(map[string]int64, len(sub.Limits))
	for key := range sub.Limits {
		if v, ok := plans.LimitValue(sub.Limits, key); ok {
			limits[key] = v
		}
	}
	if len(limits) == 0 {
		return FreeTierLimits()
	}
	return limits
}

// CheckLimit reports whether currentUsage leaves room under the entity's
// quota for limitKey. The -1 sentinel means unlimited; an absent key means
// the quota is not granted at all.
func CheckLimit(db *gorm.DB, referenceID, limitKey string, currentUsage int64) bool {
	return WithinLimit(EffectiveLimits(db, referenceID), limitKey, currentUsage)
}

// WithinLimit is the pure form of CheckLimit.
func WithinLimit(limits map[string]int64, limitKey string, currentUsage int64) bool {
	limit, ok := limits[limitKey]
	if !ok {
		return false
	}
	if limit == plans.Unlimited {
		return true
	}
	return currentUsage < limit
}

// CanCreateOrganization applies the free-tier organization cap: one
// membership unless some organization the user belongs to holds a
// subscription with unlimited organizations.
func CanCreateOrganization(db *gorm.DB, userID string) (bool, error) {
	var orgIDs []string
	if err := db.Table("members").
		Where("user_id = ?", userID).
		Pluck("organization_id", &orgIDs).Error; err != nil {
		return false, err
	}

	for _, orgID := range orgIDs {
		limits := EffectiveLimits(db, orgID)
		if limits["organizations"] == plans.Unlimited {
			return true, nil
		}
	}
	return len(orgIDs) < 1, nil
}

func activeSubscription(db *gorm.DB, referenceID string) (*billing.Subscription, error) {
	var sub billing.Subscription
	err := db.
		Where("reference_id = ? AND status IN ?", referenceID,
			[]string{billing.StatusActive, billing.StatusTrialing}).
		Order("period_start DESC").
		First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}
