package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"teamspace-backend/internal/domain/billing"
	"teamspace-backend/internal/domain/plans"

	"gorm.io/gorm"
)

// adminMutableFields is the allow-list for the operational escape hatch.
// Anything outside it — in particular identity and attribution columns —
// cannot be touched even by admins.
var adminMutableFields = map[string]struct{}{
	"status":               {},
	"cancel_at_period_end": {},
	"seats":                {},
	"period_start":         {},
	"period_end":           {},
	"trial_start":          {},
	"trial_end":            {},
	"plan_id":              {},
}

// ApplyAdminUpdate mutates an explicit set of subscription fields on behalf
// of an operator. Fields are validated against the same rules the engine
// enforces on webhook events; one bad field rejects the whole update.
func (r *Reconciler) ApplyAdminUpdate(ctx context.Context, subscriptionID string, fields map[string]interface{}) error {
	if len(fields) == 0 {
		return fmt.Errorf("%w: no fields given", ErrInvalidField)
	}

	updates := make(map[string]interface{}, len(fields))
	for key, raw := range fields {
		if _, ok := adminMutableFields[key]; !ok {
			return fmt.Errorf("%w: %q is not updatable", ErrInvalidField, key)
		}
		value, err := validateAdminField(r.db.WithContext(ctx), key, raw)
		if err != nil {
			return err
		}
		updates[key] = value
	}

	res := r.db.WithContext(ctx).Model(&billing.Subscription{}).
		Where("id = ?", subscriptionID).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func validateAdminField(db *gorm.DB, key string, raw interface{}) (interface{}, error) {
	switch key {
	case "status":
		s, ok := raw.(string)
		if !ok || !billing.ValidStatus(s) {
			return nil, fmt.Errorf("%w: status %v", ErrInvalidField, raw)
		}
		return s, nil

	case "cancel_at_period_end":
		b, ok := raw.(bool)
		if !ok {
			return nil, fmt.Errorf("%w: cancel_at_period_end must be a boolean", ErrInvalidField)
		}
		return b, nil

	case "seats":
		n, ok := intValue(raw)
		if !ok || n < 1 {
			return nil, fmt.Errorf("%w: seats must be a positive integer", ErrInvalidField)
		}
		return n, nil

	case "period_start", "period_end", "trial_start", "trial_end":
		if raw == nil {
			if key == "period_start" || key == "period_end" {
				return nil, fmt.Errorf("%w: %s cannot be null", ErrInvalidField, key)
			}
			return nil, nil
		}
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("%w: %s must be an RFC3339 timestamp", ErrInvalidField, key)
		}
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidField, key, err)
		}
		return t, nil

	case "plan_id":
		id, ok := raw.(string)
		if !ok || id == "" {
			return nil, fmt.Errorf("%w: plan_id must be a plan id", ErrInvalidField)
		}
		var plan plans.Plan
		err := db.Where("id = ? AND is_active = ?", id, true).First(&plan).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownPlan, id)
		}
		if err != nil {
			return nil, err
		}
		return id, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrInvalidField, key)
}

func intValue(raw interface{}) (int64, bool) {
	switch n := raw.(type) {
	case float64:
		return int64(n), true
	case int:
		return int64(n), true
	case int64:
		return n, true
	}
	return 0, false
}
