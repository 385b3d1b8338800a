package plans

import (
	"time"

	"gorm.io/datatypes"
)

const (
	TypeSubscription = "subscription"
	TypeOneTime      = "one_time"
)

// Unlimited is the sentinel value in a limits map meaning "no quota".
const Unlimited int64 = -1

type Plan struct {
	ID   string `gorm:"primaryKey" json:"id"`
	Name string `gorm:"not null;uniqueIndex:idx_plans_name" json:"name"`
	Type string `gorm:"not null;default:'subscription'" json:"type"`

	StripePriceID       string  `gorm:"column:stripe_price_id;not null;uniqueIndex:idx_plans_stripe_price_id" json:"stripe_price_id"`
	StripeAnnualPriceID *string `gorm:"column:stripe_annual_price_id" json:"stripe_annual_price_id,omitempty"`

	Amount        int64   `json:"amount"` // cents
	Currency      string  `gorm:"not null;default:'usd'" json:"currency"`
	Interval      *string `json:"interval,omitempty"` // month | year, nil for one-time
	IntervalCount int     `gorm:"default:1" json:"interval_count"`

	TrialPeriodDays *int `json:"trial_period_days,omitempty"`

	Limits      datatypes.JSONMap `gorm:"not null" json:"limits"`
	Features    datatypes.JSONMap `json:"features,omitempty"`
	Description *string           `json:"description,omitempty"`

	IsActive  bool              `gorm:"not null;default:true" json:"is_active"`
	SortOrder int               `gorm:"not null;default:0" json:"sort_order"`
	Metadata  datatypes.JSONMap `json:"metadata,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LimitValue extracts a named quota from a JSON limits map. JSON numbers
// decode as float64; seeded maps may hold native ints. Anything else means
// the quota is not granted.
func LimitValue(limits map[string]interface{}, key string) (int64, bool) {
	v, ok := limits[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case int64:
		return n, true
	case int:
		return int64(n), true
	default:
		return 0, false
	}
}
