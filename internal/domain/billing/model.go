package billing

import (
	"time"

	"teamspace-backend/internal/domain/plans"

	"gorm.io/datatypes"
)

// Subscription status vocabulary, mirroring the payment processor's.
const (
	StatusIncomplete = "incomplete"
	StatusTrialing   = "trialing"
	StatusActive     = "active"
	StatusPastDue    = "past_due"
	StatusCanceled   = "canceled"
	StatusUnpaid     = "unpaid"
	StatusPaused     = "paused"
)

const (
	ReferenceTypeUser         = "user"
	ReferenceTypeOrganization = "organization"
)

// ValidStatus reports whether s belongs to the processor status vocabulary.
func ValidStatus(s string) bool {
	switch s {
	case StatusIncomplete, StatusTrialing, StatusActive, StatusPastDue,
		StatusCanceled, StatusUnpaid, StatusPaused:
		return true
	}
	return false
}

// Subscription is this system's copy of a processor subscription. The
// processor-assigned subscription id is the primary key; the processor is the
// source of truth for identity. Superseded records are never hard-deleted —
// the most recent period_start per reference_id is canonical.
type Subscription struct {
	ID string `gorm:"primaryKey" json:"id"`

	PlanID string      `gorm:"not null" json:"plan_id"`
	Plan   *plans.Plan `json:"plan,omitempty"`

	ReferenceID   string `gorm:"not null;index:idx_subscriptions_reference_id" json:"reference_id"`
	ReferenceType string `gorm:"not null;default:'user'" json:"reference_type"`

	StripeCustomerID     string `gorm:"column:stripe_customer_id;not null" json:"stripe_customer_id"`
	StripeSubscriptionID string `gorm:"column:stripe_subscription_id;not null;uniqueIndex:idx_subscriptions_stripe_subscription_id" json:"stripe_subscription_id"`

	Status string `gorm:"not null" json:"status"`

	PeriodStart time.Time  `gorm:"not null" json:"period_start"`
	PeriodEnd   time.Time  `gorm:"not null" json:"period_end"`
	TrialStart  *time.Time `json:"trial_start,omitempty"`
	TrialEnd    *time.Time `json:"trial_end,omitempty"`

	CancelAtPeriodEnd bool       `gorm:"not null;default:false" json:"cancel_at_period_end"`
	CanceledAt        *time.Time `json:"canceled_at,omitempty"`
	EndedAt           *time.Time `json:"ended_at,omitempty"`

	Seats int `gorm:"not null;default:1" json:"seats"`

	// Snapshot of the plan's limits at subscription time. Plan edits are
	// prospective-only; each accepted upsert refreshes the snapshot.
	Limits   datatypes.JSONMap `json:"limits"`
	Metadata datatypes.JSONMap `json:"metadata,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
