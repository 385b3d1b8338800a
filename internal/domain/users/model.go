package users

import (
	"time"
)

type User struct {
	ID            string  `gorm:"primaryKey" json:"id"`
	Name          string  `json:"name"`
	Email         string  `gorm:"not null;uniqueIndex:idx_users_email" json:"email"`
	EmailVerified bool    `json:"email_verified"`
	Image         *string `json:"image,omitempty"`

	Password     *string `gorm:"" json:"-"`
	AuthProvider string  `gorm:"type:varchar(20);not null;default:'local'" json:"-"`
	GoogleSub    *string `gorm:"uniqueIndex:idx_users_google_sub" json:"-"`
	Role         string  `json:"role"`

	// Lazily created on first billing interaction; at most one per user.
	StripeCustomerID *string `gorm:"column:stripe_customer_id;uniqueIndex:idx_users_stripe_customer_id" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
