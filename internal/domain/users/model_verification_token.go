package users

import "time"

const (
	TokenTypeEmailVerify   = "email_verify"
	TokenTypePasswordReset = "password_reset"
)

type VerificationToken struct {
	ID        uint   `gorm:"primaryKey"`
	UserID    string `gorm:"index;not null"`
	Token     string `gorm:"uniqueIndex:idx_verification_tokens_token;not null"`
	Type      string `gorm:"type:varchar(32);not null;default:'email_verify'"`
	ExpiresAt time.Time
	CreatedAt time.Time
}
