package users

import (
	"errors"
	"net/http"
	"time"

	"teamspace-backend/database"
	"teamspace-backend/internal/domain/billing"
	"teamspace-backend/internal/domain/users"
	"teamspace-backend/internal/entitlements"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// GetCurrentUser answers /me: profile, latest billing record, and the limits
// currently in force.
func GetCurrentUser(c *gin.Context) {
	userID := c.GetString("user_id")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not identified"})
		return
	}

	var user users.User
	if err := database.DB.Where("id = ?", userID).First(&user).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not found"})
		return
	}

	var sub *billing.Subscription
	var latest billing.Subscription
	err := database.DB.Preload("Plan").
		Where("reference_id = ?", userID).
		Order("period_start DESC").
		First(&latest).Error
	if err == nil {
		sub = &latest
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load subscription"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user":         user,
		"subscription": sub,
		"limits":       entitlements.EffectiveLimits(database.DB, userID),
	})
}

// VerifyEmail consumes an email-verification token.
func VerifyEmail(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing token"})
		return
	}

	var verif users.VerificationToken
	err := database.DB.
		Where("token = ? AND type = ?", token, users.TokenTypeEmailVerify).
		First(&verif).Error
	if err != nil || verif.ExpiresAt.Before(time.Now()) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid or expired verification token"})
		return
	}

	if err := database.DB.Model(&users.User{}).
		Where("id = ?", verif.UserID).
		Update("email_verified", true).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to verify account"})
		return
	}

	database.DB.Delete(&verif)

	c.JSON(http.StatusOK, gin.H{"message": "Email verified successfully"})
}
