package middleware

import (
	"net/http"
	"time"

	"teamspace-backend/database"
	"teamspace-backend/internal/domain/billing"

	"github.com/gin-gonic/gin"
)

// RequireActiveSubscription gates routes behind a paid (or trialing)
// subscription whose current period has not elapsed. The billable entity is
// the organization named by the :id route param when present, otherwise the
// calling user.
func RequireActiveSubscription() gin.HandlerFunc {
	return func(c *gin.Context) {
		referenceID := c.Param("id")
		if referenceID == "" {
			referenceID = c.GetString("user_id")
		}

		var sub billing.Subscription
		err := database.DB.
			Where("reference_id = ? AND status IN ?", referenceID,
				[]string{billing.StatusActive, billing.StatusTrialing}).
			Order("period_start DESC").
			First(&sub).Error
		if err != nil {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "Subscription not found or expired",
			})
			return
		}

		if time.Now().After(sub.PeriodEnd) {
			c.AbortWithStatusJSON(http.StatusPaymentRequired, gin.H{
				"error": "Your subscription has expired",
			})
			return
		}

		c.Next()
	}
}
