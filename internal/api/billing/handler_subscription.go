package billing

import (
	"errors"
	"net/http"

	"teamspace-backend/database"
	"teamspace-backend/internal/domain/billing"
	"teamspace-backend/internal/domain/orgs"
	stripeclient "teamspace-backend/internal/infra/stripe"
	"teamspace-backend/internal/reconcile"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// GetCurrentSubscription returns the caller's most recent billing record, or
// null when they have never subscribed.
func GetCurrentSubscription(c *gin.Context) {
	userID := c.GetString("user_id")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not identified"})
		return
	}

	sub, err := currentSubscription(database.DB, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load subscription"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"subscription": sub})
}

// GetOrganizationSubscription returns an organization's most recent billing
// record. Callers must be members of that organization.
func GetOrganizationSubscription(c *gin.Context) {
	userID := c.GetString("user_id")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not identified"})
		return
	}
	orgID := c.Param("id")
	if orgID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing organization id"})
		return
	}

	member, err := orgs.IsMember(database.DB, orgID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check membership"})
		return
	}
	if !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "Not authorized to view organization subscription"})
		return
	}

	sub, err := currentSubscription(database.DB, orgID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load subscription"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"subscription": sub})
}

// GetPaymentHistory lists the caller's invoice ledger, newest first.
func GetPaymentHistory(c *gin.Context) {
	userID := c.GetString("user_id")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not identified"})
		return
	}

	var payments []billing.Payment
	if err := database.DB.
		Where("reference_id = ?", userID).
		Order("created_at DESC").
		Find(&payments).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load payments"})
		return
	}
	c.JSON(http.StatusOK, payments)
}

// CancelSubscription flags the subscription to lapse at period end.
func CancelSubscription(c *gin.Context) {
	setCancelFlag(c, true)
}

// ReactivateSubscription clears a pending cancel-at-period-end.
func ReactivateSubscription(c *gin.Context) {
	setCancelFlag(c, false)
}

func setCancelFlag(c *gin.Context, cancel bool) {
	var body struct {
		SubscriptionID string `json:"subscription_id"`
		OrganizationID string `json:"organization_id"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.SubscriptionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing or invalid subscription_id"})
		return
	}

	userID := c.GetString("user_id")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not identified"})
		return
	}

	// Acting on behalf of an organization requires membership; the record's
	// ownership itself is re-checked inside the engine.
	actingRef := userID
	if body.OrganizationID != "" {
		member, err := orgs.IsMember(database.DB, body.OrganizationID, userID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check membership"})
			return
		}
		if !member {
			c.JSON(http.StatusForbidden, gin.H{"error": "Not a member of this organization"})
			return
		}
		actingRef = body.OrganizationID
	}

	rec := reconcile.New(database.DB, stripeclient.NewClient(), logrus.StandardLogger())

	var err error
	if cancel {
		err = rec.CancelAtPeriodEnd(c.Request.Context(), body.SubscriptionID, actingRef)
	} else {
		err = rec.ResumeAtPeriodEnd(c.Request.Context(), body.SubscriptionID, actingRef)
	}

	switch {
	case errors.Is(err, reconcile.ErrNotAuthorized):
		c.JSON(http.StatusNotFound, gin.H{"error": "Subscription not found or not authorized"})
	case err != nil:
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to update subscription", "details": err.Error()})
	default:
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

// currentSubscription returns the latest record for a reference id, any
// status, with its plan preloaded. Recency by period start is canonical.
func currentSubscription(db *gorm.DB, referenceID string) (*billing.Subscription, error) {
	var sub billing.Subscription
	err := db.Preload("Plan").
		Where("reference_id = ?", referenceID).
		Order("period_start DESC").
		First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}
