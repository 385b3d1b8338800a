package admin

import (
	"errors"
	"net/http"
	"strconv"

	"teamspace-backend/database"
	"teamspace-backend/internal/domain/billing"
	"teamspace-backend/internal/domain/users"
	"teamspace-backend/internal/reconcile"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

func ListUsers(c *gin.Context) {
	page, limit := pagination(c)

	var total int64
	database.DB.Model(&users.User{}).Count(&total)

	var result []users.User
	err := database.DB.
		Order("created_at DESC").
		Limit(limit).Offset((page - 1) * limit).
		Find(&result).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load users"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"users": result, "total": total})
}

func ListSubscriptions(c *gin.Context) {
	page, limit := pagination(c)

	query := database.DB.Model(&billing.Subscription{})
	if ref := c.Query("reference_id"); ref != "" {
		query = query.Where("reference_id = ?", ref)
	}
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	query.Count(&total)

	var result []billing.Subscription
	err := query.Preload("Plan").
		Order("period_start DESC").
		Limit(limit).Offset((page - 1) * limit).
		Find(&result).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load subscriptions"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"subscriptions": result, "total": total})
}

func ListPayments(c *gin.Context) {
	page, limit := pagination(c)

	var total int64
	database.DB.Model(&billing.Payment{}).Count(&total)

	var result []billing.Payment
	err := database.DB.
		Order("created_at DESC").
		Limit(limit).Offset((page - 1) * limit).
		Find(&result).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load payments"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"payments": result, "total": total})
}

// UpdateSubscription is the operational escape hatch for fixing billing
// records. It goes through the engine's allow-list, not a raw passthrough.
func UpdateSubscription(c *gin.Context) {
	subscriptionID := c.Param("id")

	var body map[string]interface{}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	rec := reconcile.New(database.DB, nil, logrus.StandardLogger())
	err := rec.ApplyAdminUpdate(c.Request.Context(), subscriptionID, body)
	switch {
	case errors.Is(err, reconcile.ErrInvalidField), errors.Is(err, reconcile.ErrUnknownPlan):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, gorm.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Subscription not found"})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update subscription"})
	default:
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

func pagination(c *gin.Context) (page, limit int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return page, limit
}
