package plans

import (
	"net/http"

	"teamspace-backend/database"
	"teamspace-backend/internal/domain/plans"

	"github.com/gin-gonic/gin"
)

// ListPlans returns the active subscription tiers in display order.
func ListPlans(c *gin.Context) {
	var result []plans.Plan
	err := database.DB.
		Where("is_active = ? AND type = ?", true, plans.TypeSubscription).
		Order("sort_order ASC").
		Find(&result).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load plans"})
		return
	}
	c.JSON(http.StatusOK, result)
}
