package orgs

import (
	"net/http"
	"time"

	"teamspace-backend/database"
	"teamspace-backend/internal/domain/orgs"
	"teamspace-backend/internal/domain/users"
	"teamspace-backend/internal/entitlements"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CreateOrganization creates an organization owned by the caller. The
// free-tier cap applies: one organization unless a subscription grants more.
func CreateOrganization(c *gin.Context) {
	var body struct {
		Name string `json:"name" binding:"required"`
		Slug string `json:"slug"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing or invalid name"})
		return
	}

	userID := c.GetString("user_id")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not identified"})
		return
	}

	allowed, err := entitlements.CanCreateOrganization(database.DB, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check organization limit"})
		return
	}
	if !allowed {
		c.JSON(http.StatusPaymentRequired, gin.H{"error": "Organization limit reached for your plan"})
		return
	}

	org := orgs.Organization{
		ID:        uuid.NewString(),
		Name:      body.Name,
		CreatedAt: time.Now(),
	}
	if body.Slug != "" {
		org.Slug = &body.Slug
	}

	err = database.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&org).Error; err != nil {
			return err
		}
		member := orgs.Member{
			ID:             uuid.NewString(),
			OrganizationID: org.ID,
			UserID:         userID,
			Role:           orgs.RoleOwner,
			CreatedAt:      time.Now(),
		}
		return tx.Create(&member).Error
	})
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "Failed to create organization", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, org)
}

// AddOrganizationMember adds an existing user to an organization. Owners
// only; the organization's member quota applies.
func AddOrganizationMember(c *gin.Context) {
	var body struct {
		Email string `json:"email" binding:"required,email"`
		Role  string `json:"role"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing or invalid email"})
		return
	}

	userID := c.GetString("user_id")
	orgID := c.Param("id")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not identified"})
		return
	}

	role := body.Role
	if role == "" {
		role = orgs.RoleMember
	}
	if role != orgs.RoleOwner && role != orgs.RoleMember {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid role"})
		return
	}

	var caller orgs.Member
	err := database.DB.
		Where("organization_id = ? AND user_id = ?", orgID, userID).
		First(&caller).Error
	if err != nil {
		c.JSON(http.StatusForbidden, gin.H{"error": "Not a member of this organization"})
		return
	}
	if caller.Role != orgs.RoleOwner {
		c.JSON(http.StatusForbidden, gin.H{"error": "Only owners can add members"})
		return
	}

	var invitee users.User
	if err := database.DB.Where("email = ?", body.Email).First(&invitee).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No account with that email"})
		return
	}

	var count int64
	if err := database.DB.Model(&orgs.Member{}).
		Where("organization_id = ?", orgID).
		Count(&count).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check member limit"})
		return
	}
	limits := entitlements.EffectiveLimits(database.DB, orgID)
	if !entitlements.WithinLimit(limits, "members", count) {
		c.JSON(http.StatusPaymentRequired, gin.H{"error": "Member limit reached for your plan"})
		return
	}

	member := orgs.Member{
		ID:             uuid.NewString(),
		OrganizationID: orgID,
		UserID:         invitee.ID,
		Role:           role,
		CreatedAt:      time.Now(),
	}
	if err := database.DB.Create(&member).Error; err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "User is already a member"})
		return
	}

	c.JSON(http.StatusOK, member)
}

// ListOrganizationMembers returns an organization's roster. Members only.
func ListOrganizationMembers(c *gin.Context) {
	userID := c.GetString("user_id")
	orgID := c.Param("id")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not identified"})
		return
	}

	member, err := orgs.IsMember(database.DB, orgID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check membership"})
		return
	}
	if !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "Not a member of this organization"})
		return
	}

	var members []orgs.Member
	if err := database.DB.Where("organization_id = ?", orgID).Find(&members).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load members"})
		return
	}
	c.JSON(http.StatusOK, members)
}

// ListMyOrganizations returns the organizations the caller belongs to.
func ListMyOrganizations(c *gin.Context) {
	userID := c.GetString("user_id")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not identified"})
		return
	}

	var memberships []orgs.Member
	err := database.DB.Preload("Organization").
		Where("user_id = ?", userID).
		Find(&memberships).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load organizations"})
		return
	}

	c.JSON(http.StatusOK, memberships)
}
