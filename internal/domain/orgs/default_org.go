package orgs

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// CreateDefaultOrganization gives a fresh user a personal workspace and makes
// them its owner. Called from signup paths; the slug carries a timestamp to
// stay unique without a retry loop.
func CreateDefaultOrganization(db *gorm.DB, userID string, userName string) (*Organization, error) {
	slug := fmt.Sprintf("%s-org-%d", slugify(userName), time.Now().UnixMilli())

	org := Organization{
		ID:        uuid.NewString(),
		Name:      fmt.Sprintf("%s's Organization", userName),
		Slug:      &slug,
		CreatedAt: time.Now(),
		Metadata: datatypes.JSONMap{
			"isDefault": true,
			"createdBy": userID,
		},
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&org).Error; err != nil {
			return err
		}
		member := Member{
			ID:             uuid.NewString(),
			OrganizationID: org.ID,
			UserID:         userID,
			Role:           RoleOwner,
			CreatedAt:      time.Now(),
		}
		return tx.Create(&member).Error
	})
	if err != nil {
		return nil, err
	}
	return &org, nil
}

// IsMember reports whether the user belongs to the organization.
func IsMember(db *gorm.DB, organizationID, userID string) (bool, error) {
	var count int64
	err := db.Model(&Member{}).
		Where("organization_id = ? AND user_id = ?", organizationID, userID).
		Count(&count).Error
	return count > 0, err
}

func slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.Join(strings.Fields(s), "-")
	if s == "" {
		s = "user"
	}
	return s
}
