package orgs

import (
	"time"

	"gorm.io/datatypes"
)

const (
	RoleOwner  = "owner"
	RoleMember = "member"
)

type Organization struct {
	ID        string            `gorm:"primaryKey" json:"id"`
	Name      string            `gorm:"not null" json:"name"`
	Slug      *string           `gorm:"uniqueIndex:idx_organizations_slug" json:"slug,omitempty"`
	Logo      *string           `json:"logo,omitempty"`
	Metadata  datatypes.JSONMap `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

type Member struct {
	ID             string        `gorm:"primaryKey" json:"id"`
	OrganizationID string        `gorm:"not null;uniqueIndex:idx_members_org_user" json:"organization_id"`
	Organization   *Organization `json:"organization,omitempty"`
	UserID         string        `gorm:"not null;uniqueIndex:idx_members_org_user" json:"user_id"`
	Role           string        `gorm:"not null;default:'member'" json:"role"`
	CreatedAt      time.Time     `json:"created_at"`
}
