package models

import "gorm.io/datatypes"

// Workspace is the tenant boundary: every business entity hangs off one workspace.
type Workspace struct {
	BaseModel

	Name     string         `gorm:"not null" json:"name"`
	Slug     string         `gorm:"uniqueIndex;not null" json:"slug"`
	OwnerID  string         `gorm:"type:uuid;index;not null" json:"owner_id"`
	Settings datatypes.JSON `json:"settings,omitempty"`

	Owner       *User               `gorm:"foreignKey:OwnerID" json:"owner,omitempty"`
	Members     []WorkspaceMember   `gorm:"foreignKey:WorkspaceID;constraint:OnDelete:CASCADE" json:"members,omitempty"`
	Invitations []WorkspaceInvitation `gorm:"foreignKey:WorkspaceID;constraint:OnDelete:CASCADE" json:"-"`
}
