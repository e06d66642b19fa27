package models

import "gorm.io/datatypes"

// TeamRole is a workspace-scoped named role with a free-form permission document.
type TeamRole struct {
	BaseModel

	WorkspaceID string         `gorm:"type:uuid;not null;uniqueIndex:idx_team_role_name" json:"workspace_id"`
	Name        string         `gorm:"not null;uniqueIndex:idx_team_role_name" json:"name"`
	Description string         `json:"description,omitempty"`
	Permissions datatypes.JSON `json:"permissions,omitempty"`

	Workspace *Workspace `gorm:"foreignKey:WorkspaceID;constraint:OnDelete:CASCADE" json:"-"`
}
