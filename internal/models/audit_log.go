package models

import "gorm.io/datatypes"

// AuditLog captures who did what to which resource.
type AuditLog struct {
	BaseModel

	WorkspaceID string         `gorm:"type:uuid;index" json:"workspace_id,omitempty"`
	UserID      string         `gorm:"type:uuid;index" json:"user_id,omitempty"`
	Action      string         `gorm:"not null;index" json:"action"`
	Resource    string         `json:"resource,omitempty"`
	Result      string         `gorm:"not null" json:"result"`
	Metadata    datatypes.JSON `json:"metadata,omitempty"`
}
