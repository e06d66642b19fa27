package models

import (
	"time"

	"gorm.io/datatypes"
)

// Batch statuses.
const (
	BatchStatusProcessing          = "processing"
	BatchStatusCompleted           = "completed"
	BatchStatusCompletedWithErrors = "completed_with_errors"
	BatchStatusFailed              = "failed"
)

// InvitationBatch is the parent record of one bulk-import operation.
// Counters and status are written exactly once when the batch finishes;
// the record is immutable after CompletedAt is set.
type InvitationBatch struct {
	BaseModel

	WorkspaceID string         `gorm:"type:uuid;not null;index" json:"workspace_id"`
	CreatedBy   string         `gorm:"type:uuid;not null" json:"created_by"`
	Name        string         `gorm:"not null" json:"name"`
	Status      string         `gorm:"not null;default:processing;index" json:"status"`
	Total       int            `gorm:"default:0" json:"total"`
	Successful  int            `gorm:"default:0" json:"successful"`
	Failed      int            `gorm:"default:0" json:"failed"`
	Input       datatypes.JSON `json:"-"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`

	Workspace *Workspace `gorm:"foreignKey:WorkspaceID;constraint:OnDelete:CASCADE" json:"-"`
}
