package models

import "time"

// Invitation statuses. Pending is the only active state; the rest are terminal.
const (
	InvitationStatusPending   = "pending"
	InvitationStatusAccepted  = "accepted"
	InvitationStatusDeclined  = "declined"
	InvitationStatusCancelled = "cancelled"
	InvitationStatusExpired   = "expired"
)

// WorkspaceInvitation is the invitation state machine record.
//
// The raw token is only ever returned to the caller at issuance and embedded in
// the invitation email; the database stores a sha256 hash of it. Duplicate
// pending invitations per (workspace, email) are prevented by a partial unique
// index created in the migrations package, so the insert itself is the
// race-free enforcement point.
type WorkspaceInvitation struct {
	BaseModel

	WorkspaceID     string     `gorm:"type:uuid;not null;index" json:"workspace_id"`
	InvitedBy       string     `gorm:"type:uuid;not null" json:"invited_by"`
	Email           string     `gorm:"not null;index" json:"email"`
	TokenHash       string     `gorm:"uniqueIndex;not null" json:"-"`
	Role            string     `gorm:"not null;default:member" json:"role"`
	Department      string     `json:"department,omitempty"`
	Position        string     `json:"position,omitempty"`
	PersonalMessage string     `json:"personal_message,omitempty"`
	Status          string     `gorm:"not null;default:pending;index" json:"status"`
	ExpiresAt       time.Time  `gorm:"index;not null" json:"expires_at"`
	RemindersSent   int        `gorm:"default:0" json:"reminders_sent"`
	DeclinedReason  string     `json:"declined_reason,omitempty"`
	AcceptedAt      *time.Time `json:"accepted_at,omitempty"`
	DeclinedAt      *time.Time `json:"declined_at,omitempty"`
	BatchID         *string    `gorm:"type:uuid;index" json:"batch_id,omitempty"`

	Workspace *Workspace       `gorm:"foreignKey:WorkspaceID;constraint:OnDelete:CASCADE" json:"workspace,omitempty"`
	Inviter   *User            `gorm:"foreignKey:InvitedBy" json:"inviter,omitempty"`
	Batch     *InvitationBatch `gorm:"foreignKey:BatchID;constraint:OnDelete:SET NULL" json:"-"`
}

// EffectiveStatus computes the externally visible status as a pure function of
// the stored row and the supplied clock. A pending invitation whose expiry has
// passed reads as expired without any write side effect; a background job
// persists the transition out of band.
func (i *WorkspaceInvitation) EffectiveStatus(now time.Time) string {
	if i.Status == InvitationStatusPending && now.After(i.ExpiresAt) {
		return InvitationStatusExpired
	}
	return i.Status
}

// IsActionable reports whether accept/decline/cancel/resend transitions are
// still legal at the supplied instant.
func (i *WorkspaceInvitation) IsActionable(now time.Time) bool {
	return i.EffectiveStatus(now) == InvitationStatusPending
}
