package models

import "time"

// Membership statuses.
const (
	MemberStatusActive   = "active"
	MemberStatusInactive = "inactive"
	MemberStatusPending  = "pending"
)

// Workspace roles. Owner and admin may manage invitations and members.
const (
	RoleOwner  = "owner"
	RoleAdmin  = "admin"
	RoleMember = "member"
)

// WorkspaceMember joins a user to a workspace with a role and profile details.
type WorkspaceMember struct {
	BaseModel

	WorkspaceID string     `gorm:"type:uuid;not null;uniqueIndex:idx_workspace_user" json:"workspace_id"`
	UserID      string     `gorm:"type:uuid;not null;uniqueIndex:idx_workspace_user" json:"user_id"`
	Role        string     `gorm:"not null;default:member" json:"role"`
	Status      string     `gorm:"not null;default:active;index" json:"status"`
	Department  string     `json:"department,omitempty"`
	Position    string     `json:"position,omitempty"`
	InvitedBy   *string    `gorm:"type:uuid" json:"invited_by,omitempty"`
	TeamRoleID  *string    `gorm:"type:uuid" json:"team_role_id,omitempty"`
	JoinedAt    *time.Time `json:"joined_at,omitempty"`

	Workspace *Workspace `gorm:"foreignKey:WorkspaceID;constraint:OnDelete:CASCADE" json:"-"`
	User      *User      `gorm:"foreignKey:UserID" json:"user,omitempty"`
	TeamRole  *TeamRole  `gorm:"foreignKey:TeamRoleID;constraint:OnDelete:SET NULL" json:"team_role,omitempty"`
}

// CanManage reports whether the member may administer workspace invitations and membership.
func (m *WorkspaceMember) CanManage() bool {
	if m == nil || m.Status != MemberStatusActive {
		return false
	}
	return m.Role == RoleOwner || m.Role == RoleAdmin
}
