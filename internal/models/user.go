package models

import "time"

// User represents an authenticated platform account.
type User struct {
	BaseModel

	Email       string `gorm:"uniqueIndex;not null" json:"email"`
	Name        string `gorm:"not null" json:"name"`
	Password    string `gorm:"not null" json:"-"`
	IsActive    bool   `gorm:"default:true" json:"is_active"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`

	Memberships []WorkspaceMember `gorm:"foreignKey:UserID" json:"-"`
}
