// Package domain contains user and session models.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// User is an account that can belong to many organizations.
type User struct {
	ID           snowflake.ID `gorm:"primaryKey" json:"id"`
	Email        string       `gorm:"type:text;not null;uniqueIndex:ux_users_email" json:"email"`
	Name         string       `gorm:"type:text" json:"name"`
	PasswordHash string       `gorm:"type:text;not null" json:"-"`
	CreatedAt    time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt    time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (User) TableName() string { return "users" }

// Session is an opaque bearer token with an optional selected
// organization. OrgID survives logout-free restarts so the last
// selected tenant can be restored.
type Session struct {
	Token     string        `gorm:"primaryKey;type:text" json:"token"`
	UserID    snowflake.ID  `gorm:"not null;index" json:"user_id"`
	OrgID     *snowflake.ID `gorm:"index" json:"org_id,omitempty"`
	ExpiresAt time.Time     `gorm:"not null" json:"expires_at"`
	CreatedAt time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (Session) TableName() string { return "sessions" }
