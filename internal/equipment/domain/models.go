// Package domain contains equipment models.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

const (
	StatusActive      = "active"
	StatusMaintenance = "maintenance"
	StatusRetired     = "retired"
)

// Equipment is a tracked asset. TeamID is nil for unassigned equipment,
// which only org admins may edit.
type Equipment struct {
	ID           snowflake.ID      `gorm:"primaryKey" json:"id"`
	OrgID        snowflake.ID      `gorm:"not null;index" json:"org_id"`
	TeamID       *snowflake.ID     `gorm:"index" json:"team_id,omitempty"`
	Name         string            `gorm:"type:text;not null" json:"name"`
	SerialNumber string            `gorm:"type:text" json:"serial_number"`
	Status       string            `gorm:"type:text;not null;default:'active'" json:"status"`
	Location     string            `gorm:"type:text" json:"location"`
	QRKey        string            `gorm:"type:text;not null;uniqueIndex:ux_equipment_qr_key" json:"qr_key"`
	Attributes   datatypes.JSONMap `gorm:"type:jsonb" json:"attributes"`
	CreatedAt    time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt    time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Equipment) TableName() string { return "equipment" }
