// Package domain contains work-order models and the status machine.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

const (
	StatusSubmitted  = "submitted"
	StatusAccepted   = "accepted"
	StatusAssigned   = "assigned"
	StatusInProgress = "in_progress"
	StatusOnHold     = "on_hold"
	StatusCompleted  = "completed"
	StatusCancelled  = "cancelled"
)

// transitions lists the allowed next statuses per current status.
// Completed and cancelled are terminal.
var transitions = map[string][]string{
	StatusSubmitted:  {StatusAccepted, StatusCancelled},
	StatusAccepted:   {StatusAssigned, StatusInProgress, StatusCancelled},
	StatusAssigned:   {StatusInProgress, StatusOnHold, StatusCancelled},
	StatusInProgress: {StatusOnHold, StatusCompleted, StatusCancelled},
	StatusOnHold:     {StatusInProgress, StatusCancelled},
	StatusCompleted:  nil,
	StatusCancelled:  nil,
}

// CanTransition reports whether a work order may move from one status
// to another.
func CanTransition(from, to string) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status admits no further transitions.
func IsTerminal(status string) bool {
	next, ok := transitions[status]
	return ok && len(next) == 0
}

// WorkOrder is a maintenance request against a piece of equipment.
// TeamID is copied from the equipment at submission time so access
// checks stay stable if the asset is later reassigned.
type WorkOrder struct {
	ID          snowflake.ID  `gorm:"primaryKey" json:"id"`
	OrgID       snowflake.ID  `gorm:"not null;index" json:"org_id"`
	EquipmentID snowflake.ID  `gorm:"not null;index" json:"equipment_id"`
	TeamID      *snowflake.ID `gorm:"index" json:"team_id,omitempty"`
	Title       string        `gorm:"type:text;not null" json:"title"`
	Description string        `gorm:"type:text" json:"description"`
	Status      string        `gorm:"type:text;not null;default:'submitted'" json:"status"`
	RequestedBy snowflake.ID  `gorm:"column:requested_by;not null;index" json:"requested_by"`
	AssignedTo  *snowflake.ID `gorm:"column:assigned_to;index" json:"assigned_to,omitempty"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
	CreatedAt   time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (WorkOrder) TableName() string { return "work_orders" }
