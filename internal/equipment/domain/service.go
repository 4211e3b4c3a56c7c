package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrEquipmentNotFound = errors.New("equipment_not_found")
	ErrInvalidStatus     = errors.New("invalid_equipment_status")
	ErrForbidden         = errors.New("forbidden")
)

// CreateEquipmentRequest registers a new asset.
type CreateEquipmentRequest struct {
	OrgID        snowflake.ID
	ActorID      snowflake.ID
	TeamID       *snowflake.ID `json:"team_id"`
	Name         string        `json:"name" binding:"required"`
	SerialNumber string        `json:"serial_number"`
	Location     string        `json:"location"`
}

// UpdateEquipmentRequest edits mutable asset fields.
type UpdateEquipmentRequest struct {
	ID       snowflake.ID
	ActorID  snowflake.ID
	Name     *string `json:"name"`
	Status   *string `json:"status"`
	Location *string `json:"location"`
}

// Service exposes equipment operations. Reads and writes are gated by
// the caller's org role and team membership.
type Service interface {
	Create(ctx context.Context, req CreateEquipmentRequest) (*Equipment, error)
	Get(ctx context.Context, actorID, equipmentID snowflake.ID) (*Equipment, error)
	GetByQRKey(ctx context.Context, actorID snowflake.ID, key string) (*Equipment, error)
	ListForUser(ctx context.Context, orgID, actorID snowflake.ID) ([]Equipment, error)
	Update(ctx context.Context, req UpdateEquipmentRequest) (*Equipment, error)
	AssignToTeam(ctx context.Context, actorID, equipmentID snowflake.ID, teamID *snowflake.ID) error

	// HasEquipment reports whether the organization owns any equipment.
	// Feeds the billing-required calculation.
	HasEquipment(ctx context.Context, orgID snowflake.ID) (bool, error)
}
