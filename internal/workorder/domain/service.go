package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrWorkOrderNotFound = errors.New("work_order_not_found")
	ErrInvalidTransition = errors.New("invalid_status_transition")
	ErrUnknownStatus     = errors.New("unknown_status")
	ErrForbidden         = errors.New("forbidden")
)

// CreateWorkOrderRequest submits a maintenance request.
type CreateWorkOrderRequest struct {
	ActorID     snowflake.ID
	EquipmentID snowflake.ID `json:"equipment_id" binding:"required"`
	Title       string       `json:"title" binding:"required"`
	Description string       `json:"description"`
}

// ChangeStatusRequest moves a work order through the status machine.
type ChangeStatusRequest struct {
	WorkOrderID snowflake.ID
	ActorID     snowflake.ID
	Status      string `json:"status" binding:"required"`
}

// Service exposes work-order operations.
type Service interface {
	Create(ctx context.Context, req CreateWorkOrderRequest) (*WorkOrder, error)
	Get(ctx context.Context, actorID, workOrderID snowflake.ID) (*WorkOrder, error)
	ListByEquipment(ctx context.Context, actorID, equipmentID snowflake.ID) ([]WorkOrder, error)
	ChangeStatus(ctx context.Context, req ChangeStatusRequest) (*WorkOrder, error)
	Assign(ctx context.Context, workOrderID, actorID, assigneeID snowflake.ID) (*WorkOrder, error)
}
