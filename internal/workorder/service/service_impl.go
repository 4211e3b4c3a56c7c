// Package service implements the work-order service.
package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/equipqr/equipqr/internal/clock"
	eqdomain "github.com/equipqr/equipqr/internal/equipment/domain"
	orgdomain "github.com/equipqr/equipqr/internal/organization/domain"
	"github.com/equipqr/equipqr/internal/rbac"
	teamdomain "github.com/equipqr/equipqr/internal/team/domain"
	"github.com/equipqr/equipqr/internal/workorder/domain"
)

type service struct {
	db        *gorm.DB
	orgs      orgdomain.Service
	teams     teamdomain.Service
	equipment eqdomain.Service
	node      *snowflake.Node
	clock     clock.Clock
	log       *zap.Logger
}

// New returns the work-order service.
func New(db *gorm.DB, orgs orgdomain.Service, teams teamdomain.Service, equipment eqdomain.Service, node *snowflake.Node, clk clock.Clock, log *zap.Logger) domain.Service {
	return &service{
		db:        db,
		orgs:      orgs,
		teams:     teams,
		equipment: equipment,
		node:      node,
		clock:     clk,
		log:       log,
	}
}

func (s *service) Create(ctx context.Context, req domain.CreateWorkOrderRequest) (*domain.WorkOrder, error) {
	// Visibility of the asset is the gate for submitting against it.
	eq, err := s.equipment.Get(ctx, req.ActorID, req.EquipmentID)
	if err != nil {
		if errors.Is(err, eqdomain.ErrForbidden) {
			return nil, domain.ErrForbidden
		}
		return nil, err
	}

	wo := &domain.WorkOrder{
		ID:          s.node.Generate(),
		OrgID:       eq.OrgID,
		EquipmentID: eq.ID,
		TeamID:      eq.TeamID,
		Title:       strings.TrimSpace(req.Title),
		Description: strings.TrimSpace(req.Description),
		Status:      domain.StatusSubmitted,
		RequestedBy: req.ActorID,
	}
	if err := s.db.WithContext(ctx).Create(wo).Error; err != nil {
		return nil, err
	}

	s.log.Info("work order submitted",
		zap.String("work_order_id", wo.ID.String()),
		zap.String("equipment_id", wo.EquipmentID.String()))
	return wo, nil
}

func (s *service) find(ctx context.Context, id snowflake.ID) (*domain.WorkOrder, error) {
	var wo domain.WorkOrder
	if err := s.db.WithContext(ctx).First(&wo, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrWorkOrderNotFound
		}
		return nil, err
	}
	return &wo, nil
}

func (s *service) access(ctx context.Context, wo *domain.WorkOrder, actorID snowflake.ID) (rbac.Role, rbac.TeamContext, error) {
	member, err := s.orgs.GetMember(ctx, wo.OrgID, actorID)
	if err != nil {
		if errors.Is(err, orgdomain.ErrMemberNotFound) {
			return rbac.RoleUnknown, rbac.TeamContext{}, domain.ErrForbidden
		}
		return rbac.RoleUnknown, rbac.TeamContext{}, err
	}
	if member.Status != orgdomain.MemberStatusActive {
		return rbac.RoleUnknown, rbac.TeamContext{}, domain.ErrForbidden
	}
	role := rbac.ParseRole(member.Role)

	var tc rbac.TeamContext
	if wo.TeamID != nil {
		tc, err = s.teams.ContextFor(ctx, *wo.TeamID, actorID)
		if err != nil {
			return rbac.RoleUnknown, rbac.TeamContext{}, err
		}
	}
	return role, tc, nil
}

func (s *service) Get(ctx context.Context, actorID, workOrderID snowflake.ID) (*domain.WorkOrder, error) {
	wo, err := s.find(ctx, workOrderID)
	if err != nil {
		return nil, err
	}
	role, tc, err := s.access(ctx, wo, actorID)
	if err != nil {
		return nil, err
	}
	if wo.RequestedBy == actorID {
		return wo, nil
	}
	if !rbac.CanViewEquipment(role, wo.TeamID, tc) {
		return nil, domain.ErrForbidden
	}
	return wo, nil
}

func (s *service) ListByEquipment(ctx context.Context, actorID, equipmentID snowflake.ID) ([]domain.WorkOrder, error) {
	if _, err := s.equipment.Get(ctx, actorID, equipmentID); err != nil {
		if errors.Is(err, eqdomain.ErrForbidden) {
			return nil, domain.ErrForbidden
		}
		return nil, err
	}

	var orders []domain.WorkOrder
	err := s.db.WithContext(ctx).
		Where("equipment_id = ?", equipmentID).
		Order("created_at DESC").
		Find(&orders).Error
	return orders, err
}

func (s *service) ChangeStatus(ctx context.Context, req domain.ChangeStatusRequest) (*domain.WorkOrder, error) {
	if _, ok := map[string]bool{
		domain.StatusSubmitted:  true,
		domain.StatusAccepted:   true,
		domain.StatusAssigned:   true,
		domain.StatusInProgress: true,
		domain.StatusOnHold:     true,
		domain.StatusCompleted:  true,
		domain.StatusCancelled:  true,
	}[req.Status]; !ok {
		return nil, domain.ErrUnknownStatus
	}

	wo, err := s.find(ctx, req.WorkOrderID)
	if err != nil {
		return nil, err
	}

	role, tc, err := s.access(ctx, wo, req.ActorID)
	if err != nil {
		return nil, err
	}

	// The requestor may always withdraw their own submission.
	withdrawal := req.Status == domain.StatusCancelled && wo.RequestedBy == req.ActorID
	if !withdrawal && !rbac.CanChangeWorkOrderStatus(role, wo.TeamID, tc) {
		return nil, domain.ErrForbidden
	}

	if !domain.CanTransition(wo.Status, req.Status) {
		return nil, domain.ErrInvalidTransition
	}

	wo.Status = req.Status
	if req.Status == domain.StatusCompleted {
		now := s.clock.Now()
		wo.CompletedAt = &now
	}
	if err := s.db.WithContext(ctx).Save(wo).Error; err != nil {
		return nil, err
	}
	return wo, nil
}

func (s *service) Assign(ctx context.Context, workOrderID, actorID, assigneeID snowflake.ID) (*domain.WorkOrder, error) {
	wo, err := s.find(ctx, workOrderID)
	if err != nil {
		return nil, err
	}

	role, tc, err := s.access(ctx, wo, actorID)
	if err != nil {
		return nil, err
	}
	manager := tc.IsMember && tc.TeamRole == rbac.RoleManager
	if !rbac.IsOrgAdmin(role) && !manager {
		return nil, domain.ErrForbidden
	}

	if !domain.CanTransition(wo.Status, domain.StatusAssigned) {
		return nil, domain.ErrInvalidTransition
	}

	wo.AssignedTo = &assigneeID
	wo.Status = domain.StatusAssigned
	if err := s.db.WithContext(ctx).Save(wo).Error; err != nil {
		return nil, err
	}
	return wo, nil
}
