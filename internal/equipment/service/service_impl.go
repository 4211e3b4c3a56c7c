// Package service implements the equipment service.
package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/equipqr/equipqr/internal/equipment/domain"
	orgdomain "github.com/equipqr/equipqr/internal/organization/domain"
	"github.com/equipqr/equipqr/internal/rbac"
	teamdomain "github.com/equipqr/equipqr/internal/team/domain"
)

type service struct {
	db    *gorm.DB
	orgs  orgdomain.Service
	teams teamdomain.Service
	node  *snowflake.Node
	log   *zap.Logger
}

// New returns the equipment service.
func New(db *gorm.DB, orgs orgdomain.Service, teams teamdomain.Service, node *snowflake.Node, log *zap.Logger) domain.Service {
	return &service{db: db, orgs: orgs, teams: teams, node: node, log: log}
}

func (s *service) orgRole(ctx context.Context, orgID, userID snowflake.ID) (rbac.Role, error) {
	member, err := s.orgs.GetMember(ctx, orgID, userID)
	if err != nil {
		if errors.Is(err, orgdomain.ErrMemberNotFound) {
			return rbac.RoleUnknown, domain.ErrForbidden
		}
		return rbac.RoleUnknown, err
	}
	if member.Status != orgdomain.MemberStatusActive {
		return rbac.RoleUnknown, domain.ErrForbidden
	}
	return rbac.ParseRole(member.Role), nil
}

func (s *service) teamContext(ctx context.Context, eq *domain.Equipment, userID snowflake.ID) (rbac.TeamContext, error) {
	if eq.TeamID == nil {
		return rbac.TeamContext{}, nil
	}
	return s.teams.ContextFor(ctx, *eq.TeamID, userID)
}

func (s *service) Create(ctx context.Context, req domain.CreateEquipmentRequest) (*domain.Equipment, error) {
	role, err := s.orgRole(ctx, req.OrgID, req.ActorID)
	if err != nil {
		return nil, err
	}
	if !rbac.IsOrgAdmin(role) {
		// Team managers may register equipment directly onto their team.
		if req.TeamID == nil {
			return nil, domain.ErrForbidden
		}
		tc, err := s.teams.ContextFor(ctx, *req.TeamID, req.ActorID)
		if err != nil {
			return nil, err
		}
		if !tc.IsMember || tc.TeamRole != rbac.RoleManager {
			return nil, domain.ErrForbidden
		}
	}

	eq := &domain.Equipment{
		ID:           s.node.Generate(),
		OrgID:        req.OrgID,
		TeamID:       req.TeamID,
		Name:         strings.TrimSpace(req.Name),
		SerialNumber: strings.TrimSpace(req.SerialNumber),
		Status:       domain.StatusActive,
		Location:     strings.TrimSpace(req.Location),
		QRKey:        uuid.NewString(),
	}
	if err := s.db.WithContext(ctx).Create(eq).Error; err != nil {
		return nil, err
	}

	s.log.Info("equipment registered",
		zap.String("equipment_id", eq.ID.String()),
		zap.String("org_id", eq.OrgID.String()))
	return eq, nil
}

func (s *service) find(ctx context.Context, id snowflake.ID) (*domain.Equipment, error) {
	var eq domain.Equipment
	if err := s.db.WithContext(ctx).First(&eq, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrEquipmentNotFound
		}
		return nil, err
	}
	return &eq, nil
}

func (s *service) Get(ctx context.Context, actorID, equipmentID snowflake.ID) (*domain.Equipment, error) {
	eq, err := s.find(ctx, equipmentID)
	if err != nil {
		return nil, err
	}
	return s.authorizeView(ctx, eq, actorID)
}

func (s *service) GetByQRKey(ctx context.Context, actorID snowflake.ID, key string) (*domain.Equipment, error) {
	var eq domain.Equipment
	if err := s.db.WithContext(ctx).First(&eq, "qr_key = ?", key).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrEquipmentNotFound
		}
		return nil, err
	}
	return s.authorizeView(ctx, &eq, actorID)
}

func (s *service) authorizeView(ctx context.Context, eq *domain.Equipment, actorID snowflake.ID) (*domain.Equipment, error) {
	role, err := s.orgRole(ctx, eq.OrgID, actorID)
	if err != nil {
		return nil, err
	}
	tc, err := s.teamContext(ctx, eq, actorID)
	if err != nil {
		return nil, err
	}
	if !rbac.CanViewEquipment(role, eq.TeamID, tc) {
		return nil, domain.ErrForbidden
	}
	return eq, nil
}

func (s *service) ListForUser(ctx context.Context, orgID, actorID snowflake.ID) ([]domain.Equipment, error) {
	role, err := s.orgRole(ctx, orgID, actorID)
	if err != nil {
		return nil, err
	}

	var all []domain.Equipment
	err = s.db.WithContext(ctx).
		Where("org_id = ?", orgID).
		Order("created_at ASC").
		Find(&all).Error
	if err != nil {
		return nil, err
	}

	visible := make([]domain.Equipment, 0, len(all))
	for _, eq := range all {
		tc, err := s.teamContext(ctx, &eq, actorID)
		if err != nil {
			return nil, err
		}
		if rbac.CanViewEquipment(role, eq.TeamID, tc) {
			visible = append(visible, eq)
		}
	}
	return visible, nil
}

func (s *service) Update(ctx context.Context, req domain.UpdateEquipmentRequest) (*domain.Equipment, error) {
	eq, err := s.find(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeEdit(ctx, eq, req.ActorID); err != nil {
		return nil, err
	}

	if req.Name != nil {
		eq.Name = strings.TrimSpace(*req.Name)
	}
	if req.Status != nil {
		switch *req.Status {
		case domain.StatusActive, domain.StatusMaintenance, domain.StatusRetired:
			eq.Status = *req.Status
		default:
			return nil, domain.ErrInvalidStatus
		}
	}
	if req.Location != nil {
		eq.Location = strings.TrimSpace(*req.Location)
	}

	if err := s.db.WithContext(ctx).Save(eq).Error; err != nil {
		return nil, err
	}
	return eq, nil
}

func (s *service) AssignToTeam(ctx context.Context, actorID, equipmentID snowflake.ID, teamID *snowflake.ID) error {
	eq, err := s.find(ctx, equipmentID)
	if err != nil {
		return err
	}

	// Reassignment across teams is an admin operation.
	role, err := s.orgRole(ctx, eq.OrgID, actorID)
	if err != nil {
		return err
	}
	if !rbac.IsOrgAdmin(role) {
		return domain.ErrForbidden
	}

	if teamID != nil {
		team, err := s.teams.GetByID(ctx, *teamID)
		if err != nil {
			return err
		}
		if team.OrgID != eq.OrgID {
			return domain.ErrForbidden
		}
	}

	return s.db.WithContext(ctx).
		Model(&domain.Equipment{}).
		Where("id = ?", equipmentID).
		Update("team_id", teamID).Error
}

func (s *service) authorizeEdit(ctx context.Context, eq *domain.Equipment, actorID snowflake.ID) error {
	role, err := s.orgRole(ctx, eq.OrgID, actorID)
	if err != nil {
		return err
	}
	tc, err := s.teamContext(ctx, eq, actorID)
	if err != nil {
		return err
	}
	if !rbac.CanEditEquipment(role, eq.TeamID, tc) {
		return domain.ErrForbidden
	}
	return nil
}

func (s *service) HasEquipment(ctx context.Context, orgID snowflake.ID) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&domain.Equipment{}).
		Where("org_id = ?", orgID).
		Count(&count).Error
	return count > 0, err
}
