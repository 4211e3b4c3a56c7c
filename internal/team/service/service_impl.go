// Package service implements the team service.
package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
	"gorm.io/gorm"

	orgdomain "github.com/equipqr/equipqr/internal/organization/domain"
	"github.com/equipqr/equipqr/internal/rbac"
	"github.com/equipqr/equipqr/internal/team/domain"
	pkgdb "github.com/equipqr/equipqr/pkg/db"
)

type service struct {
	db   *gorm.DB
	orgs orgdomain.Service
	node *snowflake.Node
	log  *zap.Logger
}

// New returns the team service.
func New(db *gorm.DB, orgs orgdomain.Service, node *snowflake.Node, log *zap.Logger) domain.Service {
	return &service{db: db, orgs: orgs, node: node, log: log}
}

func isTeamRole(role rbac.Role) bool {
	switch role {
	case rbac.RoleManager, rbac.RoleTechnician, rbac.RoleRequestor, rbac.RoleViewer:
		return true
	}
	return false
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

func (s *service) Create(ctx context.Context, req domain.CreateTeamRequest) (*domain.Team, error) {
	role, err := s.orgRole(ctx, req.OrgID, req.ActorID)
	if err != nil {
		return nil, err
	}
	if !rbac.IsOrgAdmin(role) {
		return nil, domain.ErrForbidden
	}

	team := &domain.Team{
		ID:          s.node.Generate(),
		OrgID:       req.OrgID,
		Name:        strings.TrimSpace(req.Name),
		Description: strings.TrimSpace(req.Description),
	}
	if err := s.db.WithContext(ctx).Create(team).Error; err != nil {
		return nil, err
	}

	s.log.Info("team created",
		zap.String("team_id", team.ID.String()),
		zap.String("org_id", team.OrgID.String()))
	return team, nil
}

func (s *service) GetByID(ctx context.Context, id snowflake.ID) (*domain.Team, error) {
	var team domain.Team
	if err := s.db.WithContext(ctx).First(&team, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrTeamNotFound
		}
		return nil, err
	}
	return &team, nil
}

func (s *service) ListByOrg(ctx context.Context, orgID snowflake.ID) ([]domain.Team, error) {
	var teams []domain.Team
	err := s.db.WithContext(ctx).
		Where("org_id = ?", orgID).
		Order("created_at ASC").
		Find(&teams).Error
	return teams, err
}

func (s *service) ListMembers(ctx context.Context, teamID snowflake.ID) ([]domain.TeamMember, error) {
	var members []domain.TeamMember
	err := s.db.WithContext(ctx).
		Where("team_id = ?", teamID).
		Order("created_at ASC").
		Find(&members).Error
	return members, err
}

func (s *service) AddMember(ctx context.Context, req domain.AddMemberRequest) (*domain.TeamMember, error) {
	team, err := s.GetByID(ctx, req.TeamID)
	if err != nil {
		return nil, err
	}
	if err := s.requireTeamManager(ctx, team, req.ActorID); err != nil {
		return nil, err
	}

	role := rbac.ParseRole(req.Role)
	if !isTeamRole(role) {
		return nil, domain.ErrInvalidRole
	}

	// Target must be an active member of the owning organization.
	if _, err := s.orgRole(ctx, team.OrgID, req.UserID); err != nil {
		return nil, err
	}

	member := &domain.TeamMember{
		ID:     s.node.Generate(),
		TeamID: req.TeamID,
		UserID: req.UserID,
		Role:   string(role),
	}
	if err := s.db.WithContext(ctx).Create(member).Error; err != nil {
		if pkgdb.IsDuplicateKeyErr(err) {
			return nil, domain.ErrAlreadyMember
		}
		return nil, err
	}
	return member, nil
}

func (s *service) ChangeMemberRole(ctx context.Context, req domain.ChangeMemberRoleRequest) error {
	team, err := s.GetByID(ctx, req.TeamID)
	if err != nil {
		return err
	}

	actorOrgRole, err := s.orgRole(ctx, team.OrgID, req.ActorID)
	if err != nil {
		return err
	}
	actorCtx, err := s.ContextFor(ctx, req.TeamID, req.ActorID)
	if err != nil {
		return err
	}

	change := rbac.RoleChangeRequest{
		ActorUserID:   req.ActorID,
		TargetUserID:  req.TargetUserID,
		ActorOrgRole:  actorOrgRole,
		ActorTeamRole: actorCtx.TeamRole,
	}
	if !rbac.CanChangeTeamRole(change) {
		return domain.ErrForbidden
	}

	role := rbac.ParseRole(req.Role)
	if !isTeamRole(role) {
		return domain.ErrInvalidRole
	}

	res := s.db.WithContext(ctx).
		Model(&domain.TeamMember{}).
		Where("team_id = ? AND user_id = ?", req.TeamID, req.TargetUserID).
		Update("role", string(role))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrMemberNotFound
	}
	return nil
}

func (s *service) RemoveMember(ctx context.Context, teamID, actorID, targetUserID snowflake.ID) error {
	team, err := s.GetByID(ctx, teamID)
	if err != nil {
		return err
	}
	if err := s.requireTeamManager(ctx, team, actorID); err != nil {
		return err
	}

	res := s.db.WithContext(ctx).
		Delete(&domain.TeamMember{}, "team_id = ? AND user_id = ?", teamID, targetUserID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrMemberNotFound
	}
	return nil
}

func (s *service) ContextFor(ctx context.Context, teamID, userID snowflake.ID) (rbac.TeamContext, error) {
	var member domain.TeamMember
	err := s.db.WithContext(ctx).
		First(&member, "team_id = ? AND user_id = ?", teamID, userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return rbac.TeamContext{}, nil
		}
		return rbac.TeamContext{}, err
	}
	return rbac.TeamContext{
		IsMember: true,
		TeamRole: rbac.ParseRole(member.Role),
	}, nil
}

// requireTeamManager allows org admins and team managers to administer
// team membership.
func (s *service) requireTeamManager(ctx context.Context, team *domain.Team, actorID snowflake.ID) error {
	orgRole, err := s.orgRole(ctx, team.OrgID, actorID)
	if err != nil {
		return err
	}
	if rbac.IsOrgAdmin(orgRole) {
		return nil
	}
	actorCtx, err := s.ContextFor(ctx, team.ID, actorID)
	if err != nil {
		return err
	}
	if actorCtx.IsMember && actorCtx.TeamRole == rbac.RoleManager {
		return nil
	}
	return domain.ErrForbidden
}
