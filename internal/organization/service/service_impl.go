// Package service implements the organization service.
package service

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/equipqr/equipqr/internal/organization/domain"
	"github.com/equipqr/equipqr/internal/providers/email"
	"github.com/equipqr/equipqr/internal/rbac"
	pkgdb "github.com/equipqr/equipqr/pkg/db"
)

type service struct {
	db    *gorm.DB
	repo  domain.Repository
	email email.Provider
	node  *snowflake.Node
	log   *zap.Logger
}

// New returns the organization service.
func New(db *gorm.DB, repo domain.Repository, provider email.Provider, node *snowflake.Node, log *zap.Logger) domain.Service {
	return &service{db: db, repo: repo, email: provider, node: node, log: log}
}

func (s *service) Create(ctx context.Context, req domain.CreateOrganizationRequest) (*domain.Organization, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}

	orgSlug := strings.TrimSpace(req.Slug)
	if orgSlug == "" {
		orgSlug = slug.Make(name)
	}

	org := &domain.Organization{
		ID:      s.node.Generate(),
		Name:    name,
		Slug:    orgSlug,
		LogoURL: req.LogoURL,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.CreateOrganization(ctx, org); err != nil {
			return err
		}
		owner := &domain.OrganizationMember{
			ID:     s.node.Generate(),
			OrgID:  org.ID,
			UserID: req.OwnerID,
			Role:   string(rbac.RoleOwner),
			Status: domain.MemberStatusActive,
		}
		return repo.AddMember(ctx, owner)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("organization created",
		zap.String("org_id", org.ID.String()),
		zap.String("slug", org.Slug))
	return org, nil
}

func (s *service) GetByID(ctx context.Context, id snowflake.ID) (*domain.Organization, error) {
	return s.repo.FindOrganizationByID(ctx, id)
}

func (s *service) ListForUser(ctx context.Context, userID snowflake.ID) ([]domain.Organization, []domain.OrganizationMember, error) {
	memberships, err := s.repo.ListMemberships(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	orgs := make([]domain.Organization, 0, len(memberships))
	for _, m := range memberships {
		org, err := s.repo.FindOrganizationByID(ctx, m.OrgID)
		if err != nil {
			return nil, nil, err
		}
		orgs = append(orgs, *org)
	}
	return orgs, memberships, nil
}

func (s *service) ListCreatedBetween(ctx context.Context, from, to time.Time) ([]domain.Organization, error) {
	return s.repo.ListOrganizationsCreatedBetween(ctx, from, to)
}

func (s *service) GetMember(ctx context.Context, orgID, userID snowflake.ID) (*domain.OrganizationMember, error) {
	return s.repo.FindMember(ctx, orgID, userID)
}

func (s *service) ListMembers(ctx context.Context, orgID snowflake.ID) ([]domain.OrganizationMember, error) {
	return s.repo.ListMembers(ctx, orgID)
}

func (s *service) InviteMembers(ctx context.Context, req domain.InviteMembersRequest) ([]domain.OrganizationInvite, error) {
	actor, err := s.repo.FindMember(ctx, req.OrgID, req.ActorID)
	if err != nil {
		return nil, err
	}
	if !rbac.IsOrgAdmin(rbac.ParseRole(actor.Role)) {
		return nil, domain.ErrForbidden
	}

	role := rbac.ParseRole(req.Role)
	if role != rbac.RoleAdmin && role != rbac.RoleMember {
		return nil, domain.ErrInvalidRole
	}

	org, err := s.repo.FindOrganizationByID(ctx, req.OrgID)
	if err != nil {
		return nil, err
	}

	invites := make([]domain.OrganizationInvite, 0, len(req.Emails))
	for _, raw := range req.Emails {
		addr, err := mail.ParseAddress(strings.TrimSpace(raw))
		if err != nil {
			return nil, domain.ErrInvalidEmail
		}
		invites = append(invites, domain.OrganizationInvite{
			ID:        s.node.Generate(),
			OrgID:     req.OrgID,
			Email:     strings.ToLower(addr.Address),
			Role:      string(role),
			Status:    domain.InviteStatusPending,
			InvitedBy: req.ActorID,
		})
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		for i := range invites {
			if err := repo.CreateInvite(ctx, &invites[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Delivery is best effort; the invite row is the source of truth.
	for _, invite := range invites {
		invite := invite
		go func() {
			msg := email.InviteMessage{
				To:        invite.Email,
				OrgName:   org.Name,
				Role:      invite.Role,
				InviteURL: "/invites/" + invite.ID.String(),
			}
			if err := s.email.SendInvite(context.Background(), msg); err != nil {
				s.log.Warn("invite email failed",
					zap.String("invite_id", invite.ID.String()),
					zap.Error(err))
			}
		}()
	}

	return invites, nil
}

func (s *service) AcceptInvite(ctx context.Context, inviteID snowflake.ID, userID snowflake.ID, emailAddr string) (*domain.OrganizationMember, error) {
	invite, err := s.repo.FindInviteByID(ctx, inviteID)
	if err != nil {
		return nil, err
	}
	if invite.Status != domain.InviteStatusPending {
		return nil, domain.ErrInviteNotFound
	}
	if !strings.EqualFold(invite.Email, strings.TrimSpace(emailAddr)) {
		return nil, domain.ErrForbidden
	}

	member := &domain.OrganizationMember{
		ID:     s.node.Generate(),
		OrgID:  invite.OrgID,
		UserID: userID,
		Role:   invite.Role,
		Status: domain.MemberStatusActive,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.AddMember(ctx, member); err != nil {
			if pkgdb.IsDuplicateKeyErr(err) {
				return domain.ErrAlreadyMember
			}
			return err
		}
		invite.Status = domain.InviteStatusAccepted
		return repo.UpdateInvite(ctx, invite)
	})
	if err != nil {
		return nil, err
	}
	return member, nil
}

func (s *service) ChangeMemberRole(ctx context.Context, req domain.ChangeMemberRoleRequest) error {
	actor, err := s.repo.FindMember(ctx, req.OrgID, req.ActorID)
	if err != nil {
		return err
	}
	target, err := s.repo.FindMember(ctx, req.OrgID, req.TargetUserID)
	if err != nil {
		return err
	}

	if !rbac.CanChangeOrgRole(rbac.ParseRole(actor.Role)) {
		return domain.ErrForbidden
	}

	newRole := rbac.ParseRole(req.Role)
	if newRole != rbac.RoleOwner && newRole != rbac.RoleAdmin && newRole != rbac.RoleMember {
		return domain.ErrInvalidRole
	}

	if rbac.ParseRole(target.Role) == rbac.RoleOwner && newRole != rbac.RoleOwner {
		if err := s.ensureNotLastOwner(ctx, req.OrgID); err != nil {
			return err
		}
	}

	target.Role = string(newRole)
	return s.repo.UpdateMember(ctx, target)
}

func (s *service) RemoveMember(ctx context.Context, orgID, actorID, targetUserID snowflake.ID) error {
	actor, err := s.repo.FindMember(ctx, orgID, actorID)
	if err != nil {
		return err
	}
	if !rbac.IsOrgAdmin(rbac.ParseRole(actor.Role)) {
		return domain.ErrForbidden
	}
	target, err := s.repo.FindMember(ctx, orgID, targetUserID)
	if err != nil {
		return err
	}
	if rbac.ParseRole(target.Role) == rbac.RoleOwner {
		if rbac.ParseRole(actor.Role) != rbac.RoleOwner {
			return domain.ErrForbidden
		}
		if err := s.ensureNotLastOwner(ctx, orgID); err != nil {
			return err
		}
	}

	target.Status = domain.MemberStatusInactive
	return s.repo.UpdateMember(ctx, target)
}

func (s *service) ActiveMemberCount(ctx context.Context, orgID snowflake.ID) (int64, error) {
	return s.repo.CountMembersByStatus(ctx, orgID, domain.MemberStatusActive)
}

func (s *service) DeactivateNewestMembers(ctx context.Context, orgID snowflake.ID, n int) ([]domain.OrganizationMember, error) {
	if n <= 0 {
		return nil, nil
	}
	// Fetch extra rows so skipped owners do not shrink the batch.
	candidates, err := s.repo.ListActiveMembersNewestFirst(ctx, orgID, n+8)
	if err != nil {
		return nil, err
	}

	deactivated := make([]domain.OrganizationMember, 0, n)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		for i := range candidates {
			if len(deactivated) == n {
				break
			}
			m := candidates[i]
			if rbac.ParseRole(m.Role) == rbac.RoleOwner {
				continue
			}
			m.Status = domain.MemberStatusInactive
			if err := repo.UpdateMember(ctx, &m); err != nil {
				return err
			}
			deactivated = append(deactivated, m)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(deactivated) > 0 {
		s.log.Info("deactivated members for seat reconciliation",
			zap.String("org_id", orgID.String()),
			zap.Int("count", len(deactivated)))
	}
	return deactivated, nil
}

func (s *service) ensureNotLastOwner(ctx context.Context, orgID snowflake.ID) error {
	members, err := s.repo.ListMembers(ctx, orgID)
	if err != nil {
		return err
	}
	owners := 0
	for _, m := range members {
		if m.Status == domain.MemberStatusActive && rbac.ParseRole(m.Role) == rbac.RoleOwner {
			owners++
		}
	}
	if owners <= 1 {
		return domain.ErrLastOwner
	}
	return nil
}
