package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrOrganizationNotFound = errors.New("organization_not_found")
	ErrMemberNotFound       = errors.New("member_not_found")
	ErrInviteNotFound       = errors.New("invite_not_found")
	ErrAlreadyMember        = errors.New("already_member")
	ErrInvalidRole          = errors.New("invalid_role")
	ErrInvalidName          = errors.New("invalid_name")
	ErrInvalidEmail         = errors.New("invalid_email")
	ErrForbidden            = errors.New("forbidden")
	ErrLastOwner            = errors.New("last_owner")
)

// CreateOrganizationRequest carries the inputs for creating a tenant.
type CreateOrganizationRequest struct {
	Name    string `json:"name" binding:"required"`
	Slug    string `json:"slug"`
	LogoURL string `json:"logo_url"`
	OwnerID snowflake.ID
}

// InviteMembersRequest invites one or more emails with a single role.
type InviteMembersRequest struct {
	OrgID   snowflake.ID
	ActorID snowflake.ID
	Emails  []string `json:"emails" binding:"required"`
	Role    string   `json:"role" binding:"required"`
}

// ChangeMemberRoleRequest changes the org-level role of a member.
type ChangeMemberRoleRequest struct {
	OrgID        snowflake.ID
	ActorID      snowflake.ID
	TargetUserID snowflake.ID
	Role         string `json:"role" binding:"required"`
}

// MemberView is a membership joined with display fields for API responses.
type MemberView struct {
	UserID snowflake.ID `json:"user_id"`
	Role   string       `json:"role"`
	Status string       `json:"status"`
}

// Service exposes organization and membership operations.
type Service interface {
	Create(ctx context.Context, req CreateOrganizationRequest) (*Organization, error)
	GetByID(ctx context.Context, id snowflake.ID) (*Organization, error)
	ListForUser(ctx context.Context, userID snowflake.ID) ([]Organization, []OrganizationMember, error)
	// ListCreatedBetween returns organizations created inside the
	// half-open window [from, to). Used by the grace-period sweep.
	ListCreatedBetween(ctx context.Context, from, to time.Time) ([]Organization, error)
	GetMember(ctx context.Context, orgID, userID snowflake.ID) (*OrganizationMember, error)
	ListMembers(ctx context.Context, orgID snowflake.ID) ([]OrganizationMember, error)

	InviteMembers(ctx context.Context, req InviteMembersRequest) ([]OrganizationInvite, error)
	AcceptInvite(ctx context.Context, inviteID snowflake.ID, userID snowflake.ID, email string) (*OrganizationMember, error)

	ChangeMemberRole(ctx context.Context, req ChangeMemberRoleRequest) error
	RemoveMember(ctx context.Context, orgID, actorID, targetUserID snowflake.ID) error

	// ActiveMemberCount reports billable seat usage for an organization.
	ActiveMemberCount(ctx context.Context, orgID snowflake.ID) (int64, error)
	// DeactivateNewestMembers marks the n most recently added active
	// non-owner members inactive. Used when a paid seat count shrinks.
	DeactivateNewestMembers(ctx context.Context, orgID snowflake.ID, n int) ([]OrganizationMember, error)
}
