package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"

	"github.com/equipqr/equipqr/internal/rbac"
)

var (
	ErrTeamNotFound   = errors.New("team_not_found")
	ErrMemberNotFound = errors.New("team_member_not_found")
	ErrAlreadyMember  = errors.New("already_team_member")
	ErrInvalidRole    = errors.New("invalid_team_role")
	ErrForbidden      = errors.New("forbidden")
)

// CreateTeamRequest creates a team inside an organization.
type CreateTeamRequest struct {
	OrgID       snowflake.ID
	ActorID     snowflake.ID
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

// AddMemberRequest assigns a user to a team with a team role.
type AddMemberRequest struct {
	TeamID  snowflake.ID
	ActorID snowflake.ID
	UserID  snowflake.ID `json:"user_id" binding:"required"`
	Role    string       `json:"role" binding:"required"`
}

// ChangeMemberRoleRequest changes a team member's role.
type ChangeMemberRoleRequest struct {
	TeamID       snowflake.ID
	ActorID      snowflake.ID
	TargetUserID snowflake.ID
	Role         string `json:"role" binding:"required"`
}

// Service exposes team operations.
type Service interface {
	Create(ctx context.Context, req CreateTeamRequest) (*Team, error)
	GetByID(ctx context.Context, id snowflake.ID) (*Team, error)
	ListByOrg(ctx context.Context, orgID snowflake.ID) ([]Team, error)
	ListMembers(ctx context.Context, teamID snowflake.ID) ([]TeamMember, error)

	AddMember(ctx context.Context, req AddMemberRequest) (*TeamMember, error)
	ChangeMemberRole(ctx context.Context, req ChangeMemberRoleRequest) error
	RemoveMember(ctx context.Context, teamID, actorID, targetUserID snowflake.ID) error

	// ContextFor resolves the team-scoped access context used by the
	// equipment and work-order permission checks.
	ContextFor(ctx context.Context, teamID, userID snowflake.ID) (rbac.TeamContext, error)
}
