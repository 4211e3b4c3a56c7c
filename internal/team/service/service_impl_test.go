package service

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	orgdomain "github.com/equipqr/equipqr/internal/organization/domain"
	orgrepo "github.com/equipqr/equipqr/internal/organization/repository"
	orgservice "github.com/equipqr/equipqr/internal/organization/service"
	"github.com/equipqr/equipqr/internal/providers/email"
	"github.com/equipqr/equipqr/internal/rbac"
	"github.com/equipqr/equipqr/internal/team/domain"
	pkgdb "github.com/equipqr/equipqr/pkg/db"
)

type fixture struct {
	teams    domain.Service
	orgs     orgdomain.Service
	node     *snowflake.Node
	orgID    snowflake.ID
	ownerID  snowflake.ID
	memberID snowflake.ID
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db, err := pkgdb.NewTest()
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&orgdomain.Organization{},
		&orgdomain.OrganizationMember{},
		&orgdomain.OrganizationInvite{},
		&domain.Team{},
		&domain.TeamMember{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	orgs := orgservice.New(db, orgrepo.New(db), email.Noop{}, node, zap.NewNop())
	teams := New(db, orgs, node, zap.NewNop())

	ownerID := node.Generate()
	org, err := orgs.Create(context.Background(), orgdomain.CreateOrganizationRequest{
		Name: "Acme", OwnerID: ownerID,
	})
	require.NoError(t, err)

	memberID := node.Generate()
	joinOrg(t, orgs, org.ID, ownerID, memberID, "member@example.com")

	return &fixture{
		teams:    teams,
		orgs:     orgs,
		node:     node,
		orgID:    org.ID,
		ownerID:  ownerID,
		memberID: memberID,
	}
}

func joinOrg(t *testing.T, orgs orgdomain.Service, orgID, actorID, userID snowflake.ID, addr string) {
	t.Helper()
	invites, err := orgs.InviteMembers(context.Background(), orgdomain.InviteMembersRequest{
		OrgID:   orgID,
		ActorID: actorID,
		Emails:  []string{addr},
		Role:    "member",
	})
	require.NoError(t, err)
	_, err = orgs.AcceptInvite(context.Background(), invites[0].ID, userID, addr)
	require.NoError(t, err)
}

func TestCreateTeamRequiresOrgAdmin(t *testing.T) {
	f := setup(t)

	_, err := f.teams.Create(context.Background(), domain.CreateTeamRequest{
		OrgID: f.orgID, ActorID: f.memberID, Name: "Field Ops",
	})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	team, err := f.teams.Create(context.Background(), domain.CreateTeamRequest{
		OrgID: f.orgID, ActorID: f.ownerID, Name: "Field Ops",
	})
	require.NoError(t, err)
	assert.Equal(t, f.orgID, team.OrgID)
}

func TestAddMemberByManager(t *testing.T) {
	f := setup(t)
	team, err := f.teams.Create(context.Background(), domain.CreateTeamRequest{
		OrgID: f.orgID, ActorID: f.ownerID, Name: "Field Ops",
	})
	require.NoError(t, err)

	_, err = f.teams.AddMember(context.Background(), domain.AddMemberRequest{
		TeamID: team.ID, ActorID: f.ownerID, UserID: f.memberID, Role: "manager",
	})
	require.NoError(t, err)

	techID := f.node.Generate()
	joinOrg(t, f.orgs, f.orgID, f.ownerID, techID, "tech@example.com")

	// The team manager may add members even without an org admin role.
	_, err = f.teams.AddMember(context.Background(), domain.AddMemberRequest{
		TeamID: team.ID, ActorID: f.memberID, UserID: techID, Role: "technician",
	})
	require.NoError(t, err)

	// But the technician may not.
	outsiderID := f.node.Generate()
	joinOrg(t, f.orgs, f.orgID, f.ownerID, outsiderID, "out@example.com")
	_, err = f.teams.AddMember(context.Background(), domain.AddMemberRequest{
		TeamID: team.ID, ActorID: techID, UserID: outsiderID, Role: "viewer",
	})
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestAddMemberRejectsOrgRole(t *testing.T) {
	f := setup(t)
	team, err := f.teams.Create(context.Background(), domain.CreateTeamRequest{
		OrgID: f.orgID, ActorID: f.ownerID, Name: "Field Ops",
	})
	require.NoError(t, err)

	_, err = f.teams.AddMember(context.Background(), domain.AddMemberRequest{
		TeamID: team.ID, ActorID: f.ownerID, UserID: f.memberID, Role: "admin",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidRole)
}

func TestAddMemberRequiresOrgMembership(t *testing.T) {
	f := setup(t)
	team, err := f.teams.Create(context.Background(), domain.CreateTeamRequest{
		OrgID: f.orgID, ActorID: f.ownerID, Name: "Field Ops",
	})
	require.NoError(t, err)

	strangerID := f.node.Generate()
	_, err = f.teams.AddMember(context.Background(), domain.AddMemberRequest{
		TeamID: team.ID, ActorID: f.ownerID, UserID: strangerID, Role: "viewer",
	})
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestManagerCannotChangeOwnRole(t *testing.T) {
	f := setup(t)
	team, err := f.teams.Create(context.Background(), domain.CreateTeamRequest{
		OrgID: f.orgID, ActorID: f.ownerID, Name: "Field Ops",
	})
	require.NoError(t, err)

	_, err = f.teams.AddMember(context.Background(), domain.AddMemberRequest{
		TeamID: team.ID, ActorID: f.ownerID, UserID: f.memberID, Role: "manager",
	})
	require.NoError(t, err)

	err = f.teams.ChangeMemberRole(context.Background(), domain.ChangeMemberRoleRequest{
		TeamID:       team.ID,
		ActorID:      f.memberID,
		TargetUserID: f.memberID,
		Role:         "viewer",
	})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	// An org owner may change their own team role.
	_, err = f.teams.AddMember(context.Background(), domain.AddMemberRequest{
		TeamID: team.ID, ActorID: f.ownerID, UserID: f.ownerID, Role: "manager",
	})
	require.NoError(t, err)
	err = f.teams.ChangeMemberRole(context.Background(), domain.ChangeMemberRoleRequest{
		TeamID:       team.ID,
		ActorID:      f.ownerID,
		TargetUserID: f.ownerID,
		Role:         "viewer",
	})
	require.NoError(t, err)
}

func TestContextForNonMember(t *testing.T) {
	f := setup(t)
	team, err := f.teams.Create(context.Background(), domain.CreateTeamRequest{
		OrgID: f.orgID, ActorID: f.ownerID, Name: "Field Ops",
	})
	require.NoError(t, err)

	got, err := f.teams.ContextFor(context.Background(), team.ID, f.memberID)
	require.NoError(t, err)
	assert.False(t, got.IsMember)
	assert.Equal(t, rbac.RoleUnknown, got.TeamRole)
}
