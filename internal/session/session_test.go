package session

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	authdomain "github.com/equipqr/equipqr/internal/auth/domain"
	authservice "github.com/equipqr/equipqr/internal/auth/service"
	"github.com/equipqr/equipqr/internal/clock"
	orgdomain "github.com/equipqr/equipqr/internal/organization/domain"
	orgrepo "github.com/equipqr/equipqr/internal/organization/repository"
	orgservice "github.com/equipqr/equipqr/internal/organization/service"
	"github.com/equipqr/equipqr/internal/providers/email"
	pkgdb "github.com/equipqr/equipqr/pkg/db"
)

type fixture struct {
	sessions Service
	auth     authdomain.Service
	orgs     orgdomain.Service
	db       *gorm.DB
	node     *snowflake.Node
	clk      *clock.FakeClock
	token    string
	userID   snowflake.ID
	orgAID   snowflake.ID
	orgBID   snowflake.ID
	ownerAID snowflake.ID
}

// setup creates a user who is a plain member of org A (joined first)
// and the owner of org B.
func setup(t *testing.T) *fixture {
	t.Helper()
	db, err := pkgdb.NewTest()
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&authdomain.User{},
		&authdomain.Session{},
		&orgdomain.Organization{},
		&orgdomain.OrganizationMember{},
		&orgdomain.OrganizationInvite{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))

	auth := authservice.New(db, node, clk, zap.NewNop())
	orgs := orgservice.New(db, orgrepo.New(db), email.Noop{}, node, zap.NewNop())
	sessions := New(auth, orgs, clk, zap.NewNop())

	user, err := auth.Register(context.Background(), authdomain.RegisterRequest{
		Email: "user@example.com", Password: "longenough",
	})
	require.NoError(t, err)

	ownerAID := node.Generate()
	orgA, err := orgs.Create(context.Background(), orgdomain.CreateOrganizationRequest{
		Name: "Org A", OwnerID: ownerAID,
	})
	require.NoError(t, err)
	invites, err := orgs.InviteMembers(context.Background(), orgdomain.InviteMembersRequest{
		OrgID: orgA.ID, ActorID: ownerAID, Emails: []string{"user@example.com"}, Role: "member",
	})
	require.NoError(t, err)
	_, err = orgs.AcceptInvite(context.Background(), invites[0].ID, user.ID, "user@example.com")
	require.NoError(t, err)

	orgB, err := orgs.Create(context.Background(), orgdomain.CreateOrganizationRequest{
		Name: "Org B", OwnerID: user.ID,
	})
	require.NoError(t, err)

	sess, _, err := auth.Login(context.Background(), authdomain.LoginRequest{
		Email: "user@example.com", Password: "longenough",
	})
	require.NoError(t, err)

	return &fixture{
		sessions: sessions,
		auth:     auth,
		orgs:     orgs,
		db:       db,
		node:     node,
		clk:      clk,
		token:    sess.Token,
		userID:   user.ID,
		orgAID:   orgA.ID,
		orgBID:   orgB.ID,
		ownerAID: ownerAID,
	}
}

func TestResolveDefaultsToHighestRole(t *testing.T) {
	f := setup(t)

	snap, err := f.sessions.Resolve(context.Background(), f.token)
	require.NoError(t, err)
	assert.Equal(t, SchemaVersion, snap.SchemaVersion)
	assert.Len(t, snap.Organizations, 2)
	// Owner of B outweighs member of A, even though A came first.
	assert.Equal(t, f.orgBID, snap.CurrentOrgID)
	assert.Equal(t, "owner", snap.CurrentRole)
}

func TestResolvePrefersPersistedSelection(t *testing.T) {
	f := setup(t)
	require.NoError(t, f.auth.SetSessionOrg(context.Background(), f.token, f.orgAID))

	snap, err := f.sessions.Resolve(context.Background(), f.token)
	require.NoError(t, err)
	assert.Equal(t, f.orgAID, snap.CurrentOrgID)
	assert.Equal(t, "member", snap.CurrentRole)
}

func TestResolveServesCachedWhileFresh(t *testing.T) {
	f := setup(t)

	first, err := f.sessions.Resolve(context.Background(), f.token)
	require.NoError(t, err)

	f.clk.Advance(time.Minute)
	second, err := f.sessions.Resolve(context.Background(), f.token)
	require.NoError(t, err)
	assert.Equal(t, first.RefreshedAt, second.RefreshedAt)

	f.clk.Advance(20 * time.Minute)
	third, err := f.sessions.Resolve(context.Background(), f.token)
	require.NoError(t, err)
	assert.True(t, third.RefreshedAt.After(first.RefreshedAt))
}

func TestStaleSnapshotServedWhileRefreshCoalesced(t *testing.T) {
	f := setup(t)

	snap, err := f.sessions.Resolve(context.Background(), f.token)
	require.NoError(t, err)

	// Make the next rebuild fail: the user loses every membership.
	require.NoError(t, f.db.Model(&orgdomain.OrganizationMember{}).
		Where("user_id = ?", f.userID).
		Update("status", orgdomain.MemberStatusInactive).Error)

	f.clk.Advance(20 * time.Minute)
	_, err = f.sessions.Resolve(context.Background(), f.token)
	assert.ErrorIs(t, err, ErrNoOrganizations)

	// Inside the retry window the stale copy keeps serving instead of
	// hitting the database again.
	f.clk.Advance(time.Minute)
	cached, err := f.sessions.Resolve(context.Background(), f.token)
	require.NoError(t, err)
	assert.Equal(t, snap.RefreshedAt, cached.RefreshedAt)
}

func TestRefreshFailureServesStaleSnapshot(t *testing.T) {
	f := setup(t)

	snap, err := f.sessions.Resolve(context.Background(), f.token)
	require.NoError(t, err)

	// Past the freshness window and the retry window, with the rebuild
	// query itself failing: the cached copy still serves.
	require.NoError(t, f.db.Migrator().DropTable(&orgdomain.OrganizationMember{}))

	f.clk.Advance(21 * time.Minute)
	stale, err := f.sessions.Resolve(context.Background(), f.token)
	require.NoError(t, err)
	assert.Equal(t, snap.RefreshedAt, stale.RefreshedAt)
	assert.Equal(t, snap.CurrentOrgID, stale.CurrentOrgID)
}

func TestSwitchOrganization(t *testing.T) {
	f := setup(t)

	snap, err := f.sessions.SwitchOrganization(context.Background(), f.token, f.orgAID)
	require.NoError(t, err)
	assert.Equal(t, f.orgAID, snap.CurrentOrgID)

	// The choice is persisted on the session row, so a cold resolve
	// lands on the same org.
	f.sessions.Invalidate(f.userID)
	resolved, err := f.sessions.Resolve(context.Background(), f.token)
	require.NoError(t, err)
	assert.Equal(t, f.orgAID, resolved.CurrentOrgID)
}

func TestSwitchToForeignOrganization(t *testing.T) {
	f := setup(t)

	foreign, err := f.orgs.Create(context.Background(), orgdomain.CreateOrganizationRequest{
		Name: "Foreign", OwnerID: f.node.Generate(),
	})
	require.NoError(t, err)

	_, err = f.sessions.SwitchOrganization(context.Background(), f.token, foreign.ID)
	assert.ErrorIs(t, err, ErrOrganizationNotFound)

	_, err = f.sessions.SwitchOrganization(context.Background(), f.token, f.node.Generate())
	assert.ErrorIs(t, err, ErrOrganizationNotFound)
}

func TestInvalidateForcesRebuild(t *testing.T) {
	f := setup(t)

	snap, err := f.sessions.Resolve(context.Background(), f.token)
	require.NoError(t, err)
	assert.Equal(t, "owner", snap.CurrentRole)

	// Promote the user in org A, then invalidate.
	err = f.orgs.ChangeMemberRole(context.Background(), orgdomain.ChangeMemberRoleRequest{
		OrgID:        f.orgAID,
		ActorID:      f.ownerAID,
		TargetUserID: f.userID,
		Role:         "admin",
	})
	require.NoError(t, err)

	f.sessions.Invalidate(f.userID)
	fresh, err := f.sessions.Resolve(context.Background(), f.token)
	require.NoError(t, err)

	var roleInA string
	for _, m := range fresh.Organizations {
		if m.OrgID == f.orgAID {
			roleInA = m.Role
		}
	}
	assert.Equal(t, "admin", roleInA)
}

func TestResolveWithoutMemberships(t *testing.T) {
	f := setup(t)

	_, err := f.auth.Register(context.Background(), authdomain.RegisterRequest{
		Email: "lonely@example.com", Password: "longenough",
	})
	require.NoError(t, err)

	sess, _, err := f.auth.Login(context.Background(), authdomain.LoginRequest{
		Email: "lonely@example.com", Password: "longenough",
	})
	require.NoError(t, err)

	_, err = f.sessions.Resolve(context.Background(), sess.Token)
	assert.ErrorIs(t, err, ErrNoOrganizations)
}
