package checkout

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82"
	"go.uber.org/zap"

	orgdomain "github.com/equipqr/equipqr/internal/organization/domain"
	orgrepo "github.com/equipqr/equipqr/internal/organization/repository"
	orgservice "github.com/equipqr/equipqr/internal/organization/service"
	"github.com/equipqr/equipqr/internal/providers/email"
	pkgdb "github.com/equipqr/equipqr/pkg/db"
)

func setup(t *testing.T) (Service, *stripe.CheckoutSessionParams, snowflake.ID, snowflake.ID, snowflake.ID) {
	t.Helper()
	db, err := pkgdb.NewTest()
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&orgdomain.Organization{},
		&orgdomain.OrganizationMember{},
		&orgdomain.OrganizationInvite{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	orgs := orgservice.New(db, orgrepo.New(db), email.Noop{}, node, zap.NewNop())

	ownerID := node.Generate()
	org, err := orgs.Create(context.Background(), orgdomain.CreateOrganizationRequest{
		Name: "Acme", OwnerID: ownerID,
	})
	require.NoError(t, err)

	memberID := node.Generate()
	invites, err := orgs.InviteMembers(context.Background(), orgdomain.InviteMembersRequest{
		OrgID: org.ID, ActorID: ownerID, Emails: []string{"m@example.com"}, Role: "member",
	})
	require.NoError(t, err)
	_, err = orgs.AcceptInvite(context.Background(), invites[0].ID, memberID, "m@example.com")
	require.NoError(t, err)

	captured := &stripe.CheckoutSessionParams{}
	svc := newWithCreator(orgs, func(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
		*captured = *params
		return &stripe.CheckoutSession{ID: "cs_test", URL: "https://checkout.example/cs_test"}, nil
	}, zap.NewNop())

	return svc, captured, org.ID, ownerID, memberID
}

func TestCreateSessionSetsOrgMetadata(t *testing.T) {
	svc, captured, orgID, ownerID, _ := setup(t)

	got, err := svc.CreateSession(context.Background(), CreateSessionRequest{
		OrgID:      orgID,
		ActorID:    ownerID,
		PriceID:    "price_seat",
		Seats:      4,
		SuccessURL: "https://app.example/billing/success",
		CancelURL:  "https://app.example/billing",
	})
	require.NoError(t, err)
	assert.Equal(t, "cs_test", got.ID)
	assert.Equal(t, "https://checkout.example/cs_test", got.URL)

	require.NotNil(t, captured.SubscriptionData)
	assert.Equal(t, orgID.String(), captured.SubscriptionData.Metadata["org_id"])
	assert.Equal(t, orgID.String(), captured.Metadata["org_id"])
	require.Len(t, captured.LineItems, 1)
	assert.Equal(t, int64(4), *captured.LineItems[0].Quantity)
}

func TestCreateSessionRequiresAdmin(t *testing.T) {
	svc, _, orgID, _, memberID := setup(t)

	_, err := svc.CreateSession(context.Background(), CreateSessionRequest{
		OrgID:      orgID,
		ActorID:    memberID,
		PriceID:    "price_seat",
		Seats:      1,
		SuccessURL: "https://app.example/ok",
		CancelURL:  "https://app.example/no",
	})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestCreateSessionValidatesSeats(t *testing.T) {
	svc, _, orgID, ownerID, _ := setup(t)

	_, err := svc.CreateSession(context.Background(), CreateSessionRequest{
		OrgID:      orgID,
		ActorID:    ownerID,
		PriceID:    "price_seat",
		Seats:      0,
		SuccessURL: "https://app.example/ok",
		CancelURL:  "https://app.example/no",
	})
	assert.ErrorIs(t, err, ErrInvalidSeats)
}
