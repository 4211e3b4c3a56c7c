package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/equipqr/equipqr/internal/audit"
	billingdomain "github.com/equipqr/equipqr/internal/billing/domain"
	billingservice "github.com/equipqr/equipqr/internal/billing/service"
	"github.com/equipqr/equipqr/internal/clock"
	"github.com/equipqr/equipqr/internal/config"
	eqdomain "github.com/equipqr/equipqr/internal/equipment/domain"
	eqservice "github.com/equipqr/equipqr/internal/equipment/service"
	orgdomain "github.com/equipqr/equipqr/internal/organization/domain"
	orgrepo "github.com/equipqr/equipqr/internal/organization/repository"
	orgservice "github.com/equipqr/equipqr/internal/organization/service"
	"github.com/equipqr/equipqr/internal/providers/email"
	"github.com/equipqr/equipqr/internal/ratelimit"
	subdomain "github.com/equipqr/equipqr/internal/subscription/domain"
	subservice "github.com/equipqr/equipqr/internal/subscription/service"
	teamdomain "github.com/equipqr/equipqr/internal/team/domain"
	teamservice "github.com/equipqr/equipqr/internal/team/service"
	"github.com/equipqr/equipqr/internal/webhook"
	pkgdb "github.com/equipqr/equipqr/pkg/db"
)

func TestGraceExpirySweep(t *testing.T) {
	db, err := pkgdb.NewTest()
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&orgdomain.Organization{},
		&orgdomain.OrganizationMember{},
		&orgdomain.OrganizationInvite{},
		&teamdomain.Team{},
		&teamdomain.TeamMember{},
		&eqdomain.Equipment{},
		&subdomain.Subscription{},
		&billingdomain.BillingExemption{},
		&audit.Entry{},
		&webhook.Event{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	log := zap.NewNop()
	clk := clock.NewFakeClock(time.Now())
	holder := config.NewStaticBillingConfigHolder(config.DefaultBillingConfig())

	orgs := orgservice.New(db, orgrepo.New(db), email.Noop{}, node, log)
	teams := teamservice.New(db, orgs, node, log)
	equip := eqservice.New(db, orgs, teams, node, log)
	subs := subservice.New(db, node, log)
	billing := billingservice.New(db, orgs, equip, subs, holder, node, clk, log)
	auditSvc := audit.New(db, node, log)
	processor := webhook.NewProcessor(db, subs, orgs, auditSvc, node, clk, "whsec_test", log)

	ctx := context.Background()

	// An org whose 30-day grace window closed half a day ago, with
	// equipment and a billable second member.
	makeOrg := func(name string) *orgdomain.Organization {
		org, err := orgs.Create(ctx, orgdomain.CreateOrganizationRequest{
			Name: name, OwnerID: node.Generate(),
		})
		require.NoError(t, err)
		require.NoError(t, db.Model(&orgdomain.Organization{}).
			Where("id = ?", org.ID).
			Update("created_at", clk.Now().Add(-30*24*time.Hour-12*time.Hour)).Error)
		require.NoError(t, db.Create(&orgdomain.OrganizationMember{
			ID: node.Generate(), OrgID: org.ID, UserID: node.Generate(),
			Role: "member", Status: orgdomain.MemberStatusActive,
		}).Error)
		require.NoError(t, db.Create(&eqdomain.Equipment{
			ID: node.Generate(), OrgID: org.ID, Name: "Lift",
			QRKey: uuid.NewString(), Status: eqdomain.StatusActive,
		}).Error)
		return org
	}

	expired := makeOrg("Expired Fleet")
	covered := makeOrg("Covered Fleet")

	_, err = subs.Upsert(ctx, &subdomain.Subscription{
		OrgID:                  covered.ID,
		ProviderSubscriptionID: "sub_covered",
		Status:                 "active",
		Quantity:               5,
	})
	require.NoError(t, err)

	jobs := Jobs(processor, auditSvc, orgs, billing, holder, clk, log)
	s := New(jobs, ratelimit.NewLocker(nil, log), clk, log)
	s.RunJobNow(ctx, "grace_expiry_audit")

	entries, err := auditSvc.ListByOrg(ctx, expired.ID, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "grace_period_expired", entries[0].EventType)
	assert.Equal(t, audit.ActorSystem, entries[0].Actor)

	// The subscribed org is left alone.
	entries, err = auditSvc.ListByOrg(ctx, covered.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, entries)

	// A day later the expired org has left the sweep window.
	clk.Advance(24 * time.Hour)
	s.RunJobNow(ctx, "grace_expiry_audit")
	entries, err = auditSvc.ListByOrg(ctx, expired.ID, 10)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
