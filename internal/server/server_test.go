package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/equipqr/equipqr/internal/audit"
	authdomain "github.com/equipqr/equipqr/internal/auth/domain"
	authservice "github.com/equipqr/equipqr/internal/auth/service"
	billingdomain "github.com/equipqr/equipqr/internal/billing/domain"
	billingservice "github.com/equipqr/equipqr/internal/billing/service"
	"github.com/equipqr/equipqr/internal/checkout"
	"github.com/equipqr/equipqr/internal/clock"
	"github.com/equipqr/equipqr/internal/config"
	eqdomain "github.com/equipqr/equipqr/internal/equipment/domain"
	eqservice "github.com/equipqr/equipqr/internal/equipment/service"
	"github.com/equipqr/equipqr/internal/featureaccess"
	orgdomain "github.com/equipqr/equipqr/internal/organization/domain"
	orgrepo "github.com/equipqr/equipqr/internal/organization/repository"
	orgservice "github.com/equipqr/equipqr/internal/organization/service"
	"github.com/equipqr/equipqr/internal/providers/email"
	"github.com/equipqr/equipqr/internal/ratelimit"
	"github.com/equipqr/equipqr/internal/session"
	subdomain "github.com/equipqr/equipqr/internal/subscription/domain"
	subservice "github.com/equipqr/equipqr/internal/subscription/service"
	teamdomain "github.com/equipqr/equipqr/internal/team/domain"
	teamservice "github.com/equipqr/equipqr/internal/team/service"
	"github.com/equipqr/equipqr/internal/webhook"
	wodomain "github.com/equipqr/equipqr/internal/workorder/domain"
	woservice "github.com/equipqr/equipqr/internal/workorder/service"
	pkgdb "github.com/equipqr/equipqr/pkg/db"
)

const testWebhookSecret = "whsec_server_test"

type fixture struct {
	srv *Server
	clk *clock.FakeClock
}

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
		&teamdomain.Team{},
		&teamdomain.TeamMember{},
		&eqdomain.Equipment{},
		&wodomain.WorkOrder{},
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
	auth := authservice.New(db, node, clk, log)
	teams := teamservice.New(db, orgs, node, log)
	equip := eqservice.New(db, orgs, teams, node, log)
	orders := woservice.New(db, orgs, teams, equip, node, clk, log)
	subs := subservice.New(db, node, log)
	billing := billingservice.New(db, orgs, equip, subs, holder, node, clk, log)
	access := featureaccess.New(billing, subs, holder, log)
	sessions := session.New(auth, orgs, clk, log)
	auditSvc := audit.New(db, node, log)
	processor := webhook.NewProcessor(db, subs, orgs, auditSvc, node, clk, testWebhookSecret, log)
	limiter := ratelimit.NewLimiter(nil, 20, 60, "test", log)

	cfg := config.Config{
		AppName:     "equipqr",
		Environment: "test",
		ListenAddr:  ":0",
	}

	srv := New(Params{
		Config:   cfg,
		Log:      log,
		Auth:     auth,
		Sessions: sessions,
		Orgs:     orgs,
		Teams:    teams,
		Equip:    equip,
		Orders:   orders,
		Billing:  billing,
		Access:   access,
		Checkout: checkout.New(orgs, log),
		Audit:    auditSvc,
		Webhooks: processor,
		Limiter:  limiter,
	})

	return &fixture{srv: srv, clk: clk}
}

func (f *fixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.srv.Engine().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

// registerAndLogin creates an account and returns its session token.
func (f *fixture) registerAndLogin(t *testing.T, emailAddr string) string {
	t.Helper()

	rec := f.do(t, http.MethodPost, "/api/v1/auth/register", "", obj{
		"email": emailAddr, "name": "Test User", "password": "hunter2hunter2",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodPost, "/api/v1/auth/login", "", obj{
		"email": emailAddr, "password": "hunter2hunter2",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[map[string]any](t, rec)["token"].(string)
}

type obj = map[string]any

func TestHealthz(t *testing.T) {
	f := setup(t)
	rec := f.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUnauthenticatedRejected(t *testing.T) {
	f := setup(t)
	rec := f.do(t, http.MethodGet, "/api/v1/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/auth/me", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRegisterLoginAndSnapshot(t *testing.T) {
	f := setup(t)
	token := f.registerAndLogin(t, "owner@example.com")

	// No organizations yet: an empty snapshot, not an error.
	rec := f.do(t, http.MethodGet, "/api/v1/auth/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	empty := decode[session.Snapshot](t, rec)
	assert.Empty(t, empty.Organizations)
	assert.Zero(t, empty.CurrentOrgID)

	rec = f.do(t, http.MethodPost, "/api/v1/organizations", token, obj{"name": "Acme Fleet"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodGet, "/api/v1/auth/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	snap := decode[session.Snapshot](t, rec)
	assert.Equal(t, session.SchemaVersion, snap.SchemaVersion)
	assert.Equal(t, "owner", snap.CurrentRole)
	assert.Len(t, snap.Organizations, 1)
}

func TestOrgSwitchAndForeignOrgRejected(t *testing.T) {
	f := setup(t)
	token := f.registerAndLogin(t, "switcher@example.com")

	rec := f.do(t, http.MethodPost, "/api/v1/organizations", token, obj{"name": "First Org"})
	require.Equal(t, http.StatusCreated, rec.Code)
	first := decode[orgdomain.Organization](t, rec)

	rec = f.do(t, http.MethodPost, "/api/v1/organizations", token, obj{"name": "Second Org"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/v1/session/org", token, obj{"org_id": first.ID.String()})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	snap := decode[session.Snapshot](t, rec)
	assert.Equal(t, first.ID, snap.CurrentOrgID)

	// A stranger cannot switch into someone else's org.
	other := f.registerAndLogin(t, "stranger@example.com")
	rec = f.do(t, http.MethodPost, "/api/v1/session/org", other, obj{"org_id": first.ID.String()})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEquipmentLifecycleOverHTTP(t *testing.T) {
	f := setup(t)
	token := f.registerAndLogin(t, "fleet@example.com")

	rec := f.do(t, http.MethodPost, "/api/v1/organizations", token, obj{"name": "Fleet Org"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/v1/equipment", token, obj{
		"name": "Forklift 7", "serial_number": "FL-007", "location": "Warehouse A",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	eq := decode[eqdomain.Equipment](t, rec)
	require.NotEmpty(t, eq.QRKey)

	rec = f.do(t, http.MethodGet, "/api/v1/qr/"+eq.QRKey, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	byQR := decode[eqdomain.Equipment](t, rec)
	assert.Equal(t, eq.ID, byQR.ID)

	rec = f.do(t, http.MethodPost, "/api/v1/work-orders", token, obj{
		"equipment_id": eq.ID, "title": "Hydraulic leak",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	wo := decode[wodomain.WorkOrder](t, rec)
	assert.Equal(t, wodomain.StatusSubmitted, wo.Status)

	rec = f.do(t, http.MethodPut, fmt.Sprintf("/api/v1/work-orders/%s/status", wo.ID), token, obj{
		"status": "accepted",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// Jumping straight to completed is not a legal transition.
	rec = f.do(t, http.MethodPut, fmt.Sprintf("/api/v1/work-orders/%s/status", wo.ID), token, obj{
		"status": "completed",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestBillingRoutesRequireAdmin(t *testing.T) {
	f := setup(t)
	owner := f.registerAndLogin(t, "org-owner@example.com")

	rec := f.do(t, http.MethodPost, "/api/v1/organizations", owner, obj{"name": "Billing Org"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/billing/summary", owner, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode[struct {
		Summary billingdomain.Summary `json:"summary"`
		OrgRole string                `json:"org_role"`
	}](t, rec)
	assert.False(t, body.Summary.BillingRequired)
	assert.Equal(t, "owner", body.OrgRole)

	// Invite a plain member and verify the billing group rejects them.
	rec = f.do(t, http.MethodPost, "/api/v1/org/invites", owner, obj{
		"emails": []string{"worker@example.com"}, "role": "member",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	invites := decode[map[string][]orgdomain.OrganizationInvite](t, rec)["invites"]
	require.Len(t, invites, 1)

	worker := f.registerAndLogin(t, "worker@example.com")
	rec = f.do(t, http.MethodPost, fmt.Sprintf("/api/v1/invites/%s/accept", invites[0].ID), worker, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodGet, "/api/v1/billing/summary", worker, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestFeatureResolutionOverHTTP(t *testing.T) {
	f := setup(t)
	token := f.registerAndLogin(t, "features@example.com")

	rec := f.do(t, http.MethodPost, "/api/v1/organizations", token, obj{"name": "Feature Org"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/features", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decisions := decode[map[string][]featureaccess.Decision](t, rec)["features"]
	assert.NotEmpty(t, decisions)

	rec = f.do(t, http.MethodGet, "/api/v1/features/nonexistent_feature", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStripeWebhookOverHTTP(t *testing.T) {
	f := setup(t)

	payload := []byte(`{"id":"evt_http_1","type":"ping"}`)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", bytes.NewReader(payload))
	req.Header.Set("Stripe-Signature", webhook.SignPayload(payload, testWebhookSecret, time.Now()))
	rec := httptest.NewRecorder()
	f.srv.Engine().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode[map[string]any](t, rec)
	assert.Equal(t, "evt_http_1", body["event_id"])

	// Unsigned deliveries are rejected before touching the ledger.
	req = httptest.NewRequest(http.MethodPost, "/webhooks/stripe", bytes.NewReader(payload))
	rec = httptest.NewRecorder()
	f.srv.Engine().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
