package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/equipqr/equipqr/internal/auth/domain"
	"github.com/equipqr/equipqr/internal/clock"
	pkgdb "github.com/equipqr/equipqr/pkg/db"
)

func setup(t *testing.T) (domain.Service, *clock.FakeClock) {
	t.Helper()
	db, err := pkgdb.NewTest()
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.User{}, &domain.Session{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	clk := clock.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	return New(db, node, clk, zap.NewNop()), clk
}

func TestRegisterAndLogin(t *testing.T) {
	svc, _ := setup(t)

	user, err := svc.Register(context.Background(), domain.RegisterRequest{
		Email:    "Tech@Example.com",
		Name:     "Tech",
		Password: "correct horse",
	})
	require.NoError(t, err)
	assert.Equal(t, "tech@example.com", user.Email)

	session, got, err := svc.Login(context.Background(), domain.LoginRequest{
		Email:    "tech@example.com",
		Password: "correct horse",
	})
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
	assert.NotEmpty(t, session.Token)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc, _ := setup(t)

	_, err := svc.Register(context.Background(), domain.RegisterRequest{
		Email: "a@example.com", Password: "longenough",
	})
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), domain.RegisterRequest{
		Email: "a@example.com", Password: "longenough",
	})
	assert.ErrorIs(t, err, domain.ErrEmailTaken)
}

func TestRegisterWeakPassword(t *testing.T) {
	svc, _ := setup(t)
	_, err := svc.Register(context.Background(), domain.RegisterRequest{
		Email: "a@example.com", Password: "short",
	})
	assert.ErrorIs(t, err, domain.ErrWeakPassword)
}

func TestLoginWrongPassword(t *testing.T) {
	svc, _ := setup(t)
	_, err := svc.Register(context.Background(), domain.RegisterRequest{
		Email: "a@example.com", Password: "longenough",
	})
	require.NoError(t, err)

	_, _, err = svc.Login(context.Background(), domain.LoginRequest{
		Email: "a@example.com", Password: "wrong password",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestAuthenticateExpiredSession(t *testing.T) {
	svc, clk := setup(t)
	_, err := svc.Register(context.Background(), domain.RegisterRequest{
		Email: "a@example.com", Password: "longenough",
	})
	require.NoError(t, err)

	session, _, err := svc.Login(context.Background(), domain.LoginRequest{
		Email: "a@example.com", Password: "longenough",
	})
	require.NoError(t, err)

	_, _, err = svc.Authenticate(context.Background(), session.Token)
	require.NoError(t, err)

	clk.Advance(31 * 24 * time.Hour)
	_, _, err = svc.Authenticate(context.Background(), session.Token)
	assert.ErrorIs(t, err, domain.ErrSessionExpired)
}

func TestLogoutInvalidatesSession(t *testing.T) {
	svc, _ := setup(t)
	_, err := svc.Register(context.Background(), domain.RegisterRequest{
		Email: "a@example.com", Password: "longenough",
	})
	require.NoError(t, err)

	session, _, err := svc.Login(context.Background(), domain.LoginRequest{
		Email: "a@example.com", Password: "longenough",
	})
	require.NoError(t, err)

	require.NoError(t, svc.Logout(context.Background(), session.Token))

	_, _, err = svc.Authenticate(context.Background(), session.Token)
	assert.ErrorIs(t, err, domain.ErrInvalidSession)
}

func TestSetSessionOrg(t *testing.T) {
	svc, _ := setup(t)
	_, err := svc.Register(context.Background(), domain.RegisterRequest{
		Email: "a@example.com", Password: "longenough",
	})
	require.NoError(t, err)

	session, _, err := svc.Login(context.Background(), domain.LoginRequest{
		Email: "a@example.com", Password: "longenough",
	})
	require.NoError(t, err)

	orgID := snowflake.ID(42)
	require.NoError(t, svc.SetSessionOrg(context.Background(), session.Token, orgID))

	got, _, err := svc.Authenticate(context.Background(), session.Token)
	require.NoError(t, err)
	require.NotNil(t, got.OrgID)
	assert.Equal(t, orgID, *got.OrgID)

	err = svc.SetSessionOrg(context.Background(), "missing-token", orgID)
	assert.ErrorIs(t, err, domain.ErrInvalidSession)
}
