package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/stripe/stripe-go/v82"
	"go.uber.org/fx"

	"github.com/equipqr/equipqr/internal/audit"
	"github.com/equipqr/equipqr/internal/auth"
	"github.com/equipqr/equipqr/internal/billing"
	"github.com/equipqr/equipqr/internal/checkout"
	"github.com/equipqr/equipqr/internal/clock"
	"github.com/equipqr/equipqr/internal/config"
	"github.com/equipqr/equipqr/internal/equipment"
	"github.com/equipqr/equipqr/internal/featureaccess"
	"github.com/equipqr/equipqr/internal/logger"
	"github.com/equipqr/equipqr/internal/migration"
	"github.com/equipqr/equipqr/internal/organization"
	"github.com/equipqr/equipqr/internal/providers/email"
	"github.com/equipqr/equipqr/internal/ratelimit"
	"github.com/equipqr/equipqr/internal/scheduler"
	"github.com/equipqr/equipqr/internal/server"
	"github.com/equipqr/equipqr/internal/session"
	"github.com/equipqr/equipqr/internal/subscription"
	"github.com/equipqr/equipqr/internal/team"
	"github.com/equipqr/equipqr/internal/webhook"
	"github.com/equipqr/equipqr/internal/workorder"
	"github.com/equipqr/equipqr/pkg/db"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		config.BillingModule,
		logger.Module,
		clock.Module,
		fx.Provide(newSnowflakeNode),
		db.Module,
		migration.Module,
		ratelimit.Module,
		email.Module,

		// Domains
		auth.Module,
		organization.Module,
		team.Module,
		equipment.Module,
		workorder.Module,
		subscription.Module,
		billing.Module,
		featureaccess.Module,
		session.Module,
		audit.Module,
		webhook.Module,
		checkout.Module,

		// Surfaces
		server.Module,
		scheduler.Module,

		fx.Invoke(configureStripe),
	)
	app.Run()
}

func newSnowflakeNode() (*snowflake.Node, error) {
	return snowflake.NewNode(1)
}

// configureStripe sets the provider API key once at startup. The
// webhook path never calls out to Stripe, but checkout does.
func configureStripe(cfg config.Config) {
	stripe.Key = cfg.StripeSecretKey
}
