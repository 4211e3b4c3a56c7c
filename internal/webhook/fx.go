package webhook

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/equipqr/equipqr/internal/audit"
	"github.com/equipqr/equipqr/internal/clock"
	"github.com/equipqr/equipqr/internal/config"
	orgdomain "github.com/equipqr/equipqr/internal/organization/domain"
	subdomain "github.com/equipqr/equipqr/internal/subscription/domain"
)

// Module provides the webhook processor.
var Module = fx.Module("webhook",
	fx.Provide(func(
		db *gorm.DB,
		subs subdomain.Service,
		orgs orgdomain.Service,
		auditSvc audit.Service,
		node *snowflake.Node,
		clk clock.Clock,
		cfg config.Config,
		log *zap.Logger,
	) *Processor {
		return NewProcessor(db, subs, orgs, auditSvc, node, clk, cfg.StripeWebhookSecret, log)
	}),
)
