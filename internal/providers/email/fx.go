package email

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/equipqr/equipqr/internal/config"
)

// Module wires the email provider. Falls back to a no-op sender when
// SMTP is not configured so invite flows still succeed locally.
var Module = fx.Module("email",
	fx.Provide(func(cfg config.Config, log *zap.Logger) Provider {
		if cfg.SMTPHost == "" {
			log.Warn("smtp not configured, email delivery disabled")
			return Noop{}
		}
		return NewSMTP(cfg, log)
	}),
)
