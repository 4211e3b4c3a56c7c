// Package billing wires the billing feature module.
package billing

import (
	"go.uber.org/fx"

	"github.com/equipqr/equipqr/internal/billing/service"
)

// Module provides the billing service.
var Module = fx.Module("billing",
	fx.Provide(service.New),
)
