// Package subscription wires the subscription feature module.
package subscription

import (
	"go.uber.org/fx"

	"github.com/equipqr/equipqr/internal/subscription/service"
)

// Module provides the subscription service.
var Module = fx.Module("subscription",
	fx.Provide(service.New),
)
