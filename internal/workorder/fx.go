// Package workorder wires the work-order feature module.
package workorder

import (
	"go.uber.org/fx"

	"github.com/equipqr/equipqr/internal/workorder/service"
)

// Module provides the work-order service.
var Module = fx.Module("workorder",
	fx.Provide(service.New),
)
