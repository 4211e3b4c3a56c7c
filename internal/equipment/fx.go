// Package equipment wires the equipment feature module.
package equipment

import (
	"go.uber.org/fx"

	"github.com/equipqr/equipqr/internal/equipment/service"
)

// Module provides the equipment service.
var Module = fx.Module("equipment",
	fx.Provide(service.New),
)
