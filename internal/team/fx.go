// Package team wires the team feature module.
package team

import (
	"go.uber.org/fx"

	"github.com/equipqr/equipqr/internal/team/service"
)

// Module provides the team service.
var Module = fx.Module("team",
	fx.Provide(service.New),
)
