// Package organization wires the organization feature module.
package organization

import (
	"go.uber.org/fx"

	"github.com/equipqr/equipqr/internal/organization/repository"
	"github.com/equipqr/equipqr/internal/organization/service"
)

// Module provides the organization repository and service.
var Module = fx.Module("organization",
	fx.Provide(
		repository.New,
		service.New,
	),
)
