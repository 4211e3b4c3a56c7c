// Package auth wires account and session management.
package auth

import (
	"go.uber.org/fx"

	"github.com/equipqr/equipqr/internal/auth/service"
)

// Module provides the auth service.
var Module = fx.Module("auth",
	fx.Provide(service.New),
)
