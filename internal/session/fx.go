package session

import "go.uber.org/fx"

// Module provides the session resolver.
var Module = fx.Module("session",
	fx.Provide(New),
)
