package checkout

import "go.uber.org/fx"

// Module provides the checkout service.
var Module = fx.Module("checkout",
	fx.Provide(New),
)
