package featureaccess

import "go.uber.org/fx"

// Module provides the feature-access service.
var Module = fx.Module("featureaccess",
	fx.Provide(New),
)
