package audit

import "go.uber.org/fx"

// Module provides the audit service.
var Module = fx.Module("audit",
	fx.Provide(New),
)
