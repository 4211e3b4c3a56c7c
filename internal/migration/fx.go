package migration

import "go.uber.org/fx"

// Module runs migrations before the rest of the app starts.
var Module = fx.Module("migration",
	fx.Invoke(Run),
)
