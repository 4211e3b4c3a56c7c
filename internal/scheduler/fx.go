package scheduler

import (
	"context"

	"go.uber.org/fx"
)

// Module wires the scheduler into the application lifecycle.
var Module = fx.Module("scheduler",
	fx.Provide(
		Jobs,
		New,
	),
	fx.Invoke(registerHooks),
)

func registerHooks(lc fx.Lifecycle, s *Scheduler) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			s.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			s.Stop()
			return nil
		},
	})
}
