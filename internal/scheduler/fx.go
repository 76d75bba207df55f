package scheduler

import (
	"context"

	"github.com/polarsource/polar-sub007/internal/config"
	"go.uber.org/fx"
)

// ProvideConfig maps application configuration onto scheduler settings.
func ProvideConfig(cfg config.Config) Config {
	return Config{
		RunInterval: cfg.Oracle.SweepInterval,
		SweepWindow: cfg.Oracle.SweepWindow,
		SweepLimit:  cfg.Oracle.SweepLimit,
	}
}

var Module = fx.Module("scheduler",
	fx.Provide(ProvideConfig),
	fx.Provide(NewLocker),
	fx.Provide(New),
	fx.Invoke(Start),
)

// Start runs the sweep loop for the process lifetime when enabled.
func Start(lc fx.Lifecycle, cfg config.Config, sched *Scheduler) {
	if !cfg.Oracle.SchedulerEnable {
		return
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ctx, cancel := context.WithCancel(context.Background())

			go sched.RunForever(ctx)

			lc.Append(fx.Hook{
				OnStop: func(context.Context) error {
					cancel()
					return nil
				},
			})

			return nil
		},
	})
}
