package scheduler

import (
	"context"
	"time"

	"github.com/smallbiznis/redress/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("scheduler",
	fx.Provide(configFrom),
	fx.Provide(New),
	fx.Invoke(startSweeper),
)

func configFrom(cfg config.Config) Config {
	return Config{
		RunInterval:       time.Duration(cfg.Recovery.IntervalSeconds) * time.Second,
		BatchSize:         cfg.Recovery.BatchSize,
		RecoveryThreshold: time.Duration(cfg.Recovery.ThresholdMinutes) * time.Minute,
	}.withDefaults()
}

// startSweeper runs the recovery loop for the life of the app. Several
// replicas may run it; the per-case run lock keeps them off the same case.
func startSweeper(lc fx.Lifecycle, cfg config.Config, sched *Scheduler, log *zap.Logger) {
	if !cfg.Recovery.Enabled {
		log.Named("scheduler").Info("recovery sweep disabled")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				sched.RunForever(ctx)
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
			case <-stopCtx.Done():
			}
			return nil
		},
	})
}
