// Package scheduler runs the periodic reconciliation sweep. One replica
// sweeps at a time; others skip the tick when the Redis lock is held.
package scheduler

import (
	"context"
	"time"

	"github.com/polarsource/polar-sub007/internal/clock"
	"github.com/polarsource/polar-sub007/internal/oracleops"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const sweepLockKey = "billing_oracle:sweep:lock"

// Config controls sweep cadence and scope.
type Config struct {
	RunInterval time.Duration
	SweepWindow time.Duration
	SweepLimit  int
	LockTTL     time.Duration
}

func DefaultConfig() Config {
	return Config{
		RunInterval: time.Hour,
		SweepWindow: 24 * time.Hour,
		SweepLimit:  1000,
		LockTTL:     10 * time.Minute,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.SweepWindow <= 0 {
		c.SweepWindow = defaults.SweepWindow
	}
	if c.SweepLimit <= 0 {
		c.SweepLimit = defaults.SweepLimit
	}
	if c.LockTTL <= 0 {
		c.LockTTL = defaults.LockTTL
	}
	return c
}

type Params struct {
	fx.In

	Log    *zap.Logger
	Ops    *oracleops.Service
	Locker *Locker `optional:"true"`
	Clock  clock.Clock
	Config Config `optional:"true"`
}

type Scheduler struct {
	log    *zap.Logger
	ops    *oracleops.Service
	locker *Locker
	clock  clock.Clock
	cfg    Config
}

func New(p Params) *Scheduler {
	return &Scheduler{
		log:    p.Log.Named("scheduler"),
		ops:    p.Ops,
		locker: p.Locker,
		clock:  p.Clock,
		cfg:    p.Config.withDefaults(),
	}
}

// RunOnce performs a single sweep, guarded by the distributed lock when one
// is configured. A held lock is a normal skip, not an error.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	if s.locker != nil {
		token, won, err := s.locker.Acquire(ctx, s.cfg.LockTTL)
		if err != nil {
			return err
		}
		if !won {
			s.log.Debug("sweep lock held elsewhere, skipping")
			return nil
		}
		defer func() {
			if err := s.locker.Release(ctx, token); err != nil {
				s.log.Warn("failed to release sweep lock", zap.Error(err))
			}
		}()
	}

	start := s.clock.Now()
	result, err := s.ops.RunSweep(ctx, s.cfg.SweepWindow, s.cfg.SweepLimit)
	if err != nil {
		return err
	}

	s.log.Info("sweep finished",
		zap.String("run_id", result.RunID.String()),
		zap.Int("orders_checked", result.OrdersChecked),
		zap.Int("mismatches", len(result.Mismatches)),
		zap.Duration("elapsed", s.clock.Now().Sub(start)),
	)
	return nil
}

// RunForever sweeps on the configured interval until the context is
// cancelled.
func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("sweep run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
