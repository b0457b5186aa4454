// Package scheduler recovers cases that a crashed or abandoned run left
// part-way through the pipeline.
package scheduler

import (
	"context"
	"errors"
	"time"

	casedomain "github.com/smallbiznis/redress/internal/casefile/domain"
	"github.com/smallbiznis/redress/internal/clock"
	pipelinedomain "github.com/smallbiznis/redress/internal/pipeline/domain"
	pipelineservice "github.com/smallbiznis/redress/internal/pipeline/service"
	"github.com/smallbiznis/redress/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	sweepTimeout = 2 * time.Minute
	sweepLease   = time.Minute
)

var ErrInvalidConfig = errors.New("invalid_scheduler_config")

type Params struct {
	fx.In

	Log         *zap.Logger
	CaseSvc     casedomain.Service
	PipelineSvc pipelinedomain.Service
	Runner      *pipelineservice.Runner `optional:"true"`
	Limiter     *ratelimit.CaseLimiter  `optional:"true"`
	Clock       clock.Clock             `optional:"true"`
	Config      Config                  `optional:"true"`
}

type Scheduler struct {
	log         *zap.Logger
	cfg         Config
	clock       clock.Clock
	caseSvc     casedomain.Service
	pipelineSvc pipelinedomain.Service
	runner      *pipelineservice.Runner
	limiter     *ratelimit.CaseLimiter
}

// SweepResult counts what one sweep did.
type SweepResult struct {
	RolledBack int
	Resumed    int
	Skipped    int
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.CaseSvc == nil || p.PipelineSvc == nil {
		return nil, ErrInvalidConfig
	}
	clk := p.Clock
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &Scheduler{
		log:         p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:         p.Config.withDefaults(),
		clock:       clk,
		caseSvc:     p.CaseSvc,
		pipelineSvc: p.PipelineSvc,
		runner:      p.Runner,
		limiter:     p.Limiter,
	}, nil
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		sweepCtx, cancel := context.WithTimeout(ctx, sweepTimeout)
		res, err := s.RecoverySweep(sweepCtx)
		cancel()
		if err != nil && !errors.Is(err, context.Canceled) {
			s.log.Warn("recovery sweep failed", zap.Error(err))
		} else if res.RolledBack+res.Resumed > 0 {
			s.log.Info("recovery sweep finished",
				zap.Int("rolled_back", res.RolledBack),
				zap.Int("resumed", res.Resumed),
				zap.Int("skipped", res.Skipped),
			)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RecoverySweep rolls abandoned analyzing cases back to draft and finishes
// analyzed cases whose letter was never stored.
func (s *Scheduler) RecoverySweep(ctx context.Context) (SweepResult, error) {
	var (
		res    SweepResult
		jobErr error
	)
	cutoff := s.clock.Now().Add(-s.cfg.RecoveryThreshold)

	stuck, err := s.caseSvc.ListStale(ctx, casedomain.StatusAnalyzing, cutoff, s.cfg.BatchSize)
	if err != nil {
		return res, err
	}
	for _, c := range stuck {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		if !s.claim(ctx, c, true, func(ctx context.Context) error {
			return s.caseSvc.Rollback(ctx, c.ID, "analysis abandoned")
		}, &jobErr) {
			res.Skipped++
			continue
		}
		res.RolledBack++
	}

	analyzed, err := s.caseSvc.ListStale(ctx, casedomain.StatusAnalyzed, cutoff, s.cfg.BatchSize)
	if err != nil {
		return res, errors.Join(jobErr, err)
	}
	for _, c := range analyzed {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		// Run takes the lease itself.
		if !s.claim(ctx, c, false, func(ctx context.Context) error {
			return s.pipelineSvc.Run(ctx, c.ID)
		}, &jobErr) {
			res.Skipped++
			continue
		}
		res.Resumed++
	}
	return res, jobErr
}

// claim runs fn unless the case is being worked on here or in another replica.
func (s *Scheduler) claim(ctx context.Context, c casedomain.Case, hold bool, fn func(ctx context.Context) error, jobErr *error) bool {
	if s.runner.Busy(c.ID) {
		return false
	}
	release, ok := s.limiter.LockRun(ctx, c.ID, sweepLease)
	if !ok {
		return false
	}
	if hold {
		defer release()
	} else {
		release()
	}

	if err := fn(ctx); err != nil {
		s.log.Warn("case recovery failed",
			zap.String("case_id", c.ID.String()),
			zap.String("status", string(c.Status)),
			zap.Error(err),
		)
		*jobErr = errors.Join(*jobErr, err)
		return false
	}
	return true
}
