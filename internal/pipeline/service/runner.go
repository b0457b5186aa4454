package service

import (
	"context"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const defaultRunTimeout = 5 * time.Minute

// Runner executes case runs in the background. Runs are detached from the
// request that scheduled them and drained when the application stops.
type Runner struct {
	log     *zap.Logger
	timeout time.Duration

	wg       sync.WaitGroup
	mu       sync.Mutex
	inflight map[snowflake.ID]struct{}
	stopped  bool
}

func NewRunner(lc fx.Lifecycle, log *zap.Logger) *Runner {
	r := &Runner{
		log:      log.Named("pipeline.runner"),
		timeout:  defaultRunTimeout,
		inflight: make(map[snowflake.ID]struct{}),
	}
	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				return r.Shutdown(ctx)
			},
		})
	}
	return r
}

// Go schedules fn for caseID. It returns false when a run for the case is
// already in flight or the runner is stopping.
func (r *Runner) Go(ctx context.Context, caseID snowflake.ID, fn func(ctx context.Context) error) bool {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return false
	}
	if _, busy := r.inflight[caseID]; busy {
		r.mu.Unlock()
		return false
	}
	r.inflight[caseID] = struct{}{}
	r.wg.Add(1)
	r.mu.Unlock()

	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	go func() {
		defer r.wg.Done()
		defer cancel()
		defer r.finish(caseID)
		defer func() {
			if rec := recover(); rec != nil {
				r.log.Error("case run panicked", zap.String("case_id", caseID.String()), zap.Any("panic", rec))
			}
		}()

		if err := fn(runCtx); err != nil {
			r.log.Warn("case run failed", zap.String("case_id", caseID.String()), zap.Error(err))
		}
	}()
	return true
}

func (r *Runner) finish(caseID snowflake.ID) {
	r.mu.Lock()
	delete(r.inflight, caseID)
	r.mu.Unlock()
}

// Shutdown stops accepting runs and waits for in-flight ones until ctx expires.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.stopped = true
	pending := len(r.inflight)
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		r.log.Warn("shutdown deadline reached with case runs in flight", zap.Int("pending", pending))
		return ctx.Err()
	}
}

// Busy reports whether a run for caseID is in flight in this process.
func (r *Runner) Busy(caseID snowflake.ID) bool {
	if r == nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	_, busy := r.inflight[caseID]
	return busy
}
