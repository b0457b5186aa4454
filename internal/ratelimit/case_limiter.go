package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/redress/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	keyCaseCreate = "redress:case:create:%s"
	keyCaseRun    = "redress:case:run:%s"
)

var ErrRateLimited = errors.New("rate_limited")

// Denied carries the wait hint for a rejected request.
type Denied struct {
	RetryAfter time.Duration
}

func (d *Denied) Error() string        { return ErrRateLimited.Error() }
func (d *Denied) Unwrap() error        { return ErrRateLimited }
func (d *Denied) MetricReason() string { return "rate_limited" }

type Params struct {
	fx.In

	Client   *redis.Client                `optional:"true"`
	Pipeline *config.PipelineConfigHolder `optional:"true"`
	Log      *zap.Logger
}

// CaseLimiter throttles case creation per account and leases case runs.
// Without redis every call is allowed.
type CaseLimiter struct {
	bucket   *TokenBucket
	client   *redis.Client
	pipeline *config.PipelineConfigHolder
	log      *zap.Logger
}

func NewCaseLimiter(p Params) *CaseLimiter {
	return &CaseLimiter{
		bucket:   NewTokenBucket(p.Client),
		client:   p.Client,
		pipeline: p.Pipeline,
		log:      p.Log.Named("ratelimit"),
	}
}

// AllowCreate returns a *Denied error when the account is over its creation rate.
// Redis failures fail open.
func (l *CaseLimiter) AllowCreate(ctx context.Context, accountID snowflake.ID) error {
	if l == nil || l.bucket == nil {
		return nil
	}
	cfg := l.pipeline.Get().RateLimit
	if !cfg.Enabled {
		return nil
	}
	decision, err := l.bucket.Take(ctx, fmt.Sprintf(keyCaseCreate, accountID), Quota{Rate: cfg.Rate, Burst: cfg.Burst})
	if err != nil {
		l.log.Warn("case rate limit unavailable, allowing", zap.Error(err))
		return nil
	}
	if !decision.Allowed {
		return &Denied{RetryAfter: decision.RetryAfter}
	}
	return nil
}

// LockRun leases the case for one analysis run. ok is true when the caller may
// proceed; release must be called afterwards.
func (l *CaseLimiter) LockRun(ctx context.Context, caseID snowflake.ID, ttl time.Duration) (release func(), ok bool) {
	if l == nil || l.client == nil {
		return func() {}, true
	}
	lease, held, err := acquireLease(ctx, l.client, fmt.Sprintf(keyCaseRun, caseID), ttl)
	if err != nil {
		l.log.Warn("case run lock unavailable, proceeding", zap.String("case_id", caseID.String()), zap.Error(err))
		return func() {}, true
	}
	if !held {
		return func() {}, false
	}
	return func() {
		if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
			l.log.Warn("case run lock release failed", zap.String("case_id", caseID.String()), zap.Error(err))
		}
	}, true
}
