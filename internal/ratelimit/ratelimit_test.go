package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestLimiterWithoutRedisAllowsEverything(t *testing.T) {
	l := NewCaseLimiter(Params{Log: zap.NewNop()})
	assert.NoError(t, l.AllowCreate(context.Background(), snowflake.ID(1)))

	release, ok := l.LockRun(context.Background(), snowflake.ID(1), time.Minute)
	assert.True(t, ok)
	release()

	var nilLimiter *CaseLimiter
	assert.NoError(t, nilLimiter.AllowCreate(context.Background(), 1))
}

func TestDeniedUnwrapsToSentinel(t *testing.T) {
	var err error = &Denied{RetryAfter: 3 * time.Second}
	assert.True(t, errors.Is(err, ErrRateLimited))

	var denied *Denied
	assert.True(t, errors.As(err, &denied))
	assert.Equal(t, 3*time.Second, denied.RetryAfter)
}

func TestBucketTTL(t *testing.T) {
	assert.Equal(t, 50*time.Second, bucketTTL(Quota{Rate: 0.2, Burst: 5}))
	assert.Equal(t, time.Second, bucketTTL(Quota{Rate: 100, Burst: 1}))
	assert.Equal(t, time.Second, bucketTTL(Quota{}))
}

func TestTakeValidatesInput(t *testing.T) {
	var nilBucket *TokenBucket
	_, err := nilBucket.Take(context.Background(), "k", Quota{Rate: 1, Burst: 1})
	assert.ErrorIs(t, err, errBucketUnconfigured)

	b := &TokenBucket{client: redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})}
	_, err = b.Take(context.Background(), "", Quota{Rate: 1, Burst: 1})
	assert.ErrorIs(t, err, errBucketKey)
	_, err = b.Take(context.Background(), "k", Quota{Rate: 0, Burst: 1})
	assert.ErrorIs(t, err, errQuota)
}

func TestLeaseWithoutStore(t *testing.T) {
	_, held, err := acquireLease(context.Background(), nil, "case:run:1", time.Minute)
	assert.ErrorIs(t, err, errLeaseUnconfigured)
	assert.False(t, held)

	assert.NoError(t, Lease{}.Release(context.Background()))
}
