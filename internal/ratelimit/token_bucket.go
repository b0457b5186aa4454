package ratelimit

import (
	"context"
	"errors"
	"math"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// takeToken refills from redis TIME so every replica shares one clock. It
// returns {allowed, remaining tokens in thousandths, wait in ms}.
var takeToken = redis.NewScript(`
local rate = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local ttl = tonumber(ARGV[3])

local t = redis.call("TIME")
local now = t[1] * 1000 + math.floor(t[2] / 1000)

local state = redis.call("HMGET", KEYS[1], "tokens", "ts")
local tokens = tonumber(state[1]) or burst
local ts = tonumber(state[2]) or now
if now > ts then
  tokens = math.min(burst, tokens + (now - ts) / 1000 * rate)
end

local allowed = 0
local wait = 0
if tokens >= 1 then
  allowed = 1
  tokens = tokens - 1
else
  wait = math.ceil((1 - tokens) / rate * 1000)
end

redis.call("HSET", KEYS[1], "tokens", tokens, "ts", now)
redis.call("PEXPIRE", KEYS[1], ttl)
return {allowed, math.floor(tokens * 1000), wait}
`)

var (
	errBucketUnconfigured = errors.New("rate limiter not configured")
	errBucketKey          = errors.New("rate limiter key is empty")
	errQuota              = errors.New("rate limiter rate and burst must be positive")
	errBucketReply        = errors.New("invalid rate limit script reply")
)

// Quota is a sustained rate in tokens per second plus a burst allowance.
type Quota struct {
	Rate  float64
	Burst int
}

func (q Quota) valid() bool { return q.Rate > 0 && q.Burst > 0 }

// Decision is the outcome of taking one token.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

type TokenBucket struct {
	client *redis.Client
}

func NewTokenBucket(client *redis.Client) *TokenBucket {
	if client == nil {
		return nil
	}
	return &TokenBucket{client: client}
}

// Take spends one token from the bucket at key.
func (b *TokenBucket) Take(ctx context.Context, key string, q Quota) (Decision, error) {
	if b == nil || b.client == nil {
		return Decision{}, errBucketUnconfigured
	}
	if key == "" {
		return Decision{}, errBucketKey
	}
	if !q.valid() {
		return Decision{}, errQuota
	}

	reply, err := takeToken.Run(ctx, b.client, []string{key},
		q.Rate, q.Burst, bucketTTL(q).Milliseconds(),
	).Int64Slice()
	if err != nil {
		return Decision{}, err
	}
	if len(reply) != 3 {
		return Decision{}, errBucketReply
	}
	return Decision{
		Allowed:    reply[0] == 1,
		Remaining:  int(reply[1] / 1000),
		RetryAfter: time.Duration(reply[2]) * time.Millisecond,
	}, nil
}

// bucketTTL keeps an idle bucket long enough to refill twice.
func bucketTTL(q Quota) time.Duration {
	if !q.valid() {
		return time.Second
	}
	seconds := math.Max(1, math.Ceil(float64(q.Burst)/q.Rate*2))
	return time.Duration(seconds) * time.Second
}
