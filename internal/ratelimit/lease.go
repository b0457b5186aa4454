package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

// compare-and-delete so an expired holder cannot drop a newer lease.
var releaseLease = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

var (
	errLeaseUnconfigured = errors.New("lease store not configured")
	errLeaseInvalid      = errors.New("lease key and ttl are required")
)

// Lease is one holder's claim on a key. The zero value holds nothing.
type Lease struct {
	client *redis.Client
	key    string
	token  string
}

// acquireLease claims key for ttl. held is false when another holder owns it.
func acquireLease(ctx context.Context, client *redis.Client, key string, ttl time.Duration) (lease Lease, held bool, err error) {
	if client == nil {
		return Lease{}, false, errLeaseUnconfigured
	}
	if key == "" || ttl <= 0 {
		return Lease{}, false, errLeaseInvalid
	}
	token := uuid.NewString()
	held, err = client.SetNX(ctx, key, token, ttl).Result()
	if err != nil || !held {
		return Lease{}, false, err
	}
	return Lease{client: client, key: key, token: token}, true, nil
}

// Release drops the lease if this holder still owns it.
func (l Lease) Release(ctx context.Context) error {
	if l.client == nil || l.token == "" {
		return nil
	}
	return releaseLease.Run(ctx, l.client, []string{l.key}, l.token).Err()
}
