// Package lock provides a Redis-backed core.Locker so that one upload is
// processed by at most one instance at a time.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"

	"github.com/JonMunkholm/prodcheck/internal/core"
	"github.com/JonMunkholm/prodcheck/internal/logging"
)

const keyPrefix = "prodcheck:lock:"

// Redis obtains locks through redislock. Waiting is bounded by the caller's
// context and a linear retry of 250ms.
type Redis struct {
	client *redis.Client
	locker *redislock.Client
	ttl    time.Duration
}

var _ core.Locker = (*Redis)(nil)

// NewRedis connects to url (redis://host:port/db) and verifies it with a PING.
func NewRedis(ctx context.Context, url string, ttl time.Duration) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Redis{client: client, locker: redislock.New(client), ttl: ttl}, nil
}

// Lock obtains key, retrying until ctx is done. The returned func releases it.
func (r *Redis) Lock(ctx context.Context, key string) (func(), error) {
	lk, err := r.locker.Obtain(ctx, keyPrefix+key, r.ttl, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(250*time.Millisecond), 40),
	})
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, fmt.Errorf("%w: %s", core.ErrLocked, key)
	}
	if err != nil {
		return nil, fmt.Errorf("obtain lock %s: %w", key, err)
	}

	return func() {
		// release must outlive a cancelled request
		if err := lk.Release(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			logging.WithFields(ctx, "lock", key).Warn("release lock", "error", err)
		}
	}, nil
}

// Close closes the Redis connection.
func (r *Redis) Close() error {
	return r.client.Close()
}
