// Package lock serializes the critical-history read-modify-write across processes.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

// ErrNotObtained is returned when the lock is held elsewhere after all retries.
var ErrNotObtained = errors.New("lock not obtained")

// Release gives the lock back.
type Release func(ctx context.Context) error

// Locker obtains named locks.
type Locker interface {
	Acquire(ctx context.Context, key string) (Release, error)
}

// Noop grants every lock immediately. Used when no Redis is configured.
type Noop struct{}

// Acquire always succeeds.
func (Noop) Acquire(context.Context, string) (Release, error) {
	return func(context.Context) error { return nil }, nil
}

// RedisOptions configures the Redis locker.
type RedisOptions struct {
	Prefix  string        // key prefix, e.g. "stock-movement-lab:"
	TTL     time.Duration // lock lifetime; must outlast one history write
	Retries int           // obtain attempts after the first
	Backoff time.Duration // linear backoff between attempts
}

// Redis is a Locker backed by bsm/redislock.
type Redis struct {
	client *redislock.Client
	opts   RedisOptions
}

// NewRedis wraps an existing go-redis client.
func NewRedis(rdb redis.UniversalClient, opts RedisOptions) *Redis {
	if opts.TTL <= 0 {
		opts.TTL = 30 * time.Second
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 100 * time.Millisecond
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	return &Redis{client: redislock.New(rdb), opts: opts}
}

// Connect creates a go-redis client for addr and pings it.
func Connect(ctx context.Context, addr, password string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return rdb, nil
}

// Acquire obtains key, retrying with linear backoff.
func (r *Redis) Acquire(ctx context.Context, key string) (Release, error) {
	strategy := redislock.LimitRetry(redislock.LinearBackoff(r.opts.Backoff), r.opts.Retries)
	l, err := r.client.Obtain(ctx, r.opts.Prefix+key, r.opts.TTL, &redislock.Options{RetryStrategy: strategy})
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, fmt.Errorf("%w: %s", ErrNotObtained, key)
	}
	if err != nil {
		return nil, fmt.Errorf("obtain lock %s: %w", key, err)
	}
	return func(ctx context.Context) error {
		if err := l.Release(ctx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			return err
		}
		return nil
	}, nil
}

var (
	_ Locker = Noop{}
	_ Locker = (*Redis)(nil)
)
