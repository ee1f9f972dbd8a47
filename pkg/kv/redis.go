package kv

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is a Store backed by Redis. Records persist until deleted; expiry
// is the cache layer's job, so no Redis TTL is applied.
type Redis struct {
	client redis.UniversalClient
}

// NewRedis wraps an existing Redis client. The client lifecycle is managed
// by the caller; use Open or MustOpen to dial one with sane defaults.
func NewRedis(client redis.UniversalClient) *Redis {
	return &Redis{client: client}
}

// Get returns the value stored under key.
// Returns ErrNotFound if the key does not exist.
func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

// Set stores value under key, replacing any previous value.
func (r *Redis) Set(ctx context.Context, key string, value []byte) error {
	return r.client.Set(ctx, key, value, 0).Err()
}

// Delete removes key. Deleting a missing key is not an error.
func (r *Redis) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

// Keys returns all keys with the given prefix in lexical order.
// Enumeration uses SCAN, which does not block the server.
func (r *Redis) Keys(ctx context.Context, prefix string) ([]string, error) {
	pattern := prefix + "*"

	var (
		cursor uint64
		out    []string
	)
	for {
		keys, next, err := r.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return nil, err
		}
		out = append(out, keys...)

		cursor = next
		if cursor == 0 {
			break
		}
	}
	slices.Sort(out)

	return out, nil
}

var _ Store = (*Redis)(nil)

// RedisOption configures a Redis connection created by Open.
type RedisOption func(*redisOptions)

type redisOptions struct {
	poolSize      int
	minIdleConns  int
	dialTimeout   time.Duration
	retryAttempts int
	retryInterval time.Duration
}

func defaultRedisOptions() *redisOptions {
	return &redisOptions{
		poolSize:      10,
		minIdleConns:  2,
		dialTimeout:   5 * time.Second,
		retryAttempts: 3,
		retryInterval: 2 * time.Second,
	}
}

// WithPoolSize sets the maximum number of connections in the pool.
// Default: 10
func WithPoolSize(n int) RedisOption {
	return func(o *redisOptions) {
		o.poolSize = n
	}
}

// WithMinIdleConns sets the minimum number of idle connections kept open.
// Default: 2
func WithMinIdleConns(n int) RedisOption {
	return func(o *redisOptions) {
		o.minIdleConns = n
	}
}

// WithDialTimeout sets the timeout for establishing new connections.
// Default: 5 seconds
func WithDialTimeout(d time.Duration) RedisOption {
	return func(o *redisOptions) {
		o.dialTimeout = d
	}
}

// WithDialRetry configures connection retry behavior during Open.
// Default: 3 attempts, 2 second base interval with linear backoff.
func WithDialRetry(attempts int, interval time.Duration) RedisOption {
	return func(o *redisOptions) {
		o.retryAttempts = attempts
		o.retryInterval = interval
	}
}

// Open dials Redis and verifies the connection with a ping.
// Supports redis:// and rediss:// (TLS) URL schemes.
//
// Example:
//
//	client, err := kv.Open(ctx, os.Getenv("REDIS_URL"),
//	    kv.WithPoolSize(20),
//	)
func Open(ctx context.Context, url string, opts ...RedisOption) (redis.UniversalClient, error) {
	if url == "" {
		return nil, ErrEmptyConnectionURL
	}
	if !strings.HasPrefix(url, "redis://") && !strings.HasPrefix(url, "rediss://") {
		return nil, ErrFailedToParseURL
	}

	o := defaultRedisOptions()
	for _, opt := range opts {
		opt(o)
	}

	redisOpts, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Join(ErrFailedToParseURL, err)
	}
	redisOpts.PoolSize = o.poolSize
	redisOpts.MinIdleConns = o.minIdleConns
	redisOpts.DialTimeout = o.dialTimeout

	return dial(ctx, redisOpts, o.retryAttempts, o.retryInterval)
}

// MustOpen dials Redis or exits on failure.
// Use for simple applications where startup failure is fatal.
func MustOpen(ctx context.Context, url string, opts ...RedisOption) redis.UniversalClient {
	client, err := Open(ctx, url, opts...)
	if err != nil {
		slog.Error("failed to open redis connection", "error", err)
		os.Exit(1)
	}
	return client
}

func dial(ctx context.Context, opts *redis.Options, attempts int, interval time.Duration) (redis.UniversalClient, error) {
	attempts = max(attempts, 1)

	for i := range attempts {
		client := redis.NewClient(opts)

		if err := client.Ping(ctx).Err(); err == nil {
			return client, nil
		}
		_ = client.Close()

		if waitErr := wait(ctx, time.Duration(i+1)*interval); waitErr != nil {
			return nil, errors.Join(ErrConnectionFailed, waitErr)
		}
	}

	return nil, ErrConnectionFailed
}

func wait(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
