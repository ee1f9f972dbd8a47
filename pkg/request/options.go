package request

import (
	"log/slog"
	"time"

	"github.com/sunnychangai/ai-travel-agent-app-sub002/pkg/cache"
)

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithIdentityFunc sets the provider of the active identity, read when a
// fetch starts and again when it completes: if an identity-scoped
// namespace's identity changed mid-flight, the result is not cached.
func WithIdentityFunc(fn func() string) CoordinatorOption {
	return func(c *Coordinator) {
		if fn != nil {
			c.identity = fn
		}
	}
}

// WithLogger sets the coordinator's logger. Default: discard.
func WithLogger(logger *slog.Logger) CoordinatorOption {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithGrace sets how long a completed operation lingers in the in-flight
// registry so near-simultaneous duplicates join its settled result.
// Default: 1 second.
func WithGrace(d time.Duration) CoordinatorOption {
	return func(c *Coordinator) {
		if d >= 0 {
			c.grace = d
		}
	}
}

// WithRetryDefaults sets the retry policy used when a call does not carry
// its own WithRetry option.
func WithRetryDefaults(cfg RetryConfig) CoordinatorOption {
	return func(c *Coordinator) {
		c.retry = cfg.normalized()
	}
}

// Option customizes a single coordinated request.
type Option func(*callOptions)

type callOptions struct {
	forceFresh     bool
	noStore        bool
	cacheKey       string
	dedupKey       string
	debounceKey    string
	debounceWindow time.Duration
	retry          RetryConfig
	hasRetry       bool
	setOptions     []cache.SetOption
}

// ForceFresh bypasses the cache read; the fresh result is still cached.
func ForceFresh() Option {
	return func(o *callOptions) {
		o.forceFresh = true
	}
}

// NoStore skips both the cache read and the cache write; deduplication and
// retries still apply. For write-like calls whose responses must not be
// replayed.
func NoStore() Option {
	return func(o *callOptions) {
		o.noStore = true
	}
}

// WithCacheKey stores the result under a different key than the request key.
func WithCacheKey(key string) Option {
	return func(o *callOptions) {
		if key != "" {
			o.cacheKey = key
		}
	}
}

// WithDedupKey overrides the derived deduplication key.
func WithDedupKey(key string) Option {
	return func(o *callOptions) {
		if key != "" {
			o.dedupKey = key
		}
	}
}

// WithDescriptor derives the deduplication key from a request descriptor
// (see Descriptor.DedupKey).
func WithDescriptor(d Descriptor) Option {
	return func(o *callOptions) {
		o.dedupKey = d.DedupKey()
	}
}

// WithDebounce coalesces bursts: calls sharing key within the window
// execute once, with the newest fetch superseding pending ones, and every
// caller in the burst receives the single result.
func WithDebounce(key string, window time.Duration) Option {
	return func(o *callOptions) {
		o.debounceKey = key
		o.debounceWindow = window
	}
}

// WithRetry overrides the coordinator's retry policy for this call.
func WithRetry(cfg RetryConfig) Option {
	return func(o *callOptions) {
		o.retry = cfg
		o.hasRetry = true
	}
}

// WithSetOptions forwards cache write options for the stored result, such
// as an entry TTL override or metadata.
func WithSetOptions(opts ...cache.SetOption) Option {
	return func(o *callOptions) {
		o.setOptions = append(o.setOptions, opts...)
	}
}
