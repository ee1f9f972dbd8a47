package cache

import "time"

// entry holds one cached value with its write timestamp and scope.
type entry struct {
	value        any
	storedAt     time.Time
	ttl          time.Duration // 0 = namespace default, negative = never expires
	owner        string        // identity that wrote it; empty outside identity-scoped namespaces
	dependencies []string
	metadata     map[string]string
}

// expired reports whether the entry has outlived its effective TTL.
func (e *entry) expired(defaultTTL time.Duration, now time.Time) bool {
	ttl := e.ttl
	if ttl == 0 {
		ttl = defaultTTL
	}
	if ttl <= 0 {
		return false
	}
	return now.After(e.storedAt.Add(ttl))
}

// SetOption customizes a single cache write.
type SetOption func(*setOptions)

type setOptions struct {
	ttl          time.Duration
	dependencies []string
	metadata     map[string]string
}

func applySetOptions(opts []SetOption) *setOptions {
	o := &setOptions{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithEntryTTL overrides the namespace TTL for this entry.
// Negative means the entry never expires.
func WithEntryTTL(d time.Duration) SetOption {
	return func(o *setOptions) {
		o.ttl = d
	}
}

// WithDependencies records related cache keys on the entry. The list is
// persisted alongside the value for diagnostics; no dependency-graph
// invalidation is performed.
func WithDependencies(keys ...string) SetOption {
	return func(o *setOptions) {
		o.dependencies = keys
	}
}

// WithMetadata attaches free-form labels to the entry.
func WithMetadata(m map[string]string) SetOption {
	return func(o *setOptions) {
		o.metadata = m
	}
}
