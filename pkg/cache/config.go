package cache

import (
	"slices"
	"sync"
	"time"
)

// Config declares one cache namespace.
//
// TTL <= 0 means entries never expire; individual writes may still override
// their own lifetime via WithEntryTTL. MaxSize <= 0 leaves the namespace
// unbounded.
type Config struct {
	Namespace      string
	TTL            time.Duration
	MaxSize        int
	IdentityScoped bool
	Persistent     bool
}

// Registry holds namespace configurations. Registration is idempotent per
// name with last write winning. Safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	configs map[string]Config
}

// NewRegistry creates a registry pre-populated with the given configs.
func NewRegistry(configs ...Config) *Registry {
	r := &Registry{configs: make(map[string]Config, len(configs))}
	for _, cfg := range configs {
		r.Register(cfg)
	}
	return r
}

// Register adds or replaces a namespace configuration.
// Configs with an empty namespace name are ignored.
func (r *Registry) Register(cfg Config) {
	if cfg.Namespace == "" {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.configs[cfg.Namespace] = cfg
}

// Lookup returns the configuration for a namespace.
func (r *Registry) Lookup(namespace string) (Config, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cfg, ok := r.configs[namespace]
	return cfg, ok
}

// Names returns all registered namespace names in lexical order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.configs))
	for name := range r.configs {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
