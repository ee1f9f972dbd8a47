package cache

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/sunnychangai/ai-travel-agent-app-sub002/pkg/stats"
)

// Store is a namespaced in-memory cache with TTL expiry, identity scoping,
// size-bound eviction, and an optional debounced durable mirror for
// namespaces marked Persistent.
//
// Every operation consults the registry first; an unregistered namespace is
// a logged no-op or miss, never an error, so call sites stay resilient to
// missing registrations.
type Store struct {
	registry *Registry
	persist  *persister
	recorder *stats.Recorder
	identity func() string
	logger   *slog.Logger
	group    singleflight.Group

	mu     sync.Mutex
	spaces map[string]map[string]*entry
	closed bool
}

// New creates a store over the given namespace registry.
//
// Example:
//
//	reg := cache.NewRegistry(
//	    cache.Config{Namespace: "conversation", TTL: time.Hour, MaxSize: 50, IdentityScoped: true, Persistent: true},
//	    cache.Config{Namespace: "places", TTL: 24 * time.Hour, MaxSize: 500, Persistent: true},
//	)
//	store := cache.New(reg,
//	    cache.WithIdentityFunc(session.UserID),
//	    cache.WithPersistence(kv.NewRedis(client)),
//	)
//	defer store.Close()
func New(registry *Registry, opts ...Option) *Store {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	if registry == nil {
		registry = NewRegistry()
	}
	if o.recorder == nil {
		o.recorder = stats.NewRecorder()
	}

	s := &Store{
		registry: registry,
		recorder: o.recorder,
		identity: o.identity,
		logger:   o.logger,
		spaces:   make(map[string]map[string]*entry),
	}
	if o.durable != nil {
		s.persist = newPersister(o.durable, o.persistWindow, o.logger)
	}
	return s
}

// Set stores value under (namespace, key). Writes to identity-scoped
// namespaces are tagged with the identity active at the time of the call.
// If the namespace is at capacity, the oldest fifth of its entries is
// evicted first.
func (s *Store) Set(ctx context.Context, namespace, key string, value any, opts ...SetOption) {
	cfg, ok := s.registry.Lookup(namespace)
	if !ok {
		s.logger.WarnContext(ctx, "cache: set skipped", "namespace", namespace, "error", ErrNamespaceNotRegistered)
		return
	}

	o := applySetOptions(opts)

	var owner string
	if cfg.IdentityScoped {
		owner = s.identity()
	}

	e := &entry{
		value:        value,
		storedAt:     time.Now(),
		ttl:          o.ttl,
		owner:        owner,
		dependencies: o.dependencies,
		metadata:     o.metadata,
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.logger.WarnContext(ctx, "cache: set skipped", "namespace", namespace, "error", ErrClosed)
		return
	}
	space := s.spaces[namespace]
	if space == nil {
		space = make(map[string]*entry)
		s.spaces[namespace] = space
	}

	var removed []evicted
	if _, exists := space[key]; !exists && cfg.MaxSize > 0 && len(space) >= cfg.MaxSize {
		removed = evictOldest(space, evictBatch(cfg.MaxSize))
	}
	space[key] = e
	size := len(space)
	s.mu.Unlock()

	for _, ev := range removed {
		s.recorder.Eviction(namespace)
		if s.persist != nil && cfg.Persistent {
			s.persist.remove(ctx, recordKey(namespace, ev.owner, ev.key))
		}
	}
	s.recorder.SetEntryCount(namespace, size)

	if s.persist != nil && cfg.Persistent {
		s.persist.enqueue(recordKey(namespace, owner, key), e)
	}
}

// Get returns the live value under (namespace, key). Expired entries are
// purged on read, together with their durable copies; entries owned by a
// different identity are dropped from memory without touching the other
// identity's durable record. Both cases count as misses.
//
// Misses on persistent namespaces fall back to the durable mirror;
// concurrent misses for the same record collapse into one read. Values
// rehydrated this way surface as json.RawMessage until a typed consumer
// decodes them.
func (s *Store) Get(ctx context.Context, namespace, key string) (any, bool) {
	cfg, ok := s.registry.Lookup(namespace)
	if !ok {
		s.logger.WarnContext(ctx, "cache: get skipped", "namespace", namespace, "error", ErrNamespaceNotRegistered)
		return nil, false
	}

	var identity string
	if cfg.IdentityScoped {
		identity = s.identity()
	}
	now := time.Now()

	var (
		purged      bool
		purgedOwner string
		dropDurable bool
		size        int
	)

	s.mu.Lock()
	if space := s.spaces[namespace]; space != nil {
		if e, ok := space[key]; ok {
			expired := e.expired(cfg.TTL, now)
			foreign := cfg.IdentityScoped && e.owner != identity
			if !expired && !foreign {
				v := e.value
				s.mu.Unlock()
				s.recorder.Hit(namespace)
				return v, true
			}

			delete(space, key)
			purged = true
			purgedOwner = e.owner
			dropDurable = expired
			size = len(space)
		}
	}
	s.mu.Unlock()

	if purged {
		s.recorder.SetEntryCount(namespace, size)
		if dropDurable && s.persist != nil && cfg.Persistent {
			s.persist.remove(ctx, recordKey(namespace, purgedOwner, key))
		}
	}

	if s.persist != nil && cfg.Persistent {
		if v, ok := s.loadDurable(ctx, cfg, identity, key, now); ok {
			s.recorder.Hit(namespace)
			return v, true
		}
	}

	s.recorder.Miss(namespace)
	return nil, false
}

// Delete removes (namespace, key) from memory and the durable mirror.
// Reports whether a live in-memory entry was removed.
func (s *Store) Delete(ctx context.Context, namespace, key string) bool {
	cfg, ok := s.registry.Lookup(namespace)
	if !ok {
		s.logger.WarnContext(ctx, "cache: delete skipped", "namespace", namespace, "error", ErrNamespaceNotRegistered)
		return false
	}

	owner := ""
	if cfg.IdentityScoped {
		owner = s.identity()
	}

	s.mu.Lock()
	space := s.spaces[namespace]
	e, existed := space[key]
	if existed {
		delete(space, key)
		owner = e.owner
	}
	size := len(space)
	s.mu.Unlock()

	if s.persist != nil && cfg.Persistent {
		s.persist.remove(ctx, recordKey(namespace, owner, key))
	}
	if existed {
		s.recorder.Invalidation(namespace)
		s.recorder.SetEntryCount(namespace, size)
	}
	return existed
}

// ClearNamespace drops every entry in a namespace, including durable copies
// and writes still waiting in the debounce window.
func (s *Store) ClearNamespace(ctx context.Context, namespace string) {
	cfg, ok := s.registry.Lookup(namespace)
	if !ok {
		s.logger.WarnContext(ctx, "cache: clear skipped", "namespace", namespace, "error", ErrNamespaceNotRegistered)
		return
	}

	s.mu.Lock()
	n := len(s.spaces[namespace])
	delete(s.spaces, namespace)
	s.mu.Unlock()

	for range n {
		s.recorder.Invalidation(namespace)
	}
	s.recorder.SetEntryCount(namespace, 0)

	if s.persist != nil && cfg.Persistent {
		s.persist.removePrefix(ctx, namespacePrefix(namespace))
	}
}

// ClearForIdentity drops every entry owned by identity across all
// identity-scoped namespaces, in memory and in the durable mirror. Used by
// the logout and switch rules, where static rule targets cannot name
// "whatever the departing identity owned".
func (s *Store) ClearForIdentity(ctx context.Context, identity string) {
	for _, name := range s.registry.Names() {
		cfg, ok := s.registry.Lookup(name)
		if !ok || !cfg.IdentityScoped {
			continue
		}

		s.mu.Lock()
		space := s.spaces[name]
		removed := 0
		for k, e := range space {
			if e.owner == identity {
				delete(space, k)
				removed++
			}
		}
		size := len(space)
		s.mu.Unlock()

		for range removed {
			s.recorder.Invalidation(name)
		}
		if removed > 0 {
			s.recorder.SetEntryCount(name, size)
		}
		if s.persist != nil && cfg.Persistent {
			s.persist.removePrefix(ctx, recordPrefix(name, identity))
		}
	}
}

// Len reports the number of in-memory entries in a namespace, expired or
// not. Diagnostic only.
func (s *Store) Len(namespace string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.spaces[namespace])
}

// Config returns the registered configuration for a namespace.
func (s *Store) Config(namespace string) (Config, bool) {
	return s.registry.Lookup(namespace)
}

// Stats returns a snapshot of per-namespace diagnostics.
func (s *Store) Stats() map[string]stats.Namespace {
	return s.recorder.Snapshot()
}

// Flush commits every pending durable write immediately. Call it on
// teardown so debounced writes are not silently lost.
func (s *Store) Flush(ctx context.Context) error {
	if s.persist == nil {
		return nil
	}
	return s.persist.flush(ctx)
}

// Close flushes pending durable writes and rejects further writes.
// Close is idempotent.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	if s.persist == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), durableWriteTimeout)
	defer cancel()
	return s.persist.close(ctx)
}

// loadDurable rehydrates (namespace, key) from the durable mirror and
// re-populates memory unless a fresher write landed meanwhile.
func (s *Store) loadDurable(ctx context.Context, cfg Config, identity, key string, now time.Time) (any, bool) {
	rkey := recordKey(cfg.Namespace, identity, key)

	v, err, _ := s.group.Do(rkey, func() (any, error) {
		raw, err := s.persist.load(ctx, rkey)
		if err != nil {
			return nil, err
		}

		e, err := decodeRecord(raw)
		if err != nil {
			s.logger.WarnContext(ctx, "cache: dropping corrupted persisted record", "key", rkey, "error", err)
			s.persist.remove(ctx, rkey)
			return nil, err
		}
		if e.expired(cfg.TTL, now) {
			s.persist.remove(ctx, rkey)
			return nil, nil
		}
		return e, nil
	})
	if err != nil || v == nil {
		return nil, false
	}
	e := v.(*entry)

	s.mu.Lock()
	space := s.spaces[cfg.Namespace]
	if space == nil {
		space = make(map[string]*entry)
		s.spaces[cfg.Namespace] = space
	}
	if _, exists := space[key]; !exists {
		space[key] = e
	}
	size := len(space)
	s.mu.Unlock()

	s.recorder.SetEntryCount(cfg.Namespace, size)
	return e.value, true
}

type evicted struct {
	key   string
	owner string
}

// evictBatch is the number of entries removed when a namespace hits its
// size bound: a fifth of the configured capacity, rounded up, so bursts of
// inserts do not pay an eviction scan per write.
func evictBatch(maxSize int) int {
	return (maxSize + 4) / 5
}

// evictOldest removes the n oldest entries by write time.
// Caller must hold the store mutex.
func evictOldest(space map[string]*entry, n int) []evicted {
	type candidate struct {
		key      string
		owner    string
		storedAt time.Time
	}

	cands := make([]candidate, 0, len(space))
	for k, e := range space {
		cands = append(cands, candidate{key: k, owner: e.owner, storedAt: e.storedAt})
	}
	slices.SortFunc(cands, func(a, b candidate) int {
		if c := a.storedAt.Compare(b.storedAt); c != 0 {
			return c
		}
		return strings.Compare(a.key, b.key)
	})

	n = min(n, len(cands))
	out := make([]evicted, 0, n)
	for _, c := range cands[:n] {
		delete(space, c.key)
		out = append(out, evicted{key: c.key, owner: c.owner})
	}
	return out
}

// recordKey builds the durable key for one entry:
//
//	cache:{namespace}:{identity-or-absent}:{key}
//
// The third segment is the owning identity, or the literal "absent" for
// entries outside identity scope, keeping the format parseable.
func recordKey(namespace, owner, key string) string {
	return recordPrefix(namespace, owner) + key
}

func recordPrefix(namespace, owner string) string {
	if owner == "" {
		owner = "absent"
	}
	return "cache:" + namespace + ":" + owner + ":"
}

func namespacePrefix(namespace string) string {
	return "cache:" + namespace + ":"
}
