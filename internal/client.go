package internal

import (
	"context"
	"log/slog"
	"sync"

	"github.com/sunnychangai/ai-travel-agent-app-sub002/pkg/cache"
	"github.com/sunnychangai/ai-travel-agent-app-sub002/pkg/event"
	"github.com/sunnychangai/ai-travel-agent-app-sub002/pkg/logger"
	"github.com/sunnychangai/ai-travel-agent-app-sub002/pkg/request"
	"github.com/sunnychangai/ai-travel-agent-app-sub002/pkg/stats"
)

// Client is the cache context for one assistant session: the namespace
// registry, the in-memory store with its durable mirror, the event bus
// with the standard invalidation rules, and the request coordinator, all
// sharing one active identity.
//
// Construct it once at startup and pass it by reference; tests construct
// isolated instances. The zero value is not usable, use New.
type Client struct {
	registry *cache.Registry
	store    *cache.Store
	bus      *event.Bus
	coord    *request.Coordinator
	recorder *stats.Recorder
	logger   *slog.Logger

	mu       sync.RWMutex
	identity string
}

// New creates a client with the given options. Namespaces default to the
// assistant presets when none are configured. The standard invalidation
// rules are always registered; rules added through options run after them.
func New(opts ...Option) *Client {
	cfg := defaultOptions()
	for _, opt := range opts {
		opt(&cfg)
	}

	c := &Client{
		registry: cache.NewRegistry(cfg.namespaces...),
		recorder: stats.NewRecorder(),
	}

	// Every log record carries the identity it was written under.
	c.logger = slog.New(logger.NewLogHandlerDecorator(
		cfg.logger.Handler(),
		logger.IdentityExtractor(c.ActiveIdentity),
	))

	storeOpts := []cache.Option{
		cache.WithIdentityFunc(c.ActiveIdentity),
		cache.WithLogger(c.logger),
		cache.WithRecorder(c.recorder),
	}
	if cfg.durable != nil {
		storeOpts = append(storeOpts, cache.WithPersistence(cfg.durable))
		if cfg.persistWindow > 0 {
			storeOpts = append(storeOpts, cache.WithPersistWindow(cfg.persistWindow))
		}
	}
	c.store = cache.New(c.registry, storeOpts...)

	coordOpts := []request.CoordinatorOption{
		request.WithIdentityFunc(c.ActiveIdentity),
		request.WithLogger(c.logger),
	}
	if cfg.grace > 0 {
		coordOpts = append(coordOpts, request.WithGrace(cfg.grace))
	}
	if cfg.hasRetry {
		coordOpts = append(coordOpts, request.WithRetryDefaults(cfg.retry))
	}
	c.coord = request.New(c.store, coordOpts...)

	c.bus = event.New(func(ctx context.Context, namespace string) {
		c.store.ClearNamespace(ctx, namespace)
	}, event.WithLogger(c.logger))

	c.registerDefaultRules()
	for _, r := range cfg.rules {
		c.bus.AddRule(r)
	}

	return c
}

// registerDefaultRules wires the standard reactions to assistant lifecycle
// events. Logout and switch clear everything owned by the departing
// identity; targets cannot encode per-identity clearing, so those rules do
// the work in their condition and suppress target clearing.
func (c *Client) registerDefaultRules() {
	clearPrevious := func(ctx context.Context, e event.Event) bool {
		if tr, ok := e.Payload.(event.IdentityTransition); ok && tr.Previous != "" {
			c.store.ClearForIdentity(ctx, tr.Previous)
		}
		return false
	}

	c.bus.AddRule(event.Rule{Trigger: event.IdentityLogout, Condition: clearPrevious})
	c.bus.AddRule(event.Rule{Trigger: event.IdentitySwitch, Condition: clearPrevious})
	c.bus.AddRule(event.Rule{
		Trigger: event.TopicChange,
		Targets: []string{NamespaceConversation, NamespaceRecommendations},
	})
	c.bus.AddRule(event.Rule{
		Trigger: event.WorkingSetReset,
		Targets: []string{NamespaceConversation, NamespaceMessages},
	})
}

// ActiveIdentity returns the identity every identity-scoped read and write
// is currently gated by.
func (c *Client) ActiveIdentity() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.identity
}

// SetActiveIdentity is the sole identity mutation point. It updates the
// identity first and then emits the matching lifecycle event, so rule side
// effects observe the new state:
//
//	"" -> id  emits identity-login
//	id -> ""  emits identity-logout and clears the departing identity
//	a  -> b   emits identity-switch and clears identity a
//
// Setting the current identity again is a no-op.
func (c *Client) SetActiveIdentity(ctx context.Context, id string) {
	c.mu.Lock()
	previous := c.identity
	if previous == id {
		c.mu.Unlock()
		return
	}
	c.identity = id
	c.mu.Unlock()

	transition := event.IdentityTransition{Previous: previous, Current: id}
	switch {
	case previous == "":
		c.bus.Emit(ctx, event.IdentityLogin, transition)
	case id == "":
		c.bus.Emit(ctx, event.IdentityLogout, transition)
	default:
		c.bus.Emit(ctx, event.IdentitySwitch, transition)
	}
}

// RegisterNamespace adds or replaces a namespace configuration. Entries
// cached under a replaced configuration are judged by the new one on their
// next read.
func (c *Client) RegisterNamespace(cfg cache.Config) {
	c.registry.Register(cfg)
}

// Namespaces returns the registered namespace names, sorted.
func (c *Client) Namespaces() []string {
	return c.registry.Names()
}

// Get reads one cached value under the active identity.
func (c *Client) Get(ctx context.Context, namespace, key string) (any, bool) {
	return c.store.Get(ctx, namespace, key)
}

// Set caches one value under the active identity.
func (c *Client) Set(ctx context.Context, namespace, key string, value any, opts ...cache.SetOption) {
	c.store.Set(ctx, namespace, key, value, opts...)
}

// Delete removes one entry. It reports whether anything was removed.
func (c *Client) Delete(ctx context.Context, namespace, key string) bool {
	return c.store.Delete(ctx, namespace, key)
}

// ClearNamespace removes every entry in the namespace, in memory and in
// the durable mirror.
func (c *Client) ClearNamespace(ctx context.Context, namespace string) {
	c.store.ClearNamespace(ctx, namespace)
}

// Emit publishes an event through the bus: invalidation rules first, then
// listeners. It returns after both have run.
func (c *Client) Emit(ctx context.Context, typ event.Type, payload any) {
	c.bus.Emit(ctx, typ, payload)
}

// On subscribes a listener to one event type.
func (c *Client) On(typ event.Type, h event.Handler) *event.Subscription {
	return c.bus.Subscribe(typ, h)
}

// AddRule registers an extra invalidation rule after the standard ones.
func (c *Client) AddRule(r event.Rule) {
	c.bus.AddRule(r)
}

// Coordinator exposes the request coordinator for typed fetches through
// request.Do.
func (c *Client) Coordinator() *request.Coordinator {
	return c.coord
}

// Store exposes the underlying cache store.
func (c *Client) Store() *cache.Store {
	return c.store
}

// Stats returns a point-in-time snapshot of per-namespace cache activity.
func (c *Client) Stats() map[string]stats.Namespace {
	return c.store.Stats()
}

// Flush commits every pending durable write immediately.
func (c *Client) Flush(ctx context.Context) error {
	return c.store.Flush(ctx)
}

// Close flushes pending durable writes and shuts the cache down. The
// client must not be used afterwards.
func (c *Client) Close() error {
	return c.store.Close()
}
