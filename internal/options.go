package internal

import (
	"log/slog"
	"time"

	"github.com/sunnychangai/ai-travel-agent-app-sub002/pkg/cache"
	"github.com/sunnychangai/ai-travel-agent-app-sub002/pkg/event"
	"github.com/sunnychangai/ai-travel-agent-app-sub002/pkg/kv"
	"github.com/sunnychangai/ai-travel-agent-app-sub002/pkg/logger"
	"github.com/sunnychangai/ai-travel-agent-app-sub002/pkg/request"
)

// Option configures the client.
type Option func(*options)

type options struct {
	namespaces    []cache.Config
	logger        *slog.Logger
	durable       kv.Store
	persistWindow time.Duration
	grace         time.Duration
	retry         request.RetryConfig
	hasRetry      bool
	rules         []event.Rule
}

func defaultOptions() options {
	return options{
		namespaces: DefaultNamespaces(),
		logger:     logger.NewNope(),
	}
}

// WithNamespaces replaces the default namespace presets with the given
// configurations.
//
// Example:
//
//	assistant.New(
//	    assistant.WithNamespaces(
//	        cache.Config{Namespace: "conversation", TTL: time.Hour, MaxSize: 50, IdentityScoped: true},
//	        cache.Config{Namespace: "places", TTL: 24 * time.Hour, MaxSize: 500, Persistent: true},
//	    ),
//	)
func WithNamespaces(cfgs ...cache.Config) Option {
	return func(o *options) {
		if len(cfgs) > 0 {
			o.namespaces = cfgs
		}
	}
}

// WithLogger sets the logger shared by the store, bus, and coordinator.
// Records are stamped with the active identity automatically.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithDurable mirrors persistent namespaces into the given durable store.
// Without it, persistent namespaces behave as memory-only.
//
// Example:
//
//	client, _ := kv.Open(ctx, os.Getenv("REDIS_URL"))
//	assistant.New(assistant.WithDurable(kv.NewRedis(client)))
func WithDurable(store kv.Store) Option {
	return func(o *options) {
		o.durable = store
	}
}

// WithPersistWindow sets the debounce window for durable writes.
func WithPersistWindow(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.persistWindow = d
		}
	}
}

// WithGrace sets how long settled requests keep absorbing duplicate calls.
func WithGrace(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.grace = d
		}
	}
}

// WithRetryDefaults sets the retry policy applied to every coordinated
// request that does not override it per call.
func WithRetryDefaults(cfg request.RetryConfig) Option {
	return func(o *options) {
		o.retry = cfg
		o.hasRetry = true
	}
}

// WithRules registers extra invalidation rules. They run after the
// standard lifecycle rules, in the order given.
//
// Example:
//
//	assistant.New(
//	    assistant.WithRules(event.Rule{
//	        Trigger: event.PreferencesUpdate,
//	        Targets: []string{"recommendations"},
//	    }),
//	)
func WithRules(rules ...event.Rule) Option {
	return func(o *options) {
		o.rules = append(o.rules, rules...)
	}
}
