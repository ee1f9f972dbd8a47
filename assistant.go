package assistant

import (
	"context"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/sunnychangai/ai-travel-agent-app-sub002/internal"
	"github.com/sunnychangai/ai-travel-agent-app-sub002/pkg/cache"
	"github.com/sunnychangai/ai-travel-agent-app-sub002/pkg/event"
	"github.com/sunnychangai/ai-travel-agent-app-sub002/pkg/kv"
	"github.com/sunnychangai/ai-travel-agent-app-sub002/pkg/logger"
	"github.com/sunnychangai/ai-travel-agent-app-sub002/pkg/request"
	"github.com/sunnychangai/ai-travel-agent-app-sub002/pkg/stats"
)

// Type aliases - public API
type (
	// Client is the cache context for one assistant session: namespace
	// registry, cache store with optional durable mirror, event bus with
	// invalidation rules, and the request coordinator.
	Client = internal.Client

	// Option configures the client.
	Option = internal.Option

	// Config describes one cache namespace.
	Config = cache.Config

	// SetOption customizes a single cache write.
	SetOption = cache.SetOption

	// RequestOption customizes a single coordinated request.
	RequestOption = request.Option

	// RetryConfig bounds retry attempts and backoff for coordinated
	// requests.
	RetryConfig = request.RetryConfig

	// Descriptor describes one upstream HTTP request.
	Descriptor = request.Descriptor

	// Response is the raw result of a performed Descriptor.
	Response = request.Response

	// Transport performs Descriptors against an upstream collaborator.
	Transport = request.Transport

	// StatusError reports a non-2xx upstream response.
	StatusError = request.StatusError

	// EventType identifies one of the closed set of assistant lifecycle
	// events.
	EventType = event.Type

	// Event carries one emitted occurrence to rules and listeners.
	Event = event.Event

	// EventHandler consumes events.
	EventHandler = event.Handler

	// Rule maps a trigger event to cache namespaces to clear.
	Rule = event.Rule

	// Subscription is the handle to one registered listener.
	Subscription = event.Subscription

	// IdentityTransition is the payload of identity lifecycle events.
	IdentityTransition = event.IdentityTransition

	// NamespaceStats is a snapshot of one namespace's cache activity.
	NamespaceStats = stats.Namespace

	// KVStore is the durable key-value collaborator behind persistent
	// namespaces.
	KVStore = kv.Store

	// ContextExtractor extracts a slog attribute from context.
	// Used with logger.New to add request-scoped values to logs.
	ContextExtractor = logger.ContextExtractor
)

// Assistant lifecycle events.
const (
	IdentityLogin     = event.IdentityLogin
	IdentityLogout    = event.IdentityLogout
	IdentitySwitch    = event.IdentitySwitch
	TopicChange       = event.TopicChange
	WorkingSetReset   = event.WorkingSetReset
	PreferencesUpdate = event.PreferencesUpdate
)

// Standard namespace names known to the default invalidation rules.
const (
	NamespaceConversation    = internal.NamespaceConversation
	NamespaceMessages        = internal.NamespaceMessages
	NamespaceRecommendations = internal.NamespaceRecommendations
	NamespacePlaces          = internal.NamespacePlaces
	NamespaceItineraries     = internal.NamespaceItineraries
	NamespacePreferences     = internal.NamespacePreferences
)

// Errors for checking return values.
var (
	ErrNamespaceNotRegistered = cache.ErrNamespaceNotRegistered
	ErrCorruptedRecord        = cache.ErrCorruptedRecord
	ErrTransient              = request.ErrTransient
	ErrValueType              = request.ErrValueType
	ErrKeyNotFound            = kv.ErrNotFound
	ErrInvalidManifest        = internal.ErrInvalidManifest
)

// Constructors

// New creates a client with the given options. Namespaces default to
// DefaultNamespaces when none are configured.
//
// Example:
//
//	client := assistant.New(
//	    assistant.WithLogger(logger.New()),
//	    assistant.WithDurable(kv.NewMemory()),
//	)
//	defer client.Close()
//
//	client.SetActiveIdentity(ctx, travelerID)
func New(opts ...Option) *Client {
	return internal.New(opts...)
}

// DefaultNamespaces returns the assistant's standard cache layout.
func DefaultNamespaces() []Config {
	return internal.DefaultNamespaces()
}

// LoadNamespaces parses a YAML namespace manifest from fsys.
//
// Example:
//
//	//go:embed namespaces.yaml
//	var manifests embed.FS
//
//	configs, err := assistant.LoadNamespaces(manifests, "namespaces.yaml")
//	client := assistant.New(assistant.WithNamespaces(configs...))
func LoadNamespaces(fsys fs.FS, name string) ([]Config, error) {
	return internal.LoadNamespaces(fsys, name)
}

// Client options

// WithNamespaces replaces the default namespace presets.
func WithNamespaces(cfgs ...Config) Option {
	return internal.WithNamespaces(cfgs...)
}

// WithLogger sets the logger shared by the store, bus, and coordinator.
// Records are stamped with the active identity automatically.
func WithLogger(l *slog.Logger) Option {
	return internal.WithLogger(l)
}

// WithDurable mirrors persistent namespaces into the given durable store.
//
// Example:
//
//	rdb := kv.MustOpen(ctx, os.Getenv("REDIS_URL"))
//	client := assistant.New(
//	    assistant.WithDurable(kv.NewRedis(rdb)),
//	)
func WithDurable(store KVStore) Option {
	return internal.WithDurable(store)
}

// WithPersistWindow sets the debounce window for durable writes.
func WithPersistWindow(d time.Duration) Option {
	return internal.WithPersistWindow(d)
}

// WithGrace sets how long settled requests keep absorbing duplicate calls.
func WithGrace(d time.Duration) Option {
	return internal.WithGrace(d)
}

// WithRetryDefaults sets the retry policy applied to every coordinated
// request that does not override it per call.
func WithRetryDefaults(cfg RetryConfig) Option {
	return internal.WithRetryDefaults(cfg)
}

// WithRules registers extra invalidation rules after the standard ones.
func WithRules(rules ...Rule) Option {
	return internal.WithRules(rules...)
}

// Per-request options

// ForceFresh bypasses the cache read; the fresh result is still cached.
func ForceFresh() RequestOption {
	return request.ForceFresh()
}

// NoStore bypasses both the cache read and the cache write.
func NoStore() RequestOption {
	return request.NoStore()
}

// WithCacheKey caches the result under a different key than the request
// key.
func WithCacheKey(key string) RequestOption {
	return request.WithCacheKey(key)
}

// WithDedupKey shares one in-flight fetch among callers using this key.
func WithDedupKey(key string) RequestOption {
	return request.WithDedupKey(key)
}

// WithDescriptor derives the dedup key from an HTTP request descriptor.
func WithDescriptor(d Descriptor) RequestOption {
	return request.WithDescriptor(d)
}

// WithDebounce coalesces calls sharing key within the window; only the
// newest fetch executes.
func WithDebounce(key string, window time.Duration) RequestOption {
	return request.WithDebounce(key, window)
}

// WithRetry overrides the retry policy for one request.
func WithRetry(cfg RetryConfig) RequestOption {
	return request.WithRetry(cfg)
}

// WithSetOptions forwards cache write options for the stored result.
func WithSetOptions(opts ...SetOption) RequestOption {
	return request.WithSetOptions(opts...)
}

// Cache write options

// WithEntryTTL overrides the namespace TTL for one entry. Negative pins
// the entry until explicit invalidation.
func WithEntryTTL(ttl time.Duration) SetOption {
	return cache.WithEntryTTL(ttl)
}

// WithDependencies annotates the entry with related cache keys.
func WithDependencies(deps ...string) SetOption {
	return cache.WithDependencies(deps...)
}

// WithMetadata attaches free-form metadata to the entry.
func WithMetadata(meta map[string]string) SetOption {
	return cache.WithMetadata(meta)
}

// Coordinated requests

// Request runs one coordinated request through the client: cache-first
// lookup, deduplication, optional debounce, and bounded retries. See
// request.Do for the full contract.
//
// Example:
//
//	coords, err := assistant.Request(ctx, client, assistant.NamespacePlaces,
//	    "geocode:porto",
//	    func(ctx context.Context) (Coordinates, error) {
//	        return mapsAPI.Geocode(ctx, "porto")
//	    },
//	)
func Request[T any](ctx context.Context, c *Client, namespace, key string, fetch func(context.Context) (T, error), opts ...RequestOption) (T, error) {
	return request.Do(ctx, c.Coordinator(), namespace, key, fetch, opts...)
}

// FetchJSON builds a fetch function that performs d through the transport
// and decodes the JSON response into T.
//
// Example:
//
//	fetch := assistant.FetchJSON[[]Recommendation](transport, assistant.Descriptor{
//	    Method: http.MethodGet,
//	    Target: recommendationsURL,
//	    Params: map[string]string{"city": "porto"},
//	})
//	recs, err := assistant.Request(ctx, client, "recommendations", "porto", fetch)
func FetchJSON[T any](transport Transport, d Descriptor) func(context.Context) (T, error) {
	return request.FetchJSON[T](transport, d)
}

// NewHTTPTransport wraps an *http.Client as a Transport. A nil client uses
// a 30 second timeout default.
func NewHTTPTransport(client *http.Client) Transport {
	return request.NewHTTPTransport(client)
}

// Retryable reports whether an error would be retried by the coordinator:
// transient failures, upstream 429/502/503/504 statuses, and network
// errors. Context cancellation is never retryable.
func Retryable(err error) bool {
	return request.Retryable(err)
}

// DefaultRetryConfig returns the standard retry policy: 3 total attempts,
// exponential backoff from 100ms capped at 5s, 10% jitter.
func DefaultRetryConfig() RetryConfig {
	return request.DefaultRetryConfig()
}
