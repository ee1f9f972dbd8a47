package cache

import (
	"log/slog"
	"time"

	"github.com/sunnychangai/ai-travel-agent-app-sub002/pkg/kv"
	"github.com/sunnychangai/ai-travel-agent-app-sub002/pkg/stats"
)

// Option configures a Store.
type Option func(*options)

type options struct {
	identity      func() string
	logger        *slog.Logger
	recorder      *stats.Recorder
	durable       kv.Store
	persistWindow time.Duration
}

func defaultOptions() *options {
	return &options{
		identity:      func() string { return "" },
		logger:        slog.New(slog.DiscardHandler),
		persistWindow: 200 * time.Millisecond,
	}
}

// WithIdentityFunc sets the provider of the active identity. The store calls
// it at the time of each identity-scoped read or write, never caching the
// result, so a switch during an in-flight operation cannot leak entries
// across identities.
func WithIdentityFunc(fn func() string) Option {
	return func(o *options) {
		if fn != nil {
			o.identity = fn
		}
	}
}

// WithLogger sets the logger for recoverable cache errors.
// Default: discard.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithRecorder shares an external diagnostics recorder.
// Default: a recorder private to the store.
func WithRecorder(r *stats.Recorder) Option {
	return func(o *options) {
		if r != nil {
			o.recorder = r
		}
	}
}

// WithPersistence mirrors namespaces marked Persistent into the given
// durable store. Without this option the Persistent flag is inert.
func WithPersistence(store kv.Store) Option {
	return func(o *options) {
		o.durable = store
	}
}

// WithPersistWindow sets the debounce window for durable writes: rapid
// rewrites of one record inside the window collapse into a single write.
// Default: 200ms.
func WithPersistWindow(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.persistWindow = d
		}
	}
}
