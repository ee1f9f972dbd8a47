package request

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/sunnychangai/ai-travel-agent-app-sub002/pkg/cache"
)

// Fetch produces the value for one coordinated request.
type Fetch[T any] func(ctx context.Context) (T, error)

type fetchFunc func(ctx context.Context) (any, error)

// flightKey identifies one in-flight operation. A struct key rather than
// joined strings, so namespaces and derived keys cannot collide.
type flightKey struct {
	Namespace string
	Key       string
}

// call is one shared in-flight operation.
type call struct {
	done    chan struct{}
	value   any
	err     error
	cancel  context.CancelFunc
	waiters int
	settled bool
}

// debounced is one pending coalesced invocation.
type debounced struct {
	timer *time.Timer
	fetch fetchFunc
	opts  *callOptions
	done  chan struct{}
	value any
	err   error
}

// Coordinator turns "I need data D identified by key K, fetched like this"
// into a single cache-aware resilient operation: cache-first lookup,
// in-flight deduplication with a post-completion grace window, optional
// burst debouncing, and bounded retries with jittered exponential backoff.
type Coordinator struct {
	cache    *cache.Store
	identity func() string
	logger   *slog.Logger
	grace    time.Duration
	retry    RetryConfig

	mu       sync.Mutex
	inflight map[flightKey]*call
	debounce map[flightKey]*debounced
}

// New creates a coordinator over the given cache store.
func New(store *cache.Store, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		cache:    store,
		identity: func() string { return "" },
		logger:   slog.New(slog.DiscardHandler),
		grace:    time.Second,
		retry:    DefaultRetryConfig(),
		inflight: make(map[flightKey]*call),
		debounce: make(map[flightKey]*debounced),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Do runs one coordinated request and returns its typed result.
//
// The sequence: cache-first lookup (unless ForceFresh or NoStore), then
// deduplication against in-flight operations with the same key, optional
// debounce coalescing, and finally the fetch under the retry policy. On
// success the result is cached per the namespace's configuration; on
// terminal failure every caller sharing the operation receives the same
// error and nothing is cached.
//
// Cancelling ctx detaches this caller only; the underlying fetch is
// aborted when the last remaining caller departs.
func Do[T any](ctx context.Context, c *Coordinator, namespace, key string, fetch Fetch[T], opts ...Option) (T, error) {
	var zero T

	o := c.buildOptions(key, opts)

	if !o.forceFresh && !o.noStore {
		if v, ok := c.cache.Get(ctx, namespace, o.cacheKey); ok {
			if t, ok := coerce[T](v); ok {
				return t, nil
			}
			c.logger.WarnContext(ctx, "request: cached value has unexpected type, refetching",
				"namespace", namespace, "key", o.cacheKey, "error", ErrValueType)
		}
	}

	v, err := c.execute(ctx, namespace, o, func(ctx context.Context) (any, error) {
		return fetch(ctx)
	})
	if err != nil {
		return zero, err
	}

	t, ok := coerce[T](v)
	if !ok {
		return zero, ErrValueType
	}
	return t, nil
}

func (c *Coordinator) buildOptions(key string, opts []Option) *callOptions {
	o := &callOptions{cacheKey: key}
	for _, opt := range opts {
		opt(o)
	}
	if o.dedupKey == "" {
		o.dedupKey = o.cacheKey
	}
	if !o.hasRetry {
		o.retry = c.retry
	}
	return o
}

func (c *Coordinator) execute(ctx context.Context, namespace string, o *callOptions, fetch fetchFunc) (any, error) {
	if o.debounceWindow > 0 && o.debounceKey != "" {
		return c.coalesce(ctx, namespace, o, fetch)
	}
	return c.dedup(ctx, namespace, o, fetch)
}

// dedup shares one underlying fetch among every caller with the same
// flight key. The fetch runs on a context detached from any single
// caller; completed flights linger for the grace window so
// near-simultaneous duplicates observe the settled result.
func (c *Coordinator) dedup(ctx context.Context, namespace string, o *callOptions, fetch fetchFunc) (any, error) {
	fkey := flightKey{Namespace: namespace, Key: o.dedupKey}

	c.mu.Lock()
	if cl, ok := c.inflight[fkey]; ok {
		cl.waiters++
		c.mu.Unlock()
		return c.await(ctx, cl)
	}

	fctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	cl := &call{done: make(chan struct{}), cancel: cancel, waiters: 1}
	c.inflight[fkey] = cl
	c.mu.Unlock()

	go c.run(fctx, fkey, cl, namespace, o, fetch)

	return c.await(ctx, cl)
}

func (c *Coordinator) run(ctx context.Context, fkey flightKey, cl *call, namespace string, o *callOptions, fetch fetchFunc) {
	identityAtStart := c.identity()

	v, err := retryFetch(ctx, o.retry, fetch)

	if err == nil && !o.noStore {
		if cfg, ok := c.cache.Config(namespace); ok && cfg.IdentityScoped && c.identity() != identityAtStart {
			c.logger.Warn("request: dropping cache write after identity change",
				"namespace", namespace, "key", o.cacheKey)
		} else {
			c.cache.Set(ctx, namespace, o.cacheKey, v, o.setOptions...)
		}
	}

	c.settle(fkey, cl, v, err, ctx.Err() != nil)
}

// settle publishes the result to every waiter. Settled flights stay in the
// registry for the grace window; aborted ones are dropped immediately so a
// later caller starts fresh instead of inheriting a cancellation.
func (c *Coordinator) settle(fkey flightKey, cl *call, v any, err error, aborted bool) {
	c.mu.Lock()
	cl.value = v
	cl.err = err
	cl.settled = true
	close(cl.done)
	if aborted {
		if cur, ok := c.inflight[fkey]; ok && cur == cl {
			delete(c.inflight, fkey)
		}
	}
	c.mu.Unlock()

	cl.cancel()

	if aborted {
		return
	}
	time.AfterFunc(c.grace, func() {
		c.mu.Lock()
		if cur, ok := c.inflight[fkey]; ok && cur == cl {
			delete(c.inflight, fkey)
		}
		c.mu.Unlock()
	})
}

// await blocks until the shared operation settles or the caller's context
// ends. A departing caller never aborts the shared fetch unless it is the
// last one still waiting.
func (c *Coordinator) await(ctx context.Context, cl *call) (any, error) {
	select {
	case <-cl.done:
		return cl.value, cl.err
	case <-ctx.Done():
		c.leave(cl)
		return nil, ctx.Err()
	}
}

func (c *Coordinator) leave(cl *call) {
	c.mu.Lock()
	cl.waiters--
	abort := cl.waiters <= 0 && !cl.settled
	c.mu.Unlock()

	if abort {
		cl.cancel()
	}
}

// coalesce arms a debounce timer for the key: calls arriving inside the
// window supersede the pending fetch and re-arm the timer; when it fires,
// the newest fetch executes once through dedup and every waiter in the
// burst receives its result.
func (c *Coordinator) coalesce(ctx context.Context, namespace string, o *callOptions, fetch fetchFunc) (any, error) {
	dkey := flightKey{Namespace: namespace, Key: o.debounceKey}

	c.mu.Lock()
	d, ok := c.debounce[dkey]
	if ok {
		d.fetch = fetch
		d.opts = o
		d.timer.Reset(o.debounceWindow)
	} else {
		d = &debounced{fetch: fetch, opts: o, done: make(chan struct{})}
		d.timer = time.AfterFunc(o.debounceWindow, func() { c.fire(dkey) })
		c.debounce[dkey] = d
	}
	c.mu.Unlock()

	select {
	case <-d.done:
		return d.value, d.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// fire executes the debounced invocation that survived the window.
func (c *Coordinator) fire(dkey flightKey) {
	c.mu.Lock()
	d, ok := c.debounce[dkey]
	if !ok {
		c.mu.Unlock()
		return
	}
	delete(c.debounce, dkey)
	fetch, o := d.fetch, d.opts
	c.mu.Unlock()

	d.value, d.err = c.dedup(context.Background(), dkey.Namespace, o, fetch)
	close(d.done)
}

// coerce represents a cached or shared value as T. Values rehydrated from
// the durable mirror arrive as json.RawMessage and are decoded here.
func coerce[T any](v any) (T, bool) {
	if t, ok := v.(T); ok {
		return t, true
	}
	if raw, ok := v.(json.RawMessage); ok {
		var t T
		if err := json.Unmarshal(raw, &t); err == nil {
			return t, true
		}
	}

	var zero T
	return zero, false
}
