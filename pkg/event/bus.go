package event

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"
)

// Type identifies one of the closed set of domain events the cache layer
// reacts to.
type Type string

const (
	IdentityLogin     Type = "identity-login"
	IdentityLogout    Type = "identity-logout"
	IdentitySwitch    Type = "identity-switch"
	TopicChange       Type = "topic-change"
	WorkingSetReset   Type = "working-set-reset"
	PreferencesUpdate Type = "preferences-update"
)

// Event carries one emitted occurrence to rules and listeners.
type Event struct {
	Type    Type
	Payload any
	At      time.Time
}

// IdentityTransition is the payload attached to the identity lifecycle
// events. Previous is empty on login, Current is empty on logout.
type IdentityTransition struct {
	Previous string
	Current  string
}

// Handler consumes events. Handlers run synchronously on the emitting
// goroutine in subscription order.
type Handler func(ctx context.Context, e Event)

// Rule maps a trigger event to cache namespaces to clear when it fires.
// A non-nil Condition may run side effects of its own and return false to
// suppress the default clearing of Targets. A panicking condition counts
// as allowing the clear: an extra invalidation is always safe, stale data
// is not.
type Rule struct {
	Trigger   Type
	Targets   []string
	Condition func(ctx context.Context, e Event) bool
}

// ClearFunc clears one cache namespace. Injected at construction so the
// bus never depends on the cache implementation.
type ClearFunc func(ctx context.Context, namespace string)

// Subscription is the handle to one registered listener and owns its
// removal; there is no remove-by-callback.
type Subscription struct {
	bus     *Bus
	id      uint64
	typ     Type
	handler Handler
	once    sync.Once
}

// Unsubscribe removes the listener. Safe to call more than once.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.bus.remove(s.typ, s.id)
	})
}

// Option configures a Bus.
type Option func(*Bus)

// WithLogger sets the logger for recovered handler panics.
// Default: discard.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bus) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// Bus fans events out to invalidation rules and listeners. Rules always
// run before listeners. Safe for concurrent use.
type Bus struct {
	clear  ClearFunc
	logger *slog.Logger

	mu     sync.Mutex
	rules  []Rule
	subs   map[Type][]*Subscription
	nextID uint64
}

// New creates a bus that clears cache namespaces through clear when
// invalidation rules fire. A nil clear leaves rule targets inert.
func New(clear ClearFunc, opts ...Option) *Bus {
	b := &Bus{
		clear:  clear,
		logger: slog.New(slog.DiscardHandler),
		subs:   make(map[Type][]*Subscription),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers a listener for one event type and returns the handle
// that removes it.
func (b *Bus) Subscribe(typ Type, h Handler) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	sub := &Subscription{bus: b, id: b.nextID, typ: typ, handler: h}
	b.subs[typ] = append(b.subs[typ], sub)
	return sub
}

// AddRule registers an invalidation rule. Rules fire in registration order.
func (b *Bus) AddRule(r Rule) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rules = append(b.rules, r)
}

// Emit runs invalidation rules matching the event type, then notifies
// listeners. It returns only after every rule and listener has run.
func (b *Bus) Emit(ctx context.Context, typ Type, payload any) {
	e := Event{Type: typ, Payload: payload, At: time.Now()}

	b.mu.Lock()
	rules := slices.Clone(b.rules)
	subs := slices.Clone(b.subs[typ])
	b.mu.Unlock()

	for _, rule := range rules {
		if rule.Trigger != typ {
			continue
		}
		b.applyRule(ctx, rule, e)
	}
	for _, sub := range subs {
		b.invoke(ctx, sub.handler, e)
	}
}

func (b *Bus) applyRule(ctx context.Context, r Rule, e Event) {
	if r.Condition != nil && !b.evalCondition(ctx, r, e) {
		return
	}
	if b.clear == nil {
		return
	}
	for _, namespace := range r.Targets {
		b.clear(ctx, namespace)
	}
}

func (b *Bus) evalCondition(ctx context.Context, r Rule, e Event) (allow bool) {
	defer func() {
		if rec := recover(); rec != nil {
			b.logger.ErrorContext(ctx, "event: rule condition panicked", "event", e.Type, "panic", rec)
			allow = true
		}
	}()
	return r.Condition(ctx, e)
}

func (b *Bus) invoke(ctx context.Context, h Handler, e Event) {
	defer func() {
		if rec := recover(); rec != nil {
			b.logger.ErrorContext(ctx, "event: listener panicked", "event", e.Type, "panic", rec)
		}
	}()
	h(ctx, e)
}

func (b *Bus) remove(typ Type, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.subs[typ] = slices.DeleteFunc(b.subs[typ], func(s *Subscription) bool {
		return s.id == id
	})
}
