// Package event is the synchronous publish/subscribe hub tying domain
// events to cache invalidation.
//
// The event set is closed: identity lifecycle (login, logout, switch),
// topic changes, working-set resets, and preference updates. Emitting an
// event first runs matching invalidation rules in registration order,
// clearing their target namespaces through an injected ClearFunc, and only
// then notifies listeners in subscription order. Listeners therefore always
// observe a cache already consistent with the event.
//
// A rule's optional Condition may run arbitrary side effects and return
// false to suppress the default clearing of its targets; the logout rule
// uses this to run a broader per-identity purge instead, since static
// targets cannot name "whatever the departing identity owned".
//
// Subscriptions are handles that own their removal:
//
//	sub := bus.Subscribe(event.TopicChange, func(ctx context.Context, e event.Event) {
//	    refreshSuggestions(ctx)
//	})
//	defer sub.Unsubscribe()
//
// Handlers run synchronously on the emitting goroutine; a panicking handler
// is recovered and logged without affecting other handlers or the emitter.
package event
