// Package cache implements the namespaced client-side cache of the travel
// assistant: TTL expiry, identity scoping, size-bound eviction, and a
// debounced durable mirror for namespaces that must survive restarts.
//
// # Namespaces
//
// The cache is partitioned into named namespaces ("conversation",
// "places", ...), each declared up front via [Config] in a [Registry]:
// default TTL, size bound, identity scoping, and persistence. Every store
// operation consults the registry first; operating on an unregistered
// namespace is a logged no-op or miss rather than an error, so a missing
// registration degrades a feature to "no caching" instead of breaking it.
//
// # Validity
//
// An entry is returned by [Store.Get] only while it is valid: not past its
// effective TTL (entry override or namespace default), and, for
// identity-scoped namespaces, owned by the identity active at the time of
// the read. Invalid entries are purged lazily on read and reported as
// misses. The active identity is supplied by a callback (WithIdentityFunc)
// and consulted per call, never cached, so an identity switch during an
// in-flight operation cannot leak entries across identities.
//
// # Eviction
//
// When an insert would exceed a namespace's MaxSize, the oldest fifth of
// its entries by write time (rounded up) is evicted in one batch, keeping
// the most recently written entries and amortizing the scan cost across
// bursts of inserts.
//
// # Persistence
//
// Namespaces marked Persistent are mirrored into a durable key-value store
// (see [github.com/sunnychangai/ai-travel-agent-app-sub002/pkg/kv]) under
// keys of the form
//
//	cache:{namespace}:{identity-or-absent}:{key}
//
// Writes are debounced: rapid rewrites of one record inside the window
// collapse into a single durable write. [Store.Flush] commits everything
// pending and must be called on teardown (Close does it automatically).
// Reads fall back to the mirror on memory misses, collapsing concurrent
// loads of the same record into one; a record that fails to decode is
// deleted and treated as a miss, never surfaced as an error. Values
// rehydrated from the mirror carry json.RawMessage payloads until a typed
// consumer decodes them.
//
// # Diagnostics
//
// Per-namespace hits, misses, invalidations, evictions, and entry counts
// are recorded in a stats.Recorder, exposed read-only via [Store.Stats];
// nothing consults them for correctness.
//
// # Usage
//
//	reg := cache.NewRegistry(
//	    cache.Config{Namespace: "conversation", TTL: time.Hour, MaxSize: 50, IdentityScoped: true, Persistent: true},
//	    cache.Config{Namespace: "places", TTL: 24 * time.Hour, MaxSize: 500, Persistent: true},
//	)
//	store := cache.New(reg,
//	    cache.WithIdentityFunc(currentUser),
//	    cache.WithPersistence(kv.NewMemory()),
//	)
//	defer store.Close()
//
//	store.Set(ctx, "places", "geocode:paris", coords)
//	if v, ok := store.Get(ctx, "places", "geocode:paris"); ok {
//	    // hit
//	}
package cache
