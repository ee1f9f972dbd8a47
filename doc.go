// Package assistant is the client-side cache and request-coordination
// layer for a travel-planning assistant: conversation state, geocoded
// places, recommendations, and itineraries are cached in namespaced
// partitions with TTLs, size caps, identity scoping, and an optional
// durable mirror, while upstream fetches are deduplicated, debounced, and
// retried.
//
// The package is a facade: construction and options live here, the
// implementation lives in pkg/cache, pkg/event, pkg/request, pkg/kv, and
// pkg/stats, wired together by an explicit client object rather than a
// process-wide singleton. Tests construct isolated clients.
//
// # Quick Start
//
// Create a client with assistant.New(), point identity-scoped reads and
// writes at a traveler with SetActiveIdentity, and fetch through Request:
//
//	client := assistant.New(
//	    assistant.WithLogger(logger.New()),
//	    assistant.WithDurable(kv.NewRedis(rdb)),
//	)
//	defer client.Close()
//
//	client.SetActiveIdentity(ctx, travelerID)
//
//	coords, err := assistant.Request(ctx, client, assistant.NamespacePlaces,
//	    "geocode:porto",
//	    func(ctx context.Context) (Coordinates, error) {
//	        return mapsAPI.Geocode(ctx, "porto")
//	    },
//	)
//
// The second identical call is a cache hit; two simultaneous calls share
// one fetch; a transient upstream failure is retried with backoff.
//
// # Namespaces
//
// Every entry lives in a registered namespace that fixes its TTL, size
// cap, identity scoping, and persistence. DefaultNamespaces covers the
// assistant's standard layout; WithNamespaces and LoadNamespaces replace
// it with explicit configs or a YAML manifest:
//
//	configs, _ := assistant.LoadNamespaces(manifests, "namespaces.yaml")
//	client := assistant.New(assistant.WithNamespaces(configs...))
//
// # Identity
//
// SetActiveIdentity is the only identity mutation point. Logging in,
// switching, and logging out emit the corresponding lifecycle events, and
// the standard invalidation rules clear everything owned by a departing
// identity before any listener observes the transition.
//
// # Events
//
// Emit publishes one of the closed set of lifecycle events. Invalidation
// rules run first, listeners second, so a listener reacting to
// TopicChange already sees conversation and recommendations empty:
//
//	client.On(assistant.TopicChange, func(ctx context.Context, e assistant.Event) {
//	    prefetchDestination(ctx, e.Payload)
//	})
//	client.Emit(ctx, assistant.TopicChange, newDestination)
//
// # Durability
//
// With WithDurable, persistent namespaces mirror writes into a key-value
// store behind a debounce window and flush on Close. Reads fall back to
// the mirror after a restart; corrupted records are deleted and reported
// as misses, never as errors.
package assistant
