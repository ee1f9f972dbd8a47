// Package kv defines the durable key-value contract the cache layer mirrors
// persistent namespaces into, together with in-memory and Redis-backed
// implementations.
//
// The contract is deliberately small: opaque byte payloads under string keys,
// plus prefix enumeration so the cache layer can run cleanup sweeps over its
// own records. Interpretation of the payload (the persisted entry envelope)
// belongs entirely to the caller; implementations never parse what they store.
//
// # Implementations
//
//   - [Memory]: mutex-guarded map for tests and single-process development.
//   - [Redis]: adapter over [github.com/redis/go-redis/v9], prefix
//     enumeration via SCAN. Use [Open] or [MustOpen] to dial a client with
//     retry and sane pool defaults, or wrap an existing client with
//     [NewRedis].
//
// # Usage
//
//	client := kv.MustOpen(ctx, os.Getenv("REDIS_URL"))
//	store := kv.NewRedis(client)
//
//	if err := store.Set(ctx, "cache:places:absent:geocode:paris", payload); err != nil {
//		return err
//	}
//
// # Error Handling
//
// [Store.Get] returns [ErrNotFound] for missing keys; deleting a missing key
// is not an error. Dial failures surface as [ErrConnectionFailed] joined with
// the underlying cause.
package kv
