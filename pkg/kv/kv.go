package kv

import "context"

// Store is the durable key-value collaborator persistent cache namespaces
// are mirrored into. Implementations must be safe for concurrent use.
// Values are opaque byte payloads; the caller owns their encoding.
type Store interface {
	// Get returns the value stored under key.
	// Returns ErrNotFound if the key does not exist.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Keys returns every key that starts with prefix, in lexical order.
	// Powers cleanup sweeps over persisted cache records.
	Keys(ctx context.Context, prefix string) ([]string, error)
}
