package cache

import "errors"

// Sentinel errors for cache operations.
var (
	// ErrNamespaceNotRegistered marks an operation on a namespace the
	// registry does not know. It is logged and swallowed, never returned
	// to callers, so a missing registration degrades to "no caching".
	ErrNamespaceNotRegistered = errors.New("cache: namespace not registered")

	// ErrCorruptedRecord marks a persisted record that failed to decode.
	// The record is deleted and the read is reported as a miss.
	ErrCorruptedRecord = errors.New("cache: corrupted persisted record")

	// ErrClosed is returned when an operation is attempted on a closed store.
	ErrClosed = errors.New("cache: store is closed")
)
