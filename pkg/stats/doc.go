// Package stats accumulates per-namespace cache diagnostics: hits, misses,
// invalidations, evictions, entry counts, and last-access timestamps.
//
// Counters are observability data only. Nothing in the cache or request
// layers consults them for correctness decisions, and snapshots are
// detached copies that never expose internal state.
package stats
