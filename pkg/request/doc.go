// Package request coordinates upstream fetches for the assistant cache:
// cache-first reads, in-flight deduplication, optional debouncing, and
// bounded retries with jittered exponential backoff.
//
// # Lifecycle
//
// Do runs one coordinated request end to end:
//
//  1. Cache lookup. A valid cached value returns immediately. ForceFresh
//     bypasses the read (the result is still cached); NoStore bypasses
//     both the read and the write.
//  2. Deduplication. Callers sharing a dedup key join a single underlying
//     fetch and receive the same result. Settled operations linger for a
//     short grace window so near-simultaneous duplicates are absorbed too.
//  3. Debouncing. With WithDebounce, calls arriving inside the window
//     supersede each other; only the newest fetch executes when the window
//     closes, and the whole burst shares its result.
//  4. Retry. Transient failures are retried with exponential backoff and
//     jitter; permanent failures surface immediately.
//
// # Failure classes
//
// Retryable reports whether an error is worth another attempt: anything
// wrapping ErrTransient, an upstream StatusError with code 429, 502, 503
// or 504, or a net.Error. A timeout enforced by the transport's own client
// retries as a network failure even though it also matches
// context.DeadlineExceeded. Context cancellation itself is never retried,
// and a caller's cancellation never fails other callers sharing the
// operation: the underlying fetch is aborted only when its last waiter
// departs.
//
// # Typed results
//
// Do is generic over the result type. Values rehydrated from the durable
// cache mirror arrive as json.RawMessage and are decoded on demand, so a
// consumer reads the same type whether the value came from memory, from
// the mirror, or from the upstream fetch:
//
//	routes, err := request.Do(ctx, coord, "places", "route:lis-mad",
//		request.FetchJSON[[]Route](transport, request.Descriptor{
//			Method: http.MethodGet,
//			Target: "https://api.example.com/routes?from=LIS&to=MAD",
//		}),
//	)
package request
