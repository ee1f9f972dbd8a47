package request_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/sunnychangai/ai-travel-agent-app-sub002/pkg/cache"
	"github.com/sunnychangai/ai-travel-agent-app-sub002/pkg/request"
)

func newTestRegistry() *cache.Registry {
	return cache.NewRegistry(
		cache.Config{Namespace: "places", TTL: time.Hour, MaxSize: 100},
		cache.Config{Namespace: "conversation", TTL: time.Hour, MaxSize: 50, IdentityScoped: true},
	)
}

func newTestStore(t *testing.T, opts ...cache.Option) *cache.Store {
	t.Helper()

	store := cache.New(newTestRegistry(), opts...)
	t.Cleanup(func() { require.NoError(t, store.Close()) })
	return store
}

// fastRetry keeps retry-heavy tests quick.
func fastRetry() request.RetryConfig {
	return request.RetryConfig{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Factor:       2,
	}
}

// --- Cache-first reads ---

func TestDoServesFromCache(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	coord := request.New(store)

	var calls atomic.Int64
	fetch := func(ctx context.Context) (string, error) {
		return fmt.Sprintf("result-%d", calls.Add(1)), nil
	}

	first, err := request.Do(context.Background(), coord, "places", "city:lisbon", fetch)
	require.NoError(t, err)
	require.Equal(t, "result-1", first)

	second, err := request.Do(context.Background(), coord, "places", "city:lisbon", fetch)
	require.NoError(t, err)
	require.Equal(t, "result-1", second)
	require.EqualValues(t, 1, calls.Load())
}

func TestDoForceFresh(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	coord := request.New(store)
	store.Set(context.Background(), "places", "city:porto", "stale")

	var calls atomic.Int64
	fresh, err := request.Do(context.Background(), coord, "places", "city:porto",
		func(ctx context.Context) (string, error) {
			calls.Add(1)
			return "fresh", nil
		},
		request.ForceFresh(),
	)
	require.NoError(t, err)
	require.Equal(t, "fresh", fresh)
	require.EqualValues(t, 1, calls.Load())

	// The bypass applies to the read only; the result still lands in cache.
	v, ok := store.Get(context.Background(), "places", "city:porto")
	require.True(t, ok)
	require.Equal(t, "fresh", v)
}

func TestDoNoStore(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	coord := request.New(store)
	store.Set(context.Background(), "places", "availability", "old")

	var calls atomic.Int64
	v, err := request.Do(context.Background(), coord, "places", "availability",
		func(ctx context.Context) (string, error) {
			calls.Add(1)
			return "new", nil
		},
		request.NoStore(),
	)
	require.NoError(t, err)
	require.Equal(t, "new", v)
	require.EqualValues(t, 1, calls.Load())

	cached, ok := store.Get(context.Background(), "places", "availability")
	require.True(t, ok)
	require.Equal(t, "old", cached)
}

func TestDoTypedResults(t *testing.T) {
	t.Parallel()

	type place struct {
		City string  `json:"city"`
		Lat  float64 `json:"lat"`
	}

	t.Run("decodes durable payloads on demand", func(t *testing.T) {
		t.Parallel()

		store := newTestStore(t)
		coord := request.New(store)
		store.Set(context.Background(), "places", "city:faro", json.RawMessage(`{"city":"faro","lat":37.02}`))

		var calls atomic.Int64
		got, err := request.Do(context.Background(), coord, "places", "city:faro",
			func(ctx context.Context) (place, error) {
				calls.Add(1)
				return place{}, errors.New("unexpected fetch")
			},
		)
		require.NoError(t, err)
		require.Equal(t, place{City: "faro", Lat: 37.02}, got)
		require.EqualValues(t, 0, calls.Load())
	})

	t.Run("mismatched cached types fall through to the fetch", func(t *testing.T) {
		t.Parallel()

		store := newTestStore(t)
		coord := request.New(store)
		store.Set(context.Background(), "places", "city:faro", 42)

		got, err := request.Do(context.Background(), coord, "places", "city:faro",
			func(ctx context.Context) (string, error) { return "refetched", nil },
		)
		require.NoError(t, err)
		require.Equal(t, "refetched", got)
	})
}

// --- Deduplication ---

func TestDoDeduplicatesConcurrentCallers(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	coord := request.New(store)

	var calls atomic.Int64
	release := make(chan struct{})
	fetch := func(ctx context.Context) (string, error) {
		calls.Add(1)
		<-release
		return "lisbon", nil
	}

	const callers = 5
	results := make([]string, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := range callers {
		wg.Go(func() {
			results[i], errs[i] = request.Do(context.Background(), coord, "places", "city:lisbon", fetch)
		})
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	require.EqualValues(t, 1, calls.Load())
	for i := range callers {
		require.NoError(t, errs[i])
		require.Equal(t, "lisbon", results[i])
	}
}

func TestDoGraceWindowAbsorbsDuplicates(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	coord := request.New(store, request.WithGrace(250*time.Millisecond))

	var calls atomic.Int64
	fetch := func(ctx context.Context) (string, error) {
		calls.Add(1)
		return "tile-42", nil
	}

	// NoStore keeps the cache out of the way so the second call must go
	// through the in-flight registry.
	first, err := request.Do(context.Background(), coord, "places", "tile:42", fetch, request.NoStore())
	require.NoError(t, err)
	require.Equal(t, "tile-42", first)

	second, err := request.Do(context.Background(), coord, "places", "tile:42", fetch, request.NoStore())
	require.NoError(t, err)
	require.Equal(t, "tile-42", second)
	require.EqualValues(t, 1, calls.Load())

	time.Sleep(400 * time.Millisecond)

	_, err = request.Do(context.Background(), coord, "places", "tile:42", fetch, request.NoStore())
	require.NoError(t, err)
	require.EqualValues(t, 2, calls.Load())
}

func TestDoCustomDedupKey(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	coord := request.New(store)

	var calls atomic.Int64
	release := make(chan struct{})
	fetch := func(ctx context.Context) (string, error) {
		calls.Add(1)
		<-release
		return "shared", nil
	}

	var wg sync.WaitGroup
	var a, b string
	wg.Go(func() { a, _ = request.Do(context.Background(), coord, "places", "key-a", fetch, request.WithDedupKey("query")) })
	wg.Go(func() { b, _ = request.Do(context.Background(), coord, "places", "key-b", fetch, request.WithDedupKey("query")) })

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	require.EqualValues(t, 1, calls.Load())
	require.Equal(t, "shared", a)
	require.Equal(t, "shared", b)
}

// --- Debouncing ---

func TestDoDebounceCoalescesBursts(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	coord := request.New(store)

	var calls atomic.Int64
	fetchFor := func(text string) request.Fetch[string] {
		return func(ctx context.Context) (string, error) {
			calls.Add(1)
			return "reply to " + text, nil
		}
	}

	queries := []string{"plan a trip", "plan a trip to p", "plan a trip to portugal"}
	results := make([]string, len(queries))

	var wg sync.WaitGroup
	for i, text := range queries {
		wg.Go(func() {
			results[i], _ = request.Do(context.Background(), coord, "conversation", "draft:"+text,
				fetchFor(text),
				request.WithDebounce("draft", 150*time.Millisecond),
			)
		})
		time.Sleep(30 * time.Millisecond)
	}
	wg.Wait()

	// Only the request that survived the window executed; the whole burst
	// shares its result.
	require.EqualValues(t, 1, calls.Load())
	for i := range results {
		require.Equal(t, "reply to plan a trip to portugal", results[i])
	}
}

// --- Retry policy ---

func TestDoRetryPolicy(t *testing.T) {
	t.Parallel()

	t.Run("recovers after transient failures", func(t *testing.T) {
		t.Parallel()

		store := newTestStore(t)
		coord := request.New(store, request.WithRetryDefaults(fastRetry()))

		var calls atomic.Int64
		v, err := request.Do(context.Background(), coord, "places", "flaky",
			func(ctx context.Context) (string, error) {
				if calls.Add(1) < 3 {
					return "", fmt.Errorf("upstream hiccup: %w", request.ErrTransient)
				}
				return "recovered", nil
			},
		)
		require.NoError(t, err)
		require.Equal(t, "recovered", v)
		require.EqualValues(t, 3, calls.Load())
	})

	t.Run("gives up after the attempt budget", func(t *testing.T) {
		t.Parallel()

		store := newTestStore(t)
		coord := request.New(store, request.WithRetryDefaults(fastRetry()))

		var calls atomic.Int64
		_, err := request.Do(context.Background(), coord, "places", "down",
			func(ctx context.Context) (string, error) {
				calls.Add(1)
				return "", &request.StatusError{Code: 503, Status: "503 Service Unavailable"}
			},
		)
		var statusErr *request.StatusError
		require.ErrorAs(t, err, &statusErr)
		require.Equal(t, 503, statusErr.Code)
		require.EqualValues(t, 3, calls.Load())
	})

	t.Run("recovers after a transport timeout", func(t *testing.T) {
		t.Parallel()

		// First hit outlasts the client timeout; later hits answer at once.
		var hits atomic.Int64
		r := chi.NewRouter()
		r.Get("/route", func(w http.ResponseWriter, req *http.Request) {
			if hits.Add(1) == 1 {
				time.Sleep(400 * time.Millisecond)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]string{"leg": "lisbon-porto"})
		})
		srv := httptest.NewServer(r)
		t.Cleanup(srv.Close)

		store := newTestStore(t)
		coord := request.New(store, request.WithRetryDefaults(fastRetry()))

		transport := request.NewHTTPTransport(&http.Client{Timeout: 100 * time.Millisecond})
		v, err := request.Do(context.Background(), coord, "places", "route:lis-porto",
			request.FetchJSON[map[string]string](transport, request.Descriptor{
				Method: http.MethodGet,
				Target: srv.URL + "/route",
			}),
		)
		require.NoError(t, err)
		require.Equal(t, map[string]string{"leg": "lisbon-porto"}, v)
		require.EqualValues(t, 2, hits.Load())
	})

	t.Run("permanent failures are not retried", func(t *testing.T) {
		t.Parallel()

		store := newTestStore(t)
		coord := request.New(store, request.WithRetryDefaults(fastRetry()))

		var calls atomic.Int64
		_, err := request.Do(context.Background(), coord, "places", "bad-request",
			func(ctx context.Context) (string, error) {
				calls.Add(1)
				return "", &request.StatusError{Code: 404, Status: "404 Not Found"}
			},
		)
		require.Error(t, err)
		require.EqualValues(t, 1, calls.Load())
	})

	t.Run("per-call override narrows the budget", func(t *testing.T) {
		t.Parallel()

		store := newTestStore(t)
		coord := request.New(store, request.WithRetryDefaults(fastRetry()))

		var calls atomic.Int64
		_, err := request.Do(context.Background(), coord, "places", "one-shot",
			func(ctx context.Context) (string, error) {
				calls.Add(1)
				return "", fmt.Errorf("still down: %w", request.ErrTransient)
			},
			request.WithRetry(request.RetryConfig{MaxAttempts: 1}),
		)
		require.ErrorIs(t, err, request.ErrTransient)
		require.EqualValues(t, 1, calls.Load())
	})

	t.Run("failures are not cached", func(t *testing.T) {
		t.Parallel()

		store := newTestStore(t)
		coord := request.New(store, request.WithRetryDefaults(fastRetry()))

		_, err := request.Do(context.Background(), coord, "places", "broken",
			func(ctx context.Context) (string, error) {
				return "", errors.New("bad payload")
			},
		)
		require.Error(t, err)

		_, ok := store.Get(context.Background(), "places", "broken")
		require.False(t, ok)
	})
}

// --- Cancellation ---

func TestDoCancellation(t *testing.T) {
	t.Parallel()

	t.Run("departing caller does not abort the shared fetch", func(t *testing.T) {
		t.Parallel()

		store := newTestStore(t)
		coord := request.New(store)

		release := make(chan struct{})
		aborted := make(chan struct{}, 1)
		fetch := func(ctx context.Context) (string, error) {
			select {
			case <-ctx.Done():
				aborted <- struct{}{}
				return "", ctx.Err()
			case <-release:
				return "survived", nil
			}
		}

		ctx1, cancel1 := context.WithCancel(context.Background())
		var err1, err2 error
		var v2 string

		var wg sync.WaitGroup
		wg.Go(func() { _, err1 = request.Do(ctx1, coord, "places", "shared", fetch) })
		wg.Go(func() { v2, err2 = request.Do(context.Background(), coord, "places", "shared", fetch) })

		time.Sleep(50 * time.Millisecond)
		cancel1()
		time.Sleep(50 * time.Millisecond)
		close(release)
		wg.Wait()

		require.ErrorIs(t, err1, context.Canceled)
		require.NoError(t, err2)
		require.Equal(t, "survived", v2)
		require.Empty(t, aborted)
	})

	t.Run("last departing caller aborts the fetch", func(t *testing.T) {
		t.Parallel()

		store := newTestStore(t)
		coord := request.New(store)

		observed := make(chan error, 1)
		fetch := func(ctx context.Context) (string, error) {
			<-ctx.Done()
			observed <- ctx.Err()
			return "", ctx.Err()
		}

		ctx, cancel := context.WithCancel(context.Background())
		var err error
		var wg sync.WaitGroup
		wg.Go(func() { _, err = request.Do(ctx, coord, "places", "solo", fetch) })

		time.Sleep(50 * time.Millisecond)
		cancel()
		wg.Wait()
		require.ErrorIs(t, err, context.Canceled)

		select {
		case e := <-observed:
			require.ErrorIs(t, e, context.Canceled)
		case <-time.After(time.Second):
			t.Fatal("fetch was never aborted")
		}

		// The aborted flight must not satisfy later callers.
		time.Sleep(50 * time.Millisecond)
		var calls atomic.Int64
		v, err := request.Do(context.Background(), coord, "places", "solo",
			func(ctx context.Context) (string, error) {
				calls.Add(1)
				return "fresh", nil
			},
		)
		require.NoError(t, err)
		require.Equal(t, "fresh", v)
		require.EqualValues(t, 1, calls.Load())
	})
}

// --- Identity transitions ---

func TestDoIdentityChangeSkipsScopedWrite(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	current := "traveler-1"
	identity := func() string {
		mu.Lock()
		defer mu.Unlock()
		return current
	}
	setIdentity := func(id string) {
		mu.Lock()
		defer mu.Unlock()
		current = id
	}

	store := newTestStore(t, cache.WithIdentityFunc(identity))
	coord := request.New(store, request.WithIdentityFunc(identity))

	v, err := request.Do(context.Background(), coord, "conversation", "draft",
		func(ctx context.Context) (string, error) {
			setIdentity("traveler-2")
			return "reply for traveler-1", nil
		},
	)
	require.NoError(t, err)
	require.Equal(t, "reply for traveler-1", v)

	// The response never lands in the identity-scoped namespace, under
	// either identity.
	_, ok := store.Get(context.Background(), "conversation", "draft")
	require.False(t, ok)
	setIdentity("traveler-1")
	_, ok = store.Get(context.Background(), "conversation", "draft")
	require.False(t, ok)

	// Unscoped namespaces are unaffected by the transition.
	v, err = request.Do(context.Background(), coord, "places", "city:porto",
		func(ctx context.Context) (string, error) {
			setIdentity("traveler-3")
			return "porto", nil
		},
	)
	require.NoError(t, err)
	require.Equal(t, "porto", v)
	_, ok = store.Get(context.Background(), "places", "city:porto")
	require.True(t, ok)
}
