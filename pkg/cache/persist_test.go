package cache_test

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sunnychangai/ai-travel-agent-app-sub002/pkg/cache"
	"github.com/sunnychangai/ai-travel-agent-app-sub002/pkg/kv"
)

// countingKV counts durable writes passing through to the wrapped store.
type countingKV struct {
	kv.Store
	sets atomic.Int64
}

func (c *countingKV) Set(ctx context.Context, key string, value []byte) error {
	c.sets.Add(1)
	return c.Store.Set(ctx, key, value)
}

func newPersistentRegistry() *cache.Registry {
	return cache.NewRegistry(
		cache.Config{Namespace: "places", TTL: time.Hour, MaxSize: 100, Persistent: true},
		cache.Config{Namespace: "conversation", TTL: time.Hour, MaxSize: 50, IdentityScoped: true, Persistent: true},
		cache.Config{Namespace: "scratch", TTL: time.Hour, MaxSize: 10},
	)
}

// --- Persistence: debounced writes ---

func TestStore_Persistence_Debounce(t *testing.T) {
	t.Parallel()

	t.Run("rapid rewrites collapse into one durable write", func(t *testing.T) {
		t.Parallel()

		durable := &countingKV{Store: kv.NewMemory()}
		s := cache.New(newPersistentRegistry(),
			cache.WithPersistence(durable),
			cache.WithPersistWindow(30*time.Millisecond),
		)
		defer s.Close()

		ctx := context.Background()
		s.Set(ctx, "places", "geocode:paris", "first")
		s.Set(ctx, "places", "geocode:paris", "second")
		s.Set(ctx, "places", "geocode:paris", "third")

		require.Zero(t, durable.sets.Load(), "write should still be pending inside the window")

		time.Sleep(100 * time.Millisecond)

		require.Equal(t, int64(1), durable.sets.Load())

		data, err := durable.Get(ctx, "cache:places:absent:geocode:paris")
		require.NoError(t, err)
		require.Contains(t, string(data), `"third"`)
	})

	t.Run("distinct keys write independently", func(t *testing.T) {
		t.Parallel()

		durable := &countingKV{Store: kv.NewMemory()}
		s := cache.New(newPersistentRegistry(),
			cache.WithPersistence(durable),
			cache.WithPersistWindow(20*time.Millisecond),
		)
		defer s.Close()

		ctx := context.Background()
		s.Set(ctx, "places", "geocode:paris", "a")
		s.Set(ctx, "places", "geocode:rome", "b")

		time.Sleep(80 * time.Millisecond)

		require.Equal(t, int64(2), durable.sets.Load())
	})

	t.Run("flush commits pending writes immediately", func(t *testing.T) {
		t.Parallel()

		durable := &countingKV{Store: kv.NewMemory()}
		s := cache.New(newPersistentRegistry(),
			cache.WithPersistence(durable),
			cache.WithPersistWindow(time.Minute),
		)
		defer s.Close()

		ctx := context.Background()
		s.Set(ctx, "places", "geocode:paris", "value")

		require.NoError(t, s.Flush(ctx))
		require.Equal(t, int64(1), durable.sets.Load())
	})

	t.Run("close flushes pending writes", func(t *testing.T) {
		t.Parallel()

		durable := &countingKV{Store: kv.NewMemory()}
		s := cache.New(newPersistentRegistry(),
			cache.WithPersistence(durable),
			cache.WithPersistWindow(time.Minute),
		)

		s.Set(context.Background(), "places", "geocode:paris", "value")
		require.NoError(t, s.Close())

		require.Equal(t, int64(1), durable.sets.Load())
	})

	t.Run("delete cancels the pending write and drops the durable copy", func(t *testing.T) {
		t.Parallel()

		durable := &countingKV{Store: kv.NewMemory()}
		s := cache.New(newPersistentRegistry(),
			cache.WithPersistence(durable),
			cache.WithPersistWindow(30*time.Millisecond),
		)
		defer s.Close()

		ctx := context.Background()
		s.Set(ctx, "places", "geocode:paris", "value")
		s.Delete(ctx, "places", "geocode:paris")

		time.Sleep(80 * time.Millisecond)

		require.Zero(t, durable.sets.Load())
		_, err := durable.Get(ctx, "cache:places:absent:geocode:paris")
		require.ErrorIs(t, err, kv.ErrNotFound)
	})

	t.Run("namespaces without the persistent flag never touch the durable store", func(t *testing.T) {
		t.Parallel()

		durable := &countingKV{Store: kv.NewMemory()}
		s := cache.New(newPersistentRegistry(),
			cache.WithPersistence(durable),
			cache.WithPersistWindow(10*time.Millisecond),
		)
		defer s.Close()

		ctx := context.Background()
		s.Set(ctx, "scratch", "key", "value")
		require.NoError(t, s.Flush(ctx))

		time.Sleep(30 * time.Millisecond)

		require.Zero(t, durable.sets.Load())
	})
}

// --- Persistence: record keys ---

func TestStore_Persistence_RecordKeys(t *testing.T) {
	t.Parallel()

	t.Run("shared entries persist under the absent segment", func(t *testing.T) {
		t.Parallel()

		durable := kv.NewMemory()
		s := cache.New(newPersistentRegistry(), cache.WithPersistence(durable))
		defer s.Close()

		ctx := context.Background()
		s.Set(ctx, "places", "geocode:paris", "value")
		require.NoError(t, s.Flush(ctx))

		keys, err := durable.Keys(ctx, "")
		require.NoError(t, err)
		require.Equal(t, []string{"cache:places:absent:geocode:paris"}, keys)
	})

	t.Run("identity-scoped entries persist under their owner", func(t *testing.T) {
		t.Parallel()

		id := &activeIdentity{id: "u1"}
		durable := kv.NewMemory()
		s := cache.New(newPersistentRegistry(),
			cache.WithIdentityFunc(id.get),
			cache.WithPersistence(durable),
		)
		defer s.Close()

		ctx := context.Background()
		s.Set(ctx, "conversation", "draft", "bonjour")
		require.NoError(t, s.Flush(ctx))

		keys, err := durable.Keys(ctx, "")
		require.NoError(t, err)
		require.Equal(t, []string{"cache:conversation:u1:draft"}, keys)
	})
}

// --- Persistence: rehydration ---

func TestStore_Persistence_Rehydration(t *testing.T) {
	t.Parallel()

	t.Run("memory miss falls back to the durable mirror", func(t *testing.T) {
		t.Parallel()

		durable := kv.NewMemory()
		ctx := context.Background()

		first := cache.New(newPersistentRegistry(), cache.WithPersistence(durable))
		first.Set(ctx, "places", "geocode:paris", map[string]float64{"lat": 48.85, "lng": 2.35})
		require.NoError(t, first.Close())

		second := cache.New(newPersistentRegistry(), cache.WithPersistence(durable))
		defer second.Close()

		v, ok := second.Get(ctx, "places", "geocode:paris")
		require.True(t, ok)

		raw, isRaw := v.(json.RawMessage)
		require.True(t, isRaw, "rehydrated values surface as json.RawMessage")
		require.JSONEq(t, `{"lat":48.85,"lng":2.35}`, string(raw))

		v, ok = second.Get(ctx, "places", "geocode:paris")
		require.True(t, ok, "rehydrated entry should be back in memory")
		require.Equal(t, raw, v)
	})

	t.Run("rehydration respects identity scope", func(t *testing.T) {
		t.Parallel()

		durable := kv.NewMemory()
		ctx := context.Background()

		id := &activeIdentity{id: "u1"}
		first := cache.New(newPersistentRegistry(),
			cache.WithIdentityFunc(id.get),
			cache.WithPersistence(durable),
		)
		first.Set(ctx, "conversation", "draft", "bonjour")
		require.NoError(t, first.Close())

		stranger := &activeIdentity{id: "u2"}
		second := cache.New(newPersistentRegistry(),
			cache.WithIdentityFunc(stranger.get),
			cache.WithPersistence(durable),
		)
		defer second.Close()

		_, ok := second.Get(ctx, "conversation", "draft")
		require.False(t, ok, "another identity's record must not rehydrate")

		stranger.set("u1")
		v, ok := second.Get(ctx, "conversation", "draft")
		require.True(t, ok)
		require.JSONEq(t, `"bonjour"`, string(v.(json.RawMessage)))
	})

	t.Run("expired persisted record is deleted on load", func(t *testing.T) {
		t.Parallel()

		reg := cache.NewRegistry(cache.Config{Namespace: "blinks", TTL: 20 * time.Millisecond, Persistent: true})
		durable := kv.NewMemory()
		ctx := context.Background()

		first := cache.New(reg, cache.WithPersistence(durable))
		first.Set(ctx, "blinks", "key", "value")
		require.NoError(t, first.Close())

		time.Sleep(40 * time.Millisecond)

		second := cache.New(reg, cache.WithPersistence(durable))
		defer second.Close()

		_, ok := second.Get(ctx, "blinks", "key")
		require.False(t, ok)

		_, err := durable.Get(ctx, "cache:blinks:absent:key")
		require.ErrorIs(t, err, kv.ErrNotFound, "expired record should be swept")
	})

	t.Run("corrupted record is deleted and reads as a miss", func(t *testing.T) {
		t.Parallel()

		durable := kv.NewMemory()
		ctx := context.Background()

		require.NoError(t, durable.Set(ctx, "cache:places:absent:geocode:rome", []byte("{not json")))

		s := cache.New(newPersistentRegistry(), cache.WithPersistence(durable))
		defer s.Close()

		_, ok := s.Get(ctx, "places", "geocode:rome")
		require.False(t, ok)

		_, err := durable.Get(ctx, "cache:places:absent:geocode:rome")
		require.ErrorIs(t, err, kv.ErrNotFound, "corrupted record must never be returned again")
	})

	t.Run("record missing its write timestamp counts as corrupted", func(t *testing.T) {
		t.Parallel()

		durable := kv.NewMemory()
		ctx := context.Background()

		require.NoError(t, durable.Set(ctx, "cache:places:absent:geocode:oslo", []byte(`{"v":"ok"}`)))

		s := cache.New(newPersistentRegistry(), cache.WithPersistence(durable))
		defer s.Close()

		_, ok := s.Get(ctx, "places", "geocode:oslo")
		require.False(t, ok)

		_, err := durable.Get(ctx, "cache:places:absent:geocode:oslo")
		require.ErrorIs(t, err, kv.ErrNotFound)
	})
}

// --- Persistence: clears ---

func TestStore_Persistence_Clears(t *testing.T) {
	t.Parallel()

	t.Run("clearing a namespace drops its durable records", func(t *testing.T) {
		t.Parallel()

		durable := kv.NewMemory()
		s := cache.New(newPersistentRegistry(), cache.WithPersistence(durable))
		defer s.Close()

		ctx := context.Background()
		s.Set(ctx, "places", "a", 1)
		s.Set(ctx, "places", "b", 2)
		require.NoError(t, s.Flush(ctx))

		s.ClearNamespace(ctx, "places")

		keys, err := durable.Keys(ctx, "cache:places:")
		require.NoError(t, err)
		require.Empty(t, keys)
	})

	t.Run("clearing an identity drops only that identity's records", func(t *testing.T) {
		t.Parallel()

		id := &activeIdentity{id: "u1"}
		durable := kv.NewMemory()
		s := cache.New(newPersistentRegistry(),
			cache.WithIdentityFunc(id.get),
			cache.WithPersistence(durable),
		)
		defer s.Close()

		ctx := context.Background()
		s.Set(ctx, "conversation", "draft", "u1 draft")
		id.set("u2")
		s.Set(ctx, "conversation", "draft", "u2 draft")
		require.NoError(t, s.Flush(ctx))

		s.ClearForIdentity(ctx, "u1")

		keys, err := durable.Keys(ctx, "cache:conversation:")
		require.NoError(t, err)
		require.Equal(t, []string{"cache:conversation:u2:draft"}, keys)
	})
}
