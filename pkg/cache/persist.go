package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/sunnychangai/ai-travel-agent-app-sub002/pkg/kv"
)

// durableWriteTimeout bounds background commits so a stalled collaborator
// cannot pin goroutines forever.
const durableWriteTimeout = 5 * time.Second

// record is the JSON envelope written to the durable store.
type record struct {
	Value        json.RawMessage   `json:"v"`
	StoredAt     time.Time         `json:"at"`
	TTL          time.Duration     `json:"ttl,omitempty"`
	Owner        string            `json:"owner,omitempty"`
	Dependencies []string          `json:"deps,omitempty"`
	Metadata     map[string]string `json:"meta,omitempty"`
}

func encodeRecord(e *entry) ([]byte, error) {
	raw, err := json.Marshal(e.value)
	if err != nil {
		return nil, err
	}
	return json.Marshal(record{
		Value:        raw,
		StoredAt:     e.storedAt,
		TTL:          e.ttl,
		Owner:        e.owner,
		Dependencies: e.dependencies,
		Metadata:     e.metadata,
	})
}

func decodeRecord(data []byte) (*entry, error) {
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, errors.Join(ErrCorruptedRecord, err)
	}
	if len(rec.Value) == 0 || rec.StoredAt.IsZero() {
		return nil, ErrCorruptedRecord
	}

	return &entry{
		value:        rec.Value,
		storedAt:     rec.StoredAt,
		ttl:          rec.TTL,
		owner:        rec.Owner,
		dependencies: rec.Dependencies,
		metadata:     rec.Metadata,
	}, nil
}

// persister mirrors entries into the durable store, debouncing rapid
// rewrites of the same record key into a single write.
type persister struct {
	store  kv.Store
	window time.Duration
	logger *slog.Logger

	mu      sync.Mutex
	pending map[string]*pendingWrite
	closed  bool
}

type pendingWrite struct {
	timer   *time.Timer
	payload []byte
}

func newPersister(store kv.Store, window time.Duration, logger *slog.Logger) *persister {
	return &persister{
		store:   store,
		window:  window,
		logger:  logger,
		pending: make(map[string]*pendingWrite),
	}
}

// enqueue schedules a durable write. A pending write for the same record
// key is superseded: its payload is replaced and its timer re-armed.
func (p *persister) enqueue(key string, e *entry) {
	payload, err := encodeRecord(e)
	if err != nil {
		p.logger.Warn("cache: failed to encode persisted record", "key", key, "error", err)
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	if pw, ok := p.pending[key]; ok {
		pw.payload = payload
		pw.timer.Reset(p.window)
		return
	}

	pw := &pendingWrite{payload: payload}
	pw.timer = time.AfterFunc(p.window, func() { p.commit(key) })
	p.pending[key] = pw
}

func (p *persister) commit(key string) {
	p.mu.Lock()
	pw, ok := p.pending[key]
	if ok {
		delete(p.pending, key)
	}
	p.mu.Unlock()
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), durableWriteTimeout)
	defer cancel()

	if err := p.store.Set(ctx, key, pw.payload); err != nil {
		p.logger.Warn("cache: durable write failed", "key", key, "error", err)
	}
}

// remove cancels any pending write for key and deletes its durable copy.
func (p *persister) remove(ctx context.Context, key string) {
	p.mu.Lock()
	if pw, ok := p.pending[key]; ok {
		pw.timer.Stop()
		delete(p.pending, key)
	}
	closed := p.closed
	p.mu.Unlock()

	if closed {
		return
	}
	if err := p.store.Delete(ctx, key); err != nil {
		p.logger.WarnContext(ctx, "cache: durable delete failed", "key", key, "error", err)
	}
}

// removePrefix drops pending and durable records under a key prefix.
func (p *persister) removePrefix(ctx context.Context, prefix string) {
	p.mu.Lock()
	for key, pw := range p.pending {
		if strings.HasPrefix(key, prefix) {
			pw.timer.Stop()
			delete(p.pending, key)
		}
	}
	closed := p.closed
	p.mu.Unlock()

	if closed {
		return
	}

	keys, err := p.store.Keys(ctx, prefix)
	if err != nil {
		p.logger.WarnContext(ctx, "cache: durable enumeration failed", "prefix", prefix, "error", err)
		return
	}
	for _, key := range keys {
		if err := p.store.Delete(ctx, key); err != nil {
			p.logger.WarnContext(ctx, "cache: durable delete failed", "key", key, "error", err)
		}
	}
}

// load reads one raw record from the durable store.
func (p *persister) load(ctx context.Context, key string) ([]byte, error) {
	return p.store.Get(ctx, key)
}

// flush commits every pending write immediately.
func (p *persister) flush(ctx context.Context) error {
	p.mu.Lock()
	batch := make(map[string][]byte, len(p.pending))
	for key, pw := range p.pending {
		pw.timer.Stop()
		batch[key] = pw.payload
	}
	clear(p.pending)
	p.mu.Unlock()

	var errs []error
	for key, payload := range batch {
		if err := p.store.Set(ctx, key, payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// close flushes pending writes and rejects further work. Idempotent.
func (p *persister) close(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	return p.flush(ctx)
}
