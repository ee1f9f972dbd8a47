package stats

import (
	"sync"
	"time"
)

// Namespace holds the diagnostic counters for a single cache namespace.
type Namespace struct {
	Hits          int64     `json:"hits"`
	Misses        int64     `json:"misses"`
	Invalidations int64     `json:"invalidations"`
	Evictions     int64     `json:"evictions"`
	Entries       int       `json:"entries"`
	LastAccess    time.Time `json:"last_access,omitzero"`
}

// HitRate returns the fraction of reads served from cache, in [0, 1].
func (n Namespace) HitRate() float64 {
	total := n.Hits + n.Misses
	if total == 0 {
		return 0
	}
	return float64(n.Hits) / float64(total)
}

// Recorder accumulates per-namespace counters. Safe for concurrent use.
type Recorder struct {
	mu         sync.Mutex
	namespaces map[string]*Namespace
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{namespaces: make(map[string]*Namespace)}
}

// Hit records a cache hit and refreshes the last-access timestamp.
func (r *Recorder) Hit(namespace string) {
	r.update(namespace, func(n *Namespace) {
		n.Hits++
		n.LastAccess = time.Now()
	})
}

// Miss records a cache miss and refreshes the last-access timestamp.
func (r *Recorder) Miss(namespace string) {
	r.update(namespace, func(n *Namespace) {
		n.Misses++
		n.LastAccess = time.Now()
	})
}

// Invalidation records one entry removed by an explicit delete or clear.
func (r *Recorder) Invalidation(namespace string) {
	r.update(namespace, func(n *Namespace) {
		n.Invalidations++
	})
}

// Eviction records one entry removed by the size-bound eviction policy.
func (r *Recorder) Eviction(namespace string) {
	r.update(namespace, func(n *Namespace) {
		n.Evictions++
	})
}

// SetEntryCount records the current number of live entries in a namespace.
func (r *Recorder) SetEntryCount(namespace string, count int) {
	r.update(namespace, func(n *Namespace) {
		n.Entries = count
	})
}

// Namespace returns a copy of the counters for one namespace.
// The second return value reports whether the namespace has any activity.
func (r *Recorder) Namespace(namespace string) (Namespace, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.namespaces[namespace]
	if !ok {
		return Namespace{}, false
	}
	return *n, true
}

// Snapshot returns a detached copy of all per-namespace counters.
func (r *Recorder) Snapshot() map[string]Namespace {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]Namespace, len(r.namespaces))
	for name, n := range r.namespaces {
		out[name] = *n
	}
	return out
}

func (r *Recorder) update(namespace string, fn func(*Namespace)) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.namespaces[namespace]
	if !ok {
		n = &Namespace{}
		r.namespaces[namespace] = n
	}
	fn(n)
}
