package bassaes67

import (
	"sync"

	"github.com/casterplay/BassAES67-sub000/internal/stats"
)

// StreamRegistry is the process-wide, write-mostly-at-start handle-to-
// Stream lookup. It exists only for out-of-band queries —
// stats polling, config reads by handle, the Prometheus collector's
// scrape pass. The audio callback path never touches it: the Shim hands
// the host a *Stream pointer directly at pull-callback registration, and
// the host passes that same pointer back on every pull.
type StreamRegistry struct {
	mu      sync.RWMutex
	streams map[uint64]*Stream
}

// NewStreamRegistry constructs an empty registry.
func NewStreamRegistry() *StreamRegistry {
	return &StreamRegistry{streams: make(map[uint64]*Stream)}
}

// Register adds s under its own Handle. Replaces any existing entry for
// that handle without complaint. Handles are not chosen by the host: the
// Shim's CreateStream assigns each Stream the next value of its counter,
// and uniqueness is not checked here.
func (r *StreamRegistry) Register(s *Stream) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.streams[s.Handle] = s
}

// Unregister removes handle. A no-op if the handle is not present.
func (r *StreamRegistry) Unregister(handle uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.streams, handle)
}

// Lookup resolves handle to its Stream, for out-of-band config/stats
// calls keyed by handle.
func (r *StreamRegistry) Lookup(handle uint64) (*Stream, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.streams[handle]
	return s, ok
}

// Len reports the number of registered streams.
func (r *StreamRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.streams)
}

// ForEach satisfies internal/stats.Registry for the Prometheus collector:
// it iterates every live stream's handle and stats block under the read
// lock, once per scrape pass.
func (r *StreamRegistry) ForEach(fn func(handle uint64, s *stats.Stats)) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for handle, stream := range r.streams {
		fn(handle, stream.stats)
	}
}
