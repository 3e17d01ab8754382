// Package jitterring implements the lock-free single-producer/single-
// consumer sample ring that decouples the RTP receive path (producer,
// packet-paced) from the host audio pull (consumer, callback-paced).
//
// Exactly one goroutine may call Push and exactly one goroutine may call
// Pop; the two communicate only through the atomic head/tail counters
// below, with no locks and no allocation on the hot path.
package jitterring

import "sync/atomic"

// Ring is a bounded SPSC queue of interleaved float32 samples, sized to a
// whole number of audio frames (capacity is always a multiple of
// Channels). Pushes that would split an audio frame are refused outright
// — partial writes would desynchronize channel interleaving for every
// sample after them, so there is no partial-push mode.
//
// Ring is created at stream start and destroyed at stream stop; it is
// never resized.
type Ring struct {
	buf      []float32
	capacity uint64 // samples; multiple of channels
	channels int

	// head is the next write index (mod capacity), advanced only by the
	// producer. tail is the next read index (mod capacity), advanced only
	// by the consumer. Both are monotonically increasing counts, not
	// wrapped indices — capacity is applied via modulo at access time so
	// occupancy = head - tail never needs to special-case wraparound.
	head atomic.Uint64
	tail atomic.Uint64

	packetsDropped atomic.Uint64
}

// New creates a Ring with the given capacity in samples and channel count.
// capacityHint is rounded down to the nearest multiple of channels (and up
// to at least one frame).
func New(capacityHint int, channels int) *Ring {
	if channels < 1 {
		channels = 1
	}
	frames := capacityHint / channels
	if frames < 1 {
		frames = 1
	}
	capacity := uint64(frames * channels)
	return &Ring{
		buf:      make([]float32, capacity),
		capacity: capacity,
		channels: channels,
	}
}

// Capacity returns the ring's fixed capacity in samples.
func (r *Ring) Capacity() int { return int(r.capacity) }

// Channels returns the channel count the ring was created with.
func (r *Ring) Channels() int { return r.channels }

// Occupancy returns the number of samples currently buffered. Safe to call
// from either the producer or the consumer (it loads both atomics, so it
// is only an instantaneous snapshot when called from neither — callers on
// the hot path should prefer the occupancy value they already derive
// locally from their own-side atomic plus the freshest read of the other
// side, exactly as PushSlice/PopSlice do internally).
func (r *Ring) Occupancy() int {
	head := r.head.Load()
	tail := r.tail.Load()
	return int(head - tail)
}

// Vacancy returns the number of free sample slots.
func (r *Ring) Vacancy() int {
	return int(r.capacity) - r.Occupancy()
}

// PushSlice attempts to push all of samples into the ring. samples' length
// must be a multiple of Channels(); if it is not, or if there is not
// enough vacancy for the whole slice, the entire push is refused (false)
// and PacketsDropped is incremented — this is the whole-frame-drop
// discipline: a partial push would misalign
// the channel interleave for every sample read afterward.
//
// Producer-only; must not be called concurrently with another PushSlice.
func (r *Ring) PushSlice(samples []float32) bool {
	n := len(samples)
	if n == 0 {
		return true
	}
	if n%r.channels != 0 {
		r.packetsDropped.Add(1)
		return false
	}

	head := r.head.Load()
	tail := r.tail.Load()
	occupancy := head - tail
	vacancy := r.capacity - occupancy
	if uint64(n) > vacancy {
		r.packetsDropped.Add(1)
		return false
	}

	cap64 := r.capacity
	for i := 0; i < n; i++ {
		r.buf[(head+uint64(i))%cap64] = samples[i]
	}
	r.head.Store(head + uint64(n))
	return true
}

// PopSlice copies up to len(dst) samples into dst, returning the number of
// samples actually written. It may return fewer than requested if the
// ring is short on data; the caller is responsible for filling the
// remainder with silence.
//
// Consumer-only; must not be called concurrently with another PopSlice.
func (r *Ring) PopSlice(dst []float32) int {
	want := len(dst)
	if want == 0 {
		return 0
	}

	head := r.head.Load()
	tail := r.tail.Load()
	occupancy := head - tail
	n := uint64(want)
	if n > occupancy {
		n = occupancy
	}
	if n == 0 {
		return 0
	}

	cap64 := r.capacity
	for i := uint64(0); i < n; i++ {
		dst[i] = r.buf[(tail+i)%cap64]
	}
	r.tail.Store(tail + n)
	return int(n)
}

// PacketsDropped returns the count of pushes refused for insufficient
// vacancy or misaligned length.
func (r *Ring) PacketsDropped() uint64 {
	return r.packetsDropped.Load()
}
