// Package stats implements per-stream atomic counters and the periodic
// snapshot task that reports them to a registered callback.
package stats

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/casterplay/BassAES67-sub000/internal/rtpwire"
)

// ConnectionState mirrors StreamStats.connection_state.
type ConnectionState int32

const (
	ConnectionDisconnected ConnectionState = iota
	ConnectionConnecting
	ConnectionConnected
	ConnectionReconnecting
)

func (c ConnectionState) String() string {
	switch c {
	case ConnectionDisconnected:
		return "disconnected"
	case ConnectionConnecting:
		return "connecting"
	case ConnectionConnected:
		return "connected"
	case ConnectionReconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// Stats is the atomic counter block for one Stream. All fields use
// Relaxed-equivalent atomic ops (Go gives no weaker guarantee); cross-
// field consistency is not required, the stats are advisory.
type Stats struct {
	PacketsReceived    atomic.Uint64
	PacketsLate        atomic.Uint64
	PacketsDropped     atomic.Uint64
	PacketsSent        atomic.Uint64
	Underruns          atomic.Uint64
	BytesIn            atomic.Uint64
	BytesOut           atomic.Uint64
	DecodeErrors       atomic.Uint64
	EncodeErrors       atomic.Uint64
	BufferLevelSamples atomic.Int64
	PPMx1000           atomic.Int32
	DetectedPT         atomic.Int32 // -1 until a packet is observed
	ConnState          atomic.Int32
}

// New returns a zeroed Stats block with DetectedPT initialized to -1.
func New() *Stats {
	s := &Stats{}
	s.DetectedPT.Store(-1)
	s.ConnState.Store(int32(ConnectionDisconnected))
	return s
}

// Snapshot is the plain-data struct a StatsCallback receives.
type Snapshot struct {
	PacketsReceived    uint64
	PacketsLate        uint64
	PacketsDropped     uint64
	PacketsSent        uint64
	Underruns          uint64
	BytesIn            uint64
	BytesOut           uint64
	DecodeErrors       uint64
	EncodeErrors       uint64
	BufferLevelSamples int64
	PPMx1000           int32
	DetectedPayloadType rtpwire.PayloadType
	ConnectionState    ConnectionState
}

// Snapshot reads every counter into a plain struct for a callback or a
// Prometheus collector pass. Like the counters themselves, this is not a
// consistent point-in-time view across fields.
func (s *Stats) Snapshot() Snapshot {
	return Snapshot{
		PacketsReceived:     s.PacketsReceived.Load(),
		PacketsLate:         s.PacketsLate.Load(),
		PacketsDropped:      s.PacketsDropped.Load(),
		PacketsSent:         s.PacketsSent.Load(),
		Underruns:           s.Underruns.Load(),
		BytesIn:             s.BytesIn.Load(),
		BytesOut:            s.BytesOut.Load(),
		DecodeErrors:        s.DecodeErrors.Load(),
		EncodeErrors:        s.EncodeErrors.Load(),
		BufferLevelSamples:  s.BufferLevelSamples.Load(),
		PPMx1000:            s.PPMx1000.Load(),
		DetectedPayloadType: rtpwire.PayloadType(s.DetectedPT.Load()),
		ConnectionState:     ConnectionState(s.ConnState.Load()),
	}
}

// MinCallbackInterval is the floor placed on the snapshot task's period.
const MinCallbackInterval = 50 * time.Millisecond

// DefaultCallbackInterval is used when a stream does not configure one.
const DefaultCallbackInterval = 1 * time.Second

// Callback receives a periodic snapshot. It runs on the snapshot task's
// own goroutine, never the audio callback goroutine.
type Callback func(handle uint64, snap Snapshot)

// Task runs Callback at a fixed interval until Stop is called.
type Task struct {
	handle   uint64
	stats    *Stats
	interval time.Duration
	cb       Callback

	stopCh chan struct{}
	doneWg sync.WaitGroup
}

// NewTask constructs a snapshot task. A non-positive interval selects
// DefaultCallbackInterval; anything below MinCallbackInterval is clamped
// up.
func NewTask(handle uint64, s *Stats, interval time.Duration, cb Callback) *Task {
	if interval <= 0 {
		interval = DefaultCallbackInterval
	}
	if interval < MinCallbackInterval {
		interval = MinCallbackInterval
	}
	return &Task{handle: handle, stats: s, interval: interval, cb: cb, stopCh: make(chan struct{})}
}

// Start launches the snapshot goroutine.
func (t *Task) Start() {
	t.doneWg.Add(1)
	go t.run()
}

// Stop signals the goroutine to exit and waits for it to do so.
func (t *Task) Stop() {
	close(t.stopCh)
	t.doneWg.Wait()
}

func (t *Task) run() {
	defer t.doneWg.Done()
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		select {
		case <-t.stopCh:
			return
		case <-ticker.C:
			if t.cb != nil {
				t.cb(t.handle, t.stats.Snapshot())
			}
		}
	}
}
