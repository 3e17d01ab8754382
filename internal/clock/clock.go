// Package clock provides a uniform reader over whichever reference clock
// a stream is configured to track (PTP, Livewire, or a free-running system
// clock), with transparent fallback when the primary clock loses lock.
//
// The actual servo implementations (PTP, Livewire) are out of scope for
// this core; only their reading interface matters here. Implementations
// register themselves in a compile-time factory table keyed by Mode —
// standing in for "dynamically loaded at first use" without depending on
// OS-level dynamic loading, which Go's plugin package does not support
// portably.
package clock

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Mode selects which reference clock a stream tracks.
type Mode int

const (
	ModePTP Mode = iota
	ModeLivewire
	ModeSystem
)

func (m Mode) String() string {
	switch m {
	case ModePTP:
		return "ptp"
	case ModeLivewire:
		return "livewire"
	case ModeSystem:
		return "system"
	default:
		return "unknown"
	}
}

// State is the servo state of the active reference clock.
type State int

const (
	StateDisabled State = iota
	StateListening
	StateUncalibrated
	StateSlave
)

func (s State) String() string {
	switch s {
	case StateListening:
		return "listening"
	case StateUncalibrated:
		return "uncalibrated"
	case StateSlave:
		return "slave"
	default:
		return "disabled"
	}
}

// Reading is an instantaneous, immutable snapshot of the active reference
// clock. Any field may differ between two successive reads.
type Reading struct {
	Running      bool
	Locked       bool
	FrequencyPPM float64 // positive = local oscillator is faster than master
	OffsetNS     int64
	State        State
}

// Source is the minimal interface a reference clock implementation must
// satisfy. Servo implementations live outside this core; only this
// interface is relevant here.
type Source interface {
	Start(interfaceAddr string, domain uint8) error
	Stop()
	Read() Reading
}

// Factory constructs a new Source for a given clock mode. Implementations
// register a Factory via RegisterFactory; SystemClock is always registered.
type Factory func() Source

var (
	factoriesMu sync.RWMutex
	factories   = map[Mode]Factory{
		ModeSystem: func() Source { return newSystemClock() },
	}
)

// RegisterFactory registers a Source constructor for the given mode. Call
// during package init of a servo implementation. Re-registering a mode
// replaces its factory; a nil f unregisters the mode.
func RegisterFactory(mode Mode, f Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	if f == nil {
		delete(factories, mode)
		return
	}
	factories[mode] = f
}

func lookupFactory(mode Mode) (Factory, bool) {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	f, ok := factories[mode]
	return f, ok
}

// defaultFallbackTimeout is applied when Start is called with a
// non-positive fallbackTimeout.
const defaultFallbackTimeout = 5 * time.Second

// readerState is the snapshot of everything Start/Stop can change,
// exchanged atomically so Read's call path never takes a lock: Start and
// Stop build a new readerState and swap it in with a single atomic
// store, and current() takes a single atomic load of the current
// snapshot instead of an RWMutex.RLock.
type readerState struct {
	running bool
	mode    Mode
	domain  uint8
	timeout time.Duration
	primary Source
}

// Reader is the process-wide clock reader singleton. Exactly one mode is
// active at a time; SystemClock fallback is transparent and automatic.
//
// Reader is safe for concurrent use: Read is called from the audio-path
// rate controller, which must never acquire a mutex. All
// reader-side state Read touches is either an atomic (lastPrimaryLock,
// usingFallback) or reached through the atomic readerState snapshot;
// writeMu exists only to serialize Start against Stop and is never
// touched by Read, IsRunning, or current.
type Reader struct {
	logger *slog.Logger
	system Source // created once in New; Start/Stop call methods on it but never reassign it

	writeMu sync.Mutex
	state   atomic.Pointer[readerState]

	// lastPrimaryLock records when the primary source was last observed
	// locked, for the fallback timer. Start seeds it with the start time
	// and current refreshes it on every locked reading; it is zero only
	// before the first Start.
	lastPrimaryLock atomic.Int64 // unix nanos
	usingFallback   atomic.Bool
}

// New creates a Reader. logger must not be nil; callers typically pass
// slog.Default().With("subsystem", "clock-reader").
func New(logger *slog.Logger) *Reader {
	r := &Reader{
		logger: logger,
		system: newSystemClock(),
	}
	r.state.Store(&readerState{})
	return r
}

// Start activates the reference clock for the given mode. If no factory is
// registered for mode (e.g. the PTP servo library is not linked in), Start
// returns a ClockUnavailable-kind error and the caller is expected to fall
// back to ModeSystem explicitly.
//
// fallbackTimeout is the duration the primary clock may remain unlocked
// before the reader transparently reports the SystemClock as locked; a
// non-positive value selects the 5 second default.
func (r *Reader) Start(mode Mode, interfaceAddr string, domain uint8, fallbackTimeout time.Duration) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	if r.state.Load().running {
		return nil
	}
	if fallbackTimeout <= 0 {
		fallbackTimeout = defaultFallbackTimeout
	}

	if err := r.system.Start("", 0); err != nil {
		return fmt.Errorf("starting system clock fallback: %w", err)
	}

	var primary Source
	if mode != ModeSystem {
		factory, ok := lookupFactory(mode)
		if !ok {
			r.logger.Warn("clock mode unavailable, no registered implementation",
				"mode", mode.String(),
			)
			return errClockUnavailable(mode)
		}
		primary = factory()
		if err := primary.Start(interfaceAddr, domain); err != nil {
			r.logger.Warn("clock primary failed to start",
				"mode", mode.String(),
				"error", err,
			)
			return errClockUnavailable(mode)
		}
	}

	r.usingFallback.Store(primary == nil)
	r.lastPrimaryLock.Store(time.Now().UnixNano())
	r.state.Store(&readerState{
		running: true,
		mode:    mode,
		domain:  domain,
		timeout: fallbackTimeout,
		primary: primary,
	})

	r.logger.Info("clock reader started",
		"mode", mode.String(),
		"interface", interfaceAddr,
		"domain", domain,
		"fallback_timeout", fallbackTimeout,
	)
	return nil
}

// Stop deactivates the clock. It MUST NOT be called from inside a host
// unload hook while expecting worker threads to join — there are none to
// join here (SystemClock and registered Sources are expected to signal
// and detach their own workers on Stop, not block on them).
func (r *Reader) Stop() {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	cur := r.state.Load()
	if !cur.running {
		return
	}
	if cur.primary != nil {
		cur.primary.Stop()
	}
	r.system.Stop()
	r.state.Store(&readerState{})
	r.logger.Info("clock reader stopped")
}

// IsRunning reports whether Start has been called without a matching
// Stop. A single atomic pointer load, no lock.
func (r *Reader) IsRunning() bool {
	return r.state.Load().running
}

// current resolves which Source backs the current Read, applying fallback
// semantics. Returns (source, usingFallback). Takes a single atomic load
// of the readerState snapshot — never a lock — so it is safe to call from
// the audio-path rate controller.
func (r *Reader) current() (Source, bool) {
	s := r.state.Load()
	if !s.running {
		return nil, false
	}
	if s.primary == nil {
		return r.system, true
	}

	reading := s.primary.Read()
	now := time.Now()
	if reading.Locked {
		r.lastPrimaryLock.Store(now.UnixNano())
		if r.usingFallback.CompareAndSwap(true, false) {
			r.logger.Info("clock primary recovered, reverting from fallback", "mode", s.mode.String())
		}
		return s.primary, false
	}

	last := time.Unix(0, r.lastPrimaryLock.Load())
	if now.Sub(last) > s.timeout {
		if r.usingFallback.CompareAndSwap(false, true) {
			r.logger.Warn("clock primary unlocked beyond fallback timeout, switching to system clock",
				"mode", s.mode.String(),
				"unlocked_for", now.Sub(last),
			)
		}
		return r.system, true
	}

	// Still within the grace window: report the primary's (unlocked) state
	// honestly rather than fall back early.
	return s.primary, false
}

// Read returns the current clock reading, applying fallback transparently.
// Safe to call from the audio-path rate controller: never takes a lock
// (current() reads an atomic snapshot), never allocates, never logs above
// the state-transition edges handled in current().
func (r *Reader) Read() Reading {
	src, _ := r.current()
	if src == nil {
		return Reading{State: StateDisabled}
	}
	return src.Read()
}

// IsLocked is a convenience accessor equivalent to Read().Locked.
func (r *Reader) IsLocked() bool { return r.Read().Locked }

// FrequencyPPM is a convenience accessor equivalent to Read().FrequencyPPM.
func (r *Reader) FrequencyPPM() float64 { return r.Read().FrequencyPPM }

// OffsetNS is a convenience accessor equivalent to Read().OffsetNS.
func (r *Reader) OffsetNS() int64 { return r.Read().OffsetNS }

// StatsString renders a human-readable diagnostic line, exposed through
// the stats-string ABI config key.
func (r *Reader) StatsString() string {
	reading := r.Read()
	s := r.state.Load()
	fallback := r.usingFallback.Load()
	return fmt.Sprintf("mode=%s fallback=%v running=%v locked=%v ppm=%.3f offset_ns=%d state=%s",
		s.mode, fallback, reading.Running, reading.Locked, reading.FrequencyPPM, reading.OffsetNS, reading.State)
}

func errClockUnavailable(mode Mode) error {
	return fmt.Errorf("clock mode %s unavailable: %w", mode, ErrClockUnavailable)
}

// ErrClockUnavailable is returned (wrapped) when the requested clock mode
// has no registered implementation or fails to start.
var ErrClockUnavailable = clockUnavailableErr{}

type clockUnavailableErr struct{}

func (clockUnavailableErr) Error() string { return "clock unavailable" }
