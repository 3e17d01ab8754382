package bassaes67

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/casterplay/BassAES67-sub000/internal/clock"
	"github.com/casterplay/BassAES67-sub000/internal/stats"
)

// ConnectionStateCallback is invoked on state transitions of the primary
// far-end association.
type ConnectionStateCallback func(handle uint64, state stats.ConnectionState)

// Shim is the host-ABI entry point: aes67:// URL
// parsing (CreateStreamFromURL), stream lifecycle, pull-callback
// registration, and configuration reads keyed by stable integer IDs
// (ConfigGet). There is no setter keyed by ID; a StreamConfig is filled
// in before CreateStream and its values are fixed from then on. A process embeds
// exactly one Shim; it owns the process-wide ClockReader and
// StreamRegistry that every Stream it creates shares.
type Shim struct {
	registry   *StreamRegistry
	clk        *clock.Reader
	logger     *slog.Logger
	nextHandle atomic.Uint64

	connStateCB ConnectionStateCallback
}

// NewShim constructs a Shim. logger must not be nil.
func NewShim(logger *slog.Logger) *Shim {
	return &Shim{
		registry: NewStreamRegistry(),
		clk:      clock.New(logger.With("subsystem", "clock-reader")),
		logger:   logger.With("subsystem", "shim"),
	}
}

// Registry exposes the StreamRegistry, e.g. to wire into
// internal/stats.NewCollector (anything satisfying its Registry
// interface works; *StreamRegistry does).
func (sh *Shim) Registry() *StreamRegistry { return sh.registry }

// ClockReader exposes the shared clock singleton, for a host that wants
// to start or stop it explicitly, independently of any stream.
func (sh *Shim) ClockReader() *clock.Reader { return sh.clk }

// NewStreamConfig returns a StreamConfig pre-filled with the engine's
// defaults, ready for the host to fill in field by field before
// calling CreateStream.
func (sh *Shim) NewStreamConfig() StreamConfig { return defaultStreamConfig() }

// ErrBadURL is returned by ParseAES67URL for anything not matching the
// aes67://<group-ip>:<port> scheme.
var ErrBadURL = errors.New("bassaes67: unrecognized stream URL")

const aes67Scheme = "aes67"
const aes67DefaultPort = 5004

// ParseAES67URL parses aes67://<group-ip>:<port> and
// returns the multicast group and port it names. No other schemes are
// defined in this core.
func ParseAES67URL(raw string) (group net.IP, port int, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrBadURL, err)
	}
	if u.Scheme != aes67Scheme {
		return nil, 0, fmt.Errorf("%w: scheme %q, want %q", ErrBadURL, u.Scheme, aes67Scheme)
	}
	host := u.Hostname()
	if host == "" {
		return nil, 0, fmt.Errorf("%w: missing host", ErrBadURL)
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return nil, 0, fmt.Errorf("%w: %q is not an IP address", ErrBadURL, host)
	}
	port = aes67DefaultPort
	if p := u.Port(); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: bad port %q", ErrBadURL, p)
		}
		port = n
	}
	return ip, port, nil
}

// CreateStreamFromURL subscribes to an aes67:// URL as a receive-
// direction stream. cfg supplies every other setting (sample rate,
// channels, buffer policy, payload type, clock mode); cfg.MulticastGroup
// and cfg.LocalPort are overwritten from the parsed URL.
func (sh *Shim) CreateStreamFromURL(rawURL string, cfg StreamConfig) (*Stream, error) {
	group, port, err := ParseAES67URL(rawURL)
	if err != nil {
		return nil, NewError("create_stream_from_url", ErrKindBadURL, err)
	}
	cfg.Direction = DirectionReceive
	cfg.MulticastGroup = group
	cfg.LocalPort = port
	return sh.CreateStream(cfg)
}

// CreateStream constructs a Stream, assigns it a fresh handle, and
// registers it in the StreamRegistry. The stream is not started.
func (sh *Shim) CreateStream(cfg StreamConfig) (*Stream, error) {
	handle := sh.nextHandle.Add(1)
	s, err := newStream(handle, sh.clk, cfg, sh.logger)
	if err != nil {
		return nil, err
	}
	if cfg.Direction == DirectionReceive {
		s.SetConnectionStateCallback(func(state stats.ConnectionState) {
			if sh.connStateCB != nil {
				sh.connStateCB(handle, state)
			}
		})
	}
	sh.registry.Register(s)
	sh.logger.Info("stream created", "handle", handle, "direction", cfg.Direction.String())
	return s, nil
}

// StartStream starts a previously created stream looked up by handle.
func (sh *Shim) StartStream(handle uint64) error {
	s, ok := sh.registry.Lookup(handle)
	if !ok {
		return NewError("start_stream", ErrKindBadURL, fmt.Errorf("unknown handle %d", handle))
	}
	return s.Start()
}

// StopStream stops a running stream looked up by handle. A no-op if the
// stream is not currently started.
func (sh *Shim) StopStream(handle uint64) error {
	s, ok := sh.registry.Lookup(handle)
	if !ok {
		return NewError("stop_stream", ErrKindBadURL, fmt.Errorf("unknown handle %d", handle))
	}
	s.Stop()
	return nil
}

// FreeStream stops (if needed), closes, and removes handle from the
// registry.
func (sh *Shim) FreeStream(handle uint64) error {
	s, ok := sh.registry.Lookup(handle)
	if !ok {
		return nil
	}
	sh.registry.Unregister(handle)
	return s.Free()
}

// PullTarget resolves handle to the *Stream the host should cache and
// call Pull/SetHostPull on directly from then on: the audio path never
// goes back through the registry or its lock.
func (sh *Shim) PullTarget(handle uint64) (*Stream, error) {
	s, ok := sh.registry.Lookup(handle)
	if !ok {
		return nil, NewError("pull_target", ErrKindBadURL, fmt.Errorf("unknown handle %d", handle))
	}
	return s, nil
}

// Info reports {sample_rate, channels, flags} for handle.
func (sh *Shim) Info(handle uint64) (Info, error) {
	s, ok := sh.registry.Lookup(handle)
	if !ok {
		return Info{}, NewError("stream_info", ErrKindBadURL, fmt.Errorf("unknown handle %d", handle))
	}
	return s.Info(), nil
}

// ConfigGet reads a post-creation configuration value by stable key.
func (sh *Shim) ConfigGet(handle uint64, key ConfigKey) (interface{}, error) {
	s, ok := sh.registry.Lookup(handle)
	if !ok {
		return nil, NewError("config_get", ErrKindBadURL, fmt.Errorf("unknown handle %d", handle))
	}
	return s.ConfigGet(key)
}

// Stats reads the raw counter snapshot by handle.
func (sh *Shim) Stats(handle uint64) (stats.Snapshot, error) {
	s, ok := sh.registry.Lookup(handle)
	if !ok {
		return stats.Snapshot{}, NewError("stats", ErrKindBadURL, fmt.Errorf("unknown handle %d", handle))
	}
	return s.Snapshot(), nil
}

// StatsReport reads the derived read-only stats view by handle:
// buffer level on the 0-200 scale, packet counts in ring/target packets,
// and the clock reader's current lock state.
func (sh *Shim) StatsReport(handle uint64) (StatsReport, error) {
	s, ok := sh.registry.Lookup(handle)
	if !ok {
		return StatsReport{}, NewError("stats_report", ErrKindBadURL, fmt.Errorf("unknown handle %d", handle))
	}
	return s.StatsReport(), nil
}

// RegisterConnectionStateCallback installs the host's
// ConnectionStateCallback. Only the bidirectional broadcast-codec use
// case drives transitions through Connecting/Reconnecting; pure
// multicast receivers report Connected on the first packet and
// Disconnected after the receive loop's idle timeout, nothing else.
func (sh *Shim) RegisterConnectionStateCallback(cb ConnectionStateCallback) {
	sh.connStateCB = cb
}

// RegisterStatsCallback enables the periodic StatsCallback task on one
// stream.
func (sh *Shim) RegisterStatsCallback(handle uint64, interval time.Duration, cb stats.Callback) error {
	s, ok := sh.registry.Lookup(handle)
	if !ok {
		return NewError("register_stats_callback", ErrKindBadURL, fmt.Errorf("unknown handle %d", handle))
	}
	s.EnableStatsCallback(interval, cb)
	return nil
}
