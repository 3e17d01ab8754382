package bassaes67

import (
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/casterplay/BassAES67-sub000/internal/audiocodec"
	"github.com/casterplay/BassAES67-sub000/internal/clock"
	"github.com/casterplay/BassAES67-sub000/internal/jitterring"
	"github.com/casterplay/BassAES67-sub000/internal/pipeline"
	"github.com/casterplay/BassAES67-sub000/internal/rtpwire"
	"github.com/casterplay/BassAES67-sub000/internal/stats"
	"github.com/casterplay/BassAES67-sub000/internal/udpendpoint"
)

// Direction is the fixed audio direction a Stream carries, immutable
// after creation.
type Direction int

const (
	DirectionReceive Direction = iota
	DirectionTransmit
)

func (d Direction) String() string {
	if d == DirectionTransmit {
		return "transmit"
	}
	return "receive"
}

// lifecycleState tracks where a Stream sits in the create/start/stop/free
// sequence.
type lifecycleState int

const (
	lifecycleCreated lifecycleState = iota
	lifecycleStarted
	lifecycleStopped
	lifecycleFreed
)

// InfoFlagDecodeStream is set in Info().Flags when the stream's decoded
// host audio is pulled further downstream.
const InfoFlagDecodeStream uint32 = 1 << 0

// Info reports the sample layout the host sees for a stream.
type Info struct {
	SampleRate int
	Channels   int
	Flags      uint32
}

// Stream is one direction (receive or transmit) bound to one UDP endpoint
// and one host channel. PluginShim exclusively owns every
// Stream; the Stream exclusively owns its JitterRing, socket, codec
// objects, and worker goroutines. The ClockReader is NOT owned here — it
// is a process-wide singleton the Shim shares across every Stream.
type Stream struct {
	Handle    uint64
	Direction Direction

	sampleRate   int
	channels     int
	packetTimeUs int64
	decodeStream bool
	enableL20    bool
	dynamicCodec rtpwire.Codec
	payloadType  rtpwire.PayloadType
	bufferPolicy pipeline.BufferPolicy

	mu    sync.Mutex
	state lifecycleState

	endpoint *udpendpoint.Endpoint
	ring     *jitterring.Ring
	stats    *stats.Stats
	clk      *clock.Reader
	logger   *slog.Logger

	clockMode            clock.Mode
	clockInterfaceAddr   string
	clockDomain          uint8
	clockFallbackTimeout time.Duration

	receiver *pipeline.Receiver
	consumer *pipeline.Consumer

	transmitter *pipeline.Transmitter
	hostPull    pipeline.PullFunc

	statsTask   *stats.Task
	connStateCB func(stats.ConnectionState)
}

// newStream validates cfg and constructs the socket, ring, and stats
// block. It does not start any worker goroutine — that is Start's job.
func newStream(handle uint64, clk *clock.Reader, cfg StreamConfig, logger *slog.Logger) (*Stream, error) {
	if err := cfg.validate(); err != nil {
		return nil, NewError("create_stream", ErrKindBadURL, err)
	}

	endpointCfg := udpendpoint.Config{
		LocalAddr:      fmt.Sprintf("%s:%d", cfg.InterfaceIP, cfg.LocalPort),
		MulticastGroup: cfg.MulticastGroup,
		RemoteAddr:     cfg.RemoteAddr,
	}
	endpoint, err := udpendpoint.New(endpointCfg)
	if err != nil {
		return nil, NewError("create_stream", ErrKindSocketBindFailed, err)
	}

	s := &Stream{
		Handle:               handle,
		Direction:            cfg.Direction,
		sampleRate:           cfg.SampleRate,
		channels:             cfg.Channels,
		packetTimeUs:         cfg.PacketTimeUs,
		decodeStream:         cfg.DecodeStream,
		enableL20:            cfg.EnableL20,
		dynamicCodec:         cfg.DynamicFormat.toCodec(),
		payloadType:          rtpwire.PayloadType(cfg.PayloadType),
		bufferPolicy:         cfg.bufferPolicy(),
		endpoint:             endpoint,
		stats:                stats.New(),
		clk:                  clk,
		logger:               logger.With("subsystem", "stream", "handle", handle, "direction", cfg.Direction.String()),
		clockMode:            cfg.ClockMode.ToClockMode(),
		clockInterfaceAddr:   cfg.InterfaceIP,
		clockDomain:          cfg.ClockDomain,
		clockFallbackTimeout: cfg.fallbackTimeout(),
	}

	if cfg.Direction == DirectionReceive {
		s.ring = jitterring.New(ringCapacitySamples(s.bufferPolicy, cfg.SampleRate, cfg.Channels), cfg.Channels)
	}

	return s, nil
}

// ringCapacitySamples applies BufferPolicy's ring-sizing rule:
// Simple -> 3x target_ms of audio; MinMax -> 2x max_ms.
func ringCapacitySamples(policy pipeline.BufferPolicy, sampleRate, channels int) int {
	var ms uint32
	var multiplier int
	if policy.Kind == pipeline.BufferPolicyMinMax {
		ms = policy.MaxMS
		multiplier = 2
	} else {
		ms = policy.TargetMS
		multiplier = 3
	}
	framesPerMS := float64(sampleRate) / 1000.0
	frames := int(float64(ms) * framesPerMS * float64(multiplier))
	return frames * channels
}

// SetConnectionStateCallback installs the hook the Receiver invokes on
// Connected/Disconnected transitions. Must be called before Start; a nil
// fn disables the hook.
func (s *Stream) SetConnectionStateCallback(fn func(stats.ConnectionState)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connStateCB = fn
}

// SetHostPull registers the transmit-direction pull-from-host callback.
// Must be called before Start for a DirectionTransmit stream.
func (s *Stream) SetHostPull(fn pipeline.PullFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hostPull = fn
}

// Start transitions Created -> Started: it starts the process-wide clock
// reader if this is the first caller to need it, constructs the
// direction-specific worker goroutines, and — exactly once, at start, never
// on a buffering transition — resets the rate controller's PI integral
// term.
func (s *Stream) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != lifecycleCreated {
		return nil
	}

	if !s.clk.IsRunning() {
		if err := s.clk.Start(s.clockMode, s.clockInterfaceAddr, s.clockDomain, s.clockFallbackTimeout); err != nil {
			s.logger.Warn("clock start failed, continuing uninstrumented", "error", err)
		}
	}

	switch s.Direction {
	case DirectionReceive:
		params := pipeline.CodecParams{SampleRate: s.sampleRate, Channels: s.channels, EnableL20: s.enableL20, DynamicCodec: s.dynamicCodec}
		s.receiver = pipeline.NewReceiver(s.endpoint, s.ring, s.stats, params, s.logger, s.connStateCB)
		s.consumer = pipeline.NewConsumer(s.ring, s.stats, s.clk, s.bufferPolicy, s.channels, s.receiver.Generation)
		s.consumer.ResetIntegral()
		s.receiver.Start()
	case DirectionTransmit:
		codec, err := audiocodec.New(s.payloadType, audiocodec.DirectionTransmit, audiocodec.Params{
			SampleRate:       s.sampleRate,
			Channels:         s.channels,
			SamplesPerPacket: samplesPerPacket(s.sampleRate, s.packetTimeUs),
			EnableL20:        s.enableL20,
			DynamicCodec:     s.dynamicCodec,
		})
		if err != nil {
			return NewError("start_stream", ErrKindCodecInitFailed, err)
		}
		if s.hostPull == nil {
			return NewError("start_stream", ErrKindCodecInitFailed, fmt.Errorf("bassaes67: transmit stream started without a registered host pull callback"))
		}
		s.transmitter = pipeline.NewTransmitter(s.endpoint, codec, s.stats, s.clk, s.hostPull, s.channels, s.packetTimeUs, s.logger)
		s.transmitter.Start()
	}

	s.state = lifecycleStarted
	s.logger.Info("stream started", "sample_rate", s.sampleRate, "channels", s.channels, "payload_type", s.payloadType)
	return nil
}

func samplesPerPacket(sampleRate int, packetTimeUs int64) int {
	return int(float64(sampleRate) * float64(packetTimeUs) / 1e6)
}

// Stop transitions Started -> Stopped, joining the worker goroutines.
// Safe to call more than once.
func (s *Stream) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != lifecycleStarted {
		return
	}
	if s.receiver != nil {
		s.receiver.Stop()
	}
	if s.transmitter != nil {
		s.transmitter.Stop()
	}
	if s.statsTask != nil {
		s.statsTask.Stop()
		s.statsTask = nil
	}
	s.state = lifecycleStopped
	s.logger.Info("stream stopped")
}

// Free releases the socket. The Stream must not be used afterward; the
// caller (Shim) is responsible for removing it from the StreamRegistry
// first.
func (s *Stream) Free() error {
	s.mu.Lock()
	started := s.state == lifecycleStarted
	alreadyFreed := s.state == lifecycleFreed
	s.mu.Unlock()

	if alreadyFreed {
		return nil
	}
	if started {
		s.Stop()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = lifecycleFreed
	return s.endpoint.Close()
}

// Pull is the receive-direction audio-host callback entry point: it fills
// dst with exactly len(dst) interleaved samples, resampled against the jitter ring. Calling it on a
// transmit-direction Stream is a programming error and panics, since the
// host ABI dispatch in shim.go never does so.
func (s *Stream) Pull(dst []float32) {
	if s.Direction != DirectionReceive {
		panic("bassaes67: Pull called on a transmit-direction stream")
	}
	s.consumer.Pull(dst, s.sampleRate)
}

// EnableStatsCallback starts the periodic StatsCallback task. An interval
// below stats.MinCallbackInterval is clamped up.
func (s *Stream) EnableStatsCallback(interval time.Duration, cb stats.Callback) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.statsTask != nil {
		s.statsTask.Stop()
	}
	s.statsTask = stats.NewTask(s.Handle, s.stats, interval, cb)
	s.statsTask.Start()
}

// Snapshot returns the current stats block, for out-of-band polling.
func (s *Stream) Snapshot() stats.Snapshot { return s.stats.Snapshot() }

// StatsReport is the read-only, by-handle stats view the host ABI
// queries: raw counters joined with the derived buffer-level scale and
// the clock reader's current state.
type StatsReport struct {
	// BufferLevel is the ring occupancy scaled so 100 means exactly on
	// target, clamped to 0-200.
	BufferLevel       uint32
	Underruns         uint64
	PacketsReceived   uint64
	PacketsLate       uint64
	BufferPackets     uint32
	TargetPackets     uint32
	PacketTimeUs      uint32
	ClockLocked       bool
	ClockFreqPPMx1000 int32
	ClockState        int32
	ClockOffsetNS     int64
	StatsString       string
}

// StatsReport assembles the read-only stats view for this stream.
func (s *Stream) StatsReport() StatsReport {
	snap := s.stats.Snapshot()
	reading := s.clk.Read()

	target := s.targetSamplesPerChannel()
	occupancy := int(snap.BufferLevelSamples) / s.channels

	var level uint32
	if target > 0 {
		level = uint32(occupancy * 100 / target)
		if level > 200 {
			level = 200
		}
	}

	spp := samplesPerPacket(s.sampleRate, s.packetTimeUs)
	var bufferPackets, targetPackets uint32
	if spp > 0 {
		bufferPackets = uint32(occupancy / spp)
		targetPackets = uint32(target / spp)
	}

	return StatsReport{
		BufferLevel:       level,
		Underruns:         snap.Underruns,
		PacketsReceived:   snap.PacketsReceived,
		PacketsLate:       snap.PacketsLate,
		BufferPackets:     bufferPackets,
		TargetPackets:     targetPackets,
		PacketTimeUs:      uint32(s.packetTimeUs),
		ClockLocked:       reading.Locked,
		ClockFreqPPMx1000: int32(reading.FrequencyPPM * 1000),
		ClockState:        int32(reading.State),
		ClockOffsetNS:     reading.OffsetNS,
		StatsString:       s.clk.StatsString(),
	}
}

// targetSamplesPerChannel mirrors the rate controller's occupancy target:
// jitter_ms of audio for the Simple policy, the min/max midpoint for
// MinMax.
func (s *Stream) targetSamplesPerChannel() int {
	ms := s.bufferPolicy.TargetMS
	if s.bufferPolicy.Kind == pipeline.BufferPolicyMinMax {
		ms = (s.bufferPolicy.MinMS + s.bufferPolicy.MaxMS) / 2
	}
	return int(float64(s.sampleRate) * float64(ms) / 1000.0)
}

// Info reports {sample_rate, channels, flags}.
func (s *Stream) Info() Info {
	var flags uint32
	if s.decodeStream {
		flags |= InfoFlagDecodeStream
	}
	return Info{SampleRate: s.sampleRate, Channels: s.channels, Flags: flags}
}

// ConfigGet implements the ABI configuration getter, keyed by ConfigKey.
// Values are returned as
// interface{} holding the key's documented scalar type; the Shim layer
// translates to the C ABI's scalar-or-string-pointer convention.
func (s *Stream) ConfigGet(key ConfigKey) (interface{}, error) {
	switch key {
	case KeyInterfaceIP:
		return s.clockInterfaceAddr, nil
	case KeyPayloadType:
		return uint8(s.payloadType), nil
	case KeyClockDomain:
		return s.clockDomain, nil
	case KeyDecodeStream:
		return s.decodeStream, nil
	case KeyBufferMode:
		return uint8(bufferModeOf(s.bufferPolicy)), nil
	case KeyJitterMS:
		return s.bufferPolicy.TargetMS, nil
	case KeyMinBufferMS:
		return s.bufferPolicy.MinMS, nil
	case KeyMaxBufferMS:
		return s.bufferPolicy.MaxMS, nil
	case KeyClockFallbackTimeoutS:
		return uint32(s.clockFallbackTimeout / time.Second), nil
	case KeyClockMode:
		return uint8(clockModeKeyOf(s.clockMode)), nil
	default:
		return nil, fmt.Errorf("bassaes67: unknown config key %d", key)
	}
}

func bufferModeOf(p pipeline.BufferPolicy) BufferMode {
	if p.Kind == pipeline.BufferPolicyMinMax {
		return BufferModeMinMax
	}
	return BufferModeSimple
}

func clockModeKeyOf(m clock.Mode) ClockModeKey {
	switch m {
	case clock.ModePTP:
		return ClockModeKeyPTP
	case clock.ModeLivewire:
		return ClockModeKeyLivewire
	default:
		return ClockModeKeySystem
	}
}

// RemoteAddr reports the fixed unicast peer a reciprocal-port stream
// sends to, or nil for multicast/receive-only endpoints.
func (s *Stream) RemoteAddr() *net.UDPAddr { return s.endpoint.FixedRemote() }
