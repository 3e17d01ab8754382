package bassaes67

import (
	"fmt"
	"net"
	"time"

	"github.com/casterplay/BassAES67-sub000/internal/clock"
	"github.com/casterplay/BassAES67-sub000/internal/pipeline"
	"github.com/casterplay/BassAES67-sub000/internal/rtpwire"
)

// ConfigKey is a stable integer ID for the per-stream ABI configuration
// surface. Hosts that bind this engine
// through a C ABI address configuration exclusively by these IDs, never
// by field name, so the numbering here must never be reassigned.
type ConfigKey int32

const (
	KeyInterfaceIP ConfigKey = iota
	KeyJitterMS
	KeyPayloadType
	KeyClockMode
	KeyClockDomain
	KeyClockFallbackTimeoutS
	KeyBufferMode
	KeyMinBufferMS
	KeyMaxBufferMS
	KeyDecodeStream
)

// BufferMode mirrors the buffer_mode ABI config key.
type BufferMode uint8

const (
	BufferModeSimple BufferMode = iota
	BufferModeMinMax
)

// ClockModeKey mirrors the clock_mode ABI config key, distinct
// from internal/clock.Mode only in that it is the stable wire value rather
// than the internal enum — ToClockMode converts between them.
type ClockModeKey uint8

const (
	ClockModeKeyPTP ClockModeKey = iota
	ClockModeKeyLivewire
	ClockModeKeySystem
)

// ToClockMode converts the ABI wire value to the internal clock.Mode.
func (k ClockModeKey) ToClockMode() clock.Mode {
	switch k {
	case ClockModeKeyPTP:
		return clock.ModePTP
	case ClockModeKeyLivewire:
		return clock.ModeLivewire
	default:
		return clock.ModeSystem
	}
}

// DynamicFormat resolves what the dynamic AES67 payload type (96) carries
// for a stream. The wire conveys only the PT number; the actual sample
// format is agreed out of band and configured here.
type DynamicFormat uint8

const (
	DynamicFormatL24 DynamicFormat = iota // AES67 default
	DynamicFormatL16
	DynamicFormatOpus
	DynamicFormatFLAC // receive-only
)

func (f DynamicFormat) toCodec() rtpwire.Codec {
	switch f {
	case DynamicFormatL16:
		return rtpwire.CodecL16
	case DynamicFormatOpus:
		return rtpwire.CodecOpus
	case DynamicFormatFLAC:
		return rtpwire.CodecFLAC
	default:
		return rtpwire.CodecL24
	}
}

// StreamConfig is the per-stream ABI configuration surface,
// gathered into one Go struct for CreateStream. A host driving the
// engine through a C ABI populates this by translating a sequence of
// config-set(key, value) calls before create, exactly as the ABI key
// numbering above documents; a Go caller in this process populates it
// directly.
type StreamConfig struct {
	InterfaceIP string
	JitterMS    uint32
	PayloadType uint8
	ClockMode   ClockModeKey
	ClockDomain uint8
	// ClockFallbackTimeoutS of zero selects the clock package's own
	// default (5s).
	ClockFallbackTimeoutS uint32
	BufferMode            BufferMode
	MinBufferMS           uint32
	MaxBufferMS           uint32
	DecodeStream          bool

	// The remaining fields are not ABI config keys by themselves; they are
	// derived from the aes67:// URL (CreateStreamFromURL) or defaulted for
	// direct Go construction, and are exposed here because StreamConfig is
	// the single struct CreateStream consumes.
	SampleRate     int
	Channels       int
	PacketTimeUs   int64
	EnableL20      bool
	DynamicFormat  DynamicFormat
	MulticastGroup net.IP
	LocalPort      int
	RemoteAddr     *net.UDPAddr
	Direction      Direction
}

// defaultStreamConfig fills in the engine defaults for anything
// a host does not set explicitly.
func defaultStreamConfig() StreamConfig {
	return StreamConfig{
		JitterMS:    20,
		PayloadType: uint8(rtpwire.PTDynamicPCM),
		ClockMode:   ClockModeKeySystem,
		BufferMode:  BufferModeSimple,
		SampleRate:  48000,
		Channels:    2,
		PacketTimeUs: 1000,
	}
}

// bufferPolicy converts the ABI buffer_mode/jitter_ms/min_buffer_ms/
// max_buffer_ms keys into the internal rate controller's BufferPolicy.
func (c StreamConfig) bufferPolicy() pipeline.BufferPolicy {
	switch c.BufferMode {
	case BufferModeMinMax:
		return pipeline.BufferPolicy{
			Kind:  pipeline.BufferPolicyMinMax,
			MinMS: c.MinBufferMS,
			MaxMS: c.MaxBufferMS,
		}
	default:
		target := c.JitterMS
		if target == 0 {
			target = 20
		}
		return pipeline.BufferPolicy{Kind: pipeline.BufferPolicySimple, TargetMS: target}
	}
}

func (c StreamConfig) fallbackTimeout() time.Duration {
	if c.ClockFallbackTimeoutS == 0 {
		return 0
	}
	return time.Duration(c.ClockFallbackTimeoutS) * time.Second
}

func (c StreamConfig) validate() error {
	if c.Channels != 1 && c.Channels != 2 {
		return fmt.Errorf("bassaes67: channels must be 1 or 2, got %d", c.Channels)
	}
	if c.SampleRate <= 0 {
		return fmt.Errorf("bassaes67: sample rate must be positive, got %d", c.SampleRate)
	}
	if c.BufferMode == BufferModeMinMax && c.MaxBufferMS <= c.MinBufferMS {
		return fmt.Errorf("bassaes67: max_buffer_ms must exceed min_buffer_ms")
	}
	return nil
}
