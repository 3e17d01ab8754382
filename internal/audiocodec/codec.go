// Package audiocodec implements the AudioCodec trait: a
// small, tagged-variant interface over interleaved-float encode/decode,
// with concrete adapters for the payload types in the RTP registry.
//
// The audio path constructs exactly one Codec per stream direction at
// stream start and reuses it for the stream's lifetime — the adapters
// reuse per-instance buffers on Encode/Decode beyond what the underlying
// library (Opus) itself allocates internally, with one exception: the
// FLAC adapter appends every payload to a growing buffer and builds a new
// sample slice for each decoded frame. None box the interface behind
// per-call heap indirection.
package audiocodec

import (
	"errors"
	"fmt"

	"github.com/casterplay/BassAES67-sub000/internal/rtpwire"
)

// DecodeStatus reports what a streaming decoder did with the bytes it was
// handed.
type DecodeStatus int

const (
	// DecodeOK means Samples holds a complete decoded block.
	DecodeOK DecodeStatus = iota
	// DecodeNeedMore means the decoder consumed the input but has not
	// accumulated a full frame yet; Samples is empty.
	DecodeNeedMore
	// DecodeNewFormat means the decoder discovered a format change
	// (sample rate or channel count) and the caller must re-issue the
	// read and re-verify the reported format against stream configuration.
	DecodeNewFormat
)

// DecodeResult is the output of one Decode call.
type DecodeResult struct {
	Samples    []float32 // interleaved, may be empty on NeedMore
	Status     DecodeStatus
	SampleRate int // only meaningful on DecodeNewFormat
	Channels   int // only meaningful on DecodeNewFormat
}

// Codec is the abstract streaming encoder/decoder trait every payload-type
// adapter implements.
type Codec interface {
	// Encode turns one block of interleaved float samples in [-1,1] into
	// one RTP payload.
	Encode(frames []float32) ([]byte, error)
	// Decode feeds wire bytes into the decoder, producing interleaved
	// float samples. May return DecodeNeedMore with no samples while a
	// streaming decoder accumulates state.
	Decode(payload []byte) (DecodeResult, error)
	// FrameSamples is the number of samples per channel this codec emits
	// or expects per call, where fixed (MP2: 1152, Opus: a configured
	// frame size). Adapters with a caller-configured frame size return
	// the value they were constructed with.
	FrameSamples() int
	// PayloadType is the RTP payload-type number this codec instance was
	// bound to.
	PayloadType() rtpwire.PayloadType
	// Channels is the channel count this codec instance was constructed
	// for.
	Channels() int
	// Reset discards any internal decoder/encoder state (sub-band
	// history, resampler phase), for use across a decoder-warmup window.
	// Most adapters clear it in place; G.722 constructs fresh encoder and
	// decoder state.
	Reset()
}

var (
	// ErrFormatMismatch is returned when a streaming decoder's
	// DecodeNewFormat report does not match the stream's configured
	// sample rate or channel count.
	ErrFormatMismatch = errors.New("audiocodec: decoded format does not match stream configuration")
	// ErrReceiveOnly is returned if New is asked to construct an encoder
	// for a receive-only payload type (PT 99, AAC-ADTS).
	ErrReceiveOnly = errors.New("audiocodec: payload type is receive-only")
)

// Direction distinguishes the two Codec instances a stream may hold; most
// adapters behave identically in both, but it lets New reject constructing
// a transmit encoder for a receive-only payload type.
type Direction int

const (
	DirectionReceive Direction = iota
	DirectionTransmit
)

// Params bundles the construction-time configuration every adapter needs.
// SamplesPerPacket is per channel, following the stream's configured
// packet-duration. MP2 and AAC-ADTS ignore it and report their fixed
// frame sizes; Opus uses it as its frame size (5 ms when zero).
type Params struct {
	SampleRate       int
	Channels         int
	SamplesPerPacket int
	EnableL20        bool // gates PT 116 construction

	// DynamicCodec resolves what PT 96 carries for this stream: the wire
	// conveys only the dynamic payload-type number, the actual format is
	// configured out of band. CodecUnknown selects PCM-L24, the AES67
	// default.
	DynamicCodec rtpwire.Codec
}

// New constructs the Codec adapter for pt, or an error if pt is
// unsupported, gated off, or (for DirectionTransmit) receive-only.
func New(pt rtpwire.PayloadType, dir Direction, p Params) (Codec, error) {
	if dir == DirectionTransmit && rtpwire.IsReceiveOnly(pt) {
		return nil, fmt.Errorf("%w: PT %d (%s)", ErrReceiveOnly, pt, rtpwire.Name(pt))
	}

	switch pt {
	case rtpwire.PTPCMU:
		return newPCMU(p), nil
	case rtpwire.PTG722:
		return newG722(p), nil
	case rtpwire.PTPCML16, rtpwire.PTL16Stereo:
		return newPCM16(pt, p), nil
	case rtpwire.PTPCML24:
		return newPCM24(pt, p), nil
	case rtpwire.PTDynamicPCM:
		switch p.DynamicCodec {
		case rtpwire.CodecL16:
			return newPCM16(pt, p), nil
		case rtpwire.CodecOpus:
			return newOpus(p)
		case rtpwire.CodecFLAC:
			if dir == DirectionTransmit {
				return nil, fmt.Errorf("%w: FLAC on PT 96", ErrReceiveOnly)
			}
			return newFLACDecoder(p)
		default:
			return newPCM24(pt, p), nil
		}
	case rtpwire.PTPCML20:
		if !p.EnableL20 {
			return nil, fmt.Errorf("audiocodec: PT 116 (PCM-L20) requires EnableL20")
		}
		return newPCM20(p), nil
	case rtpwire.PTMP2:
		return newMP2(p), nil
	case rtpwire.PTAACADTS:
		return newAACADTS(p), nil
	case rtpwire.PTAACLATM:
		return nil, rtpwire.ErrUnsupportedPayloadType
	default:
		return nil, fmt.Errorf("audiocodec: no adapter registered for PT %d", pt)
	}
}

// NewOpus and NewFLAC construct the PT 96 adapters directly, for callers
// that already know the stream's dynamic format; New reaches the same
// constructors through Params.DynamicCodec when dispatching PT 96.
func NewOpus(p Params) (Codec, error) { return newOpus(p) }
func NewFLAC(p Params) (Codec, error) { return newFLACDecoder(p) }

func clampFloatToInt(x float32, scale, min, max float64) int32 {
	v := float64(x) * scale
	if v < min {
		v = min
	}
	if v > max {
		v = max
	}
	return int32(v + sign(v)*0.5)
}

func sign(v float64) float64 {
	if v < 0 {
		return -1
	}
	return 1
}
