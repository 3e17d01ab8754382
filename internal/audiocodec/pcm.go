package audiocodec

import (
	"fmt"

	"github.com/casterplay/BassAES67-sub000/internal/rtpwire"
)

// pcm16 implements PCM-L16 (PT 21) and the legacy L16-stereo adapter
// (PT 10): 16-bit big-endian signed samples, clamped on encode.
//
// encodeBuf/decodeBuf are sized once at construction from the stream's
// configured packet size and reused on every call: no component on the
// audio path allocates after stream-start. They only grow
// past that initial capacity if handed a larger-than-configured block,
// which does not happen on the normal per-packet path.
type pcm16 struct {
	pt       rtpwire.PayloadType
	channels int
	frame    int

	encodeBuf []byte
	decodeBuf []float32
}

func newPCM16(pt rtpwire.PayloadType, p Params) *pcm16 {
	samples := p.SamplesPerPacket * p.Channels
	return &pcm16{
		pt:        pt,
		channels:  p.Channels,
		frame:     p.SamplesPerPacket,
		encodeBuf: make([]byte, samples*2),
		decodeBuf: make([]float32, samples),
	}
}

func (c *pcm16) PayloadType() rtpwire.PayloadType { return c.pt }
func (c *pcm16) Channels() int { return c.channels }
func (c *pcm16) FrameSamples() int { return c.frame }
func (c *pcm16) Reset() {}

func (c *pcm16) Encode(frames []float32) ([]byte, error) {
	out := growBytes(&c.encodeBuf, len(frames)*2)
	for i, s := range frames {
		v := clampFloatToInt(s, 32767, -32768, 32767)
		out[2*i] = byte(int16(v) >> 8)
		out[2*i+1] = byte(int16(v))
	}
	return out, nil
}

func (c *pcm16) Decode(payload []byte) (DecodeResult, error) {
	if len(payload)%2 != 0 {
		return DecodeResult{}, fmt.Errorf("audiocodec: L16 payload length %d not a multiple of 2", len(payload))
	}
	n := len(payload) / 2
	samples := growFloats(&c.decodeBuf, n)
	for i := 0; i < n; i++ {
		v := int16(uint16(payload[2*i])<<8 | uint16(payload[2*i+1]))
		samples[i] = float32(v) / 32767.0
	}
	return DecodeResult{Samples: samples, Status: DecodeOK}, nil
}

// pcm24 implements PCM-L24 (PT 22, and PT 96 in its default AES67
// binding): 24-bit big-endian signed samples.
// Conversion: i = clamp(round(x*8388607), -8388608, 8388607).
//
// encodeBuf/decodeBuf follow the same preallocate-and-reuse discipline as
// pcm16, above.
type pcm24 struct {
	pt       rtpwire.PayloadType
	channels int
	frame    int

	encodeBuf []byte
	decodeBuf []float32
}

func newPCM24(pt rtpwire.PayloadType, p Params) *pcm24 {
	samples := p.SamplesPerPacket * p.Channels
	return &pcm24{
		pt:        pt,
		channels:  p.Channels,
		frame:     p.SamplesPerPacket,
		encodeBuf: make([]byte, samples*3),
		decodeBuf: make([]float32, samples),
	}
}

func (c *pcm24) PayloadType() rtpwire.PayloadType { return c.pt }
func (c *pcm24) Channels() int { return c.channels }
func (c *pcm24) FrameSamples() int { return c.frame }
func (c *pcm24) Reset() {}

func (c *pcm24) Encode(frames []float32) ([]byte, error) {
	out := growBytes(&c.encodeBuf, len(frames)*3)
	for i, s := range frames {
		v := clampFloatToInt(s, 8388607, -8388608, 8388607)
		out[3*i] = byte(v >> 16)
		out[3*i+1] = byte(v >> 8)
		out[3*i+2] = byte(v)
	}
	return out, nil
}

func (c *pcm24) Decode(payload []byte) (DecodeResult, error) {
	if len(payload)%3 != 0 {
		return DecodeResult{}, fmt.Errorf("audiocodec: L24 payload length %d not a multiple of 3", len(payload))
	}
	n := len(payload) / 3
	samples := growFloats(&c.decodeBuf, n)
	for i := 0; i < n; i++ {
		v := int32(payload[3*i])<<16 | int32(payload[3*i+1])<<8 | int32(payload[3*i+2])
		// sign-extend from 24 to 32 bits
		v = (v << 8) >> 8
		samples[i] = float32(v) / 8388608.0
	}
	return DecodeResult{Samples: samples, Status: DecodeOK}, nil
}

// pcm20 implements PCM-L20 (PT 116): 20-bit signed samples packed
// MSB-first, two samples per 5 bytes. Construction is
// gated behind Params.EnableL20 at New().
//
// encodeBuf/decodeBuf follow the same preallocate-and-reuse discipline as
// pcm16, above.
type pcm20 struct {
	channels int
	frame    int

	encodeBuf []byte
	decodeBuf []float32
}

func newPCM20(p Params) *pcm20 {
	samples := p.SamplesPerPacket * p.Channels
	return &pcm20{
		channels:  p.Channels,
		frame:     p.SamplesPerPacket,
		encodeBuf: make([]byte, (samples+1)/2*5),
		decodeBuf: make([]float32, samples),
	}
}

func (c *pcm20) PayloadType() rtpwire.PayloadType { return rtpwire.PTPCML20 }
func (c *pcm20) Channels() int { return c.channels }
func (c *pcm20) FrameSamples() int { return c.frame }
func (c *pcm20) Reset() {}

// l20Pack packs two 20-bit signed values (range -524288..524287) into 5
// bytes, MSB-first: [a19..a12][a11..a4][a3..a0|b19..b16][b15..b8][b7..b0].
func l20Pack(a, b int32) [5]byte {
	au := uint32(a) & 0xFFFFF
	bu := uint32(b) & 0xFFFFF
	var out [5]byte
	out[0] = byte(au >> 12)
	out[1] = byte(au >> 4)
	out[2] = byte(au<<4) | byte(bu>>16)
	out[3] = byte(bu >> 8)
	out[4] = byte(bu)
	return out
}

func l20Unpack(b [5]byte) (int32, int32) {
	au := uint32(b[0])<<12 | uint32(b[1])<<4 | uint32(b[2])>>4
	bu := uint32(b[2]&0x0F)<<16 | uint32(b[3])<<8 | uint32(b[4])
	a := signExtend20(au)
	bb := signExtend20(bu)
	return a, bb
}

func signExtend20(v uint32) int32 {
	v &= 0xFFFFF
	if v&0x80000 != 0 {
		return int32(v) - 0x100000
	}
	return int32(v)
}

func (c *pcm20) Encode(frames []float32) ([]byte, error) {
	// Odd tail sample: treated as paired with silence so every encode call
	// yields whole 5-byte groups, without copying frames to pad it.
	pairs := (len(frames) + 1) / 2
	out := growBytes(&c.encodeBuf, pairs*5)
	for i := 0; i < pairs; i++ {
		lo := i * 2
		var bf float32
		if lo+1 < len(frames) {
			bf = frames[lo+1]
		}
		a := clampFloatToInt(frames[lo], 524287, -524288, 524287)
		b := clampFloatToInt(bf, 524287, -524288, 524287)
		packed := l20Pack(a, b)
		copy(out[i*5:i*5+5], packed[:])
	}
	return out, nil
}

func (c *pcm20) Decode(payload []byte) (DecodeResult, error) {
	if len(payload)%5 != 0 {
		return DecodeResult{}, fmt.Errorf("audiocodec: L20 payload length %d not a multiple of 5", len(payload))
	}
	n := len(payload) / 5
	samples := growFloats(&c.decodeBuf, n*2)
	for i := 0; i < n; i++ {
		var group [5]byte
		copy(group[:], payload[i*5:i*5+5])
		a, b := l20Unpack(group)
		samples[i*2] = float32(a) / 524288.0
		samples[i*2+1] = float32(b) / 524288.0
	}
	return DecodeResult{Samples: samples, Status: DecodeOK}, nil
}

// growBytes returns (*buf)[:n], reallocating only if n exceeds the
// buffer's existing capacity. The PCM adapters size buf once at
// construction from the stream's configured packet size, so the
// reallocating branch is not expected to run on the steady-state
// per-packet path.
func growBytes(buf *[]byte, n int) []byte {
	if cap(*buf) < n {
		*buf = make([]byte, n)
		return *buf
	}
	*buf = (*buf)[:n]
	return *buf
}

// growFloats is growBytes for []float32 decode buffers.
func growFloats(buf *[]float32, n int) []float32 {
	if cap(*buf) < n {
		*buf = make([]float32, n)
		return *buf
	}
	*buf = (*buf)[:n]
	return *buf
}

// growInt16 is growBytes for []int16 codec scratch buffers.
func growInt16(buf *[]int16, n int) []int16 {
	if cap(*buf) < n {
		*buf = make([]int16, n)
		return *buf
	}
	*buf = (*buf)[:n]
	return *buf
}
