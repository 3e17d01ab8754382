package audiocodec

import (
	"github.com/gotranspile/g722"

	"github.com/casterplay/BassAES67-sub000/internal/rtpwire"
)

// g722Codec wraps github.com/gotranspile/g722 (a spandsp-derived ITU
// G.722 implementation) for PT 9: 16 kHz mono sub-band ADPCM at 64
// kbit/s, one wire byte per two 16 kHz samples. The engine runs at
// 48 kHz, so Encode downmixes to mono, low-passes, and decimates 3:1
// ahead of the codec; Decode upsamples 3:1 behind it by sample repeat,
// mirroring the G.711 adapter's rate conversion.
type g722Codec struct {
	inChannels int
	frame      int // samples per channel the caller passes to Encode, at 48 kHz

	enc *g722.Encoder
	dec *g722.Decoder

	lpState  float32 // anti-alias filter state (encode path)
	decimPos int     // phase within the 3:1 decimation window

	pcm16k    []int16 // scratch: one packet's worth of 16 kHz samples
	wireBuf   []byte
	decodeBuf []float32
}

const g722Decimation = 3
const g722LowpassAlpha = 0.35 // -3dB roughly near 3.3kHz at a 48kHz input rate

func newG722(p Params) *g722Codec {
	ch := p.Channels
	if ch < 1 {
		ch = 1
	}
	c := &g722Codec{inChannels: ch, frame: p.SamplesPerPacket}
	c.Reset()
	return c
}

func (c *g722Codec) PayloadType() rtpwire.PayloadType { return rtpwire.PTG722 }
func (c *g722Codec) Channels() int { return 1 }
func (c *g722Codec) FrameSamples() int { return c.frame }

// Reset swaps in fresh encoder/decoder state; the library exposes no
// in-place reset, and constructing new state is allocation the
// decoder-warmup window already absorbs.
func (c *g722Codec) Reset() {
	c.enc = g722.NewEncoder(g722.Rate64000, 0)
	c.dec = g722.NewDecoder(g722.Rate64000, 0)
	c.lpState = 0
	c.decimPos = 0
}

// Encode takes 48 kHz interleaved frames at inChannels channels,
// downmixes to mono, decimates 3:1 to 16 kHz, and feeds the result
// through the G.722 encoder.
func (c *g722Codec) Encode(frames []float32) ([]byte, error) {
	n := len(frames) / c.inChannels
	pcm := growInt16(&c.pcm16k, n/g722Decimation+1)[:0]
	for i := 0; i < n; i++ {
		var mono float32
		if c.inChannels == 1 {
			mono = frames[i]
		} else {
			mono = (frames[i*c.inChannels] + frames[i*c.inChannels+1]) / 2
		}
		c.lpState += g722LowpassAlpha * (mono - c.lpState)

		c.decimPos++
		if c.decimPos >= g722Decimation {
			c.decimPos = 0
			pcm = append(pcm, int16(clampFloatToInt(c.lpState, 32767, -32768, 32767)))
		}
	}

	out := growBytes(&c.wireBuf, len(pcm))
	nBytes := c.enc.Encode(out, pcm)
	return out[:nBytes], nil
}

// Decode runs the payload through the G.722 decoder (two 16 kHz samples
// per wire byte) and upsamples the result to 48 kHz mono float.
func (c *g722Codec) Decode(payload []byte) (DecodeResult, error) {
	pcm := growInt16(&c.pcm16k, len(payload)*2)
	nSamples := c.dec.Decode(pcm, payload)

	samples := growFloats(&c.decodeBuf, nSamples*g722Decimation)
	for i := 0; i < nSamples; i++ {
		v := float32(pcm[i]) / 32768.0
		samples[i*g722Decimation] = v
		samples[i*g722Decimation+1] = v
		samples[i*g722Decimation+2] = v
	}
	return DecodeResult{Samples: samples, Status: DecodeOK}, nil
}
