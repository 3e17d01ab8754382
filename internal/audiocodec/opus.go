package audiocodec

import (
	"fmt"

	"gopkg.in/hraban/opus.v2"

	"github.com/casterplay/BassAES67-sub000/internal/rtpwire"
)

// opusCodec wraps gopkg.in/hraban/opus.v2 (cgo binding over libopus).
// Opus does not carry a
// fixed registry payload-type number (it rides the dynamic PT 96 slot
// like any AES67 format), so it is constructed by New's PT 96 dispatch
// when Params.DynamicCodec is CodecOpus, or directly via NewOpus.
type opusCodec struct {
	channels int
	frame    int // samples per channel, e.g. 240 for 5ms @ 48kHz

	enc *opus.Encoder
	dec *opus.Decoder

	decodeBuf []float32
}

func newOpus(p Params) (*opusCodec, error) {
	enc, err := opus.NewEncoder(p.SampleRate, p.Channels, opus.AppAudio)
	if err != nil {
		return nil, fmt.Errorf("audiocodec: opus encoder: %w", err)
	}
	dec, err := opus.NewDecoder(p.SampleRate, p.Channels)
	if err != nil {
		return nil, fmt.Errorf("audiocodec: opus decoder: %w", err)
	}
	frame := p.SamplesPerPacket
	if frame == 0 {
		frame = p.SampleRate / 200 // 5ms default
	}
	return &opusCodec{channels: p.Channels, frame: frame, enc: enc, dec: dec}, nil
}

func (c *opusCodec) PayloadType() rtpwire.PayloadType { return rtpwire.PTDynamicPCM }
func (c *opusCodec) Channels() int { return c.channels }
func (c *opusCodec) FrameSamples() int { return c.frame }
func (c *opusCodec) Reset() {} // opus.v2 exposes no reset; PT-change swap discards the codec instead

func (c *opusCodec) Encode(frames []float32) ([]byte, error) {
	data, err := c.enc.EncodeFloat32(frames)
	if err != nil {
		return nil, fmt.Errorf("audiocodec: opus encode: %w", err)
	}
	return data, nil
}

func (c *opusCodec) Decode(payload []byte) (DecodeResult, error) {
	pcm := growFloats(&c.decodeBuf, c.frame*c.channels)
	n, err := c.dec.DecodeFloat32(payload, pcm)
	if err != nil {
		return DecodeResult{}, fmt.Errorf("audiocodec: opus decode: %w", err)
	}
	return DecodeResult{Samples: pcm[:n*c.channels], Status: DecodeOK}, nil
}
