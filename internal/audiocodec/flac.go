package audiocodec

import (
	"bytes"
	"fmt"

	"github.com/mewkiz/flac"
	"github.com/mewkiz/flac/frame"

	"github.com/casterplay/BassAES67-sub000/internal/rtpwire"
)

// flacDecoder wraps github.com/mewkiz/flac. FLAC has no fixed registry
// payload type — like Opus it rides the dynamic PT 96 slot — so it is
// constructed via NewFLAC or the dynamic-format dispatch in New.
//
// flac is a file/stream decoder built around a complete bitstream (magic
// + STREAMINFO + frames). A broadcast-codec source feeding this engine
// FLAC over RTP sends a self-contained encoded stream per connection, not
// bare per-packet frames, so Decode accumulates payload bytes across
// calls and only yields samples once mewkiz/flac can successfully parse a
// stream header and at least one frame — the NEED_MORE contract every
// streaming decoder here follows.
type flacDecoder struct {
	channels   int
	frame      int
	sampleRate int

	buf          bytes.Buffer
	headerParsed bool
	stream       *flac.Stream
}

func newFLACDecoder(p Params) (*flacDecoder, error) {
	return &flacDecoder{channels: p.Channels, frame: p.SamplesPerPacket, sampleRate: p.SampleRate}, nil
}

func (c *flacDecoder) PayloadType() rtpwire.PayloadType { return rtpwire.PTDynamicPCM }
func (c *flacDecoder) Channels() int { return c.channels }
func (c *flacDecoder) FrameSamples() int { return c.frame }

func (c *flacDecoder) Reset() {
	c.buf.Reset()
	c.headerParsed = false
	c.stream = nil
}

// Encode is not implemented: this engine never transmits FLAC, only
// receives it from broadcast-codec sources.
func (c *flacDecoder) Encode(frames []float32) ([]byte, error) {
	return nil, fmt.Errorf("audiocodec: FLAC encode not supported, receive-only adapter")
}

func (c *flacDecoder) Decode(payload []byte) (DecodeResult, error) {
	c.buf.Write(payload)

	if !c.headerParsed {
		stream, err := flac.Parse(bytes.NewReader(c.buf.Bytes()))
		if err != nil {
			return DecodeResult{Status: DecodeNeedMore}, nil
		}
		c.stream = stream
		c.headerParsed = true

		rate := int(stream.Info.SampleRate)
		chans := int(stream.Info.NChannels)
		if rate != c.sampleRate || chans != c.channels {
			return DecodeResult{Status: DecodeNewFormat, SampleRate: rate, Channels: chans}, nil
		}
	}

	f, err := c.stream.ParseNext()
	if err != nil {
		return DecodeResult{Status: DecodeNeedMore}, nil
	}
	return DecodeResult{Samples: flattenFrame(f), Status: DecodeOK}, nil
}

func flattenFrame(f *frame.Frame) []float32 {
	if len(f.Subframes) == 0 {
		return nil
	}
	n := len(f.Subframes[0].Samples)
	chans := len(f.Subframes)
	out := make([]float32, 0, n*chans)
	scale := float32(int64(1) << uint(f.BitsPerSample-1))
	for i := 0; i < n; i++ {
		for ch := 0; ch < chans; ch++ {
			out = append(out, float32(f.Subframes[ch].Samples[i])/scale)
		}
	}
	return out
}
