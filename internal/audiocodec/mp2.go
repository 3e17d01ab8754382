package audiocodec

import (
	"fmt"

	"github.com/casterplay/BassAES67-sub000/internal/rtpwire"
)

// mp2FrameSamples is MP2's fixed per-channel frame size.
const mp2FrameSamples = 1152

// mp2 is a framing-only adapter for PT 14: it checks and strips the RFC
// 2250 4-byte header and reports NEED_MORE, but does not own an internal
// MPEG-Audio bitstream decoder. No Go MP2 decode library is wired
// in; codec internals are out of scope for this engine, so the adapter
// stops at the framing boundary instead of hand-rolling partial
// MPEG-Audio decode math.
type mp2 struct {
	channels int
}

func newMP2(p Params) *mp2 { return &mp2{channels: p.Channels} }

func (c *mp2) PayloadType() rtpwire.PayloadType { return rtpwire.PTMP2 }
func (c *mp2) Channels() int { return c.channels }
func (c *mp2) FrameSamples() int { return mp2FrameSamples }
func (c *mp2) Reset() {}

// Encode is not implemented for the reason documented on the type: there
// is no MPEG-Audio bitstream encoder behind this adapter.
func (c *mp2) Encode(frames []float32) ([]byte, error) {
	return nil, fmt.Errorf("audiocodec: MP2 encode not supported, framing-only adapter")
}

// Decode strips the RFC 2250 framing header and reports NEED_MORE. The
// receiver pushes nothing into the jitter ring for a NEED_MORE result, so
// after the decoder-switch warmup silence a PT 14 stream yields no
// samples and the consumer outputs silence.
func (c *mp2) Decode(payload []byte) (DecodeResult, error) {
	if _, err := rtpwire.StripMPEGAudioHeader(payload); err != nil {
		return DecodeResult{}, fmt.Errorf("audiocodec: mp2: %w", err)
	}
	return DecodeResult{Status: DecodeNeedMore}, nil
}
