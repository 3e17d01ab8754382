package audiocodec

import (
	"fmt"

	"github.com/casterplay/BassAES67-sub000/internal/rtpwire"
)

// adtsHeaderSize is the fixed 7-byte ADTS header (no CRC) prefixed to
// each AAC frame carried by PT 99.
const adtsHeaderSize = 7

// aacADTS is a framing-only, receive-only adapter for PT 99: it parses
// the ADTS header for format detection (sample rate, channel count),
// but like mp2 does not own an AAC bitstream decoder — no
// Go AAC decode library is wired in, and codec internals are out of
// scope for this engine. PT 99 is registered receive-only, so New
// never constructs this for DirectionTransmit.
type aacADTS struct {
	channels   int
	sampleRate int
}

func newAACADTS(p Params) *aacADTS { return &aacADTS{channels: p.Channels, sampleRate: p.SampleRate} }

func (c *aacADTS) PayloadType() rtpwire.PayloadType { return rtpwire.PTAACADTS }
func (c *aacADTS) Channels() int { return c.channels }
func (c *aacADTS) FrameSamples() int { return 1024 }
func (c *aacADTS) Reset() {}

func (c *aacADTS) Encode(frames []float32) ([]byte, error) {
	return nil, ErrReceiveOnly
}

var adtsSampleRates = [...]int{
	96000, 88200, 64000, 48000, 44100, 32000, 24000, 22050,
	16000, 12000, 11025, 8000, 7350, 0, 0, 0,
}

func (c *aacADTS) Decode(payload []byte) (DecodeResult, error) {
	if len(payload) < adtsHeaderSize {
		return DecodeResult{}, fmt.Errorf("audiocodec: ADTS payload shorter than fixed header (%d bytes)", len(payload))
	}
	if payload[0] != 0xFF || payload[1]&0xF0 != 0xF0 {
		return DecodeResult{}, fmt.Errorf("audiocodec: ADTS sync word not found")
	}

	freqIdx := (payload[2] >> 2) & 0x0F
	chanCfg := ((payload[2] & 0x01) << 2) | ((payload[3] >> 6) & 0x03)
	rate := adtsSampleRates[freqIdx]
	chans := int(chanCfg)

	if rate != c.sampleRate || chans != c.channels {
		return DecodeResult{Status: DecodeNewFormat, SampleRate: rate, Channels: chans}, nil
	}

	// No AAC bitstream decoder behind this adapter (see type doc); report
	// NEED_MORE, for which the receiver pushes nothing into the jitter
	// ring, exactly as for mp2.
	return DecodeResult{Status: DecodeNeedMore}, nil
}
