package audiocodec

import (
	"math"
	"testing"

	"github.com/casterplay/BassAES67-sub000/internal/rtpwire"
)

func approxEqual(a, b, tol float32) bool {
	return math.Abs(float64(a-b)) <= float64(tol)
}

func TestPCM16RoundTrip(t *testing.T) {
	c, err := New(rtpwire.PTPCML16, DirectionTransmit, Params{SampleRate: 48000, Channels: 2, SamplesPerPacket: 48})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	in := []float32{0.5, -0.5, 0.999, -1.0, 0, 0.0001}
	payload, err := c.Encode(in)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	res, err := c.Decode(payload)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(res.Samples) != len(in) {
		t.Fatalf("got %d samples, want %d", len(res.Samples), len(in))
	}
	for i := range in {
		if !approxEqual(res.Samples[i], in[i], 1.0/32768) {
			t.Errorf("sample %d: got %v, want %v", i, res.Samples[i], in[i])
		}
	}
}

func TestPCM24RoundTrip(t *testing.T) {
	c, err := New(rtpwire.PTPCML24, DirectionTransmit, Params{SampleRate: 48000, Channels: 1, SamplesPerPacket: 48})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	in := []float32{0.25, -0.75, 1.0, -1.0, 0}
	payload, err := c.Encode(in)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(payload) != len(in)*3 {
		t.Fatalf("payload length = %d, want %d", len(payload), len(in)*3)
	}
	res, err := c.Decode(payload)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	for i := range in {
		if !approxEqual(res.Samples[i], in[i], 1.0/8388608) {
			t.Errorf("sample %d: got %v, want %v", i, res.Samples[i], in[i])
		}
	}
}

func TestPCM20RoundTrip(t *testing.T) {
	c, err := New(rtpwire.PTPCML20, DirectionTransmit, Params{SampleRate: 48000, Channels: 2, SamplesPerPacket: 48, EnableL20: true})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	in := []float32{0.5, -0.5, 0.25, -0.25}
	payload, err := c.Encode(in)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(payload) != 10 {
		t.Fatalf("payload length = %d, want 10", len(payload))
	}
	res, err := c.Decode(payload)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	for i := range in {
		if !approxEqual(res.Samples[i], in[i], 1.0/524288) {
			t.Errorf("sample %d: got %v, want %v", i, res.Samples[i], in[i])
		}
	}
}

func TestPCML20RequiresFeatureFlag(t *testing.T) {
	if _, err := New(rtpwire.PTPCML20, DirectionTransmit, Params{SampleRate: 48000, Channels: 1}); err == nil {
		t.Fatal("expected error constructing PCM-L20 without EnableL20")
	}
}

func TestNewRejectsTransmitForReceiveOnlyPT(t *testing.T) {
	if _, err := New(rtpwire.PTAACADTS, DirectionTransmit, Params{SampleRate: 48000, Channels: 1}); err == nil {
		t.Fatal("expected ErrReceiveOnly constructing a transmit AAC-ADTS codec")
	}
}

func TestNewRejectsUnsupportedPayloadType(t *testing.T) {
	if _, err := New(rtpwire.PTAACLATM, DirectionReceive, Params{SampleRate: 48000, Channels: 1}); err == nil {
		t.Fatal("expected error constructing a PT 122 (AAC-LATM) codec")
	}
}

func TestPCMUDownmixAndDecimate(t *testing.T) {
	c, err := New(rtpwire.PTPCMU, DirectionTransmit, Params{SampleRate: 48000, Channels: 2, SamplesPerPacket: 240})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	in := make([]float32, 240*2)
	for i := range in {
		in[i] = 0.3
	}
	payload, err := c.Encode(in)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(payload) != 240/6 {
		t.Fatalf("payload length = %d, want %d", len(payload), 240/6)
	}
	res, err := c.Decode(payload)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(res.Samples) != len(payload)*6 {
		t.Fatalf("decoded sample count = %d, want %d", len(res.Samples), len(payload)*6)
	}
}
