package pipeline

import (
	"log/slog"
	"testing"
	"time"

	"github.com/casterplay/BassAES67-sub000/internal/jitterring"
	"github.com/casterplay/BassAES67-sub000/internal/rtpwire"
	"github.com/casterplay/BassAES67-sub000/internal/stats"
	"github.com/casterplay/BassAES67-sub000/internal/udpendpoint"
)

func pause() { time.Sleep(5 * time.Millisecond) }

func newTestEndpoint(t *testing.T) *udpendpoint.Endpoint {
	t.Helper()
	e, err := udpendpoint.New(udpendpoint.Config{LocalAddr: "127.0.0.1:0"})
	if err != nil {
		t.Fatalf("udpendpoint.New: %v", err)
	}
	t.Cleanup(func() { e.Close() })
	return e
}

func TestReceiverDecodesAndPushesPCM16(t *testing.T) {
	endpoint := newTestEndpoint(t)
	sender, err := udpendpoint.New(udpendpoint.Config{LocalAddr: "127.0.0.1:0"})
	if err != nil {
		t.Fatalf("sender endpoint: %v", err)
	}
	defer sender.Close()

	ring := jitterring.New(48000, 1)
	st := stats.New()
	r := NewReceiver(endpoint, ring, st, CodecParams{SampleRate: 48000, Channels: 1}, slog.Default(), nil)
	r.Start()
	defer r.Stop()

	samples := []float32{0.5, -0.5, 0.25}
	payload := make([]byte, len(samples)*2)
	for i, s := range samples {
		v := int16(s * 32767)
		payload[2*i] = byte(v >> 8)
		payload[2*i+1] = byte(v)
	}
	buf, err := rtpwire.Build(rtpwire.Frame{
		SequenceNumber: 1,
		Timestamp:      0,
		SSRC:           42,
		PayloadType:    uint8(rtpwire.PTPCML16),
		Payload:        payload,
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if _, err := sender.WriteTo(buf, endpoint.LocalAddr()); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}

	waitForOccupancy(t, ring, len(samples))

	if got := st.PacketsReceived.Load(); got != 1 {
		t.Fatalf("PacketsReceived = %d, want 1", got)
	}
}

func TestReceiverSwapsDecoderOnPTChangeWithWarmup(t *testing.T) {
	endpoint := newTestEndpoint(t)
	ring := jitterring.New(48000*4, 1)
	st := stats.New()
	r := NewReceiver(endpoint, ring, st, CodecParams{SampleRate: 48000, Channels: 1}, slog.Default(), nil)

	pcm := make([]byte, 96) // 48 L16 samples of silence
	r.handlePacket(rtpwire.Frame{SSRC: 7, PayloadType: uint8(rtpwire.PTPCML16), Payload: pcm})
	gen := r.Generation()
	if gen == 0 {
		t.Fatal("expected generation bump when the first SSRC is seen")
	}
	// 50ms of warmup silence at 48kHz mono is 2400 samples, ahead of the
	// 48 decoded ones.
	if occ := ring.Occupancy(); occ < 2400 {
		t.Fatalf("ring occupancy = %d, want >= 2400 samples of warmup silence", occ)
	}

	r.handlePacket(rtpwire.Frame{SSRC: 7, PayloadType: uint8(rtpwire.PTPCMU), Payload: make([]byte, 8)})
	if r.Generation() != gen+1 {
		t.Fatalf("Generation = %d, want %d after payload-type change", r.Generation(), gen+1)
	}
}

func TestReceiverCountsSequenceGaps(t *testing.T) {
	endpoint := newTestEndpoint(t)
	ring := jitterring.New(4800, 1)
	st := stats.New()
	r := NewReceiver(endpoint, ring, st, CodecParams{SampleRate: 48000, Channels: 1}, slog.Default(), nil)

	r.observeSequence(100)
	r.observeSequence(101)
	r.observeSequence(103) // one lost
	r.observeSequence(104)
	r.observeSequence(65535)
	r.observeSequence(0) // wraparound is a legal successor

	if got := st.PacketsLate.Load(); got != 2 {
		t.Fatalf("PacketsLate = %d, want 2 (one gap, one jump)", got)
	}
}

func waitForOccupancy(t *testing.T, ring *jitterring.Ring, want int) {
	t.Helper()
	for i := 0; i < 200; i++ {
		if ring.Occupancy() >= want {
			return
		}
		pause()
	}
	t.Fatalf("ring occupancy never reached %d (got %d)", want, ring.Occupancy())
}
