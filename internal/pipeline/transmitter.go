package pipeline

import (
	"log/slog"
	"math/rand"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/casterplay/BassAES67-sub000/internal/audiocodec"
	"github.com/casterplay/BassAES67-sub000/internal/rtpwire"
	"github.com/casterplay/BassAES67-sub000/internal/stats"
	"github.com/casterplay/BassAES67-sub000/internal/udpendpoint"
)

// PullFunc reads up to len(dst) interleaved samples from the host source
// channel into dst and returns the number of samples actually written.
// A short read (end of source, underflow) is zero-filled by the caller
// and counted as an underrun.
type PullFunc func(dst []float32) int

// ppmRereadInterval is how often the Transmitter re-reads the clock's
// ppm feedforward term.
const ppmRereadInterval = 100

// Transmitter is the per-stream transmit-side goroutine. It pulls
// samples from the host on a hybrid
// sleep-then-spin schedule, downmixes, encodes, and sends one RTP packet
// per scheduled tick.
type Transmitter struct {
	endpoint *udpendpoint.Endpoint
	codec    audiocodec.Codec
	stats    *stats.Stats
	clock    ClockSource
	pull     PullFunc

	sourceChannels   int
	samplesPerPacket int // per channel, codec's native channel count
	packetTimeUs     int64
	ssrc             uint32
	logger           *slog.Logger

	// hostFrames and downmixBuf are preallocated once at construction and
	// reused by every scheduled tick: no component on the audio path may
	// allocate after stream-start.
	hostFrames []float32
	downmixBuf []float32 // nil when codec.Channels() == sourceChannels (no downmix needed)

	running atomic.Bool
	wg      sync.WaitGroup
}

// NewTransmitter constructs a Transmitter. sourceChannels is the host
// channel's fixed channel count (stereo); the codec's
// own Channels() may differ (e.g. mono G.711), in which case downmix
// happens before Encode.
func NewTransmitter(endpoint *udpendpoint.Endpoint, codec audiocodec.Codec, st *stats.Stats, clk ClockSource, pull PullFunc, sourceChannels int, packetTimeUs int64, logger *slog.Logger) *Transmitter {
	samplesPerPacket := codec.FrameSamples()
	t := &Transmitter{
		endpoint:         endpoint,
		codec:            codec,
		stats:            st,
		clock:            clk,
		pull:             pull,
		sourceChannels:   sourceChannels,
		samplesPerPacket: samplesPerPacket,
		packetTimeUs:     packetTimeUs,
		ssrc:             rand.Uint32(),
		logger:           logger.With("subsystem", "rtp-transmitter"),
		hostFrames:       make([]float32, samplesPerPacket*sourceChannels),
	}
	if codec.Channels() < sourceChannels {
		t.downmixBuf = make([]float32, samplesPerPacket*codec.Channels())
	}
	return t
}

// Start launches the transmit goroutine.
func (t *Transmitter) Start() {
	t.running.Store(true)
	t.wg.Add(1)
	go t.run()
}

// Stop clears the running flag. The worker exits within one packet
// interval, the next time it observes !running at the top of its loop.
func (t *Transmitter) Stop() {
	t.running.Store(false)
	t.wg.Wait()
}

func (t *Transmitter) run() {
	defer t.wg.Done()

	// Pin the scheduler goroutine to its own OS thread so the
	// sleep-then-spin wait is not disturbed by goroutine migration; this is
	// as close to an elevated-priority sender thread as the runtime allows
	// without a cgo priority call.
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	var seq uint16
	var timestamp uint32
	deltaUs := t.packetTimeUs
	nextTx := time.Now()
	packetCount := 0

	for t.running.Load() {
		now := time.Now()
		sleepNeeded := nextTx.Sub(now)

		if sleepNeeded > 2*time.Millisecond {
			time.Sleep(sleepNeeded - time.Millisecond)
		}
		for time.Now().Before(nextTx) {
			// spin-wait for sub-millisecond precision
		}

		now = time.Now()
		if now.After(nextTx.Add(time.Duration(deltaUs) * time.Microsecond)) {
			nextTx = now.Add(time.Duration(deltaUs) * time.Microsecond)
			t.stats.PacketsLate.Add(1)
		} else {
			nextTx = nextTx.Add(time.Duration(deltaUs) * time.Microsecond)
		}

		if !t.running.Load() {
			return
		}

		t.sendPacket(&seq, &timestamp)

		packetCount++
		if packetCount%ppmRereadInterval == 0 {
			deltaUs = t.computeIntervalUs()
		}
	}
}

func (t *Transmitter) computeIntervalUs() int64 {
	ppm := 0.0
	if t.clock != nil && t.clock.IsLocked() {
		ppm = t.clock.FrequencyPPM()
	}
	base := float64(t.packetTimeUs)
	return int64(base * (1 - ppm/1e6))
}

func (t *Transmitter) sendPacket(seq *uint16, timestamp *uint32) {
	hostChannels := t.sourceChannels
	hostFrames := t.hostFrames
	n := t.pull(hostFrames)
	if n < len(hostFrames) {
		for i := n; i < len(hostFrames); i++ {
			hostFrames[i] = 0
		}
		t.stats.Underruns.Add(1)
	}

	encodeInput := hostFrames
	if t.downmixBuf != nil {
		downmixInto(hostFrames, hostChannels, t.downmixBuf, t.codec.Channels())
		encodeInput = t.downmixBuf
	}

	payload, err := t.codec.Encode(encodeInput)
	if err != nil {
		t.stats.EncodeErrors.Add(1)
		return
	}

	buf, err := rtpwire.Build(rtpwire.Frame{
		SequenceNumber: *seq,
		Timestamp:      *timestamp,
		SSRC:           t.ssrc,
		PayloadType:    uint8(t.codec.PayloadType()),
		Payload:        payload,
	})
	if err != nil {
		t.stats.EncodeErrors.Add(1)
		return
	}

	remote := t.endpoint.FixedRemote()
	if _, err := t.endpoint.WriteTo(buf, remote); err != nil {
		t.logger.Debug("rtp send error", "error", err)
		return
	}

	t.stats.PacketsSent.Add(1)
	t.stats.BytesOut.Add(uint64(len(buf)))

	*seq = rtpwire.NextSequence(*seq)
	*timestamp = rtpwire.NextTimestamp(*timestamp, uint32(t.samplesPerPacket))
}

// downmixInto converts interleaved frames at inChannels down to
// outChannels into the preallocated dst; only mono<-stereo is exercised
// today, as (L+R)/2 ahead of a mono encoder. dst must already
// be sized len(frames)/inChannels*outChannels; downmixInto never
// allocates.
func downmixInto(frames []float32, inChannels int, dst []float32, outChannels int) {
	n := len(frames) / inChannels
	for i := 0; i < n; i++ {
		var sum float32
		for ch := 0; ch < inChannels; ch++ {
			sum += frames[i*inChannels+ch]
		}
		mono := sum / float32(inChannels)
		for ch := 0; ch < outChannels; ch++ {
			dst[i*outChannels+ch] = mono
		}
	}
}
