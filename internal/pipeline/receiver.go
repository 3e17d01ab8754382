// Package pipeline implements the receive-side Receiver/Consumer pair
// and the transmit-side Transmitter that carry audio between the network and
// the host callback.
package pipeline

import (
	"errors"
	"log/slog"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/casterplay/BassAES67-sub000/internal/audiocodec"
	"github.com/casterplay/BassAES67-sub000/internal/jitterring"
	"github.com/casterplay/BassAES67-sub000/internal/rtpwire"
	"github.com/casterplay/BassAES67-sub000/internal/stats"
	"github.com/casterplay/BassAES67-sub000/internal/udpendpoint"
)

// warmupMinDuration is the minimum silence window emitted into the ring
// after a decoder swap, to avoid audible artefacts while the new
// decoder's internal state builds up.
const warmupMinDuration = 50 * time.Millisecond

// connectionIdleTimeout is how long a receive-direction stream waits
// without a packet before reporting Disconnected to its
// ConnectionStateCallback — the "Disconnected-on-last-packet" half of
// the pure-multicast-receiver callback semantics.
const connectionIdleTimeout = 2 * time.Second

// CodecParams carries the construction parameters a Receiver passes to
// audiocodec.New whenever it swaps decoders.
type CodecParams struct {
	SampleRate int
	Channels   int
	EnableL20  bool

	// DynamicCodec resolves what PT 96 carries for this stream; the wire
	// conveys only the payload-type number.
	DynamicCodec rtpwire.Codec
}

// Receiver is the per-stream receive-side goroutine: it reads datagrams
// from a UdpEndpoint, parses and decodes them, and pushes decoded audio
// into a JitterRing, applying the whole-frame-drop discipline and
// dynamic-decoder-switching contract.
type Receiver struct {
	endpoint *udpendpoint.Endpoint
	ring     *jitterring.Ring
	stats    *stats.Stats
	params   CodecParams
	logger   *slog.Logger

	running generation // bundles the running flag with the generation counter

	currentPT atomic.Int32 // -1 until the first packet
	codec     audiocodec.Codec
	ssrc      atomic.Uint32
	ssrcSeen  atomic.Bool

	// lastSeq/seqSeen live on the receive goroutine only: sequence numbers
	// are observed to count loss, never to reorder.
	lastSeq uint16
	seqSeen bool

	lastPacket   atomic.Int64 // unix nanos; zero means "never seen one"
	onConnState  func(stats.ConnectionState)

	wg sync.WaitGroup
}

// generation tracks the receive-side run flag and the generation counter
// the Consumer polls to detect an SSRC or PT change.
type generation struct {
	flag atomic.Bool
	gen  atomic.Uint64
}

// NewReceiver constructs a Receiver. The initial decoder is deferred to
// the first received packet's payload type, matching "detect PT change"
// against an unset current PT. onConnState may be
// nil; when set, it is invoked (off the audio callback path) on
// Connected/Disconnected transitions.
func NewReceiver(endpoint *udpendpoint.Endpoint, ring *jitterring.Ring, st *stats.Stats, params CodecParams, logger *slog.Logger, onConnState func(stats.ConnectionState)) *Receiver {
	r := &Receiver{
		endpoint:    endpoint,
		ring:        ring,
		stats:       st,
		params:      params,
		logger:      logger.With("subsystem", "rtp-receiver"),
		onConnState: onConnState,
	}
	r.currentPT.Store(-1)
	return r
}

// Generation returns the current generation counter for the Consumer to
// compare against its own last-observed value.
func (r *Receiver) Generation() uint64 { return r.running.gen.Load() }

// Start launches the receive goroutine.
func (r *Receiver) Start() {
	r.running.flag.Store(true)
	r.wg.Add(1)
	go r.run()
}

// Stop clears the running flag and waits for the goroutine to exit.
func (r *Receiver) Stop() {
	r.running.flag.Store(false)
	r.wg.Wait()
}

const maxRTPPacket = 1500

func (r *Receiver) run() {
	defer r.wg.Done()

	buf := make([]byte, maxRTPPacket)
	for r.running.flag.Load() {
		n, _, err := r.endpoint.ReadFrom(buf)
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				r.checkIdle()
				continue
			}
			if errors.Is(err, os.ErrDeadlineExceeded) {
				r.checkIdle()
				continue
			}
			r.logger.Debug("rtp read error", "error", err)
			continue
		}

		frame, err := rtpwire.Parse(buf[:n])
		if err != nil {
			r.stats.DecodeErrors.Add(1)
			continue
		}
		r.stats.PacketsReceived.Add(1)
		r.stats.BytesIn.Add(uint64(n))
		r.stats.DetectedPT.Store(int32(frame.PayloadType))
		r.observeSequence(frame.SequenceNumber)
		r.markConnected()

		r.handlePacket(frame)
	}
}

// observeSequence counts sequence gaps as late packets. Packets are still
// decoded in arrival order; there is no reordering buffer, so a
// gap-then-backfill arrival counts the backfilled packet late as well.
func (r *Receiver) observeSequence(seq uint16) {
	if r.seqSeen {
		if delta := seq - r.lastSeq; delta != 1 {
			r.stats.PacketsLate.Add(1)
		}
	}
	r.lastSeq = seq
	r.seqSeen = true
}

// markConnected records the arrival time of a packet and, on the first
// packet or on recovery from an idle timeout, reports Connected.
func (r *Receiver) markConnected() {
	wasIdle := r.lastPacket.Load() == 0 || time.Since(time.Unix(0, r.lastPacket.Load())) > connectionIdleTimeout
	r.lastPacket.Store(time.Now().UnixNano())
	if wasIdle {
		r.stats.ConnState.Store(int32(stats.ConnectionConnected))
		if r.onConnState != nil {
			r.onConnState(stats.ConnectionConnected)
		}
	}
}

// checkIdle runs on every read-timeout tick: if no packet has arrived
// within connectionIdleTimeout, reports Disconnected exactly once per
// idle period.
func (r *Receiver) checkIdle() {
	last := r.lastPacket.Load()
	if last == 0 {
		return
	}
	if time.Since(time.Unix(0, last)) <= connectionIdleTimeout {
		return
	}
	if stats.ConnectionState(r.stats.ConnState.Load()) == stats.ConnectionDisconnected {
		return
	}
	r.stats.ConnState.Store(int32(stats.ConnectionDisconnected))
	if r.onConnState != nil {
		r.onConnState(stats.ConnectionDisconnected)
	}
}

func (r *Receiver) handlePacket(frame rtpwire.Frame) {
	changed := r.detectChange(frame)
	if changed {
		r.swapDecoder(rtpwire.PayloadType(frame.PayloadType))
	}
	if r.codec == nil {
		r.stats.DecodeErrors.Add(1)
		return
	}

	result, err := r.codec.Decode(frame.Payload)
	if err != nil {
		r.stats.DecodeErrors.Add(1)
		return
	}
	switch result.Status {
	case audiocodec.DecodeNeedMore:
		return
	case audiocodec.DecodeNewFormat:
		if result.SampleRate != r.params.SampleRate || result.Channels != r.params.Channels {
			r.stats.DecodeErrors.Add(1)
			r.swapDecoder(rtpwire.PayloadType(frame.PayloadType))
		}
		return
	}

	r.pushDecoded(result.Samples)
}

// detectChange reports whether the packet's SSRC or payload type differs
// from what the receiver is currently tracking.
func (r *Receiver) detectChange(frame rtpwire.Frame) bool {
	ssrcChanged := !r.ssrcSeen.Load() || r.ssrc.Load() != frame.SSRC
	ptChanged := r.currentPT.Load() != int32(frame.PayloadType)
	if ssrcChanged {
		r.ssrc.Store(frame.SSRC)
		r.ssrcSeen.Store(true)
	}
	return ssrcChanged || ptChanged
}

func (r *Receiver) swapDecoder(pt rtpwire.PayloadType) {
	codec, err := audiocodec.New(pt, audiocodec.DirectionReceive, audiocodec.Params{
		SampleRate:   r.params.SampleRate,
		Channels:     r.params.Channels,
		EnableL20:    r.params.EnableL20,
		DynamicCodec: r.params.DynamicCodec,
	})
	if err != nil {
		r.logger.Warn("decoder swap failed", "payload_type", pt, "error", err)
		r.codec = nil
		r.currentPT.Store(int32(pt))
		r.running.gen.Add(1)
		return
	}

	r.codec = codec
	r.currentPT.Store(int32(pt))
	r.running.gen.Add(1)

	r.emitWarmupSilence()
}

// emitWarmupSilence pushes at least warmupMinDuration of silence into the
// ring ahead of resuming decode.
func (r *Receiver) emitWarmupSilence() {
	frameSamplesPerChannel := int(float64(r.params.SampleRate) * warmupMinDuration.Seconds())
	if frameSamplesPerChannel < 1 {
		frameSamplesPerChannel = 1
	}
	silence := make([]float32, frameSamplesPerChannel*r.params.Channels)
	r.pushDecoded(silence)
}

// pushDecoded applies the whole-frame-drop discipline: if the ring lacks
// vacancy for the entire decoded block, the block is dropped in full
// rather than partially written.
func (r *Receiver) pushDecoded(samples []float32) {
	if len(samples) == 0 {
		return
	}
	if r.ring.Vacancy() < len(samples) {
		r.stats.PacketsDropped.Add(1)
		return
	}
	if !r.ring.PushSlice(samples) {
		r.stats.PacketsDropped.Add(1)
	}
}
