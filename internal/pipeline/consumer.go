package pipeline

import (
	"github.com/casterplay/BassAES67-sub000/internal/jitterring"
	"github.com/casterplay/BassAES67-sub000/internal/stats"
)

// BufferPolicyKind selects which rate-controller error shaping Consumer
// applies.
type BufferPolicyKind int

const (
	BufferPolicySimple BufferPolicyKind = iota
	BufferPolicyMinMax
)

// BufferPolicy is a stream's jitter-buffer target configuration.
type BufferPolicy struct {
	Kind BufferPolicyKind
	// TargetMS is used by BufferPolicySimple.
	TargetMS uint32
	// MinMS/MaxMS are used by BufferPolicyMinMax.
	MinMS uint32
	MaxMS uint32
}

// targetSamples returns the occupancy target in samples per channel,
// given the stream's sample rate.
func (p BufferPolicy) targetSamples(sampleRate int) int {
	ms := p.TargetMS
	if p.Kind == BufferPolicyMinMax {
		ms = (p.MinMS + p.MaxMS) / 2
	}
	return int(float64(sampleRate) * float64(ms) / 1000.0)
}

func (p BufferPolicy) maxSamples(sampleRate int) int {
	if p.Kind != BufferPolicyMinMax {
		return 0
	}
	return int(float64(sampleRate) * float64(p.MaxMS) / 1000.0)
}

// ClockSource is the subset of clock.Reader the rate controller's
// feedforward term needs.
type ClockSource interface {
	IsLocked() bool
	FrequencyPPM() float64
}

// Rate-controller gains.
const (
	kp               = 1.0e-4
	ki               = 5.0e-5
	maxTrimPPMSimple = 20.0
	minMaxAmplify    = 3.0
	maxTrimPPMAboveMax = 100.0
)

// Consumer is the host-audio-thread side of InputPipeline: it pulls
// exactly the requested number of interleaved samples from the ring on
// every call, resampling to absorb clock drift and gating on a buffering
// flag during startup, underflow, and generation change.
//
// Pull runs on the host audio thread and must never block on a mutex;
// the contract guarantees exactly one caller of Pull at a
// time, so Consumer carries no lock and its scratch buffers (prev, curr)
// are owned outright by that single caller.
type Consumer struct {
	ring     *jitterring.Ring
	stats    *stats.Stats
	clock    ClockSource
	policy   BufferPolicy
	channels int

	buffering  bool
	integral   float64
	lastGen    uint64
	genSource  func() uint64
	pos        float64
	prev, curr []float32 // one frame (Channels samples) each, preallocated
	haveFrames bool
}

// NewConsumer constructs a Consumer. genSource is polled each Pull to
// detect receiver-side SSRC/PT changes.
func NewConsumer(ring *jitterring.Ring, st *stats.Stats, clk ClockSource, policy BufferPolicy, channels int, genSource func() uint64) *Consumer {
	c := &Consumer{
		ring:      ring,
		stats:     st,
		clock:     clk,
		policy:    policy,
		channels:  channels,
		buffering: true, // forced on initial start
		genSource: genSource,
		prev:      make([]float32, channels),
		curr:      make([]float32, channels),
	}
	return c
}

// criticalSamples is the underflow threshold, per channel, at which
// buffering is (re-)engaged: max(25% of target, 4608 samples), where 4608
// covers four MP2 frames (1152 samples per channel each) so a streaming decoder's burst cadence
// cannot starve the gate. For targets small enough that the floor would
// sit above the recovery threshold, it is clamped to 3/4 of target —
// without that clamp the consumer would re-enter buffering on the pull
// right after every recovery and alternate audio with silence forever.
func (c *Consumer) criticalSamples(sampleRate int) int {
	target := c.policy.targetSamples(sampleRate)
	crit := target / 4
	if crit < 4608 {
		crit = 4608
	}
	if ceil := target * 3 / 4; crit > ceil {
		crit = ceil
	}
	return crit
}

// Pull fills dst (interleaved, len must be a multiple of Channels) with
// exactly len(dst) samples, never short, resampling from the ring via a
// per-channel linear interpolator. Called from the host audio thread;
// acquires no lock and performs no dynamic allocation.
func (c *Consumer) Pull(dst []float32, sampleRate int) {
	if c.genSource != nil {
		if gen := c.genSource(); gen != c.lastGen {
			c.lastGen = gen
			c.buffering = true
			c.haveFrames = false
			c.pos = 0
		}
	}

	occupancy := c.ring.Occupancy() / c.channels
	c.stats.BufferLevelSamples.Store(int64(occupancy * c.channels))

	recoveryThreshold := c.policy.targetSamples(sampleRate)
	if c.buffering {
		if occupancy >= recoveryThreshold {
			c.buffering = false
		} else {
			zero(dst)
			return
		}
	} else if occupancy < c.criticalSamples(sampleRate) {
		c.buffering = true
		zero(dst)
		return
	}

	ratio := c.resampleRatio(occupancy, sampleRate)
	c.resample(dst, ratio)
}

func zero(dst []float32) {
	for i := range dst {
		dst[i] = 0
	}
}

// resampleRatio computes the PI-controlled resample ratio from the
// ring-occupancy error.
func (c *Consumer) resampleRatio(occupancy, sampleRate int) float64 {
	target := float64(c.policy.targetSamples(sampleRate))
	if target == 0 {
		target = 1
	}
	a := float64(occupancy)
	e := (a - target) / target

	maxTrimPPM := maxTrimPPMSimple
	if c.policy.Kind == BufferPolicyMinMax {
		maxSamples := c.policy.maxSamples(sampleRate)
		if maxSamples > 0 && occupancy > maxSamples {
			e *= minMaxAmplify
			maxTrimPPM = maxTrimPPMAboveMax
		}
	}

	iMax := maxTrimPPM / (ki * 1e6)
	c.integral += e
	if c.integral > iMax {
		c.integral = iMax
	}
	if c.integral < -iMax {
		c.integral = -iMax
	}

	trim := kp*e + ki*c.integral
	maxTrimFrac := maxTrimPPM / 1e6
	if trim > maxTrimFrac {
		trim = maxTrimFrac
	}
	if trim < -maxTrimFrac {
		trim = -maxTrimFrac
	}

	feedforward := 0.0
	if c.clock != nil && c.clock.IsLocked() {
		feedforward = c.clock.FrequencyPPM() / 1e6
	}

	ratio := 1 + feedforward + trim
	ppm := (feedforward + trim) * 1e6
	c.stats.PPMx1000.Store(int32(ppm * 1000))
	return ratio
}

// ResetIntegral clears the PI integral term. Must be called only from
// Stream.Start, strictly before the stream is handed to the host for
// pulling, and never again on buffering/running transitions: resetting
// on every transition causes oscillation.
func (c *Consumer) ResetIntegral() {
	c.integral = 0
}

// resample fills dst via a per-channel linear interpolator with phase
// pos advancing by ratio per output frame.
func (c *Consumer) resample(dst []float32, ratio float64) {
	nFrames := len(dst) / c.channels
	for f := 0; f < nFrames; f++ {
		if !c.haveFrames {
			if !c.popFrame(c.curr) {
				zero(dst[f*c.channels:])
				c.buffering = true
				c.stats.Underruns.Add(1)
				return
			}
			copy(c.prev, c.curr)
			c.haveFrames = true
			c.pos = 0
		}

		for ch := 0; ch < c.channels; ch++ {
			dst[f*c.channels+ch] = c.prev[ch] + (c.curr[ch]-c.prev[ch])*float32(c.pos)
		}

		c.pos += ratio
		for c.pos >= 1 {
			c.pos -= 1
			copy(c.prev, c.curr)
			if !c.popFrame(c.curr) {
				// Underflow mid-pull: emit silence for the remainder of
				// this Pull call.
				zero(dst[(f+1)*c.channels:])
				c.buffering = true
				c.stats.Underruns.Add(1)
				return
			}
		}
	}
}

// popFrame pops one frame (Channels samples) into dst, which must
// already be sized to Channels; it never allocates.
func (c *Consumer) popFrame(dst []float32) bool {
	n := c.ring.PopSlice(dst)
	return n >= c.channels
}
