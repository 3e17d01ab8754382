package pipeline

import (
	"testing"

	"github.com/casterplay/BassAES67-sub000/internal/jitterring"
	"github.com/casterplay/BassAES67-sub000/internal/stats"
)

type fixedClock struct {
	locked bool
	ppm    float64
}

func (f fixedClock) IsLocked() bool { return f.locked }
func (f fixedClock) FrequencyPPM() float64 { return f.ppm }

func TestConsumerEmitsSilenceWhileBuffering(t *testing.T) {
	ring := jitterring.New(4800, 2)
	st := stats.New()
	c := NewConsumer(ring, st, fixedClock{}, BufferPolicy{Kind: BufferPolicySimple, TargetMS: 20}, 2, nil)

	dst := make([]float32, 96)
	for i := range dst {
		dst[i] = 1 // poison to make sure Pull actually zeroes it
	}
	c.Pull(dst, 48000)
	for i, v := range dst {
		if v != 0 {
			t.Fatalf("dst[%d] = %v, want 0 while buffering", i, v)
		}
	}
}

func TestConsumerClearsBufferingAtRecoveryThreshold(t *testing.T) {
	ring := jitterring.New(4800, 2)
	st := stats.New()
	c := NewConsumer(ring, st, fixedClock{}, BufferPolicy{Kind: BufferPolicySimple, TargetMS: 20}, 2, nil)

	// Fill to the 20ms target (48000*0.02*2 = 1920 samples).
	filler := make([]float32, 1920)
	for i := range filler {
		filler[i] = 0.5
	}
	ring.PushSlice(filler)

	dst := make([]float32, 96)
	c.Pull(dst, 48000)

	if c.buffering {
		t.Fatal("expected buffering to clear once occupancy reaches the recovery threshold")
	}
}

func TestConsumerGenerationChangeForcesBuffering(t *testing.T) {
	ring := jitterring.New(4800, 2)
	st := stats.New()
	gen := uint64(0)
	c := NewConsumer(ring, st, fixedClock{}, BufferPolicy{Kind: BufferPolicySimple, TargetMS: 20}, 2, func() uint64 { return gen })

	filler := make([]float32, 1920)
	ring.PushSlice(filler)
	dst := make([]float32, 96)
	c.Pull(dst, 48000)
	if c.buffering {
		t.Fatal("expected buffering cleared before generation change")
	}

	gen = 1
	c.Pull(dst, 48000)
	if !c.buffering {
		t.Fatal("expected generation change to force buffering")
	}
}

func TestCriticalThresholdStaysBelowRecovery(t *testing.T) {
	for _, targetMS := range []uint32{10, 20, 50, 100, 200, 500} {
		c := NewConsumer(jitterring.New(48000, 2), stats.New(), fixedClock{},
			BufferPolicy{Kind: BufferPolicySimple, TargetMS: targetMS}, 2, nil)
		crit := c.criticalSamples(48000)
		recovery := c.policy.targetSamples(48000)
		if crit >= recovery {
			t.Errorf("target %dms: critical %d >= recovery %d, buffering would oscillate", targetMS, crit, recovery)
		}
	}
}

func TestIntegralPreservedAcrossPulls(t *testing.T) {
	ring := jitterring.New(48000, 2)
	st := stats.New()
	c := NewConsumer(ring, st, fixedClock{}, BufferPolicy{Kind: BufferPolicySimple, TargetMS: 20}, 2, nil)

	filler := make([]float32, 1920*4)
	ring.PushSlice(filler)
	dst := make([]float32, 96)
	c.Pull(dst, 48000)
	firstIntegral := c.integral

	c.Pull(dst, 48000)
	if c.integral == 0 && firstIntegral == 0 {
		// both legitimately zero only if occupancy sits exactly at target;
		// otherwise this would indicate a reset happened between calls.
		t.Skip("integral stayed at zero on both pulls, inconclusive")
	}

	c.ResetIntegral()
	if c.integral != 0 {
		t.Fatal("ResetIntegral should zero the integral term")
	}
}
