package bassaes67

import (
	"testing"

	"github.com/casterplay/BassAES67-sub000/internal/pipeline"
)

func TestRingCapacitySamplesSimplePolicy(t *testing.T) {
	policy := pipeline.BufferPolicy{Kind: pipeline.BufferPolicySimple, TargetMS: 20}
	got := ringCapacitySamples(policy, 48000, 2)
	// 3 x 20ms x 48000 x 2ch = 5760 samples.
	want := 3 * 20 * 48 * 2
	if got != want {
		t.Fatalf("ringCapacitySamples = %d, want %d", got, want)
	}
}

func TestRingCapacitySamplesMinMaxPolicy(t *testing.T) {
	policy := pipeline.BufferPolicy{Kind: pipeline.BufferPolicyMinMax, MinMS: 10, MaxMS: 50}
	got := ringCapacitySamples(policy, 48000, 1)
	want := 2 * 50 * 48
	if got != want {
		t.Fatalf("ringCapacitySamples = %d, want %d", got, want)
	}
}

func TestStreamInfoReportsDecodeStreamFlag(t *testing.T) {
	sh := NewShim(testLogger())
	cfg := sh.NewStreamConfig()
	cfg.Direction = DirectionReceive
	cfg.InterfaceIP = "127.0.0.1"
	cfg.DecodeStream = true

	s, err := sh.CreateStream(cfg)
	if err != nil {
		t.Fatalf("CreateStream: %v", err)
	}
	defer sh.FreeStream(s.Handle)

	info := s.Info()
	if info.Flags&InfoFlagDecodeStream == 0 {
		t.Fatal("expected InfoFlagDecodeStream to be set")
	}
}

func TestStreamStatsReportScalesBufferLevel(t *testing.T) {
	sh := NewShim(testLogger())
	cfg := sh.NewStreamConfig()
	cfg.Direction = DirectionReceive
	cfg.InterfaceIP = "127.0.0.1"
	cfg.JitterMS = 20
	cfg.Channels = 2

	s, err := sh.CreateStream(cfg)
	if err != nil {
		t.Fatalf("CreateStream: %v", err)
	}
	defer sh.FreeStream(s.Handle)

	// 20ms at 48kHz stereo is 960 samples per channel; report exactly on
	// target as level 100.
	s.stats.BufferLevelSamples.Store(960 * 2)
	report := s.StatsReport()
	if report.BufferLevel != 100 {
		t.Fatalf("BufferLevel = %d, want 100 at target occupancy", report.BufferLevel)
	}
	if report.PacketTimeUs != 1000 {
		t.Fatalf("PacketTimeUs = %d, want 1000", report.PacketTimeUs)
	}
	if report.TargetPackets != 20 {
		t.Fatalf("TargetPackets = %d, want 20 (20ms of 1ms packets)", report.TargetPackets)
	}

	s.stats.BufferLevelSamples.Store(960 * 2 * 5)
	if report := s.StatsReport(); report.BufferLevel != 200 {
		t.Fatalf("BufferLevel = %d, want clamp at 200", report.BufferLevel)
	}
}

func TestStreamPullOnTransmitStreamPanics(t *testing.T) {
	sh := NewShim(testLogger())
	cfg := sh.NewStreamConfig()
	cfg.Direction = DirectionTransmit
	cfg.InterfaceIP = "127.0.0.1"

	s, err := sh.CreateStream(cfg)
	if err != nil {
		t.Fatalf("CreateStream: %v", err)
	}
	defer sh.FreeStream(s.Handle)

	defer func() {
		if recover() == nil {
			t.Fatal("expected Pull on a transmit stream to panic")
		}
	}()
	s.Pull(make([]float32, 4))
}
