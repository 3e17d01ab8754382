package stats

import (
	"testing"
	"time"
)

func TestNewInitializesDetectedPTToInvalid(t *testing.T) {
	s := New()
	snap := s.Snapshot()
	if s.DetectedPT.Load() != -1 {
		t.Fatalf("DetectedPT = %d, want -1", s.DetectedPT.Load())
	}
	if snap.ConnectionState != ConnectionDisconnected {
		t.Fatalf("ConnectionState = %v, want Disconnected", snap.ConnectionState)
	}
}

func TestCountersAccumulate(t *testing.T) {
	s := New()
	s.PacketsReceived.Add(10)
	s.PacketsDropped.Add(2)
	s.BytesIn.Add(1500)

	snap := s.Snapshot()
	if snap.PacketsReceived != 10 || snap.PacketsDropped != 2 || snap.BytesIn != 1500 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
}

func TestTaskInvokesCallbackPeriodically(t *testing.T) {
	s := New()
	s.PacketsReceived.Add(5)

	results := make(chan Snapshot, 4)
	task := NewTask(1, s, MinCallbackInterval, func(handle uint64, snap Snapshot) {
		if handle != 1 {
			t.Errorf("handle = %d, want 1", handle)
		}
		results <- snap
	})
	task.Start()
	defer task.Stop()

	select {
	case snap := <-results:
		if snap.PacketsReceived != 5 {
			t.Fatalf("PacketsReceived = %d, want 5", snap.PacketsReceived)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatal("callback was not invoked within 500ms")
	}
}

func TestTaskClampsIntervalToMinimum(t *testing.T) {
	s := New()
	task := NewTask(1, s, 1*time.Millisecond, func(uint64, Snapshot) {})
	if task.interval != MinCallbackInterval {
		t.Fatalf("interval = %v, want %v", task.interval, MinCallbackInterval)
	}
}
