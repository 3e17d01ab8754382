package jitterring

import "testing"

func TestPushPopRoundTrip(t *testing.T) {
	r := New(12, 2) // 6 frames * 2 channels = 12 samples

	frame := []float32{0.1, -0.1, 0.2, -0.2}
	if ok := r.PushSlice(frame); !ok {
		t.Fatal("expected push to succeed")
	}
	if got := r.Occupancy(); got != 4 {
		t.Fatalf("Occupancy() = %d, want 4", got)
	}

	out := make([]float32, 4)
	n := r.PopSlice(out)
	if n != 4 {
		t.Fatalf("PopSlice returned %d, want 4", n)
	}
	for i, v := range frame {
		if out[i] != v {
			t.Errorf("out[%d] = %v, want %v", i, out[i], v)
		}
	}
	if r.Occupancy() != 0 {
		t.Fatalf("expected empty ring after full pop, got occupancy %d", r.Occupancy())
	}
}

func TestPushRefusesPartialFrame(t *testing.T) {
	r := New(12, 2)
	// 3 samples is not a multiple of 2 channels.
	if ok := r.PushSlice([]float32{1, 2, 3}); ok {
		t.Fatal("expected push of misaligned length to be refused")
	}
	if r.PacketsDropped() != 1 {
		t.Fatalf("PacketsDropped() = %d, want 1", r.PacketsDropped())
	}
}

func TestPushRefusesWholeBlockOnInsufficientVacancy(t *testing.T) {
	r := New(4, 2) // capacity 4 samples = 2 frames

	if ok := r.PushSlice([]float32{1, 2, 3, 4}); !ok {
		t.Fatal("expected first push to fill capacity")
	}
	// No vacancy left; a second whole-block push must be refused entirely,
	// not partially accepted.
	if ok := r.PushSlice([]float32{5, 6}); ok {
		t.Fatal("expected push to be refused when vacancy is insufficient")
	}
	if r.Occupancy() != 4 {
		t.Fatalf("occupancy should be unchanged after refused push, got %d", r.Occupancy())
	}
	if r.PacketsDropped() != 1 {
		t.Fatalf("PacketsDropped() = %d, want 1", r.PacketsDropped())
	}
}

func TestPopReturnsPartialOnUnderrun(t *testing.T) {
	r := New(12, 2)
	r.PushSlice([]float32{1, 2})

	out := make([]float32, 8)
	n := r.PopSlice(out)
	if n != 2 {
		t.Fatalf("PopSlice returned %d, want 2 (partial)", n)
	}
}

func TestOccupancyPlusVacancyEqualsCapacity(t *testing.T) {
	r := New(16, 2)
	pushes := [][]float32{
		{1, 2, 3, 4},
		{5, 6},
		{7, 8, 9, 10, 11, 12},
	}
	for _, p := range pushes {
		r.PushSlice(p)
		if r.Occupancy()+r.Vacancy() != r.Capacity() {
			t.Fatalf("invariant broken: occupancy(%d) + vacancy(%d) != capacity(%d)",
				r.Occupancy(), r.Vacancy(), r.Capacity())
		}
		if r.Occupancy()%r.Channels() != 0 {
			t.Fatalf("occupancy %d not a multiple of channel count %d", r.Occupancy(), r.Channels())
		}
	}
}

func TestCapacityRoundsDownToFrameMultiple(t *testing.T) {
	r := New(10, 3) // 10/3 = 3 frames -> 9 samples
	if r.Capacity() != 9 {
		t.Fatalf("Capacity() = %d, want 9", r.Capacity())
	}
}
