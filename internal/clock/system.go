package clock

import "sync/atomic"

// systemClock is the always-available free-running fallback clock. It is
// always locked, reports zero ppm and zero offset, and never fails.
type systemClock struct {
	running atomic.Bool
}

func newSystemClock() *systemClock {
	return &systemClock{}
}

func (s *systemClock) Start(_ string, _ uint8) error {
	s.running.Store(true)
	return nil
}

func (s *systemClock) Stop() {
	s.running.Store(false)
}

func (s *systemClock) Read() Reading {
	return Reading{
		Running:      s.running.Load(),
		Locked:       true,
		FrequencyPPM: 0,
		OffsetNS:     0,
		State:        StateSlave,
	}
}
