package stats

import "testing"

func TestNewZeroed(t *testing.T) {
	t.Parallel()

	s := New(2)

	if len(s.ActiveEnergy) != 2 || len(s.DiscardedJobsExecuted) != 2 {
		t.Fatalf("expected counters sized for 2 cores: %+v", s)
	}

	if s.ActiveEnergy[0] != 0 || s.DiscardedJobs[1] != 0 {
		t.Fatalf("expected zeroed counters: %+v", s)
	}
}

func TestDiscardConservationHolds(t *testing.T) {
	t.Parallel()

	s := New(1)
	s.DiscardedJobsAvailable[0] = 4
	s.DiscardedJobsExecuted[0] = 4

	if !s.DiscardConservationHolds() {
		t.Fatalf("expected conservation to hold when available == executed")
	}

	s.DiscardedJobsExecuted[0] = 5

	if s.DiscardConservationHolds() {
		t.Fatalf("expected conservation to fail when executed exceeds available")
	}
}
