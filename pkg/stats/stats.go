// Package stats implements the per-core statistics aggregator (component
// C8), grounded on stats_struct in the original implementation's
// structs.h and initialize_stats_struct in auxiliary_functions.c.
package stats

// Stats holds the monotonically nondecreasing per-core counters §4.7
// enumerates. All fields are indexed by core number.
type Stats struct {
	ActiveEnergy            []float64
	IdleEnergy              []float64
	ShutdownTime            []float64
	ContextSwitches         []int
	ArrivalPoints           []int
	CompletionPoints        []int
	CriticalityChangePoints []int
	WakeupPoints            []int
	DiscardedJobs           []int
	DiscardedJobsAvailable  []float64
	DiscardedJobsExecuted   []float64
}

// New allocates a Stats sized for the given number of cores, all counters
// zeroed.
func New(numCores int) *Stats {
	return &Stats{
		ActiveEnergy:            make([]float64, numCores),
		IdleEnergy:              make([]float64, numCores),
		ShutdownTime:            make([]float64, numCores),
		ContextSwitches:         make([]int, numCores),
		ArrivalPoints:           make([]int, numCores),
		CompletionPoints:        make([]int, numCores),
		CriticalityChangePoints: make([]int, numCores),
		WakeupPoints:            make([]int, numCores),
		DiscardedJobs:           make([]int, numCores),
		DiscardedJobsAvailable:  make([]float64, numCores),
		DiscardedJobsExecuted:   make([]float64, numCores),
	}
}

// DiscardConservationHolds checks the §8 law that, for every core,
// discarded_jobs_available >= discarded_jobs_executed.
func (s *Stats) DiscardConservationHolds() bool {
	for i := range s.DiscardedJobsAvailable {
		if s.DiscardedJobsAvailable[i] < s.DiscardedJobsExecuted[i] {
			return false
		}
	}

	return true
}
