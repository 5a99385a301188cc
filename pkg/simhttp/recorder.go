// Package simhttp is the opt-in operability HTTP surface SPEC_FULL.md §6
// adds beyond spec.md's file-based interfaces: a JSON /status endpoint and
// an OpenMetrics /metrics endpoint, both served from a background goroutine
// while the kernel loop runs synchronously on the calling goroutine — the
// same separation the teacher draws between its synchronous
// adapt.Controller.Run and its concurrently-served metrics.Exporter.
//
// This package never feeds back into scheduling: it only reads a snapshot
// of simulator state under a mutex.
package simhttp

import (
	"sync"

	"github.com/mc-edfvd/simulator/pkg/stats"
)

// CoreStatus is one core's externally observable state.
type CoreStatus struct {
	Index     int     `json:"index"`
	State     string  `json:"state"`
	TotalTime float64 `json:"totalTime"`
	Running   bool    `json:"running"`
}

// StatsSnapshot is an independent copy of every pkg/stats counter, safe to
// read concurrently with the kernel loop that owns the original.
type StatsSnapshot struct {
	ActiveEnergy            []float64 `json:"activeEnergy"`
	IdleEnergy              []float64 `json:"idleEnergy"`
	ShutdownTime            []float64 `json:"shutdownTime"`
	ContextSwitches         []int     `json:"contextSwitches"`
	ArrivalPoints           []int     `json:"arrivalPoints"`
	CompletionPoints        []int     `json:"completionPoints"`
	CriticalityChangePoints []int     `json:"criticalityChangePoints"`
	WakeupPoints            []int     `json:"wakeupPoints"`
	DiscardedJobs           []int     `json:"discardedJobs"`
	DiscardedJobsAvailable  []float64 `json:"discardedJobsAvailable"`
	DiscardedJobsExecuted   []float64 `json:"discardedJobsExecuted"`
}

// State is the full point-in-time snapshot both handlers render from.
type State struct {
	SimTime   float64      `json:"simTime"`
	CritLevel int          `json:"critLevel"`
	Cores     []CoreStatus `json:"cores"`
	Stats     StatsSnapshot `json:"-"`
}

// NewState builds a State from live simulator values, copying every
// pkg/stats slice so the recorder never shares backing arrays with the
// kernel loop that keeps mutating them.
func NewState(simTime float64, critLevel int, cores []CoreStatus, st *stats.Stats) State {
	return State{
		SimTime:   simTime,
		CritLevel: critLevel,
		Cores:     cores,
		Stats: StatsSnapshot{
			ActiveEnergy:            append([]float64(nil), st.ActiveEnergy...),
			IdleEnergy:              append([]float64(nil), st.IdleEnergy...),
			ShutdownTime:            append([]float64(nil), st.ShutdownTime...),
			ContextSwitches:         append([]int(nil), st.ContextSwitches...),
			ArrivalPoints:           append([]int(nil), st.ArrivalPoints...),
			CompletionPoints:        append([]int(nil), st.CompletionPoints...),
			CriticalityChangePoints: append([]int(nil), st.CriticalityChangePoints...),
			WakeupPoints:            append([]int(nil), st.WakeupPoints...),
			DiscardedJobs:           append([]int(nil), st.DiscardedJobs...),
			DiscardedJobsAvailable:  append([]float64(nil), st.DiscardedJobsAvailable...),
			DiscardedJobsExecuted:   append([]float64(nil), st.DiscardedJobsExecuted...),
		},
	}
}

// Recorder is the single piece of shared state between the kernel loop
// (writer, one goroutine) and the HTTP handlers (readers, one goroutine per
// request).
type Recorder struct {
	mu    sync.RWMutex
	state State
}

// NewRecorder constructs an empty Recorder; handlers report 503 until the
// first Update.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Update replaces the current snapshot. Cheap enough to call after every
// decision point: a handful of small slice copies, no I/O.
func (r *Recorder) Update(s State) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}

func (r *Recorder) current() (State, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.state, r.state.Cores != nil
}
