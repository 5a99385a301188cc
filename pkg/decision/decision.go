// Package decision implements the decision-point engine (component C6),
// grounded on find_decision_point in the original implementation's
// scheduling_auxiliary.c. It defines its own minimal core-state view rather
// than importing pkg/sim, so pkg/sim can depend on pkg/decision without a
// cycle.
package decision

import (
	"math"

	"github.com/mc-edfvd/simulator/pkg/task"
)

// Kind identifies which transition a Point represents.
type Kind int

const (
	// Arrival: a task's next job is released on this core.
	Arrival Kind = iota
	// Completion: the core's currently dispatched job finishes.
	Completion
	// CritChange: the running job's WCET budget at the current
	// criticality level is exhausted.
	CritChange
	// TimerExpire: a shut-down core's wake-up timer fires.
	TimerExpire
)

// String renders the decision kind the way the trace sink logs it.
func (k Kind) String() string {
	switch k {
	case Arrival:
		return "ARRIVAL"
	case Completion:
		return "COMPLETION"
	case CritChange:
		return "CRIT_CHANGE"
	case TimerExpire:
		return "TIMER_EXPIRE_ERR"
	default:
		return "UNKNOWN"
	}
}

// CoreState is the minimal per-core state the decision engine reads to
// compute candidate times; pkg/sim.Core is structurally compatible but this
// package never imports it.
type CoreState struct {
	Active             bool
	Terminated         bool
	Running            bool
	CompletionTime     float64
	WCETExceedTime     float64
	NextInvocationTime float64
}

// Point is an emitted decision: which core, at what simulated time, of what
// kind.
type Point struct {
	Core int
	Time float64
	Kind Kind
}

// Next computes the next global decision point across all cores (§4.2). It
// returns ok == false when every core's next candidate time is at or beyond
// the hyperperiod, signalling simulation termination.
func Next(ts *task.Set, rs *task.RuntimeState, cores []CoreState, critLevel int, hyperperiod float64) (Point, bool) {
	best := Point{Time: math.Inf(1)}
	found := false

	for i, c := range cores {
		t, kind, ok := coreCandidate(ts, rs, i, c, critLevel)
		if !ok {
			continue
		}

		if !found || t < best.Time {
			best = Point{Core: i, Time: t, Kind: kind}
			found = true
		}
	}

	if !found || best.Time >= hyperperiod {
		return Point{}, false
	}

	return best, true
}

// coreCandidate computes a single core's local minimum among its four
// candidate times and resolves the local tie-break
// (COMPLETION > TIMER_EXPIRE > CRIT_CHANGE > ARRIVAL).
func coreCandidate(ts *task.Set, rs *task.RuntimeState, coreIdx int, c CoreState, critLevel int) (float64, Kind, bool) {
	if c.Terminated {
		return 0, 0, false
	}

	arrivalTime := math.Inf(1)
	if c.Active {
		arrivalTime = earliestArrival(ts, rs, coreIdx)
	}

	completionTime := math.Inf(1)
	if c.Running {
		completionTime = c.CompletionTime
	}

	wcetTime := math.Inf(1)
	if c.Running && critLevel < task.MaxCriticalityLevels-1 {
		wcetTime = c.WCETExceedTime
	}

	expiryTime := math.Inf(1)
	if !c.Active {
		expiryTime = c.NextInvocationTime
	}

	min := completionTime
	kind := Completion

	if expiryTime < min {
		min, kind = expiryTime, TimerExpire
	}

	if wcetTime < min {
		min, kind = wcetTime, CritChange
	}

	if arrivalTime < min {
		min, kind = arrivalTime, Arrival
	}

	if math.IsInf(min, 1) {
		return 0, 0, false
	}

	return min, kind, true
}

// earliestArrival returns the minimum next release time across every task
// pinned to coreIdx, per find_earliest_arrival_job.
func earliestArrival(ts *task.Set, rs *task.RuntimeState, coreIdx int) float64 {
	min := math.Inf(1)

	for _, idx := range ts.OnCore(coreIdx) {
		t := &ts.Tasks[idx]
		release := t.ReleaseTime(rs.NextJobNumber[idx])

		if release < min {
			min = release
		}
	}

	return min
}
