// Package feasibility implements the per-core EDF-VD schedulability test
// and speed-up-factor search (component C3), grounded on
// check_schedulability in the original implementation's check_functions.c.
package feasibility

import "github.com/mc-edfvd/simulator/pkg/task"

// Result is the outcome of analyzing one core: the speed-up factor x and
// the threshold criticality level k. X == 0 means the core is unschedulable
// and must be forced SHUTDOWN.
type Result struct {
	X float64
	K int
}

// Unschedulable is the zero-value result for an infeasible core.
func Unschedulable() Result { return Result{X: 0, K: 0} }

// Analyze runs the three-step EDF-VD admission test (§4.1) for the tasks
// pinned to the given core.
func Analyze(ts *task.Set, core int) Result {
	indices := ts.OnCore(core)
	if len(indices) == 0 {
		return Result{X: 1, K: task.MaxCriticalityLevels - 1}
	}

	util := utilizationMatrix(ts, indices)

	if !feasible(util) {
		return Unschedulable()
	}

	trivialSum := 0.0
	for l := 0; l < task.MaxCriticalityLevels; l++ {
		trivialSum += util[l][l]
	}

	if trivialSum <= 1.0 {
		return Result{X: 1, K: task.MaxCriticalityLevels - 1}
	}

	for k := 0; k <= task.MaxCriticalityLevels-2; k++ {
		uLo := 0.0
		for j := 0; j <= k; j++ {
			uLo += util[j][j]
		}

		if uLo > 1.0 {
			continue
		}

		uHiHi := 0.0
		uHiLo := 0.0

		for j := k + 1; j < task.MaxCriticalityLevels; j++ {
			uHiHi += util[j][j]
			uHiLo += util[j][k]
		}

		x := 0.0
		if uLo < 1.0 {
			x = uHiLo / (1.0 - uLo)
		} else if uHiLo > 0 {
			x = 1.0
		}

		if x*uLo+uHiHi <= 1.0 {
			return Result{X: x, K: k}
		}
	}

	return Unschedulable()
}

// utilizationMatrix returns U[l][k] = sum of util[k] over tasks on this core
// with criticality_lvl == l.
func utilizationMatrix(ts *task.Set, indices []int) [task.MaxCriticalityLevels][task.MaxCriticalityLevels]float64 {
	var u [task.MaxCriticalityLevels][task.MaxCriticalityLevels]float64

	for _, idx := range indices {
		t := &ts.Tasks[idx]
		for k := 0; k < task.MaxCriticalityLevels; k++ {
			u[t.CriticalityLevel][k] += t.Utilization(k)
		}
	}

	return u
}

// feasible checks, for each level l, that the sum of U[j][l] over j >= l
// does not exceed 1 — the necessary condition before any (x, k) search.
func feasible(u [task.MaxCriticalityLevels][task.MaxCriticalityLevels]float64) bool {
	for l := 0; l < task.MaxCriticalityLevels; l++ {
		sum := 0.0
		for j := l; j < task.MaxCriticalityLevels; j++ {
			sum += u[j][l]
		}

		if sum > 1.0 {
			return false
		}
	}

	return true
}

// SetVirtualDeadlines applies the result of Analyze to every task pinned to
// core, writing into rs.VirtualDeadline (§4.1's last paragraph): tasks above
// the threshold get VD = x*D, others keep VD = D.
func SetVirtualDeadlines(ts *task.Set, rs *task.RuntimeState, core int, result Result) {
	for _, idx := range ts.OnCore(core) {
		t := &ts.Tasks[idx]
		if t.CriticalityLevel > result.K {
			rs.VirtualDeadline[idx] = result.X * t.RelativeDeadline
		} else {
			rs.VirtualDeadline[idx] = t.RelativeDeadline
		}
	}
}

// ResetVirtualDeadlines restores VD = D for every task on core whose
// criticality is above k, as required when a criticality escalation crosses
// the core's threshold (§4.1 last sentence, §4.3 step 6).
func ResetVirtualDeadlines(ts *task.Set, rs *task.RuntimeState, core, k int) {
	for _, idx := range ts.OnCore(core) {
		t := &ts.Tasks[idx]
		if t.CriticalityLevel > k {
			rs.VirtualDeadline[idx] = t.RelativeDeadline
		}
	}
}
