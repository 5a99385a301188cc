package feasibility

import (
	"testing"

	"github.com/mc-edfvd/simulator/pkg/task"
)

func requireFloatApprox(t *testing.T, got, want, tolerance float64, msg string) {
	t.Helper()

	diff := got - want
	if diff < 0 {
		diff = -diff
	}

	if diff > tolerance {
		t.Fatalf("%s: got %v, want %v (tolerance %v)", msg, got, want, tolerance)
	}
}

func TestAnalyzeTrivialEDF(t *testing.T) {
	t.Parallel()

	ts := &task.Set{Tasks: []task.Task{
		{Number: 0, Core: 0, Period: 10, RelativeDeadline: 10, CriticalityLevel: 0, WCET: [2]float64{2, 2}},
		{Number: 1, Core: 0, Period: 20, RelativeDeadline: 20, CriticalityLevel: 1, WCET: [2]float64{3, 6}},
	}}

	result := Analyze(ts, 0)

	requireFloatApprox(t, result.X, 1, 1e-9, "trivial EDF x")
	if result.K != task.MaxCriticalityLevels-1 {
		t.Fatalf("expected k = Lmax-1, got %d", result.K)
	}
}

func TestAnalyzeEDFVDSearch(t *testing.T) {
	t.Parallel()

	// LO task {T=10, WCET=[4,4]} beside HI task {T=10, WCET=[3,7]}: the
	// trivial EDF sum 0.4 + 0.7 exceeds 1, so the search runs; at k = 0 it
	// gives x = 0.3 / (1 - 0.4) = 0.5, and 0.5*0.4 + 0.7 = 0.9 <= 1 accepts.
	ts := &task.Set{Tasks: []task.Task{
		{Number: 0, Core: 0, Period: 10, RelativeDeadline: 10, CriticalityLevel: 0, WCET: [2]float64{4, 4}},
		{Number: 1, Core: 0, Period: 10, RelativeDeadline: 10, CriticalityLevel: 1, WCET: [2]float64{3, 7}},
	}}

	result := Analyze(ts, 0)

	requireFloatApprox(t, result.X, 0.5, 1e-9, "x from the EDF-VD search")
	if result.K != 0 {
		t.Fatalf("expected k = 0, got %d", result.K)
	}
}

func TestAnalyzeUnschedulable(t *testing.T) {
	t.Parallel()

	ts := &task.Set{Tasks: []task.Task{
		{Number: 0, Core: 0, Period: 10, RelativeDeadline: 10, CriticalityLevel: 0, WCET: [2]float64{8, 8}},
		{Number: 1, Core: 0, Period: 10, RelativeDeadline: 10, CriticalityLevel: 1, WCET: [2]float64{8, 8}},
	}}

	result := Analyze(ts, 0)

	requireFloatApprox(t, result.X, 0, 1e-9, "infeasible core must report x = 0")
}

func TestAnalyzeEmptyCore(t *testing.T) {
	t.Parallel()

	ts := &task.Set{Tasks: []task.Task{{Number: 0, Core: 1, Period: 10, RelativeDeadline: 10}}}

	result := Analyze(ts, 0)

	requireFloatApprox(t, result.X, 1, 1e-9, "core with no tasks is trivially schedulable")
}

func TestAnalyzeIdempotent(t *testing.T) {
	t.Parallel()

	ts := &task.Set{Tasks: []task.Task{
		{Number: 0, Core: 0, Period: 10, RelativeDeadline: 10, CriticalityLevel: 1, WCET: [2]float64{3, 6}},
	}}

	first := Analyze(ts, 0)
	second := Analyze(ts, 0)

	if first != second {
		t.Fatalf("Analyze is not idempotent: %+v vs %+v", first, second)
	}
}

func TestSetAndResetVirtualDeadlines(t *testing.T) {
	t.Parallel()

	ts := &task.Set{Tasks: []task.Task{
		{Number: 0, Core: 0, Period: 10, RelativeDeadline: 10, CriticalityLevel: 0, WCET: [2]float64{4, 4}},
		{Number: 1, Core: 0, Period: 10, RelativeDeadline: 10, CriticalityLevel: 1, WCET: [2]float64{3, 7}},
	}}
	rs := task.NewRuntimeState(2)

	result := Analyze(ts, 0)
	SetVirtualDeadlines(ts, rs, 0, result)

	requireFloatApprox(t, rs.VirtualDeadline[1], result.X*10, 1e-9, "VD shrunk above threshold")

	ResetVirtualDeadlines(ts, rs, 0, result.K)

	requireFloatApprox(t, rs.VirtualDeadline[1], 10, 1e-9, "VD restored to D on reset")
}
