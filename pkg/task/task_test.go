package task

import "testing"

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

func TestTaskUtilization(t *testing.T) {
	t.Parallel()

	tk := Task{Period: 10, WCET: [MaxCriticalityLevels]float64{2, 6}}

	requireFloatApprox(t, tk.Utilization(0), 0.2, 1e-9, "low utilization")
	requireFloatApprox(t, tk.Utilization(1), 0.6, 1e-9, "high utilization")
}

func TestTaskUtilizationZeroPeriod(t *testing.T) {
	t.Parallel()

	tk := Task{Period: 0, WCET: [MaxCriticalityLevels]float64{2, 6}}

	requireFloatApprox(t, tk.Utilization(0), 0, 1e-9, "zero-period utilization")
}

func TestTaskReleaseTime(t *testing.T) {
	t.Parallel()

	tk := Task{Phase: 2, Period: 5}

	requireFloatApprox(t, tk.ReleaseTime(0), 2, 1e-9, "release 0")
	requireFloatApprox(t, tk.ReleaseTime(3), 17, 1e-9, "release 3")
}

func TestSetOnCore(t *testing.T) {
	t.Parallel()

	set := Set{Tasks: []Task{
		{Number: 0, Core: 0},
		{Number: 1, Core: 1},
		{Number: 2, Core: 0},
	}}

	got := set.OnCore(0)
	want := []int{0, 2}

	if len(got) != len(want) {
		t.Fatalf("OnCore(0) = %v, want %v", got, want)
	}

	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("OnCore(0)[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestNewJob(t *testing.T) {
	t.Parallel()

	wcet := [MaxCriticalityLevels]float64{2, 6}
	j := NewJob(0, 1, 10, 3, 8, 0, wcet)

	if j.TaskNumber != 0 || j.JobNumber != 1 {
		t.Fatalf("unexpected identity: %+v", j)
	}

	requireFloatApprox(t, j.AbsoluteDeadline, 18, 1e-9, "absolute deadline")
	requireFloatApprox(t, j.RemExecTime, 3, 1e-9, "rem exec time")
	requireFloatApprox(t, j.WCETCounter, 2, 1e-9, "wcet counter at level 0")
}

func TestActualExecutionTimePrefersTrace(t *testing.T) {
	t.Parallel()

	tk := Task{Number: 0, WCET: [MaxCriticalityLevels]float64{2, 6}, ExecTimes: []float64{1.5, 2.5}}

	value, fallback := ActualExecutionTime(&tk, 1, 0)
	if fallback {
		t.Fatalf("expected trace value, got fallback")
	}

	requireFloatApprox(t, value, 2.5, 1e-9, "traced execution time")
}

func TestActualExecutionTimeFallsBackDeterministically(t *testing.T) {
	t.Parallel()

	tk := Task{Number: 4, WCET: [MaxCriticalityLevels]float64{2, 6}, ExecTimes: []float64{1.5}}

	first, fallback := ActualExecutionTime(&tk, 3, 0)
	if !fallback {
		t.Fatalf("expected fallback beyond trace length")
	}

	second, _ := ActualExecutionTime(&tk, 3, 0)
	requireFloatApprox(t, first, second, 1e-12, "fallback must be deterministic across calls")

	if first <= 0 {
		t.Fatalf("fallback execution time must be positive, got %v", first)
	}
}
