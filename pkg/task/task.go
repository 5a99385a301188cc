// Package task holds the immutable task/job data model (component C1).
package task

import "fmt"

// MaxCriticalityLevels is the compile-time size of every WCET/utilization
// vector. The reference kernel fixes this at two levels (LO, HI); nothing in
// the simulator depends on a value other than 2, but the constant keeps the
// fixed-size arrays self-documenting.
const MaxCriticalityLevels = 2

// Task is a periodic task descriptor. Every field here is set once during
// setup (input loading and virtual-deadline computation) and never mutated
// again while the simulation runs; the fields that genuinely change per
// simulated instant live in RuntimeState instead.
type Task struct {
	Number           int
	Phase            float64
	Period           float64
	RelativeDeadline float64
	CriticalityLevel int
	WCET             [MaxCriticalityLevels]float64
	Core             int
	ExecTimes        []float64
}

// Utilization returns WCET[level] / Period.
func (t *Task) Utilization(level int) float64 {
	if t.Period <= 0 {
		return 0
	}

	return t.WCET[level] / t.Period
}

// ReleaseTime returns the release time of the n'th job of this task:
// phase + period * n.
func (t *Task) ReleaseTime(n int) float64 {
	return t.Phase + t.Period*float64(n)
}

// Set is a frozen, period-sorted collection of tasks. Index order in Tasks
// is the task's Number for the remainder of the run: jobs, allocation, and
// the runtime state all index by this position.
type Set struct {
	Tasks []Task
}

// OnCore returns the indices of tasks pinned to the given core, in Set
// order (ascending period, since the set is sorted before use).
func (s *Set) OnCore(core int) []int {
	var out []int

	for i := range s.Tasks {
		if s.Tasks[i].Core == core {
			out = append(out, i)
		}
	}

	return out
}

// RuntimeState carries the two per-task quantities the reference mutates in
// place on the task struct: the next job number to release, and the task's
// current virtual deadline. Keeping these apart from Task lets Task stay
// immutable after setup, matching §3's "Task (immutable after setup)".
type RuntimeState struct {
	NextJobNumber   []int
	VirtualDeadline []float64
}

// NewRuntimeState allocates a RuntimeState sized for n tasks, with every
// task starting at job number 0 and an unset virtual deadline (callers must
// populate VirtualDeadline from feasibility.Analyze or a file-supplied x
// before the first job is released).
func NewRuntimeState(n int) *RuntimeState {
	return &RuntimeState{
		NextJobNumber:   make([]int, n),
		VirtualDeadline: make([]float64, n),
	}
}

// Job is a single released instance of a task. It is created on arrival and
// discarded on completion, deadline-driven expiry, or permanent drop from
// the discarded queue.
type Job struct {
	TaskNumber int
	JobNumber  int

	ReleaseTime      float64
	AbsoluteDeadline float64
	ExecutionTime    float64
	RemExecTime      float64
	WCETCounter      float64
	ScheduledTime    float64
	CompletionTime   float64

	// EverDiscarded and LastDiscardResidual support discarded_jobs_executed
	// (§4.7, §9): LastDiscardResidual is the rem_exec_time recorded the most
	// recent time this job was demoted into the discarded queue; if the job
	// later completes normally, that residual is credited to the owning
	// core's discarded_jobs_executed counter.
	EverDiscarded       bool
	LastDiscardResidual float64
}

// NewJob creates a job for the given task/job number, release time, and
// actual execution time (already resolved by the caller via ActualExecutionTime).
func NewJob(taskNumber, jobNumber int, releaseTime, executionTime, virtualDeadline float64, critLevel int, wcet [MaxCriticalityLevels]float64) *Job {
	return &Job{
		TaskNumber:       taskNumber,
		JobNumber:        jobNumber,
		ReleaseTime:      releaseTime,
		AbsoluteDeadline: releaseTime + virtualDeadline,
		ExecutionTime:    executionTime,
		RemExecTime:      executionTime,
		WCETCounter:      wcet[critLevel],
		ScheduledTime:    0,
		CompletionTime:   0,
	}
}

// String renders a job identity for logs: "task/job".
func (j *Job) String() string {
	if j == nil {
		return "<nil job>"
	}

	return fmt.Sprintf("%d/%d", j.TaskNumber, j.JobNumber)
}

// ActualExecutionTime resolves the actual execution time for the given job
// number of task t. It prefers the recorded trace (t.ExecTimes); when the
// trace is shorter than the job number requested, it falls back to a
// deterministic generator seeded by task and job number (never wall-clock
// randomness, so repeated runs stay reproducible), and reports that the
// fallback fired so the caller can log it.
func ActualExecutionTime(t *Task, jobNumber, execCritLevel int) (value float64, usedFallback bool) {
	if jobNumber >= 0 && jobNumber < len(t.ExecTimes) {
		return t.ExecTimes[jobNumber], false
	}

	return fallbackExecutionTime(t, jobNumber, execCritLevel), true
}

// fallbackExecutionTime reproduces the shape of the reference's
// find_actual_execution_time: a perturbation of the task's WCET at the given
// criticality level, biased over-budget roughly a quarter of the time. The
// reference drives the perturbation from rand(); here it is a pure function
// of (task number, job number) so that two runs over the same input always
// agree, as required by §5's "deterministic simulator."
func fallbackExecutionTime(t *Task, jobNumber, execCritLevel int) float64 {
	wcet := t.WCET[execCritLevel]

	mix := uint64(t.Number)*1_000_003 + uint64(jobNumber)*97 + 11
	direction := mix % 4 // 0: over-budget, 1..3: under-budget, matches the reference's 1-in-4 overrun bias
	fraction := float64((mix/4)%100) / 100.0

	if direction == 0 {
		return wcet * (1.0 + fraction*0.25)
	}

	return wcet * (0.5 + fraction*0.5)
}
