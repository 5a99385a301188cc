package sim

import (
	"errors"
	"fmt"
)

// Sentinel errors identifying the kinds §7 enumerates. Callers use
// errors.Is / errors.As against these to distinguish failure modes without
// depending on message text.
var (
	// ErrInput signals a missing or malformed input file.
	ErrInput = errors.New("sim: input error")
	// ErrInfeasibleTaskSet signals every core was found unschedulable.
	ErrInfeasibleTaskSet = errors.New("sim: not schedulable")
	// ErrAllocationFailure signals the task-to-core allocation could not be
	// applied (e.g. an allocation line naming a task index that does not
	// exist).
	ErrAllocationFailure = errors.New("sim: allocation failure")
)

// DeadlineMissError reports a job that completed after its deadline. Per
// §7/SPEC_FULL.md item 8, a miss terminates only the owning core's schedule.
// The kernel does not construct this type: Run reports a miss through
// Sink.DeadlineMissed and returns no error for it.
type DeadlineMissError struct {
	Core int
	Task int
	Job  int
	Time float64
}

func (e *DeadlineMissError) Error() string {
	return fmt.Sprintf("sim: core %d missed deadline for task %d job %d at t=%.5f", e.Core, e.Task, e.Job, e.Time)
}
