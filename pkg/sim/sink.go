package sim

import (
	"github.com/mc-edfvd/simulator/pkg/decision"
	"github.com/mc-edfvd/simulator/pkg/task"
)

// Sink is the trace sink collaborator §1/§6 describe as out of scope for
// the kernel itself: it receives structured scheduling events and is
// responsible for all output-log formatting. pkg/traceio implements it
// against the §6 file formats; tests typically use an in-memory fake.
type Sink interface {
	DecisionPoint(point decision.Point, critLevel int)
	Idle(core int)
	Preempted(core int)
	Scheduled(core int, job *task.Job, wcetExceed float64)
	JobCompleted(core int, job *task.Job)
	DeadlineMissed(core int, job *task.Job)
	CriticalityChanged(newLevel int)
	CriticalityChangedCore(core int, newLevel int)
	Reclaimed(core int, job *task.Job)
	// FallbackExecutionTime reports that a job's actual execution time had
	// to be synthesized (task's exec_times trace was shorter than the job
	// number requested) rather than read from the input provider's trace.
	FallbackExecutionTime(core, taskNumber, jobNumber int)
	TaskSetLoaded(ts *task.Set, rs *task.RuntimeState)
	NotSchedulable()
}

// NoopSink discards every event; useful for tests that only care about
// Simulator/stats state.
type NoopSink struct{}

func (NoopSink) DecisionPoint(decision.Point, int)            {}
func (NoopSink) Idle(int)                                     {}
func (NoopSink) Preempted(int)                                {}
func (NoopSink) Scheduled(int, *task.Job, float64)            {}
func (NoopSink) JobCompleted(int, *task.Job)                  {}
func (NoopSink) DeadlineMissed(int, *task.Job)                {}
func (NoopSink) CriticalityChanged(int)                       {}
func (NoopSink) CriticalityChangedCore(int, int)              {}
func (NoopSink) Reclaimed(int, *task.Job)                     {}
func (NoopSink) FallbackExecutionTime(int, int, int)          {}
func (NoopSink) TaskSetLoaded(*task.Set, *task.RuntimeState)  {}
func (NoopSink) NotSchedulable()                              {}
