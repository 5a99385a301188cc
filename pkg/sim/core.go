package sim

import (
	"math"

	"github.com/mc-edfvd/simulator/pkg/decision"
	"github.com/mc-edfvd/simulator/pkg/queue"
	"github.com/mc-edfvd/simulator/pkg/task"
)

// State is a core's current scheduling state.
type State int

const (
	// Active cores participate in arrival/completion/crit-change candidates.
	Active State = iota
	// Shutdown cores were found unschedulable at startup (x_factor == 0).
	Shutdown
	// Terminated cores missed a deadline; per SPEC_FULL.md item 8 they are
	// excluded from all further decision points but the rest of the
	// simulation continues.
	Terminated
)

// String renders the state for logs.
func (s State) String() string {
	switch s {
	case Active:
		return "ACTIVE"
	case Shutdown:
		return "SHUTDOWN"
	case Terminated:
		return "TERMINATED"
	default:
		return "UNKNOWN"
	}
}

// FrequencyLevels is the fixed table of operating-point frequencies a core
// may be assigned, carried over from the reference's global frequency[]
// array (structs.h's FREQUENCY_LEVELS == 5). It is read-only simulator
// context, never consulted by scheduling math (§9's "no hidden globals"
// note, §11): the reference declares set_execution_times/
// reset_execution_times to rescale a job's timings by it but never wires
// either into schedule_taskset, so no DVFS policy exists here either.
var FrequencyLevels = [5]float64{0.5, 0.6, 0.75, 0.9, 1.0}

// Core is one processor core's scheduling state (§3 "Core").
type Core struct {
	Index int

	Ready   queue.Ready
	Current *task.Job

	TotalTime     float64
	TotalIdleTime float64

	// WCETExceed is the cached absolute clock at which the running job
	// would cross its budget: scheduled_time + job.WCET_counter.
	WCETExceed float64

	State State

	XFactor        float64
	ThresholdLevel int

	// Frequency is the core's current operating point, one of
	// FrequencyLevels. Defaults to 1.00 (structs.h's core_struct.frequency,
	// initialized in allocation.c). It is exposed for observability only;
	// no scheduling computation in this package reads it.
	Frequency float64

	// NextInvocationTime backs the TIMER_EXPIRE_ERR candidate. Nothing in
	// this kernel ever sets it away from +Inf (see SPEC_FULL.md §4 item 6);
	// it exists so the decision engine's contract is complete and so a
	// future DVFS policy has a real hook.
	NextInvocationTime float64
}

// NewCore constructs a Core in its initial allocation state.
func NewCore(index int) *Core {
	return &Core{
		Index:              index,
		State:              Active,
		ThresholdLevel:     -1,
		Frequency:          FrequencyLevels[len(FrequencyLevels)-1],
		NextInvocationTime: math.Inf(1),
	}
}

// Processor is the whole multi-core scheduling state (§3 "Processor").
type Processor struct {
	Cores     []*Core
	CritLevel int
	Discarded queue.Discarded
}

// NewProcessor allocates a Processor with the given number of cores, all
// initially ACTIVE (callers apply schedulability results afterward).
func NewProcessor(numCores int) *Processor {
	p := &Processor{Cores: make([]*Core, numCores)}
	for i := range p.Cores {
		p.Cores[i] = NewCore(i)
	}

	return p
}

// AllActive reports whether any core remains ACTIVE (used for the
// InfeasibleTaskSet "continue if at least one core remains schedulable"
// rule in §7).
func (p *Processor) AllActive() bool {
	for _, c := range p.Cores {
		if c.State == Active {
			return true
		}
	}

	return false
}

// decisionStates renders the processor's cores as decision.CoreState input.
func (p *Processor) decisionStates() []decision.CoreState {
	out := make([]decision.CoreState, len(p.Cores))
	for i, c := range p.Cores {
		out[i] = decision.CoreState{
			Active:             c.State == Active,
			Terminated:         c.State == Terminated,
			Running:            c.Current != nil,
			CompletionTime:     completionTimeOf(c),
			WCETExceedTime:     c.WCETExceed,
			NextInvocationTime: c.NextInvocationTime,
		}
	}

	return out
}

func completionTimeOf(c *Core) float64 {
	if c.Current == nil {
		return math.Inf(1)
	}

	return c.Current.CompletionTime
}
