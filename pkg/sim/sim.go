// Package sim implements the scheduler driver (component C7): it applies
// transitions emitted by pkg/decision, manages criticality-mode changes,
// and maintains the pkg/stats counters, grounded on schedule_taskset in the
// original implementation's scheduling.c.
package sim

import (
	"context"

	"go.uber.org/multierr"

	"github.com/mc-edfvd/simulator/pkg/decision"
	"github.com/mc-edfvd/simulator/pkg/feasibility"
	"github.com/mc-edfvd/simulator/pkg/reclaim"
	"github.com/mc-edfvd/simulator/pkg/slack"
	"github.com/mc-edfvd/simulator/pkg/stats"
	"github.com/mc-edfvd/simulator/pkg/task"
)

// Epsilon is the default tolerance used for time-equality comparisons
// (§9: "wherever the reference compares times by equality, implementations
// must use a documented epsilon").
const Epsilon = 1e-9

// Simulator owns the full scheduling kernel state and drives it to
// completion.
type Simulator struct {
	Tasks     *task.Set
	Runtime   *task.RuntimeState
	Processor *Processor
	Stats     *stats.Stats
	Sink      Sink
	Epsilon   float64

	hyperperiod float64
}

// New constructs a Simulator. hyperperiod should be computed by Hyperperiod
// below from ts before calling New.
func New(ts *task.Set, rs *task.RuntimeState, p *Processor, st *stats.Stats, sink Sink, hyperperiod float64) *Simulator {
	if sink == nil {
		sink = NoopSink{}
	}

	return &Simulator{
		Tasks:       ts,
		Runtime:     rs,
		Processor:   p,
		Stats:       st,
		Sink:        sink,
		Epsilon:     Epsilon,
		hyperperiod: hyperperiod,
	}
}

// Hyperperiod computes the LCM of every task's period using an integer
// Euclidean gcd over a fixed-point (millisecond-scale) representation,
// avoiding the reference's fragile subtraction-based float gcd (§9).
func Hyperperiod(ts *task.Set) float64 {
	const scale = 1000.0

	result := int64(1)

	for i := range ts.Tasks {
		period := int64(ts.Tasks[i].Period*scale + 0.5)
		if period <= 0 {
			continue
		}

		result = lcmInt(result, period)
	}

	return float64(result) / scale
}

func lcmInt(a, b int64) int64 {
	return a / gcdInt(a, b) * b
}

func gcdInt(a, b int64) int64 {
	for b != 0 {
		a, b = b, a%b
	}

	return a
}

// ApplyCoreConfig applies a file-supplied (x, k) pair to a core (§6's
// required file-driven pathway): x == 0 forces SHUTDOWN, otherwise the core
// is ACTIVE and virtual deadlines are set from the given result.
func (s *Simulator) ApplyCoreConfig(core int, x float64, k int) {
	c := s.Processor.Cores[core]
	c.XFactor = x
	c.ThresholdLevel = k

	if x == 0 {
		c.State = Shutdown

		return
	}

	c.State = Active
	feasibility.SetVirtualDeadlines(s.Tasks, s.Runtime, core, feasibility.Result{X: x, K: k})
}

// DeriveCoreConfig runs the schedulability analyzer (C3) for every core and
// applies the result, the alternative pathway §6 allows to the
// file-supplied one.
func (s *Simulator) DeriveCoreConfig() error {
	var err error

	anySchedulable := false

	for i := range s.Processor.Cores {
		result := feasibility.Analyze(s.Tasks, i)
		s.ApplyCoreConfig(i, result.X, result.K)

		if result.X == 0 {
			err = multierr.Append(err, &coreInfeasibleError{Core: i})
		} else {
			anySchedulable = true
		}
	}

	if !anySchedulable {
		s.Sink.NotSchedulable()

		return multierr.Append(ErrInfeasibleTaskSet, err)
	}

	return nil
}

type coreInfeasibleError struct{ Core int }

func (e *coreInfeasibleError) Error() string {
	return "sim: core is not schedulable"
}

// Run executes the decision-point loop to completion (§4.3). ctx is an
// operational cancellation hook only (§5/SPEC_FULL.md §5): it never
// participates in scheduling semantics.
func (s *Simulator) Run(ctx context.Context) error {
	s.Sink.TaskSetLoaded(s.Tasks, s.Runtime)

	if !s.Processor.AllActive() {
		s.Sink.NotSchedulable()

		return ErrInfeasibleTaskSet
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		point, ok := decision.Next(s.Tasks, s.Runtime, s.Processor.decisionStates(), s.Processor.CritLevel, s.hyperperiod)
		if !ok {
			s.closeOut()

			return nil
		}

		s.Sink.DecisionPoint(point, s.Processor.CritLevel)
		s.bumpKindCounter(point)

		for _, j := range s.Processor.Discarded.PurgeExpired(point.Time) {
			_ = j // deadline miss on discard: dropped, no further bookkeeping per §4.3 step 2
		}

		core := s.Processor.Cores[point.Core]
		prevTime := core.TotalTime
		core.TotalTime = point.Time

		switch point.Kind {
		case decision.Arrival:
			if s.handleArrival(core, prevTime, point.Time) {
				// handleArrival already debited this core's slice up to now.
				s.handleCritChange(point.Time, point.Core, point.Time)
			}
		case decision.Completion:
			s.handleCompletion(core, prevTime, point.Time)
		case decision.CritChange:
			s.handleCritChange(point.Time, point.Core, prevTime)
		case decision.TimerExpire:
			s.handleTimerExpire(core)
			s.handleArrival(core, prevTime, point.Time)
		}

		if core.Current != nil {
			s.Sink.Scheduled(core.Index, core.Current, core.WCETExceed)
		} else if core.State == Active {
			s.Sink.Idle(core.Index)
		}
	}
}

func (s *Simulator) bumpKindCounter(point decision.Point) {
	switch point.Kind {
	case decision.Arrival:
		s.Stats.ArrivalPoints[point.Core]++
	case decision.Completion:
		s.Stats.CompletionPoints[point.Core]++
	case decision.CritChange:
		s.Stats.CriticalityChangePoints[point.Core]++
	case decision.TimerExpire:
		// wakeup_points is bumped in handleTimerExpire once the core has
		// actually been woken, not merely selected as a candidate.
	}
}

// handleArrival applies §4.3 step 4. It returns true if the running job's
// budget was exhausted mid-decrement, signalling the caller to reroute this
// instant to handleCritChange instead of continuing arrival processing
// (SPEC_FULL.md §4 item 1).
func (s *Simulator) handleArrival(core *Core, prevTime, now float64) bool {
	delta := now - prevTime

	if core.Current == nil {
		core.TotalIdleTime += delta
		s.Stats.IdleEnergy[core.Index] += delta
	} else {
		core.Current.RemExecTime -= delta
		core.Current.WCETCounter -= delta
		s.Stats.ActiveEnergy[core.Index] += delta

		if core.Current.WCETCounter <= s.epsilon() {
			return true
		}
	}

	s.insertArrivals(core, now)
	s.reclaimFor(core, now)

	head := core.Ready.Head()
	if head != core.Current {
		if core.Current != nil {
			s.Sink.Preempted(core.Index)
		}

		core.Current = nil

		if core.Ready.Len() != 0 {
			s.scheduleNewJob(core)
			s.Stats.ContextSwitches[core.Index]++
		}
	}

	return false
}

// insertArrivals releases every task pinned to core whose next job's
// release time has arrived, per update_job_arrivals. It walks criticality
// levels high to low purely to match the reference's iteration order (the
// ready-queue insertion order this produces is irrelevant once Ready.Insert
// sorts by deadline).
func (s *Simulator) insertArrivals(core *Core, now float64) {
	for level := task.MaxCriticalityLevels - 1; level >= 0; level-- {
		for _, idx := range s.Tasks.OnCore(core.Index) {
			t := &s.Tasks.Tasks[idx]
			if t.CriticalityLevel != level {
				continue
			}

			s.releaseTask(core, idx, now)
		}
	}
}

func (s *Simulator) releaseTask(core *Core, taskIdx int, now float64) {
	t := &s.Tasks.Tasks[taskIdx]

	for {
		n := s.Runtime.NextJobNumber[taskIdx]
		release := t.ReleaseTime(n)
		deadline := release + s.Runtime.VirtualDeadline[taskIdx]

		if deadline < now-s.epsilon() {
			s.Runtime.NextJobNumber[taskIdx]++

			continue
		}

		if release > now+s.epsilon() {
			return
		}

		execTime, usedFallback := task.ActualExecutionTime(t, n, s.Processor.CritLevel)
		if usedFallback {
			s.Sink.FallbackExecutionTime(core.Index, taskIdx, n)
		}

		if t.CriticalityLevel >= s.Processor.CritLevel {
			// WCET_counter is seeded from the current system level, not the
			// task's own level (§3/§4.2): a HI task released in LO mode must
			// still be held to the LO budget until the system escalates.
			j := task.NewJob(taskIdx, n, release, execTime, s.Runtime.VirtualDeadline[taskIdx], s.Processor.CritLevel, t.WCET)
			core.Ready.Insert(j)
		}

		s.Runtime.NextJobNumber[taskIdx]++

		return
	}
}

// reclaimFor runs the discarded-job reclaimer (C5) bound to this core's
// live slack computation.
func (s *Simulator) reclaimFor(core *Core, now float64) {
	slackOf := func(c int, targetDeadline float64) float64 {
		return slack.MaxSlack(s.Tasks, s.Runtime, c, targetDeadline, now, s.Processor.CritLevel, s.readyJobsSnapshot(c))
	}

	promoted := reclaim.Run(&s.Processor.Discarded, &core.Ready, s.Tasks, core.Index, slackOf)

	for _, p := range promoted {
		s.Stats.DiscardedJobs[core.Index]++
		s.Sink.Reclaimed(core.Index, p.Job)
	}
}

func (s *Simulator) readyJobsSnapshot(coreIdx int) []slack.ReadyJob {
	c := s.Processor.Cores[coreIdx]

	out := make([]slack.ReadyJob, 0, c.Ready.Len())
	for _, j := range c.Ready.Jobs() {
		out = append(out, slack.ReadyJob{
			TaskNumber:       j.TaskNumber,
			AbsoluteDeadline: j.AbsoluteDeadline,
			ExecutionTime:    j.ExecutionTime,
			RemExecTime:      j.RemExecTime,
		})
	}

	return out
}

// handleCompletion applies §4.3 step 5.
func (s *Simulator) handleCompletion(core *Core, prevTime, now float64) {
	delta := now - prevTime
	s.Stats.ActiveEnergy[core.Index] += delta

	job := core.Current

	if job.AbsoluteDeadline < now-s.epsilon() {
		s.Sink.DeadlineMissed(core.Index, job)
		core.State = Terminated
		core.Current = nil

		return
	}

	s.Sink.JobCompleted(core.Index, job)
	core.Ready.PopHead()
	core.Current = nil

	if job.EverDiscarded {
		s.Stats.DiscardedJobsExecuted[core.Index] += job.LastDiscardResidual
	}

	if core.Ready.Len() != 0 {
		s.scheduleNewJob(core)
		s.Stats.ContextSwitches[core.Index]++
	}
}

// handleCritChange applies §4.3 step 6 / SPEC_FULL.md §4 items 2-3.
//
// decisionCore and decisionCorePrevTime carry the decision core's own
// pre-step-3 total_time: Run already advanced decisionCore.TotalTime to now
// before calling this (the generic step-3 update applies once, to whichever
// core produced the decision), so every other core's "previous time" is
// simply its own current (not-yet-touched) TotalTime, while the decision
// core's previous time has to be threaded through explicitly.
func (s *Simulator) handleCritChange(now float64, decisionCore int, decisionCorePrevTime float64) {
	p := s.Processor

	p.CritLevel++
	if p.CritLevel > task.MaxCriticalityLevels-1 {
		p.CritLevel = task.MaxCriticalityLevels - 1
	}

	s.Sink.CriticalityChanged(p.CritLevel)

	for i, c := range p.Cores {
		aboveThreshold := p.CritLevel > c.ThresholdLevel

		s.Sink.CriticalityChangedCore(i, p.CritLevel)

		if c.State != Active {
			continue
		}

		// §4.3 step 6 debits the elapsed slice and clears curr_exec_job
		// before walking the ready queue, so demotion sees each job's
		// rem_exec_time as of *now*, not as of the last time this core was
		// touched.
		prev := c.TotalTime
		if i == decisionCore {
			prev = decisionCorePrevTime
		}

		delta := now - prev
		if delta < 0 {
			delta = 0
		}

		c.TotalTime = now

		if c.Current != nil {
			c.Current.RemExecTime -= delta
			c.Current.WCETCounter -= delta
			s.Stats.ActiveEnergy[i] += delta
		} else {
			c.TotalIdleTime += delta
			s.Stats.IdleEnergy[i] += delta
		}

		c.Current = nil

		s.demoteReadyQueue(c, aboveThreshold)

		if aboveThreshold {
			feasibility.ResetVirtualDeadlines(s.Tasks, s.Runtime, i, c.ThresholdLevel)
		}

		if c.Ready.Len() != 0 {
			s.scheduleNewJob(c)
			s.Stats.ContextSwitches[i]++

			if i != decisionCore {
				s.Sink.Scheduled(i, c.Current, c.WCETExceed)
			}
		}
	}
}

// demoteReadyQueue applies §4.4: jobs whose task criticality is below the
// new system level are moved to the discarded queue; survivors have their
// WCET budget extended, and (only if the core just crossed its threshold)
// their absolute deadline restored using the *old* (pre-reset) virtual
// deadline, per SPEC_FULL.md §4 item 2.
func (s *Simulator) demoteReadyQueue(c *Core, aboveThreshold bool) {
	newLevel := s.Processor.CritLevel

	removed := c.Ready.RemoveWhere(func(j *task.Job) bool {
		return s.Tasks.Tasks[j.TaskNumber].CriticalityLevel < newLevel
	})

	for _, j := range removed {
		taskCrit := s.Tasks.Tasks[j.TaskNumber].CriticalityLevel
		s.Stats.DiscardedJobsAvailable[c.Index] += j.RemExecTime
		j.EverDiscarded = true
		j.LastDiscardResidual = j.RemExecTime
		s.Processor.Discarded.Insert(j, taskCrit, c.Index)
	}

	if aboveThreshold {
		for _, j := range c.Ready.Jobs() {
			tn := j.TaskNumber
			oldVD := s.Runtime.VirtualDeadline[tn]
			j.AbsoluteDeadline += s.Tasks.Tasks[tn].RelativeDeadline - oldVD
		}

		c.Ready.Resort()
	}

	for _, j := range c.Ready.Jobs() {
		tn := j.TaskNumber
		j.WCETCounter += s.Tasks.Tasks[tn].WCET[newLevel] - s.Tasks.Tasks[tn].WCET[newLevel-1]
	}
}

// handleTimerExpire applies §4.3 step 7: wake a shut-down core. Dormant by
// construction (see SPEC_FULL.md §4 item 6) but implemented in full.
func (s *Simulator) handleTimerExpire(core *Core) {
	core.State = Active
	s.Stats.WakeupPoints[core.Index]++
}

// scheduleNewJob dispatches the ready queue's head (schedule_new_job).
func (s *Simulator) scheduleNewJob(c *Core) {
	job := c.Ready.Head()
	c.Current = job
	job.ScheduledTime = c.TotalTime
	job.CompletionTime = job.ScheduledTime + job.RemExecTime
	c.WCETExceed = job.ScheduledTime + job.WCETCounter
}

// closeOut applies §4.3's hyperperiod close-out: running jobs have their
// remaining slice debited, idle cores accrue idle energy, shutdown cores
// accrue shutdown time. Terminated cores are left untouched (their
// statistics freeze at their own termination instant).
func (s *Simulator) closeOut() {
	hp := s.hyperperiod

	for i, c := range s.Processor.Cores {
		if c.State == Terminated {
			continue
		}

		delta := hp - c.TotalTime
		if delta < 0 {
			delta = 0
		}

		switch {
		case c.State == Shutdown:
			c.TotalIdleTime += delta
			s.Stats.ShutdownTime[i] += delta
		case c.Current == nil:
			c.TotalIdleTime += delta
			s.Stats.IdleEnergy[i] += delta
		default:
			c.Current.RemExecTime -= delta
			s.Stats.ActiveEnergy[i] += delta
		}

		c.TotalTime = hp
	}
}

func (s *Simulator) epsilon() float64 {
	if s.Epsilon > 0 {
		return s.Epsilon
	}

	return Epsilon
}
