// Package slack implements the worst-case slack computation (component C4)
// used to decide whether a discarded job can be re-admitted, grounded on
// find_max_slack in the original implementation's scheduling_auxiliary.c.
package slack

import "github.com/mc-edfvd/simulator/pkg/task"

// ReadyJob is the minimal view of a queued job the slack computation needs.
type ReadyJob struct {
	TaskNumber       int
	AbsoluteDeadline float64
	ExecutionTime    float64
	RemExecTime      float64
}

// MaxSlack computes the conservative worst-case slack available on core up
// to targetDeadline (§4.5), given the current time, the current criticality
// level, a snapshot of the core's ready queue, the task set, and the live
// RuntimeState (so projected future releases use each task's actual current
// virtual deadline, which may be shrunk below its relative deadline).
// Always returns a value >= 0 (§8 law "Slack non-negativity").
func MaxSlack(ts *task.Set, rs *task.RuntimeState, core int, targetDeadline, now float64, critLevel int, ready []ReadyJob) float64 {
	s := targetDeadline - now

	for _, j := range ready {
		t := &ts.Tasks[j.TaskNumber]
		residual := t.WCET[t.CriticalityLevel] - (j.ExecutionTime - j.RemExecTime)

		if j.AbsoluteDeadline > targetDeadline {
			span := j.AbsoluteDeadline - now
			if span > 0 {
				s -= (targetDeadline - now) / span * residual
			}
		} else {
			s -= residual
		}
	}

	for _, idx := range ts.OnCore(core) {
		t := &ts.Tasks[idx]
		if t.CriticalityLevel < critLevel {
			continue
		}

		for n := rs.NextJobNumber[idx]; ; n++ {
			release := t.ReleaseTime(n)
			if release >= targetDeadline {
				break
			}

			deadline := release + rs.VirtualDeadline[idx]
			exec := t.WCET[t.CriticalityLevel]

			if deadline > targetDeadline {
				if t.Period > 0 {
					s -= (targetDeadline - release) / t.Period * exec
				}
			} else {
				s -= exec
			}
		}
	}

	if s < 0 {
		return 0
	}

	return s
}
