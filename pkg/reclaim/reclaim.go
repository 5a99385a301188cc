// Package reclaim implements the discarded-job reclaimer (component C5),
// grounded on accommodate_discarded_jobs in the original implementation's
// scheduling_auxiliary.c.
package reclaim

import (
	"github.com/mc-edfvd/simulator/pkg/queue"
	"github.com/mc-edfvd/simulator/pkg/task"
)

// SlackFunc computes the worst-case slack available on a core up to a
// target deadline; pkg/sim supplies slack.MaxSlack bound to live state.
type SlackFunc func(core int, targetDeadline float64) float64

// Promoted describes a job moved from the discarded queue back into a
// ready queue. No core is recorded: per §4.6 / SPEC_FULL.md item 5 the job
// always lands in the decision core's queue, regardless of which pass
// promoted it.
type Promoted struct {
	Job *task.Job
}

// Run executes one reclaim pass for decisionCore at time now (§4.6). For
// every criticality level from Lmax-1 down to 0 it makes two passes over the
// discarded queue: same-core jobs with a non-strict slack test (pass A),
// then other-core jobs with a strict test (pass B). Every promoted job is
// inserted into decisionCore's ready queue in both passes — this is
// deliberate "slack borrowing," not task migration; see SPEC_FULL.md §4
// item 5.
func Run(discarded *queue.Discarded, ready *queue.Ready, ts *task.Set, decisionCore int, slackOf SlackFunc) []Promoted {
	var promoted []Promoted

	for level := task.MaxCriticalityLevels - 1; level >= 0; level-- {
		entries := discarded.AtCriticality(level)

		for _, e := range entries {
			if e.OriginCore != decisionCore {
				continue
			}

			residual := residualExec(ts, e.Job)
			if slackOf(decisionCore, e.Job.AbsoluteDeadline) >= residual {
				discarded.Remove(e.Job)
				ready.Insert(e.Job)
				promoted = append(promoted, Promoted{Job: e.Job})
			}
		}

		entries = discarded.AtCriticality(level)

		for _, e := range entries {
			if e.OriginCore == decisionCore {
				continue
			}

			residual := residualExec(ts, e.Job)
			if slackOf(decisionCore, e.Job.AbsoluteDeadline) > residual {
				discarded.Remove(e.Job)
				ready.Insert(e.Job)
				promoted = append(promoted, Promoted{Job: e.Job})
			}
		}
	}

	return promoted
}

// residualExec returns the remaining WCET-residual of a discarded job at
// its own task's current criticality level, matching the quantity slack.MaxSlack
// subtracts for ready-queue jobs.
func residualExec(ts *task.Set, j *task.Job) float64 {
	t := &ts.Tasks[j.TaskNumber]

	return t.WCET[t.CriticalityLevel] - (j.ExecutionTime - j.RemExecTime)
}
