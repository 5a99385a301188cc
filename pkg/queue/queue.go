// Package queue implements the ready and discarded job queues (component
// C2): ordered slices that preserve the insertion and ordering invariants
// §3 and §8 (I1) require. A sorted slice is used rather than a heap because
// the reclaimer (pkg/reclaim) and the mode-change demotion pass (pkg/sim)
// both need to iterate, filter, and splice by criticality and core pin, not
// merely pop the minimum — the reference's linked list supports exactly
// that access pattern, and a full ordering is the simplest Go analogue.
package queue

import (
	"sort"

	"github.com/mc-edfvd/simulator/pkg/task"
)

// Ready is a per-core queue of dispatchable jobs ordered by absolute
// deadline ascending (ties broken FIFO, i.e. by insertion order).
type Ready struct {
	jobs []*task.Job
}

// Len reports the number of jobs currently queued.
func (r *Ready) Len() int { return len(r.jobs) }

// Head returns the earliest-deadline job, or nil if the queue is empty.
func (r *Ready) Head() *task.Job {
	if len(r.jobs) == 0 {
		return nil
	}

	return r.jobs[0]
}

// Jobs returns the queue contents in order. Callers must not retain the
// returned slice across a mutating call.
func (r *Ready) Jobs() []*task.Job {
	return r.jobs
}

// Insert places a job in deadline order. Ties go after any existing job
// with an equal deadline, matching the reference's insert_job_in_ready_queue
// (new job walks past all entries with absolute_deadline <= its own).
func (r *Ready) Insert(j *task.Job) {
	idx := sort.Search(len(r.jobs), func(i int) bool {
		return r.jobs[i].AbsoluteDeadline > j.AbsoluteDeadline
	})

	r.jobs = append(r.jobs, nil)
	copy(r.jobs[idx+1:], r.jobs[idx:])
	r.jobs[idx] = j
}

// PopHead removes and returns the earliest-deadline job, or nil if empty.
func (r *Ready) PopHead() *task.Job {
	if len(r.jobs) == 0 {
		return nil
	}

	j := r.jobs[0]
	r.jobs = r.jobs[1:]

	return j
}

// RemoveWhere removes every job matching pred, preserving relative order of
// the survivors, and returns the removed jobs in their original order.
func (r *Ready) RemoveWhere(pred func(*task.Job) bool) []*task.Job {
	kept := r.jobs[:0]

	var removed []*task.Job

	for _, j := range r.jobs {
		if pred(j) {
			removed = append(removed, j)
		} else {
			kept = append(kept, j)
		}
	}

	r.jobs = kept

	return removed
}

// Resort restores deadline order after an in-place mutation of queued jobs'
// AbsoluteDeadline (the §4.4 deadline-restoration step can shift deadlines
// unevenly across tasks, which can violate I1 if left unsorted).
func (r *Ready) Resort() {
	sort.SliceStable(r.jobs, func(i, k int) bool {
		return r.jobs[i].AbsoluteDeadline < r.jobs[k].AbsoluteDeadline
	})
}

// Sorted reports whether the queue currently satisfies I1; used by tests.
func (r *Ready) Sorted() bool {
	for i := 1; i < len(r.jobs); i++ {
		if r.jobs[i].AbsoluteDeadline < r.jobs[i-1].AbsoluteDeadline {
			return false
		}
	}

	return true
}

// Discarded is the single, processor-wide queue of jobs demoted out of a
// ready queue by a criticality-mode change. Ordered by criticality
// descending, then absolute deadline ascending (§3).
type Discarded struct {
	entries []discardedEntry
}

type discardedEntry struct {
	job         *task.Job
	criticality int
	originCore  int
}

// Insert places a demoted job in (criticality desc, deadline asc) order.
func (d *Discarded) Insert(j *task.Job, criticality, originCore int) {
	entry := discardedEntry{job: j, criticality: criticality, originCore: originCore}

	idx := sort.Search(len(d.entries), func(i int) bool {
		e := d.entries[i]
		if e.criticality != criticality {
			return e.criticality < criticality
		}

		return e.job.AbsoluteDeadline > j.AbsoluteDeadline
	})

	d.entries = append(d.entries, discardedEntry{})
	copy(d.entries[idx+1:], d.entries[idx:])
	d.entries[idx] = entry
}

// Len reports the number of discarded jobs currently held.
func (d *Discarded) Len() int { return len(d.entries) }

// AtCriticality returns, in queue order, every discarded job entry whose
// criticality equals the requested level, without removing them.
func (d *Discarded) AtCriticality(level int) []DiscardedJob {
	var out []DiscardedJob

	for _, e := range d.entries {
		if e.criticality == level {
			out = append(out, DiscardedJob{Job: e.job, OriginCore: e.originCore})
		}
	}

	return out
}

// DiscardedJob pairs a discarded job with the core its owning task is
// pinned to (needed by the reclaimer's same-core/cross-core passes).
type DiscardedJob struct {
	Job        *task.Job
	OriginCore int
}

// Remove deletes the given job from the discarded queue, if present.
func (d *Discarded) Remove(j *task.Job) {
	for i, e := range d.entries {
		if e.job == j {
			d.entries = append(d.entries[:i], d.entries[i+1:]...)

			return
		}
	}
}

// PurgeExpired removes and returns every job whose absolute deadline has
// passed (<=) the given time — "deadline miss on discard" per §4.3 step 2.
func (d *Discarded) PurgeExpired(now float64) []*task.Job {
	kept := d.entries[:0]

	var removed []*task.Job

	for _, e := range d.entries {
		if e.job.AbsoluteDeadline <= now {
			removed = append(removed, e.job)
		} else {
			kept = append(kept, e)
		}
	}

	d.entries = kept

	return removed
}

// Sorted reports whether the discarded queue currently satisfies I1.
func (d *Discarded) Sorted() bool {
	for i := 1; i < len(d.entries); i++ {
		prev, cur := d.entries[i-1], d.entries[i]
		if cur.criticality > prev.criticality {
			return false
		}

		if cur.criticality == prev.criticality && cur.job.AbsoluteDeadline < prev.job.AbsoluteDeadline {
			return false
		}
	}

	return true
}
