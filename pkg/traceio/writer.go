package traceio

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/mc-edfvd/simulator/pkg/decision"
	"github.com/mc-edfvd/simulator/pkg/sim"
	"github.com/mc-edfvd/simulator/pkg/stats"
	"github.com/mc-edfvd/simulator/pkg/task"
)

const ruleWidth = 104

// Writer implements sim.Sink, rendering scheduling events to the three
// output files §6 specifies: a global output.txt (sorted task list plus
// final per-core statistics), one output_<i>.txt per core (chronological
// event log), and statistics.txt (one counters line per core). Grounded on
// schedule_taskset's fprintf calls and print_task_list/print_processor in
// the original implementation's scheduling.c/auxiliary_functions.c.
type Writer struct {
	dir string
	log *zap.Logger

	global   *os.File
	perCore  []*os.File
	coreBufs []*bufio.Writer

	decisionCore int
}

// NewWriter opens output.txt and one output_<i>.txt per core under dir,
// truncating any existing files.
func NewWriter(dir string, numCores int, log *zap.Logger) (*Writer, error) {
	if log == nil {
		log = zap.NewNop()
	}

	global, err := os.Create(filepath.Join(dir, "output.txt"))
	if err != nil {
		return nil, fmt.Errorf("%w: creating output.txt: %v", sim.ErrInput, err)
	}

	w := &Writer{dir: dir, log: log, global: global}

	for i := 0; i < numCores; i++ {
		f, err := os.Create(filepath.Join(dir, fmt.Sprintf("output_%d.txt", i)))
		if err != nil {
			_ = w.Close()

			return nil, fmt.Errorf("%w: creating output_%d.txt: %v", sim.ErrInput, i, err)
		}

		w.perCore = append(w.perCore, f)
		w.coreBufs = append(w.coreBufs, bufio.NewWriter(f))
	}

	return w, nil
}

// Close flushes every buffered writer and closes the underlying files,
// aggregating any errors with multierr rather than stopping at the first.
func (w *Writer) Close() error {
	var err error

	for i, buf := range w.coreBufs {
		err = multierr.Append(err, buf.Flush())
		err = multierr.Append(err, w.perCore[i].Close())
	}

	if w.global != nil {
		err = multierr.Append(err, w.global.Close())
	}

	return err
}

func (w *Writer) closeBlock(core int) {
	fmt.Fprintf(w.coreBufs[core], "\n%s\n\n", strings.Repeat("_", ruleWidth))
}

// DecisionPoint writes the header line spec.md §6 requires verbatim:
// "Decision point: {kind}, Decision time: t, Crit level: L". critLevel is
// the level in effect before this decision's transition is applied.
func (w *Writer) DecisionPoint(point decision.Point, critLevel int) {
	w.decisionCore = point.Core

	fmt.Fprintf(w.coreBufs[point.Core], "Decision point: %s, Decision time: %.5f, Crit level: %d\n",
		point.Kind, point.Time, critLevel)

	w.log.Debug("decision point",
		zap.Int("core", point.Core),
		zap.Float64("time", point.Time),
		zap.Stringer("kind", point.Kind),
		zap.Int("crit_level", critLevel))
}

// Idle closes the decision core's block with an idle notice; it is only
// ever raised for the decision core itself (sim.Simulator.Run calls it in
// place of Scheduled when the core ends the iteration with no current job).
func (w *Writer) Idle(core int) {
	fmt.Fprintln(w.coreBufs[core], "No job to execute. Core is idle.")
	w.closeBlock(core)
}

// Preempted records that the core's previously running job was displaced by
// an earlier-deadline arrival.
func (w *Writer) Preempted(core int) {
	fmt.Fprintln(w.coreBufs[core], "Preempted current job.")
}

// Scheduled records the newly dispatched job. For the decision core this is
// the final line of the iteration's block, so the block is closed here; for
// a non-decision core swept up in a criticality change (§4.3 step 6), the
// line is appended to that core's own ongoing stream without a block of its
// own, matching the reference's per-core redispatch logging.
func (w *Writer) Scheduled(core int, job *task.Job, wcetExceed float64) {
	fmt.Fprintf(w.coreBufs[core], "Scheduled job: %d,%d  Exec time: %.5f  Rem exec time: %.5f  WCET exceed at: %.5f  Deadline: %.5f\n",
		job.TaskNumber, job.JobNumber, job.ExecutionTime, job.RemExecTime, wcetExceed, job.AbsoluteDeadline)

	if core == w.decisionCore {
		w.closeBlock(core)
	}
}

// JobCompleted records a normal completion; the block is left open since
// Scheduled or Idle still follows in the same iteration.
func (w *Writer) JobCompleted(core int, job *task.Job) {
	fmt.Fprintf(w.coreBufs[core], "Job %d,%d completed execution.\n", job.TaskNumber, job.JobNumber)
}

// DeadlineMissed records the miss and closes the core's block for good:
// per §7/SPEC_FULL.md item 8, this core's schedule is terminated and will
// never open another block.
func (w *Writer) DeadlineMissed(core int, job *task.Job) {
	fmt.Fprintf(w.coreBufs[core], "Job %d,%d missed its deadline at %.5f. Core schedule terminated.\n",
		job.TaskNumber, job.JobNumber, job.AbsoluteDeadline)
	w.closeBlock(core)

	w.log.Error("deadline missed",
		zap.Int("core", core),
		zap.Int("task", job.TaskNumber),
		zap.Int("job", job.JobNumber),
		zap.Float64("deadline", job.AbsoluteDeadline))
}

// CriticalityChanged logs the new global system level; the per-core text
// lines are written by CriticalityChangedCore instead, since §4.3 step 6
// touches every core individually.
func (w *Writer) CriticalityChanged(newLevel int) {
	w.log.Info("criticality level changed", zap.Int("level", newLevel))
}

// CriticalityChangedCore writes the short notice every affected core
// receives during a mode change, whether or not it is the decision core.
func (w *Writer) CriticalityChangedCore(core, newLevel int) {
	fmt.Fprintf(w.coreBufs[core], "Criticality changed | Crit level: %d\n", newLevel)
}

// Reclaimed records a discarded job re-admitted to this core's ready queue
// by the slack analyzer (C5).
func (w *Writer) Reclaimed(core int, job *task.Job) {
	fmt.Fprintf(w.coreBufs[core], "Reclaimed discarded job %d,%d from slack.\n", job.TaskNumber, job.JobNumber)

	w.log.Info("discarded job reclaimed",
		zap.Int("core", core),
		zap.Int("task", job.TaskNumber),
		zap.Int("job", job.JobNumber))
}

// FallbackExecutionTime logs, once per occurrence, that a job's actual
// execution time had to be synthesized because its task's exec_times trace
// was exhausted (spec.md §9's Open Question).
func (w *Writer) FallbackExecutionTime(core, taskNumber, jobNumber int) {
	w.log.Warn("synthesized execution time: trace exhausted",
		zap.Int("core", core),
		zap.Int("task", taskNumber),
		zap.Int("job", jobNumber))
}

// TaskSetLoaded writes the sorted task table to output.txt once, before the
// decision loop starts, grounded on print_task_list.
func (w *Writer) TaskSetLoaded(ts *task.Set, rs *task.RuntimeState) {
	fmt.Fprintln(w.global, "\nTaskset:")

	for i := range ts.Tasks {
		t := &ts.Tasks[i]

		fmt.Fprintf(w.global, "Task: %d | core: %d | crit_level: %d | phase: %.2f | rel_deadline: %.2f | virt_deadline: %.2f | WCET: ",
			t.Number, t.Core, t.CriticalityLevel, t.Phase, t.RelativeDeadline, rs.VirtualDeadline[i])

		for l := 0; l < task.MaxCriticalityLevels; l++ {
			fmt.Fprintf(w.global, "%.2f ", t.WCET[l])
		}

		fmt.Fprint(w.global, " | Util: ")

		for l := 0; l < task.MaxCriticalityLevels; l++ {
			fmt.Fprintf(w.global, "%.3f ", t.Utilization(l))
		}

		fmt.Fprintln(w.global)
	}

	fmt.Fprintln(w.global)
}

// NotSchedulable records that every core was found infeasible at startup
// (§7 InfeasibleTaskSet's "no simulation" branch).
func (w *Writer) NotSchedulable() {
	fmt.Fprintln(w.global, "Not schedulable")
	w.log.Error("task set not schedulable on any core")
}

// WriteSummary appends the final per-core statistics to output.txt and
// writes statistics.txt, grounded on print_processor and the §6
// "active_energy idle_energy shutdown_time discarded_jobs completion_points
// discarded_executed discarded_available" line format. Callers invoke this
// once after Simulator.Run returns; it is not part of the Sink interface
// because it needs the processor's final state, not an in-flight event.
func (w *Writer) WriteSummary(cores []CoreSummary, st *stats.Stats) error {
	fmt.Fprintln(w.global, "\nProcessor statistics:")
	fmt.Fprintf(w.global, "Num cores: %d\n", len(cores))

	for _, c := range cores {
		fmt.Fprintf(w.global, "Core: %d, total time: %.2f, total idle time: %.2f, total busy time: %.2f, state: %s\n",
			c.Index, c.TotalTime, c.TotalIdleTime, c.TotalTime-c.TotalIdleTime, c.State)
	}

	fmt.Fprintln(w.global)

	statsFile, err := os.Create(filepath.Join(w.dir, "statistics.txt"))
	if err != nil {
		return fmt.Errorf("%w: creating statistics.txt: %v", sim.ErrInput, err)
	}
	defer statsFile.Close()

	buf := bufio.NewWriter(statsFile)

	for i := range cores {
		fmt.Fprintf(buf, "%.5f %.5f %.5f %d %d %.5f %.5f\n",
			st.ActiveEnergy[i], st.IdleEnergy[i], st.ShutdownTime[i],
			st.DiscardedJobs[i], st.CompletionPoints[i],
			st.DiscardedJobsExecuted[i], st.DiscardedJobsAvailable[i])
	}

	return buf.Flush()
}

// CoreSummary is the minimal per-core final-state view WriteSummary needs;
// it decouples traceio from sim.Core's internal representation.
type CoreSummary struct {
	Index         int
	TotalTime     float64
	TotalIdleTime float64
	State         string
}
