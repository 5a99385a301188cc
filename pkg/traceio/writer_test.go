package traceio

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mc-edfvd/simulator/pkg/decision"
	"github.com/mc-edfvd/simulator/pkg/stats"
	"github.com/mc-edfvd/simulator/pkg/task"
)

func mustReadFile(t *testing.T, path string) string {
	t.Helper()

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading %s: %v", path, err)
	}

	return string(b)
}

// TestWriterDecisionPointHeaderMatchesSpec checks the one literally
// specified line format (§6): "Decision point: {kind}, Decision time: t,
// Crit level: L".
func TestWriterDecisionPointHeaderMatchesSpec(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	w, err := NewWriter(dir, 1, nil)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}

	w.DecisionPoint(decision.Point{Core: 0, Time: 3.5, Kind: decision.CritChange}, 0)

	j := &task.Job{TaskNumber: 0, JobNumber: 0, ExecutionTime: 5, RemExecTime: 5, AbsoluteDeadline: 10}
	w.Scheduled(0, j, 3.0)

	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	content := mustReadFile(t, filepath.Join(dir, "output_0.txt"))

	if !strings.Contains(content, "Decision point: CRIT_CHANGE, Decision time: 3.50000, Crit level: 0\n") {
		t.Fatalf("missing expected header line, got:\n%s", content)
	}

	if !strings.Contains(content, "Scheduled job: 0,0") {
		t.Fatalf("missing expected scheduled line, got:\n%s", content)
	}
}

// TestWriterScheduledOnNonDecisionCoreDoesNotCloseBlock checks §4.3 step 6's
// fan-out: a core other than the decision core that gets redispatched
// during a criticality change must not receive the decision core's closing
// rule.
func TestWriterScheduledOnNonDecisionCoreDoesNotCloseBlock(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	w, err := NewWriter(dir, 2, nil)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}

	w.DecisionPoint(decision.Point{Core: 0, Time: 2.0, Kind: decision.CritChange}, 0)
	w.CriticalityChangedCore(1, 1)

	j := &task.Job{TaskNumber: 3, JobNumber: 0, ExecutionTime: 2, RemExecTime: 2, AbsoluteDeadline: 8}
	w.Scheduled(1, j, 6.0)

	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	core1 := mustReadFile(t, filepath.Join(dir, "output_1.txt"))

	if strings.Contains(core1, "____") {
		t.Fatalf("non-decision core must not close its own block, got:\n%s", core1)
	}

	if !strings.Contains(core1, "Scheduled job: 3,0") {
		t.Fatalf("missing expected scheduled line on the swept core, got:\n%s", core1)
	}
}

// TestWriterSummaryAndStatisticsFiles checks that WriteSummary produces a
// parseable statistics.txt line per core in the §6-specified column order.
func TestWriterSummaryAndStatisticsFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	w, err := NewWriter(dir, 1, nil)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}

	st := stats.New(1)
	st.ActiveEnergy[0] = 8
	st.IdleEnergy[0] = 2
	st.CompletionPoints[0] = 3
	st.DiscardedJobs[0] = 1
	st.DiscardedJobsAvailable[0] = 4
	st.DiscardedJobsExecuted[0] = 4

	if err := w.WriteSummary([]CoreSummary{{Index: 0, TotalTime: 10, TotalIdleTime: 2, State: "ACTIVE"}}, st); err != nil {
		t.Fatalf("WriteSummary: %v", err)
	}

	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	statsContent := mustReadFile(t, filepath.Join(dir, "statistics.txt"))

	want := "8.00000 2.00000 0.00000 1 3 4.00000 4.00000\n"
	if statsContent != want {
		t.Fatalf("statistics.txt = %q, want %q", statsContent, want)
	}

	global := mustReadFile(t, filepath.Join(dir, "output.txt"))
	if !strings.Contains(global, "Core: 0, total time: 10.00, total idle time: 2.00, total busy time: 8.00, state: ACTIVE") {
		t.Fatalf("missing expected processor summary line, got:\n%s", global)
	}
}
