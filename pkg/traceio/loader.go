// Package traceio implements the input provider and trace sink
// collaborators §1/§6 treat as external to the kernel: it parses the
// text-file task-set/trace/allocation/core-config inputs and renders
// scheduling events to the three output files, grounded on driver.c's
// read_input_files and auxiliary_functions.c's print routines in the
// original implementation.
package traceio

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"go.uber.org/zap"

	"github.com/mc-edfvd/simulator/pkg/sim"
	"github.com/mc-edfvd/simulator/pkg/task"
)

// CoreConfig is the (x_factor, threshold_crit_lvl) pair read from
// input_cores.txt for one core (§6). An XFactor of 0 means the core must be
// forced SHUTDOWN.
type CoreConfig struct {
	XFactor   float64
	Threshold int
}

// Load reads input.txt, input_times.txt, input_allocation.txt and
// input_cores.txt from dir, in that order, and returns a period-sorted task
// set plus the file-supplied per-core configuration — §6's "implementations
// MUST support the file-supplied pathway since the reference behaviour uses
// it." log receives a warning whenever input_times.txt is absent or a task's
// execution trace is empty (spec.md §9's Open Question, resolved in
// SPEC_FULL.md §10); a non-empty trace that runs short is not detected here.
func Load(dir string, log *zap.Logger) (*task.Set, []CoreConfig, error) {
	if log == nil {
		log = zap.NewNop()
	}

	tasks, err := loadTaskList(filepath.Join(dir, "input.txt"))
	if err != nil {
		return nil, nil, err
	}

	if err := loadExecTimes(filepath.Join(dir, "input_times.txt"), tasks, log); err != nil {
		return nil, nil, err
	}

	if err := loadAllocation(filepath.Join(dir, "input_allocation.txt"), tasks); err != nil {
		return nil, nil, err
	}

	cores, err := loadCoreConfig(filepath.Join(dir, "input_cores.txt"))
	if err != nil {
		return nil, nil, err
	}

	// Tasks are sorted by period ascending before simulation starts (§6);
	// allocation and trace data were already attached by original input
	// order above, so renumbering here is safe.
	sort.SliceStable(tasks, func(i, j int) bool { return tasks[i].Period < tasks[j].Period })

	for i := range tasks {
		tasks[i].Number = i

		if len(tasks[i].ExecTimes) == 0 {
			log.Warn("task has no recorded execution trace, falling back to generated execution times",
				zap.Int("task", i))
		}
	}

	return &task.Set{Tasks: tasks}, cores, nil
}

// tokenReader reads whitespace-separated tokens across line boundaries,
// mirroring fscanf's tokenization of the reference's input files.
type tokenReader struct {
	sc *bufio.Scanner
}

func newTokenReader(f *os.File) *tokenReader {
	sc := bufio.NewScanner(f)
	sc.Split(bufio.ScanWords)
	sc.Buffer(make([]byte, 4096), 1<<20)

	return &tokenReader{sc: sc}
}

func (r *tokenReader) int() (int, error) {
	if !r.sc.Scan() {
		return 0, io.ErrUnexpectedEOF
	}

	return strconv.Atoi(r.sc.Text())
}

func (r *tokenReader) float() (float64, error) {
	if !r.sc.Scan() {
		return 0, io.ErrUnexpectedEOF
	}

	return strconv.ParseFloat(r.sc.Text(), 64)
}

func openInput(path string) (*os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", sim.ErrInput, path, err)
	}

	return f, nil
}

// loadTaskList parses input.txt: `N` then `N` records of
// `phase deadline crit_level WCET[0] … WCET[Lmax-1]`. Per §3's
// "relative_deadline D = T (implicit-deadline)", the single "deadline"
// token populates both Task.Period and Task.RelativeDeadline.
func loadTaskList(path string) ([]task.Task, error) {
	f, err := openInput(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := newTokenReader(f)

	n, err := r.int()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: task count: %v", sim.ErrInput, path, err)
	}

	tasks := make([]task.Task, n)

	for i := 0; i < n; i++ {
		t := task.Task{Number: i}

		phase, err := r.float()
		if err != nil {
			return nil, recordErr(path, i, "phase", err)
		}

		t.Phase = phase

		deadline, err := r.float()
		if err != nil {
			return nil, recordErr(path, i, "deadline", err)
		}

		t.Period = deadline
		t.RelativeDeadline = deadline

		lvl, err := r.int()
		if err != nil {
			return nil, recordErr(path, i, "crit_level", err)
		}

		t.CriticalityLevel = lvl

		for l := 0; l < task.MaxCriticalityLevels; l++ {
			w, err := r.float()
			if err != nil {
				return nil, recordErr(path, i, "WCET", err)
			}

			t.WCET[l] = w
		}

		tasks[i] = t
	}

	return tasks, nil
}

func recordErr(path string, idx int, field string, err error) error {
	return fmt.Errorf("%w: %s: record %d: %s: %v", sim.ErrInput, path, idx, field, err)
}

// loadExecTimes parses input_times.txt: for each task in input.txt's
// original order, `M_i` then `M_i` doubles. The file itself is optional
// (§9's Open Question): if absent, every task falls back to the
// deterministic generator at simulation time.
func loadExecTimes(path string, tasks []task.Task, log *zap.Logger) error {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Warn("execution trace file absent, falling back to generated execution times",
				zap.String("path", path))

			return nil
		}

		return fmt.Errorf("%w: opening %s: %v", sim.ErrInput, path, err)
	}
	defer f.Close()

	r := newTokenReader(f)

	for i := range tasks {
		m, err := r.int()
		if err != nil {
			return fmt.Errorf("%w: %s: task %d: trace count: %v", sim.ErrInput, path, i, err)
		}

		times := make([]float64, m)

		for j := 0; j < m; j++ {
			v, err := r.float()
			if err != nil {
				return fmt.Errorf("%w: %s: task %d: job %d: %v", sim.ErrInput, path, i, j, err)
			}

			times[j] = v
		}

		tasks[i].ExecTimes = times
	}

	return nil
}

// loadAllocation parses input_allocation.txt: `N` lines of
// `task_index core_index`, keyed to input.txt's original record order.
func loadAllocation(path string, tasks []task.Task) error {
	f, err := openInput(path)
	if err != nil {
		return err
	}
	defer f.Close()

	r := newTokenReader(f)

	for {
		taskIdx, err := r.int()
		if err != nil {
			if errors.Is(err, io.ErrUnexpectedEOF) {
				return nil
			}

			return fmt.Errorf("%w: %s: %v", sim.ErrInput, path, err)
		}

		core, err := r.int()
		if err != nil {
			return fmt.Errorf("%w: %s: task %d: core index: %v", sim.ErrInput, path, taskIdx, err)
		}

		if taskIdx < 0 || taskIdx >= len(tasks) {
			return fmt.Errorf("%w: %s: task index %d out of range", sim.ErrAllocationFailure, path, taskIdx)
		}

		tasks[taskIdx].Core = core
	}
}

// loadCoreConfig parses input_cores.txt: `NUM_CORES` lines of
// `x_factor threshold_crit_lvl`.
func loadCoreConfig(path string) ([]CoreConfig, error) {
	f, err := openInput(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := newTokenReader(f)

	var cores []CoreConfig

	for {
		x, err := r.float()
		if err != nil {
			if errors.Is(err, io.ErrUnexpectedEOF) {
				return cores, nil
			}

			return nil, fmt.Errorf("%w: %s: %v", sim.ErrInput, path, err)
		}

		k, err := r.int()
		if err != nil {
			return nil, fmt.Errorf("%w: %s: core %d: threshold: %v", sim.ErrInput, path, len(cores), err)
		}

		cores = append(cores, CoreConfig{XFactor: x, Threshold: k})
	}
}
