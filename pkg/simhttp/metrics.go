package simhttp

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
)

const metricsContentType = "application/openmetrics-text; version=1.0.0; charset=utf-8"

var errRecorderNotReady = errors.New("simhttp: no decision point recorded yet")

// MetricsHandler renders the current Recorder snapshot as OpenMetrics text:
// one gauge per pkg/stats counter, plus sim_time_seconds and
// sim_criticality_level, grounded on the teacher's metrics.Exporter
// Render/WriteTo split (pkg/http/metrics).
type MetricsHandler struct {
	rec *Recorder
}

// NewMetricsHandler constructs a MetricsHandler bound to rec.
func NewMetricsHandler(rec *Recorder) *MetricsHandler {
	return &MetricsHandler{rec: rec}
}

// ServeHTTP implements http.Handler.
func (h *MetricsHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	data, err := h.Render()
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)

		return
	}

	w.Header().Set("Content-Type", metricsContentType)
	_, _ = w.Write(data)
}

// Render returns the current snapshot encoded as OpenMetrics text.
func (h *MetricsHandler) Render() ([]byte, error) {
	var buf bytes.Buffer

	if _, err := h.WriteTo(&buf); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

type floatGauge struct {
	name, help string
	values     []float64
}

type intGauge struct {
	name, help string
	values     []int
}

// WriteTo writes the current snapshot to dst in OpenMetrics exposition
// format.
func (h *MetricsHandler) WriteTo(dst io.Writer) (int64, error) {
	if h == nil || h.rec == nil {
		return 0, errRecorderNotReady
	}

	state, ready := h.rec.current()
	if !ready {
		return 0, errRecorderNotReady
	}

	var total int64

	write := func(format string, args ...any) error {
		n, err := fmt.Fprintf(dst, format, args...)
		total += int64(n)

		return err
	}

	if err := write("# HELP sim_time_seconds Current simulated time.\n# TYPE sim_time_seconds gauge\nsim_time_seconds %.5f\n", state.SimTime); err != nil {
		return total, err
	}

	if err := write("# HELP sim_criticality_level Current global system criticality level.\n# TYPE sim_criticality_level gauge\nsim_criticality_level %d\n", state.CritLevel); err != nil {
		return total, err
	}

	floatGauges := []floatGauge{
		{"sim_active_energy", "Cumulative active energy per core.", state.Stats.ActiveEnergy},
		{"sim_idle_energy", "Cumulative idle energy per core.", state.Stats.IdleEnergy},
		{"sim_shutdown_time", "Cumulative shutdown time per core.", state.Stats.ShutdownTime},
		{"sim_discarded_jobs_available", "Work discarded but not necessarily reclaimed, per core.", state.Stats.DiscardedJobsAvailable},
		{"sim_discarded_jobs_executed", "Discarded work later delivered, per core.", state.Stats.DiscardedJobsExecuted},
	}

	for _, g := range floatGauges {
		if err := writeFloatGauge(write, g); err != nil {
			return total, err
		}
	}

	intGauges := []intGauge{
		{"sim_context_switches", "Context switches per core.", state.Stats.ContextSwitches},
		{"sim_arrival_points", "Arrival decision points per core.", state.Stats.ArrivalPoints},
		{"sim_completion_points", "Completion decision points per core.", state.Stats.CompletionPoints},
		{"sim_criticality_change_points", "Criticality-change decision points per core.", state.Stats.CriticalityChangePoints},
		{"sim_wakeup_points", "Wakeup decision points per core.", state.Stats.WakeupPoints},
		{"sim_discarded_jobs", "Discarded jobs reclaimed per core.", state.Stats.DiscardedJobs},
	}

	for _, g := range intGauges {
		if err := writeIntGauge(write, g); err != nil {
			return total, err
		}
	}

	if err := write("# EOF\n"); err != nil {
		return total, err
	}

	return total, nil
}

func writeFloatGauge(write func(string, ...any) error, g floatGauge) error {
	if err := write("# HELP %s %s\n# TYPE %s gauge\n", g.name, g.help, g.name); err != nil {
		return err
	}

	for i, v := range g.values {
		if err := write("%s{core=\"%d\"} %.5f\n", g.name, i, v); err != nil {
			return err
		}
	}

	return nil
}

func writeIntGauge(write func(string, ...any) error, g intGauge) error {
	if err := write("# HELP %s %s\n# TYPE %s gauge\n", g.name, g.help, g.name); err != nil {
		return err
	}

	for i, v := range g.values {
		if err := write("%s{core=\"%d\"} %d\n", g.name, i, v); err != nil {
			return err
		}
	}

	return nil
}
