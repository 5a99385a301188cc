package simhttp

import (
	"encoding/json"
	"net/http"
)

// StatusHandler renders the current Recorder snapshot as JSON, grounded on
// the teacher's status.Handler (pkg/http/status): same controller-absent
// 503, same marshal-then-write shape, adapted from a single controller
// reference to a mutex-guarded Recorder.
type StatusHandler struct {
	rec *Recorder
}

// NewStatusHandler constructs a StatusHandler bound to rec.
func NewStatusHandler(rec *Recorder) *StatusHandler {
	return &StatusHandler{rec: rec}
}

// ServeHTTP implements http.Handler.
func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	if h == nil || h.rec == nil {
		http.Error(w, "simulator unavailable", http.StatusServiceUnavailable)

		return
	}

	state, ready := h.rec.current()
	if !ready {
		http.Error(w, "simulator has not produced a decision point yet", http.StatusServiceUnavailable)

		return
	}

	payload, err := json.Marshal(state)
	if err != nil {
		http.Error(w, "marshal status", http.StatusInternalServerError)

		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(payload)
}
