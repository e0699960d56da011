// Package testutil provides deterministic test doubles for the harness.
package testutil

import (
	"io"
	"log/slog"
	"sync"

	"github.com/roach88/strand/internal/report"
)

// CollectingReporter records every outcome it is handed, in order.
//
// Thread-safety: safe for concurrent use via internal mutex, though the
// runner reports sequentially.
type CollectingReporter struct {
	mu       sync.Mutex
	outcomes []report.Outcome
}

// Report implements report.Reporter.
func (r *CollectingReporter) Report(o report.Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, o)
}

// All returns the recorded outcomes in report order.
func (r *CollectingReporter) All() []report.Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]report.Outcome, len(r.outcomes))
	copy(out, r.outcomes)
	return out
}

// ByTest returns the first outcome recorded for the named test.
func (r *CollectingReporter) ByTest(name string) (report.Outcome, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.outcomes {
		if o.Test == name {
			return o, true
		}
	}
	return report.Outcome{}, false
}

// Len returns the number of recorded outcomes.
func (r *CollectingReporter) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.outcomes)
}

// DiscardLogger returns a logger that drops everything. Suppresses harness
// logs in tests.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
