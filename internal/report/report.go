// Package report is the outcome boundary between the harness and the
// external reporting collaborator.
//
// The harness hands over exactly one Outcome per test invocation - passed,
// failed (assertion-style) or errored (timeout, usage, unexpected) - with
// the message and the rendered suspension-chain trace. Counting and
// formatting beyond that is the collaborator's concern; the reporters here
// are the reference collaborators used by the CLI and the tests.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"
)

// Kind classifies an outcome. Exactly one Kind is produced per invocation.
type Kind int

const (
	// Passed: the body ran to completion before its effective timeout
	// without raising.
	Passed Kind = iota + 1
	// Failed: the body raised an assertion-style failure.
	Failed
	// Errored: anything else - timeout cancellation, usage errors,
	// unexpected errors, panics.
	Errored
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case Passed:
		return "passed"
	case Failed:
		return "failed"
	case Errored:
		return "errored"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Outcome is the result of one test invocation.
type Outcome struct {
	// RunID correlates this invocation across log lines and reports.
	RunID string

	// Suite and Test identify the invocation.
	Suite string
	Test  string

	// Kind is the outcome classification.
	Kind Kind

	// Err is the failure or error (nil for Passed).
	Err error

	// Trace is the rendered suspension chain at the moment of the fault
	// (empty for Passed and for faults with no captured chain).
	Trace string

	// Elapsed is the wall time of the invocation.
	Elapsed time.Duration
}

// Message returns the outcome's error message, or "" for a pass.
func (o Outcome) Message() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}

// Reporter consumes outcomes. Implementations must tolerate being called
// once per invocation, in invocation order.
type Reporter interface {
	Report(Outcome)
}

// Summary aggregates outcomes for exit-code decisions. Kept deliberately
// minimal: richer aggregation belongs to the external collaborator.
type Summary struct {
	Total   int
	Passed  int
	Failed  int
	Errored int
}

// Add counts an outcome.
func (s *Summary) Add(o Outcome) {
	s.Total++
	switch o.Kind {
	case Passed:
		s.Passed++
	case Failed:
		s.Failed++
	case Errored:
		s.Errored++
	}
}

// OK reports whether every counted outcome passed.
func (s *Summary) OK() bool {
	return s.Failed == 0 && s.Errored == 0
}

// String renders a one-line summary.
func (s *Summary) String() string {
	return fmt.Sprintf("%d run, %d passed, %d failed, %d errored",
		s.Total, s.Passed, s.Failed, s.Errored)
}

// TextReporter writes human-readable outcome lines:
//
//	PASS   suite/test (1.2ms)
//	FAIL   suite/test (1.2ms)
//	       expected error
//	       suspension trace (most recent call last):
//	         at harness_test.outer (x_test.go:10)
type TextReporter struct {
	W io.Writer
}

// Report implements Reporter.
func (r *TextReporter) Report(o Outcome) {
	label := "PASS "
	switch o.Kind {
	case Failed:
		label = "FAIL "
	case Errored:
		label = "ERROR"
	}
	fmt.Fprintf(r.W, "%s  %s/%s (%s)\n", label, o.Suite, o.Test, o.Elapsed.Round(time.Microsecond))
	if o.Kind == Passed {
		return
	}
	if msg := o.Message(); msg != "" {
		fmt.Fprintf(r.W, "       %s\n", msg)
	}
	if o.Trace != "" {
		for _, line := range strings.Split(strings.TrimRight(o.Trace, "\n"), "\n") {
			fmt.Fprintf(r.W, "       %s\n", line)
		}
	}
}

// JSONReporter writes one JSON object per outcome, newline-delimited.
type JSONReporter struct {
	W io.Writer
}

// outcomeEnvelope is the wire shape of one outcome.
type outcomeEnvelope struct {
	RunID     string `json:"run_id,omitempty"`
	Suite     string `json:"suite"`
	Test      string `json:"test"`
	Kind      string `json:"kind"`
	Message   string `json:"message,omitempty"`
	Trace     string `json:"trace,omitempty"`
	ElapsedMS int64  `json:"elapsed_ms"`
}

// Report implements Reporter.
func (r *JSONReporter) Report(o Outcome) {
	_ = json.NewEncoder(r.W).Encode(outcomeEnvelope{
		RunID:     o.RunID,
		Suite:     o.Suite,
		Test:      o.Test,
		Kind:      o.Kind.String(),
		Message:   o.Message(),
		Trace:     o.Trace,
		ElapsedMS: o.Elapsed.Milliseconds(),
	})
}

// Discard drops every outcome. Used where only the returned outcomes
// matter.
type Discard struct{}

// Report implements Reporter.
func (Discard) Report(Outcome) {}
