// Package harness runs suspendable test bodies to completion on dedicated
// per-test-case event loops.
//
// A test body written as func(*Case) error is decorated with Async, which
// tags it as suspendable at decoration time. For every invocation the
// runner creates a fresh Case (owning one event loop), runs the suite's
// SetUp hook, drives the body as a cancellable task raced against the
// effective timeout, runs TearDown, and disposes the loop on every exit
// path. The effective timeout is resolved fresh per invocation with a
// strict precedence: environment override, then the explicit decoration
// timeout, then a 5-second default.
//
// On failure or cancellation the outcome carries a rendered suspension
// chain naming every routine between the test entry point and the fault
// site - see the trace package.
package harness

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/roach88/strand/internal/report"
)

// Suite groups tests with optional lifecycle hooks.
//
// SetUp runs before each test with the test's fresh Case; TearDown runs
// after, even when the body failed. Hooks that contain suspension points
// must drive them to completion explicitly via Case.Drive - only test
// bodies get automatic scheduling and timeout enforcement. This asymmetry
// is deliberate.
type Suite struct {
	Name     string
	SetUp    func(*Case) error
	TearDown func(*Case) error
	Tests    []*Test
}

// Add appends tests to the suite and returns it for chaining.
func (s *Suite) Add(tests ...*Test) *Suite {
	s.Tests = append(s.Tests, tests...)
	return s
}

// Runner executes suites and hands one outcome per invocation to the
// reporting collaborator.
type Runner struct {
	reporter  report.Reporter
	logger    *slog.Logger
	envVar    string
	fallback  time.Duration
	lookupEnv func(string) string
	ids       report.IDGenerator
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithReporter sets the outcome reporter. Defaults to report.Discard.
func WithReporter(rep report.Reporter) RunnerOption {
	return func(r *Runner) {
		r.reporter = rep
	}
}

// WithLogger sets the runner's logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithEnvVar sets the name of the timeout-override environment variable.
// Defaults to DefaultTimeoutEnvVar.
func WithEnvVar(name string) RunnerOption {
	return func(r *Runner) {
		r.envVar = name
	}
}

// WithFallbackTimeout replaces the 5-second default at the bottom of the
// resolution order. Manifests with a suite-level default use this; the
// override and explicit tiers are unaffected.
func WithFallbackTimeout(d time.Duration) RunnerOption {
	return func(r *Runner) {
		r.fallback = d
	}
}

// WithLookupEnv replaces the environment read, for deterministic tests.
// Defaults to os.Getenv; the read happens fresh on every invocation either
// way.
func WithLookupEnv(lookup func(string) string) RunnerOption {
	return func(r *Runner) {
		r.lookupEnv = lookup
	}
}

// WithIDGenerator sets the run-ID generator. Defaults to UUIDv7.
func WithIDGenerator(gen report.IDGenerator) RunnerOption {
	return func(r *Runner) {
		r.ids = gen
	}
}

// NewRunner creates a Runner with the given options.
func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{
		reporter:  report.Discard{},
		logger:    slog.Default(),
		envVar:    DefaultTimeoutEnvVar,
		fallback:  DefaultTimeout,
		lookupEnv: os.Getenv,
		ids:       report.UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunSuite runs every test in the suite, reporting one outcome per test.
// The returned slice mirrors what the reporter saw. Stops early only when
// ctx is cancelled between tests; an individual test never aborts the
// suite.
func (r *Runner) RunSuite(ctx context.Context, s *Suite) ([]report.Outcome, error) {
	outcomes := make([]report.Outcome, 0, len(s.Tests))
	for _, t := range s.Tests {
		if err := ctx.Err(); err != nil {
			return outcomes, fmt.Errorf("suite %q interrupted: %w", s.Name, err)
		}
		out := r.RunTest(s, t)
		r.reporter.Report(out)
		outcomes = append(outcomes, out)
	}
	return outcomes, nil
}

// RunTest runs a single test through the full case lifecycle:
//
//	fresh loop -> SetUp -> body under effective timeout -> TearDown -> dispose
//
// Loop disposal happens on every exit path; a SetUp failure skips the body
// and TearDown but never the disposal. Exactly one outcome is produced.
func (r *Runner) RunTest(s *Suite, t *Test) (out report.Outcome) {
	c := NewCase(t.Name, WithCaseLogger(r.logger))
	defer func() {
		if err := c.Close(); err != nil {
			r.logger.Error("loop disposal failed",
				"suite", s.Name,
				"test", t.Name,
				"error", err,
			)
		}
	}()

	if s.SetUp != nil {
		if err := s.SetUp(c); err != nil {
			return report.Outcome{
				RunID: r.ids.Generate(),
				Suite: s.Name,
				Test:  t.Name,
				Kind:  report.Errored,
				Err:   fmt.Errorf("setup failed: %w", err),
			}
		}
	}

	out = r.invoke(c, s.Name, t)

	if s.TearDown != nil {
		if err := s.TearDown(c); err != nil {
			// Teardown failure on a passing test flips the outcome; on an
			// already-failed test the body's outcome wins and the teardown
			// error is logged.
			if out.Kind == report.Passed {
				out.Kind = report.Errored
				out.Err = fmt.Errorf("teardown failed: %w", err)
			} else {
				r.logger.Error("teardown failed after test fault",
					"suite", s.Name,
					"test", t.Name,
					"error", err,
				)
			}
		}
	}
	return out
}
