package harness_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/strand/internal/harness"
	"github.com/roach88/strand/internal/report"
	"github.com/roach88/strand/internal/testutil"
)

// fixedEnv pins the timeout-override variable to one value for the run.
func fixedEnv(value string) harness.RunnerOption {
	return harness.WithLookupEnv(func(string) string { return value })
}

// runOne invokes a single test through the full case lifecycle with quiet
// defaults and no environment override unless the caller supplies one.
func runOne(t *testing.T, tt *harness.Test, opts ...harness.RunnerOption) report.Outcome {
	t.Helper()
	base := []harness.RunnerOption{
		harness.WithLogger(testutil.DiscardLogger()),
		fixedEnv(""),
	}
	r := harness.NewRunner(append(base, opts...)...)
	s := (&harness.Suite{Name: "unit"}).Add(tt)
	return r.RunTest(s, tt)
}

// Named at package scope so the rendered suspension chain carries
// recognizable routine names.

func slowInner(c *harness.Case) error { return c.Sleep(time.Second) }

func slowMiddle(c *harness.Case) error { return slowInner(c) }

func testThatIsTooSlow(c *harness.Case) error { return slowMiddle(c) }

func failingInner(c *harness.Case) error { return harness.Failf("inner gave up") }

func failingMiddle(c *harness.Case) error { return failingInner(c) }

func failingOuter(c *harness.Case) error { return failingMiddle(c) }

// TestInvoke_PassingSuspendableBody tests the happy path: a body that
// suspends and finishes inside its effective timeout passes.
func TestInvoke_PassingSuspendableBody(t *testing.T) {
	out := runOne(t, harness.MustAsync(func(c *harness.Case) error {
		return c.Sleep(10 * time.Millisecond)
	}))
	assert.Equal(t, report.Passed, out.Kind)
	assert.NoError(t, out.Err)
	assert.Empty(t, out.Trace)
	assert.Equal(t, "unit", out.Suite)
	assert.NotEmpty(t, out.RunID)
}

// TestInvoke_TimeoutCancelsAtSuspensionPoint tests that a too-slow body is
// cancelled at its suspension point, the outcome states the exact
// effective timeout, and the suspension chain names every routine from
// the test entry point down to the innermost suspended call.
func TestInvoke_TimeoutCancelsAtSuspensionPoint(t *testing.T) {
	tt := harness.MustAsync(testThatIsTooSlow, harness.Timeout(10*time.Millisecond))

	begin := time.Now()
	out := runOne(t, tt)

	assert.Less(t, time.Since(begin), 2*time.Second, "cancellation must not wait out the sleep")
	assert.Equal(t, report.Errored, out.Kind)
	require.Error(t, out.Err)
	assert.True(t, harness.IsTimeout(out.Err))
	assert.Contains(t, out.Err.Error(), "timed out after 0.01 seconds")

	require.NotEmpty(t, out.Trace)
	assert.Contains(t, out.Trace, "testThatIsTooSlow")
	assert.Contains(t, out.Trace, "slowMiddle")
	assert.Contains(t, out.Trace, "slowInner")
}

// TestInvoke_OverrideBeatsExplicitTimeout tests that a truthy environment
// override extends a short explicit timeout: the body outlives the
// explicit value but finishes under the override.
func TestInvoke_OverrideBeatsExplicitTimeout(t *testing.T) {
	tt := harness.MustAsync(func(c *harness.Case) error {
		return c.Sleep(50 * time.Millisecond)
	}, harness.Timeout(10*time.Millisecond))

	out := runOne(t, tt, fixedEnv("0.5"))
	assert.Equal(t, report.Passed, out.Kind)
	assert.NoError(t, out.Err)
}

// TestInvoke_ZeroOverrideKeepsExplicitTimeout tests that an override of
// "0" means no override: the explicit per-test timeout still applies.
func TestInvoke_ZeroOverrideKeepsExplicitTimeout(t *testing.T) {
	tt := harness.MustAsync(func(c *harness.Case) error {
		return c.Sleep(time.Second)
	}, harness.Timeout(10*time.Millisecond))

	out := runOne(t, tt, fixedEnv("0"))
	assert.Equal(t, report.Errored, out.Kind)
	assert.True(t, harness.IsTimeout(out.Err))
	assert.Contains(t, out.Err.Error(), "timed out after 0.01 seconds")
}

// TestInvoke_ZeroOverrideFallsBackToDefault tests that with neither a
// usable override nor an explicit timeout, the default applies and a
// quick body passes.
func TestInvoke_ZeroOverrideFallsBackToDefault(t *testing.T) {
	out := runOne(t, harness.MustAsync(func(c *harness.Case) error {
		return c.Sleep(20 * time.Millisecond)
	}), fixedEnv("0"))
	assert.Equal(t, report.Passed, out.Kind)
}

// TestInvoke_BadOverrideIsConfigurationError tests that a negative or
// unparsable override errors the invocation before the body runs.
func TestInvoke_BadOverrideIsConfigurationError(t *testing.T) {
	for _, bad := range []string{"-1", "ten"} {
		ran := false
		tt := harness.MustAsync(func(c *harness.Case) error {
			ran = true
			return nil
		})
		out := runOne(t, tt, fixedEnv(bad))
		assert.Equal(t, report.Errored, out.Kind, "override %q", bad)
		assert.True(t, harness.IsConfiguration(out.Err), "override %q", bad)
		assert.False(t, ran, "body must not run under a broken override")
	}
}

// TestInvoke_OverrideReadFreshPerInvocation tests that the override is
// consulted on every invocation and the resolved value is never cached on
// the test: the same Test re-invoked under a different environment runs
// under a different effective timeout.
func TestInvoke_OverrideReadFreshPerInvocation(t *testing.T) {
	override := "0.05"
	lookup := harness.WithLookupEnv(func(string) string { return override })

	tt := harness.MustAsync(func(c *harness.Case) error {
		return c.Sleep(150 * time.Millisecond)
	})

	out := runOne(t, tt, lookup)
	assert.Equal(t, report.Errored, out.Kind)
	assert.True(t, harness.IsTimeout(out.Err))

	override = "1"
	out = runOne(t, tt, lookup)
	assert.Equal(t, report.Passed, out.Kind)
}

// TestInvoke_ReadsProcessEnvironmentByDefault tests the default wiring:
// without an injected lookup the runner reads ASYNC_TEST_TIMEOUT from the
// process environment, and a scoped override set for this test alone wins
// over the generous explicit timeout.
func TestInvoke_ReadsProcessEnvironmentByDefault(t *testing.T) {
	t.Setenv(harness.DefaultTimeoutEnvVar, "0.05")

	tt := harness.MustAsync(func(c *harness.Case) error {
		return c.Sleep(500 * time.Millisecond)
	}, harness.Timeout(5*time.Second))

	r := harness.NewRunner(harness.WithLogger(testutil.DiscardLogger()))
	s := (&harness.Suite{Name: "env"}).Add(tt)
	out := r.RunTest(s, tt)

	assert.Equal(t, report.Errored, out.Kind)
	assert.True(t, harness.IsTimeout(out.Err))
	assert.Contains(t, out.Err.Error(), "timed out after 0.05 seconds")
}

// TestInvoke_UndecoratedSuspendableIsUsageError tests the correctness
// guard: a suspendable-shaped body registered without the decorator never
// runs and gets the corrective message.
func TestInvoke_UndecoratedSuspendableIsUsageError(t *testing.T) {
	ran := false
	tt := harness.MustPlain("forgotDecorator", func(c *harness.Case) error {
		ran = true
		return nil
	})

	out := runOne(t, tt)
	assert.Equal(t, report.Errored, out.Kind)
	assert.True(t, harness.IsUsage(out.Err))
	assert.Contains(t, out.Err.Error(), "should be decorated with harness.Async")
	assert.Contains(t, out.Err.Error(), `"forgotDecorator"`)
	assert.False(t, ran, "an undecorated suspendable body would be silently skipped; it must not run")
}

// TestInvoke_TimeoutOutcomeNeverReclassified tests that once the timer
// fires the outcome is the timeout kind even if the body swallows the
// cancellation and returns nil on its way out.
func TestInvoke_TimeoutOutcomeNeverReclassified(t *testing.T) {
	tt := harness.MustAsync(func(c *harness.Case) error {
		_ = c.Sleep(10 * time.Second) // cancellation lands here; drop it
		return nil
	}, harness.Timeout(10*time.Millisecond))

	out := runOne(t, tt)
	assert.Equal(t, report.Errored, out.Kind)
	assert.True(t, harness.IsTimeout(out.Err))
}

// TestInvoke_IgnoredReturnValueFlagged tests that a synchronous body
// returning a non-nil value is flagged: the harness never consumes return
// values, so one almost always signals a wiring mistake.
func TestInvoke_IgnoredReturnValueFlagged(t *testing.T) {
	out := runOne(t, harness.MustAsync(func() any { return 42 }))
	assert.Equal(t, report.Errored, out.Kind)
	assert.True(t, harness.IsIgnoredReturn(out.Err))
	assert.Contains(t, out.Err.Error(), "return value from test method ignored: 42")

	out = runOne(t, harness.MustAsync(func() any { return nil }))
	assert.Equal(t, report.Passed, out.Kind)
}

// TestInvoke_SynchronousOutcomes tests the synchronous shapes: plain
// errors error, assertion failures fail, nil passes.
func TestInvoke_SynchronousOutcomes(t *testing.T) {
	out := runOne(t, harness.MustAsync(func() error { return nil }))
	assert.Equal(t, report.Passed, out.Kind)

	out = runOne(t, harness.MustAsync(func() error { return errors.New("broken pipe") }))
	assert.Equal(t, report.Errored, out.Kind)
	assert.Contains(t, out.Err.Error(), "broken pipe")

	out = runOne(t, harness.MustAsync(func() error { return harness.Failf("want 1, got 2") }))
	assert.Equal(t, report.Failed, out.Kind)
	assert.Contains(t, out.Err.Error(), "want 1, got 2")

	out = runOne(t, harness.MustAsync(func() {}))
	assert.Equal(t, report.Passed, out.Kind)
}

// TestInvoke_FailureTraceNamesEveryLevel tests that an assertion failure
// raised three routines deep renders a chain naming all three.
func TestInvoke_FailureTraceNamesEveryLevel(t *testing.T) {
	out := runOne(t, harness.MustAsync(failingOuter))

	assert.Equal(t, report.Failed, out.Kind)
	require.Error(t, out.Err)
	assert.True(t, harness.IsFailure(out.Err))
	assert.Equal(t, "inner gave up", out.Err.Error())

	require.NotEmpty(t, out.Trace)
	assert.Contains(t, out.Trace, "failingOuter")
	assert.Contains(t, out.Trace, "failingMiddle")
	assert.Contains(t, out.Trace, "failingInner")

	// Outer routine reads before the fault site.
	assert.Less(t,
		strings.Index(out.Trace, "failingOuter"),
		strings.Index(out.Trace, "failingInner"),
	)
}

// TestInvoke_PanicsRecovered tests that panics in either body shape
// surface as errored outcomes, not process crashes.
func TestInvoke_PanicsRecovered(t *testing.T) {
	out := runOne(t, harness.MustAsync(func() { panic("kaboom") }))
	assert.Equal(t, report.Errored, out.Kind)
	assert.Contains(t, out.Err.Error(), "panic: kaboom")

	out = runOne(t, harness.MustAsync(func(c *harness.Case) error {
		panic("mid-flight")
	}))
	assert.Equal(t, report.Errored, out.Kind)
	assert.Contains(t, out.Err.Error(), "panic: mid-flight")
}

// TestInvoke_AwaitErrorPropagates tests that an error from blocking work
// run through Await becomes the body's error.
func TestInvoke_AwaitErrorPropagates(t *testing.T) {
	out := runOne(t, harness.MustAsync(func(c *harness.Case) error {
		return c.Await(func() error { return errors.New("connection refused") })
	}))
	assert.Equal(t, report.Errored, out.Kind)
	assert.Contains(t, out.Err.Error(), "connection refused")
}
