package harness

import (
	"time"

	"github.com/roach88/strand/internal/loop"
	"github.com/roach88/strand/internal/report"
	"github.com/roach88/strand/internal/trace"
)

// invoke drives one test on its case and produces exactly one outcome.
//
// For a suspendable body: the body is submitted to the case's loop as a
// cancellable task and raced against a timer for the effective timeout.
// Body first: its result (nil, failure or error) propagates unchanged.
// Timer first: the task is cancelled at its current suspension point and
// the outcome is the timeout kind - never re-classified, even if the body
// swallows the cancellation on its way out - with the suspension chain
// captured at the moment of delivery.
//
// For a synchronous body: the body runs directly; a non-nil return value
// from a value-shaped body is flagged as an error.
func (r *Runner) invoke(c *Case, suiteName string, t *Test) report.Outcome {
	start := time.Now()
	out := report.Outcome{
		RunID: r.ids.Generate(),
		Suite: suiteName,
		Test:  t.Name,
	}

	// The override is consulted fresh for every invocation; the resolved
	// value is never stored on the Test.
	effective, err := resolveTimeout(t.timeout, r.lookupEnv(r.envVar), r.fallback)
	if err != nil {
		out.Kind = report.Errored
		out.Err = err
		out.Elapsed = time.Since(start)
		return out
	}

	r.logger.Debug("test starting",
		"run_id", out.RunID,
		"suite", suiteName,
		"test", t.Name,
		"effective_timeout", effective,
		"suspendable", t.Suspendable(),
	)

	switch {
	case t.kind == bodySuspendable && !t.decorated:
		// Correctness guard: invoking this undecorated would silently skip
		// the body (nothing would drive its suspension points).
		out.Kind = report.Errored
		out.Err = NewUsageError(t.Name)

	case t.kind == bodySuspendable:
		out.Kind, out.Err, out.Trace = r.invokeSuspendable(c, t, effective)

	default:
		out.Kind, out.Err, out.Trace = r.invokeSync(t)
	}

	out.Elapsed = time.Since(start)
	r.logger.Debug("test finished",
		"run_id", out.RunID,
		"suite", suiteName,
		"test", t.Name,
		"kind", out.Kind.String(),
		"elapsed", out.Elapsed,
	)
	return out
}

// invokeSuspendable schedules the body on the case's loop and enforces the
// effective timeout via cancellation.
func (r *Runner) invokeSuspendable(c *Case, t *Test, effective time.Duration) (report.Kind, error, string) {
	task, err := c.Loop().Submit(t.Name, func(task *loop.Task) error {
		c.bind(task)
		defer c.unbind()
		return t.suspendable(c)
	})
	if err != nil {
		// Loop already disposed - a lifecycle bug, not a test failure.
		return report.Errored, err, ""
	}

	timer := time.NewTimer(effective)
	defer timer.Stop()

	timedOut := false
	select {
	case <-task.Done():
	case <-timer.C:
		timedOut = true
		task.Cancel()
		// Cancellation lands at the task's current suspension point;
		// the unwind is prompt, so waiting here cannot hang.
		<-task.Done()
	}

	if timedOut {
		terr := NewTimeoutError(effective)
		return report.Errored, terr, renderChain(task, task.Err())
	}
	return classifyOutcome(task.Err(), task)
}

// invokeSync runs a synchronous body directly. Panics are recovered into
// errors; the harness never lets a test body take the process down.
func (r *Runner) invokeSync(t *Test) (kind report.Kind, err error, chain string) {
	var value any
	func() {
		defer func() {
			if rec := recover(); rec != nil {
				err = trace.Wrap(&loop.PanicError{Value: rec}, trace.Capture(3))
			}
		}()
		switch t.kind {
		case bodySync:
			err = t.sync()
		case bodySyncValue:
			value = t.syncValue()
		case bodySyncVoid:
			t.syncVoid()
		}
	}()

	if err == nil && value != nil {
		err = NewIgnoredReturnError(value)
	}
	return classifyOutcome(err, nil)
}

// classifyOutcome maps a body error to an outcome kind and rendered chain.
func classifyOutcome(err error, task *loop.Task) (report.Kind, error, string) {
	if err == nil {
		return report.Passed, nil, ""
	}
	if IsFailure(err) {
		return report.Failed, err, renderChain(task, err)
	}
	return report.Errored, err, renderChain(task, err)
}

// renderChain picks the best available suspension chain for an error: the
// chain carried by the error itself (captured at the fault site), else the
// chain at the point cancellation was delivered, else the task's most
// recent suspension point - the scheduler's last record of where the body
// was.
func renderChain(task *loop.Task, err error) string {
	if st, ok := trace.StackOf(err); ok && len(st) > 0 {
		return st.String()
	}
	if task == nil {
		return ""
	}
	if st := task.CancelledAt(); len(st) > 0 {
		return st.String()
	}
	if st := task.SuspendedAt(); len(st) > 0 {
		return st.String()
	}
	return ""
}
