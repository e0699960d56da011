package harness

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/strand/internal/loop"
)

// Case is one test-case instance: the lifecycle owner of exactly one event
// loop. The loop is created with the case, handed to setup, the test body
// and teardown, and disposed with Close regardless of outcome. A disposed
// case never hands out its loop again.
type Case struct {
	name   string
	loop   *loop.Loop
	logger *slog.Logger

	mu   sync.Mutex
	task *loop.Task // task currently executing on behalf of this case
}

// CaseOption configures a Case.
type CaseOption func(*Case)

// WithCaseLogger sets the case's logger. Defaults to slog.Default().
func WithCaseLogger(logger *slog.Logger) CaseOption {
	return func(c *Case) {
		c.logger = logger
	}
}

// NewCase creates a test-case instance with a freshly created event loop.
func NewCase(name string, opts ...CaseOption) *Case {
	c := &Case{
		name:   name,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.loop = loop.New(loop.WithLogger(c.logger))
	return c
}

// Name returns the case's name.
func (c *Case) Name() string {
	return c.name
}

// Loop exposes the case's event loop. Setup and teardown hooks use it
// directly (via Drive) for their own scoped loop-driven work; the harness
// deliberately does not wrap hooks the way it wraps test bodies.
func (c *Case) Loop() *loop.Loop {
	return c.loop
}

// Close disposes the case's loop, cancelling any in-flight work. Called on
// every exit path; idempotent.
func (c *Case) Close() error {
	return c.loop.Close()
}

// Drive runs fn to completion on the case's loop and returns its error.
// This is the explicit mechanism for setup/teardown hooks that contain
// suspension points: no timeout is enforced and no outcome is produced.
func (c *Case) Drive(name string, fn func(*Case) error) error {
	return c.loop.Drive(name, func(t *loop.Task) error {
		c.bind(t)
		defer c.unbind()
		return fn(c)
	})
}

// Sleep suspends the current test body for d. Suspension point; the
// effective-timeout cancellation is delivered here.
func (c *Case) Sleep(d time.Duration) error {
	t, err := c.current()
	if err != nil {
		return err
	}
	return t.Sleep(d)
}

// Await runs fn off the loop (blocking I/O, database calls) and suspends
// until it finishes or the body is cancelled.
func (c *Case) Await(fn func() error) error {
	t, err := c.current()
	if err != nil {
		return err
	}
	return t.Await(fn)
}

// Yield gives other work on the loop a turn. Suspension point.
func (c *Case) Yield() error {
	t, err := c.current()
	if err != nil {
		return err
	}
	return t.Yield()
}

// bind attaches the running task to the case for the duration of a body or
// hook. One body at a time per case; the scheduler already guarantees it.
func (c *Case) bind(t *loop.Task) {
	c.mu.Lock()
	c.task = t
	c.mu.Unlock()
}

func (c *Case) unbind() {
	c.mu.Lock()
	c.task = nil
	c.mu.Unlock()
}

func (c *Case) current() (*loop.Task, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.task == nil {
		return nil, fmt.Errorf("case %q: suspension point used outside a running body", c.name)
	}
	return c.task, nil
}
