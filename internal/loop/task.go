package loop

import (
	"sync"
	"time"

	"github.com/roach88/strand/internal/trace"
)

// Task is one cancellable unit of work on a loop.
//
// A task body executes while holding the loop's run token and gives it up
// only inside the suspension primitives. The scheduler records the task's
// suspension chain at every suspension point, so when cancellation is
// delivered the chain - outer routine down to the innermost suspended call -
// is already captured.
type Task struct {
	loop *Loop
	name string
	seq  int64

	cancel     chan struct{}
	cancelOnce sync.Once
	done       chan struct{}

	mu          sync.Mutex
	err         error
	suspendedAt trace.Stack // chain at the most recent suspension point
	cancelledAt trace.Stack // chain where cancellation was delivered
}

// Name returns the task's name.
func (t *Task) Name() string {
	return t.name
}

// Seq returns the task's scheduling sequence number.
func (t *Task) Seq() int64 {
	return t.seq
}

// Done is closed when the task has finished (normally, by error, by panic
// or by cancellation).
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Err returns the task's final error. Valid only after Done is closed.
func (t *Task) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Cancel requests cancellation. The task observes it at its current (or
// next) suspension point; a task suspended in Sleep or Await is interrupted
// immediately rather than running the wait out. Idempotent, safe from any
// goroutine.
func (t *Task) Cancel() {
	t.cancelOnce.Do(func() {
		close(t.cancel)
	})
}

// Cancelled reports whether cancellation has been requested.
func (t *Task) Cancelled() bool {
	select {
	case <-t.cancel:
		return true
	default:
		return false
	}
}

// SuspendedAt returns the suspension chain recorded at the task's most
// recent suspension point.
func (t *Task) SuspendedAt() trace.Stack {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.suspendedAt
}

// CancelledAt returns the suspension chain at the point where cancellation
// was delivered, or nil if the task was not cancelled mid-suspension.
func (t *Task) CancelledAt() trace.Stack {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancelledAt
}

// Sleep suspends the task for d. Suspension point: the run token is
// released for the duration and cancellation is delivered here.
func (t *Task) Sleep(d time.Duration) error {
	return t.suspend(func(cancel <-chan struct{}) error {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-timer.C:
			return nil
		case <-cancel:
			return errCancelled
		}
	})
}

// Await runs fn off the loop and suspends until it returns or the task is
// cancelled. This is the suspension point for blocking work such as
// database calls or network I/O: the loop stays responsive while fn runs.
//
// On cancellation, fn keeps running in its own goroutine until it returns
// (its result is discarded); the buffered channel lets it exit cleanly.
func (t *Task) Await(fn func() error) error {
	var out error
	err := t.suspend(func(cancel <-chan struct{}) error {
		ch := make(chan error, 1)
		go func() {
			ch <- fn()
		}()
		select {
		case e := <-ch:
			out = e
			return nil
		case <-cancel:
			return errCancelled
		}
	})
	if err != nil {
		return err
	}
	return out
}

// Yield suspends the task just long enough to let every other runnable
// task take a turn. Cancellation is delivered here like at any other
// suspension point.
//
// Unlike Sleep and Await, a yielded task is runnable immediately, so it
// takes its new ticket before handing the token on. Two tasks yielding in
// a loop therefore alternate deterministically.
func (t *Task) Yield() error {
	chain := trace.Capture(1)
	t.mu.Lock()
	t.suspendedAt = chain
	t.mu.Unlock()

	if t.Cancelled() {
		return t.deliverCancel(chain)
	}

	ticket := t.loop.takeTicket()
	t.loop.release()
	t.loop.waitTurn(ticket)

	if t.Cancelled() {
		return t.deliverCancel(chain)
	}
	return nil
}

// errCancelled is the internal signal from a wait function that the cancel
// channel fired first. It never escapes the package; callers see a
// CancelledError carrying the suspension chain.
var errCancelled = &CancelledError{}

// suspend is the common shape of every suspension point:
//
//  1. Capture the suspension chain (the frames between the test entry
//     point and this call - loop internals are filtered out).
//  2. Release the run token and execute the wait.
//  3. Take a fresh ticket, wait for the turn, and resume - or deliver
//     cancellation with the captured chain attached.
func (t *Task) suspend(wait func(cancel <-chan struct{}) error) error {
	chain := trace.Capture(1)
	t.mu.Lock()
	t.suspendedAt = chain
	t.mu.Unlock()

	// Cancellation requested before we even suspended: deliver it now,
	// while still holding the run token.
	if t.Cancelled() {
		return t.deliverCancel(chain)
	}

	t.loop.release()
	waitErr := wait(t.cancel)

	// Rejoin the queue before touching any task state.
	t.loop.waitTurn(t.loop.takeTicket())

	if waitErr != nil {
		return t.deliverCancel(chain)
	}
	return nil
}

// deliverCancel records where cancellation landed and returns the
// cancellation error with the suspension chain attached.
func (t *Task) deliverCancel(chain trace.Stack) error {
	t.mu.Lock()
	t.cancelledAt = chain
	t.mu.Unlock()
	t.loop.logger.Debug("cancellation delivered",
		"task", t.name,
		"seq", t.seq,
	)
	return trace.Wrap(&CancelledError{Task: t.name}, chain)
}

// run drives the task body: wait for the start turn, execute, convert
// panics to errors, then hand the token on and finish.
func (t *Task) run(ticket uint64, fn func(*Task) error) {
	t.loop.waitTurn(ticket)
	defer func() {
		if r := recover(); r != nil {
			chain := trace.Capture(3)
			t.setErr(trace.Wrap(&PanicError{Value: r}, chain))
		}
		t.loop.release()
		t.loop.finish(t)
		close(t.done)
	}()
	t.setErr(fn(t))
}

func (t *Task) setErr(err error) {
	t.mu.Lock()
	t.err = err
	t.mu.Unlock()
}
