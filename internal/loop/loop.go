// Package loop implements the cooperative single-threaded scheduler that
// backs one test case: one event loop, one logical thread of execution.
//
// A Loop serializes its tasks with a fair FIFO run token. Exactly one task
// executes at a time; a task gives the token up only at a suspension point
// (Sleep, Await, Yield) and takes a fresh place at the back of the queue
// when it becomes runnable again. Tasks therefore start in submission order
// and resume in readiness order, with no preemption in between.
//
// Cancellation is owned by the scheduler, not opted into by the task: a
// suspended task observes Cancel at its current suspension point, without
// waiting for a voluntary yield.
package loop

import (
	"log/slog"
	"sync"
)

// Loop is a single-threaded cooperative scheduler.
//
// Thread-safety model:
//   - Submit, Drive, Close, Closed: safe from any goroutine
//   - exactly one task body executes at any instant (run-token invariant)
//
// Lifecycle: a Loop belongs to exactly one test-case instance. It is created
// before setup, used by setup, the test body and teardown, and disposed with
// Close after teardown on every exit path. A closed Loop rejects new work.
type Loop struct {
	mu   sync.Mutex
	cond *sync.Cond

	// Fair FIFO run token: holding the turn (nowServing == your ticket) is
	// the right to execute. Tickets are issued under mu, in Submit for task
	// starts and at resume time for suspended tasks.
	nextTicket uint64
	nowServing uint64

	closed bool
	live   map[*Task]struct{}
	clock  *Clock
	logger *slog.Logger
}

// Option configures a Loop.
type Option func(*Loop)

// WithLogger sets the loop's logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loop) {
		l.logger = logger
	}
}

// New creates an empty, open loop.
func New(opts ...Option) *Loop {
	l := &Loop{
		live:   make(map[*Task]struct{}),
		clock:  NewClock(),
		logger: slog.Default(),
	}
	l.cond = sync.NewCond(&l.mu)
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Submit schedules fn as a new task. The task starts once every earlier
// ticket holder has run or suspended; submission order is start order.
//
// Returns ErrClosed if the loop has been disposed.
func (l *Loop) Submit(name string, fn func(*Task) error) (*Task, error) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil, ErrClosed
	}

	t := &Task{
		loop:   l,
		name:   name,
		seq:    l.clock.Next(),
		cancel: make(chan struct{}),
		done:   make(chan struct{}),
	}
	l.live[t] = struct{}{}

	// Issue the start ticket here, under mu, so that two Submit calls in
	// program order always start in that order regardless of goroutine
	// scheduling.
	ticket := l.nextTicket
	l.nextTicket++
	l.mu.Unlock()

	l.logger.Debug("task submitted", "task", name, "seq", t.seq)
	go t.run(ticket, fn)
	return t, nil
}

// Drive submits fn and blocks until it runs to completion, returning the
// task's error. This is how setup and teardown hooks perform loop-driven
// work explicitly: they are never wrapped or timed by the harness.
func (l *Loop) Drive(name string, fn func(*Task) error) error {
	t, err := l.Submit(name, fn)
	if err != nil {
		return err
	}
	<-t.done
	return t.Err()
}

// Close disposes the loop: no new work is accepted, in-flight tasks are
// cancelled at their next suspension point, and Close blocks until every
// task has finished. Idempotent.
func (l *Loop) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	remaining := make([]*Task, 0, len(l.live))
	for t := range l.live {
		remaining = append(remaining, t)
	}
	l.mu.Unlock()

	for _, t := range remaining {
		t.Cancel()
	}
	for _, t := range remaining {
		<-t.done
	}
	l.logger.Debug("loop closed", "cancelled_tasks", len(remaining))
	return nil
}

// Closed reports whether the loop has been disposed.
func (l *Loop) Closed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

// Clock returns the loop's logical clock. Useful for asserting scheduling
// order in tests.
func (l *Loop) Clock() *Clock {
	return l.clock
}

// takeTicket reserves the next place in the run queue. Called by a
// suspended task once it becomes runnable again.
func (l *Loop) takeTicket() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	ticket := l.nextTicket
	l.nextTicket++
	return ticket
}

// waitTurn blocks until the given ticket is being served. Together with
// release this is the run token: between waitTurn returning and release
// being called, the caller is the loop's single logical thread.
func (l *Loop) waitTurn(ticket uint64) {
	l.mu.Lock()
	for l.nowServing != ticket {
		l.cond.Wait()
	}
	l.mu.Unlock()
}

// release hands the run token to the next ticket holder.
func (l *Loop) release() {
	l.mu.Lock()
	l.nowServing++
	l.cond.Broadcast()
	l.mu.Unlock()
}

// finish removes a completed task from the live set.
func (l *Loop) finish(t *Task) {
	l.mu.Lock()
	delete(l.live, t)
	l.mu.Unlock()
}
