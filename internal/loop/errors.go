package loop

import (
	"errors"
	"fmt"
)

// ErrClosed is returned when work is submitted to a loop that has been
// disposed. A disposed loop is never reused; the test-case lifecycle creates
// a fresh loop per case.
var ErrClosed = errors.New("event loop is closed")

// CancelledError is delivered to a task at a suspension point after Cancel
// was requested. The scheduler interrupts the suspended wait immediately; it
// does not wait for the task to yield voluntarily.
//
// The error is created inside the suspension primitive, so the suspension
// chain attached to it (via trace.Wrap) spans every routine the task was
// suspended inside of at the moment of delivery.
type CancelledError struct {
	// Task is the name of the cancelled task.
	Task string
}

// Error implements the error interface.
func (e *CancelledError) Error() string {
	return fmt.Sprintf("task %q cancelled at suspension point", e.Task)
}

// IsCancelled reports whether err is (or wraps) a cancellation delivered by
// the scheduler. Uses errors.As to handle wrapped errors.
func IsCancelled(err error) bool {
	var ce *CancelledError
	return errors.As(err, &ce)
}

// PanicError wraps a panic recovered from a task body. Panics never tear
// down the scheduler; they surface as the task's error.
type PanicError struct {
	// Value is the value passed to panic.
	Value any
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}
