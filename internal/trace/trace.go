// Package trace captures and renders suspension chains.
//
// A suspension chain is the ordered list of routines a test body was
// suspended inside of at a given moment: the outer test entry point, every
// intermediate routine, down to the innermost frame where a fault (failure
// or cancellation) occurred. Stacks are captured with runtime.Callers at the
// two points where the chain is observable: inside a suspension primitive
// when cancellation is delivered, and inside a failure constructor when an
// assertion-style error is raised.
//
// Rendering is deliberately stable: one header line, one "at" line per
// frame, outermost routine first. Reporters and golden tests depend on this
// shape.
package trace

import (
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
)

// Frame describes one routine on a suspension chain.
type Frame struct {
	// Function is the fully qualified function name
	// (e.g. "github.com/roach88/strand/internal/harness.middle").
	Function string

	// File and Line locate the call site.
	File string
	Line int
}

// Name returns the function name with the package import path trimmed to
// its last element ("harness.middle"). Substring assertions on routine
// names work against either form.
func (f Frame) Name() string {
	name := f.Function
	if idx := strings.LastIndex(name, "/"); idx >= 0 {
		name = name[idx+1:]
	}
	return name
}

// Stack is a captured suspension chain, innermost frame first (the order
// runtime.Callers reports). Render reverses it so the outer test routine
// reads first.
type Stack []Frame

// capture depth. 64 frames is far deeper than any realistic suspension
// chain; deeper stacks are truncated at the outer end.
const maxDepth = 64

// internal packages whose frames are noise on a suspension chain. The
// scheduler, the harness wrappers and this package sit between every user
// frame and the capture point; user code (including external _test
// packages in those directories) has differently named packages and is
// never filtered.
var hiddenPrefixes = []string{
	"runtime.",
	"github.com/roach88/strand/internal/loop.",
	"github.com/roach88/strand/internal/trace.",
	"github.com/roach88/strand/internal/harness.",
}

// Capture records the calling goroutine's stack, skipping the given number
// of caller frames beyond Capture itself. Scheduler-internal and runtime
// frames are filtered; capture stops at the testing harness or goroutine
// root.
func Capture(skip int) Stack {
	pcs := make([]uintptr, maxDepth)
	n := runtime.Callers(skip+2, pcs)
	if n == 0 {
		return nil
	}

	frames := runtime.CallersFrames(pcs[:n])
	var st Stack
	for {
		fr, more := frames.Next()
		if fr.Function == "" {
			break
		}
		if strings.HasPrefix(fr.Function, "testing.") {
			// Reached the go test driver - everything above is not ours.
			break
		}
		if !hidden(fr.Function) {
			st = append(st, Frame{
				Function: fr.Function,
				File:     fr.File,
				Line:     fr.Line,
			})
		}
		if !more {
			break
		}
	}
	return st
}

func hidden(function string) bool {
	for _, p := range hiddenPrefixes {
		if strings.HasPrefix(function, p) {
			return true
		}
	}
	return false
}

// Names returns the routine names on the chain, outermost first.
func (s Stack) Names() []string {
	names := make([]string, 0, len(s))
	for i := len(s) - 1; i >= 0; i-- {
		names = append(names, s[i].Name())
	}
	return names
}

// String renders the chain, outer test routine first, innermost (fault
// site) last.
func (s Stack) String() string {
	if len(s) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("suspension trace (most recent call last):\n")
	for i := len(s) - 1; i >= 0; i-- {
		f := s[i]
		fmt.Fprintf(&b, "  at %s (%s:%d)\n", f.Name(), filepath.Base(f.File), f.Line)
	}
	return b.String()
}

// TracedError attaches a suspension chain to an error. The chain survives
// wrapping: use StackOf to recover it from anywhere in an error tree.
type TracedError struct {
	Err   error
	Stack Stack
}

// Error implements the error interface. The chain is not part of the
// message; reporters render it separately.
func (e *TracedError) Error() string {
	return e.Err.Error()
}

// Unwrap exposes the underlying error to errors.Is / errors.As.
func (e *TracedError) Unwrap() error {
	return e.Err
}

// Wrap attaches a stack to err. Returns nil for a nil err. If err already
// carries a stack it is left alone - the first capture is closest to the
// fault site.
func Wrap(err error, stack Stack) error {
	if err == nil {
		return nil
	}
	if _, ok := StackOf(err); ok {
		return err
	}
	return &TracedError{Err: err, Stack: stack}
}

// StackOf extracts the suspension chain from an error tree.
func StackOf(err error) (Stack, bool) {
	var te *TracedError
	if errors.As(err, &te) {
		return te.Stack, true
	}
	return nil, false
}
