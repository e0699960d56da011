package harness

import (
	"fmt"

	"github.com/roach88/strand/internal/trace"
)

// Failf raises an assertion-style failure. The suspension chain is captured
// at the call site, so a failure three routines deep names all three in the
// rendered trace.
func Failf(format string, args ...any) error {
	return trace.Wrap(
		&FailureError{Message: fmt.Sprintf(format, args...)},
		trace.Capture(1),
	)
}

// Assertf returns nil when cond holds and a Failf-style failure otherwise.
func Assertf(cond bool, format string, args ...any) error {
	if cond {
		return nil
	}
	return trace.Wrap(
		&FailureError{Message: fmt.Sprintf(format, args...)},
		trace.Capture(1),
	)
}

// Errorf raises an unexpected (non-assertion) error with the suspension
// chain captured at the call site.
func Errorf(format string, args ...any) error {
	return trace.Wrap(fmt.Errorf(format, args...), trace.Capture(1))
}
