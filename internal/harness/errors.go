package harness

import (
	"errors"
	"fmt"
	"time"
)

// ErrorCode categorizes harness errors.
type ErrorCode string

const (
	// CodeConfiguration indicates invalid decoration or manifest
	// configuration. Fatal at decoration/load time; nothing runs.
	CodeConfiguration ErrorCode = "CONFIGURATION"

	// CodeUsage indicates a suspendable-shaped test registered without the
	// Async decorator. Surfaced as an error-kind outcome at run time with a
	// corrective message.
	CodeUsage ErrorCode = "USAGE"

	// CodeTimeout indicates the effective timeout elapsed and the test body
	// was cancelled at its suspension point.
	CodeTimeout ErrorCode = "TIMEOUT"

	// CodeIgnoredReturn indicates a synchronous test body returned a
	// non-nil value, which the harness never consumes.
	CodeIgnoredReturn ErrorCode = "IGNORED_RETURN"
)

// HarnessError is a coded error produced by the harness itself (as opposed
// to failures raised by test-body logic, which are FailureError).
type HarnessError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Timeout is the effective timeout that elapsed (timeout errors only).
	Timeout time.Duration
}

// Error implements the error interface.
func (e *HarnessError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewConfigurationError creates a decoration/configuration-time error.
func NewConfigurationError(format string, args ...any) *HarnessError {
	return &HarnessError{
		Code:    CodeConfiguration,
		Message: fmt.Sprintf(format, args...),
	}
}

// NewUsageError creates the corrective error for a suspendable test that
// was registered without the Async decorator.
func NewUsageError(testName string) *HarnessError {
	return &HarnessError{
		Code: CodeUsage,
		Message: fmt.Sprintf(
			"test %q is a suspendable test and should be decorated with harness.Async",
			testName,
		),
	}
}

// NewTimeoutError creates the timeout-kind error. The message states the
// exact effective timeout that was enforced, in seconds.
func NewTimeoutError(effective time.Duration) *HarnessError {
	return &HarnessError{
		Code:    CodeTimeout,
		Message: fmt.Sprintf("timed out after %s seconds", formatSeconds(effective)),
		Timeout: effective,
	}
}

// NewIgnoredReturnError flags a synchronous test body that returned a
// value. Test methods produce no meaningful return value; returning one
// almost always signals a wiring mistake.
func NewIgnoredReturnError(value any) *HarnessError {
	return &HarnessError{
		Code:    CodeIgnoredReturn,
		Message: fmt.Sprintf("return value from test method ignored: %v", value),
	}
}

// IsConfiguration reports whether err is a configuration error.
func IsConfiguration(err error) bool {
	return hasCode(err, CodeConfiguration)
}

// IsUsage reports whether err is a usage error.
func IsUsage(err error) bool {
	return hasCode(err, CodeUsage)
}

// IsTimeout reports whether err is the timeout kind.
func IsTimeout(err error) bool {
	return hasCode(err, CodeTimeout)
}

// IsIgnoredReturn reports whether err flags an ignored return value.
func IsIgnoredReturn(err error) bool {
	return hasCode(err, CodeIgnoredReturn)
}

func hasCode(err error, code ErrorCode) bool {
	var he *HarnessError
	if errors.As(err, &he) {
		return he.Code == code
	}
	return false
}

// FailureError is an assertion-style failure raised by test-body logic.
// It is reported as a Failure outcome, distinct from harness errors.
type FailureError struct {
	Message string
}

// Error implements the error interface.
func (e *FailureError) Error() string {
	return e.Message
}

// IsFailure reports whether err is (or wraps) an assertion-style failure.
func IsFailure(err error) bool {
	var fe *FailureError
	return errors.As(err, &fe)
}
