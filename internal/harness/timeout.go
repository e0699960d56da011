package harness

import (
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultTimeout is the global fallback enforced when neither an
	// explicit per-test timeout nor an environment override is in effect.
	DefaultTimeout = 5 * time.Second

	// DefaultTimeoutEnvVar is the environment variable consulted for the
	// process-wide timeout override. The value is read fresh on every test
	// invocation, never cached, so scoped set/run/restore blocks observe no
	// test-to-test interference.
	DefaultTimeoutEnvVar = "ASYNC_TEST_TIMEOUT"
)

// ResolveTimeout computes the effective timeout for one test invocation.
//
// Precedence, strictly:
//
//  1. A truthy override (a string parsing to a positive number of seconds)
//     wins unconditionally, over both the explicit per-test timeout and the
//     default.
//  2. Otherwise, an explicit per-test timeout (explicit > 0) applies.
//  3. Otherwise, the 5-second default applies.
//
// An absent override and an override of exactly zero both mean "no
// override" - never "a timeout of zero". A negative or unparsable override
// is a configuration error, surfaced rather than guessed at.
func ResolveTimeout(explicit time.Duration, override string) (time.Duration, error) {
	return resolveTimeout(explicit, override, DefaultTimeout)
}

// resolveTimeout is ResolveTimeout with an injectable fallback; the runner
// uses it when a manifest supplies a suite-level default.
func resolveTimeout(explicit time.Duration, override string, fallback time.Duration) (time.Duration, error) {
	if s := strings.TrimSpace(override); s != "" {
		secs, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, NewConfigurationError("timeout override %q is not a number", override)
		}
		if secs < 0 {
			return 0, NewConfigurationError("timeout override %q is negative", override)
		}
		if secs > 0 {
			return time.Duration(secs * float64(time.Second)), nil
		}
		// Exactly zero: treated as unset, fall through.
	}
	if explicit > 0 {
		return explicit, nil
	}
	return fallback, nil
}

// formatSeconds renders a duration the way the timeout message states it:
// as a plain decimal number of seconds with no trailing zeros
// (10*time.Millisecond -> "0.01").
func formatSeconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', -1, 64)
}
