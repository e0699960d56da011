// Package manifest loads declarative suite configuration written in CUE.
//
// A manifest names a suite and carries its timeout policy: an optional
// suite-level default, the override environment variable name, and
// per-test timeout entries. Uses the CUE SDK's Go API directly (not a CLI
// subprocess).
//
// Example manifest:
//
//	name: "integration"
//	default_timeout: 5.0
//	env_var: "ASYNC_TEST_TIMEOUT"
//	tests: {
//		slowQuery: {timeout: 0.5}
//	}
//
// Timeouts are numbers of seconds. A per-test entry must set the named
// timeout field; a bare scalar (tests: {slowQuery: 0.5}) is the classic
// typo of passing a duration positionally and is rejected at load time,
// before anything runs.
package manifest

import (
	"fmt"
	"os"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"golang.org/x/text/unicode/norm"

	"github.com/roach88/strand/internal/harness"
)

// Manifest is the decoded suite configuration.
type Manifest struct {
	// Name identifies the suite this manifest configures.
	Name string

	// DefaultTimeout replaces the harness's 5-second fallback for this
	// suite (0 = keep the harness default). Never overrides the
	// environment or explicit tiers.
	DefaultTimeout time.Duration

	// EnvVar is the timeout-override environment variable name
	// ("" = the harness default).
	EnvVar string

	// Tests maps NFC-normalized test names to their configuration.
	Tests map[string]TestConfig
}

// TestConfig is the per-test configuration.
type TestConfig struct {
	// Timeout is the explicit per-test timeout, always positive.
	Timeout time.Duration
}

// Load reads and parses a manifest file.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return Parse(path, data)
}

// Parse compiles and validates manifest source. Configuration-rule
// violations (non-positive timeouts, positional timeouts, unknown fields)
// are harness configuration errors; CUE syntax errors are wrapped as-is.
func Parse(filename string, data []byte) (*Manifest, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("compile manifest: %w", err)
	}

	m := &Manifest{Tests: make(map[string]TestConfig)}

	nameVal := v.LookupPath(cue.ParsePath("name"))
	if !nameVal.Exists() {
		return nil, harness.NewConfigurationError("manifest: name is required")
	}
	name, err := nameVal.String()
	if err != nil {
		return nil, fmt.Errorf("manifest name: %w", err)
	}
	if name == "" {
		return nil, harness.NewConfigurationError("manifest: name must not be empty")
	}
	m.Name = name

	if dt := v.LookupPath(cue.ParsePath("default_timeout")); dt.Exists() {
		d, err := secondsValue(dt, "default_timeout")
		if err != nil {
			return nil, err
		}
		m.DefaultTimeout = d
	}

	if ev := v.LookupPath(cue.ParsePath("env_var")); ev.Exists() {
		s, err := ev.String()
		if err != nil {
			return nil, fmt.Errorf("manifest env_var: %w", err)
		}
		if s == "" {
			return nil, harness.NewConfigurationError("manifest: env_var must not be empty")
		}
		m.EnvVar = s
	}

	if tests := v.LookupPath(cue.ParsePath("tests")); tests.Exists() {
		if err := parseTests(tests, m); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// parseTests decodes the per-test entries.
func parseTests(v cue.Value, m *Manifest) error {
	iter, err := v.Fields()
	if err != nil {
		return fmt.Errorf("manifest tests: %w", err)
	}
	for iter.Next() {
		name := fieldName(iter.Selector())
		entry := iter.Value()

		switch entry.Kind() {
		case cue.StructKind:
			cfg, err := parseTestEntry(name, entry)
			if err != nil {
				return err
			}
			m.Tests[canonicalName(name)] = cfg
		case cue.IntKind, cue.FloatKind, cue.NumberKind:
			// The duration-passed-positionally typo: reject rather than
			// silently ignore.
			return harness.NewConfigurationError(
				"manifest test %q: timeout must be set with the named \"timeout\" field, not a bare value",
				name,
			)
		default:
			return harness.NewConfigurationError(
				"manifest test %q: entry must be a struct with a \"timeout\" field", name)
		}
	}
	return nil
}

// parseTestEntry decodes one {timeout: n} entry, rejecting unknown fields.
func parseTestEntry(name string, v cue.Value) (TestConfig, error) {
	iter, err := v.Fields()
	if err != nil {
		return TestConfig{}, fmt.Errorf("manifest test %q: %w", name, err)
	}
	var cfg TestConfig
	seen := false
	for iter.Next() {
		field := fieldName(iter.Selector())
		if field != "timeout" {
			return TestConfig{}, harness.NewConfigurationError(
				"manifest test %q: unknown field %q (only \"timeout\" is accepted)", name, field)
		}
		d, err := secondsValue(iter.Value(), fmt.Sprintf("test %q timeout", name))
		if err != nil {
			return TestConfig{}, err
		}
		cfg.Timeout = d
		seen = true
	}
	if !seen {
		return TestConfig{}, harness.NewConfigurationError(
			"manifest test %q: timeout field is required", name)
	}
	return cfg, nil
}

// secondsValue converts a CUE number (seconds) to a positive duration.
func secondsValue(v cue.Value, field string) (time.Duration, error) {
	secs, err := v.Float64()
	if err != nil {
		return 0, harness.NewConfigurationError("manifest %s: not a number: %v", field, err)
	}
	if secs <= 0 {
		return 0, harness.NewConfigurationError("manifest %s: must be positive, got %v", field, secs)
	}
	return time.Duration(secs * float64(time.Second)), nil
}

// fieldName extracts a struct field's label, handling quoted labels.
func fieldName(sel cue.Selector) string {
	return strings.Trim(sel.String(), `"`)
}

// canonicalName NFC-normalizes a test name so manifest entries and
// registered tests compare equal regardless of the source's unicode
// composition form.
func canonicalName(name string) string {
	return norm.NFC.String(name)
}

// TimeoutFor looks up the per-test timeout for a (possibly denormalized)
// test name.
func (m *Manifest) TimeoutFor(testName string) (time.Duration, bool) {
	cfg, ok := m.Tests[canonicalName(testName)]
	if !ok {
		return 0, false
	}
	return cfg.Timeout, true
}

// ApplyTo installs per-test timeouts onto the matching tests of s. Every
// manifest entry must match a test: an entry that matches nothing is a
// typo that would otherwise silently configure nothing.
func (m *Manifest) ApplyTo(s *harness.Suite) error {
	byName := make(map[string]*harness.Test, len(s.Tests))
	for _, t := range s.Tests {
		byName[canonicalName(t.Name)] = t
	}
	for name, cfg := range m.Tests {
		t, ok := byName[name]
		if !ok {
			return harness.NewConfigurationError(
				"manifest test %q matches no test in suite %q", name, s.Name)
		}
		if err := t.SetTimeout(cfg.Timeout); err != nil {
			return err
		}
	}
	return nil
}
