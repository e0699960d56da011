package harness

import (
	"reflect"
	"runtime"
	"strings"
	"time"
)

// bodyKind is the capability tag assigned to a test body once, at
// decoration time. The shape of the function is the tag: suspendable bodies
// take a *Case (the suspension capability), synchronous bodies take none.
// Nothing is re-derived reflectively at run time.
type bodyKind int

const (
	bodySuspendable bodyKind = iota + 1 // func(*Case) error
	bodySync                            // func() error
	bodySyncValue                       // func() any - return value checked at run time
	bodySyncVoid                        // func()
)

// Test is a test body bound to its decoration-time configuration. The
// explicit timeout is configuration, not the effective timeout: the
// effective value is resolved fresh on every invocation, so the same Test
// re-invoked under different environment conditions runs under different
// effective timeouts.
type Test struct {
	// Name identifies the test in outcomes and traces. Defaults to the
	// body's function name.
	Name string

	kind      bodyKind
	decorated bool
	timeout   time.Duration // explicit per-test timeout; 0 = unset

	suspendable func(*Case) error
	sync        func() error
	syncValue   func() any
	syncVoid    func()
}

// Option configures a Test at decoration time. Only named options exist;
// there is no positional way to smuggle a duration in.
type Option func(*Test) error

// Timeout sets the explicit per-test timeout. Non-positive durations are a
// configuration error, rejected at decoration time.
func Timeout(d time.Duration) Option {
	return func(t *Test) error {
		if d <= 0 {
			return NewConfigurationError("timeout must be a positive duration, got %s", d)
		}
		t.timeout = d
		return nil
	}
}

// Named overrides the test's name.
func Named(name string) Option {
	return func(t *Test) error {
		if name == "" {
			return NewConfigurationError("test name must not be empty")
		}
		t.Name = name
		return nil
	}
}

// Async decorates fn as a harness test. Accepted shapes:
//
//	func(*Case) error  - suspendable: runs on the case's event loop under
//	                     the effective timeout, cancellable at suspension
//	                     points
//	func() error       - synchronous: runs directly, outcome from the error
//	func() any         - synchronous: a non-nil return value is flagged as
//	                     an error at run time
//	func()             - synchronous, no outcome signal beyond panics
//
// Any other shape is a configuration error at decoration time, before
// anything runs.
func Async(fn any, opts ...Option) (*Test, error) {
	t, err := classify(fn)
	if err != nil {
		return nil, err
	}
	t.decorated = true
	for _, opt := range opts {
		if err := opt(t); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// MustAsync is Async for static suite tables; it panics on a configuration
// error.
func MustAsync(fn any, opts ...Option) *Test {
	t, err := Async(fn, opts...)
	if err != nil {
		panic(err)
	}
	return t
}

// Plain registers fn without the Async decorator, the way an author who
// forgot to decorate would. Synchronous shapes run normally. A
// suspendable-shaped body is accepted here - the mistake is only
// detectable as a silently-skipped body at run time, where the lifecycle
// manager fails it with a corrective usage error instead.
func Plain(name string, fn any) (*Test, error) {
	t, err := classify(fn)
	if err != nil {
		return nil, err
	}
	if name != "" {
		t.Name = name
	}
	return t, nil
}

// MustPlain is Plain for static suite tables; it panics on a configuration
// error.
func MustPlain(name string, fn any) *Test {
	t, err := Plain(name, fn)
	if err != nil {
		panic(err)
	}
	return t
}

// ExplicitTimeout returns the decoration-time timeout (0 if unset). This is
// an input to resolution, never the effective timeout.
func (t *Test) ExplicitTimeout() time.Duration {
	return t.timeout
}

// Suspendable reports whether the body carries the suspension capability.
func (t *Test) Suspendable() bool {
	return t.kind == bodySuspendable
}

// Decorated reports whether the test went through the Async decorator.
func (t *Test) Decorated() bool {
	return t.decorated
}

// SetTimeout reconfigures the explicit timeout after decoration; manifests
// use it to apply per-test entries. Same validation as the Timeout option.
func (t *Test) SetTimeout(d time.Duration) error {
	return Timeout(d)(t)
}

// classify assigns the capability tag from the body's shape.
func classify(fn any) (*Test, error) {
	t := &Test{Name: funcName(fn)}
	switch body := fn.(type) {
	case func(*Case) error:
		t.kind = bodySuspendable
		t.suspendable = body
	case func() error:
		t.kind = bodySync
		t.sync = body
	case func() any:
		t.kind = bodySyncValue
		t.syncValue = body
	case func():
		t.kind = bodySyncVoid
		t.syncVoid = body
	default:
		return nil, NewConfigurationError(
			"unsupported test signature %T: want func(*harness.Case) error, func() error, func() any or func()",
			fn,
		)
	}
	return t, nil
}

// funcName derives a default test name from the body's function name,
// trimmed of its package import path.
func funcName(fn any) string {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func {
		return "unknown"
	}
	f := runtime.FuncForPC(v.Pointer())
	if f == nil {
		return "unknown"
	}
	name := f.Name()
	if idx := strings.LastIndex(name, "/"); idx >= 0 {
		name = name[idx+1:]
	}
	if idx := strings.Index(name, "."); idx >= 0 {
		name = name[idx+1:]
	}
	return name
}
