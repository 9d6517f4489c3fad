// Package verify turns contract violations and driver failures into panics.
//
// Misuse of the core (overflowing a descriptor heap, declaring an illegal
// state, recording into a closed list) is a bug in the caller, never a
// runtime condition. These helpers make it loud: the panic value is an
// error carrying a stack trace, so it can be recovered and inspected with
// errors.IsAssertionFailure in tests.
package verify

import (
	"github.com/cockroachdb/errors"
)

// That panics with an assertion failure if cond is false.
func That(cond bool, format string, args ...any) {
	if !cond {
		panic(errors.AssertionFailedf(format, args...))
	}
}

// Fail panics with an assertion failure.
func Fail(format string, args ...any) {
	panic(errors.AssertionFailedf(format, args...))
}

// NoError panics if err is non-nil, wrapping it with the failed operation.
// It is used for native calls that must not fail on a healthy device.
func NoError(err error, op string) {
	if err != nil {
		panic(errors.Wrapf(err, "verify: %s", op))
	}
}

// IsViolation reports whether a recovered panic value is an assertion failure
// raised by That or Fail.
func IsViolation(v any) bool {
	err, ok := v.(error)
	return ok && errors.IsAssertionFailure(err)
}
