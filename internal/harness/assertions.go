package harness

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// AssertionError is returned when an assertion in a test body fails.
// It is a domain failure, so an expected-failure test absorbs it.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
	Location string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	buf.WriteString(e.Head())
	if e.Expected != "" || e.Actual != "" {
		fmt.Fprintf(&buf, "\n  Expected: %s", e.Expected)
		fmt.Fprintf(&buf, "\n  Found:    %s", e.Actual)
	}
	return buf.String()
}

// Head returns the assertion type and location.
func (e *AssertionError) Head() string {
	if e.Location != "" {
		return fmt.Sprintf("%s: assertion failed: %s", e.Location, e.Type)
	}
	return "assertion failed: " + e.Type
}

// Assert fails with what unless cond holds.
func Assert(cond bool, what string) error {
	if cond {
		return nil
	}
	return &AssertionError{Type: what, Location: callerLocation(1)}
}

// Assertf is Assert with a formatted description.
func Assertf(cond bool, format string, args ...any) error {
	if cond {
		return nil
	}
	return &AssertionError{Type: fmt.Sprintf(format, args...), Location: callerLocation(1)}
}

// AssertError fails unless err matches target.
func AssertError(err, target error) error {
	if errors.Is(err, target) {
		return nil
	}
	return &AssertionError{
		Type:     "error mismatch",
		Expected: fmt.Sprint(target),
		Actual:   errString(err),
		Location: callerLocation(1),
	}
}

// AssertAnyError fails unless err is a domain error. A nil error or an
// internal fault does not count.
func AssertAnyError(err error) error {
	switch {
	case err == nil:
		return &AssertionError{
			Type:     "expected an error",
			Expected: "error",
			Actual:   "<nil>",
			Location: callerLocation(1),
		}
	case IsFault(err):
		return &AssertionError{
			Type:     "expected a domain error",
			Expected: "error",
			Actual:   err.Error(),
			Location: callerLocation(1),
		}
	}
	return nil
}

// StringEqual fails unless expected and actual are identical.
func StringEqual(expected, actual string) error {
	if expected == actual {
		return nil
	}
	return &AssertionError{
		Type:     "strings not equal",
		Expected: "'" + expected + "'",
		Actual:   "'" + actual + "'",
		Location: callerLocation(1),
	}
}

// StringPtrEqual is StringEqual for optional strings. Two nil pointers are
// equal; nil never equals a non-nil pointer.
func StringPtrEqual(expected, actual *string) error {
	if expected == nil && actual == nil {
		return nil
	}
	if expected != nil && actual != nil && *expected == *actual {
		return nil
	}
	return &AssertionError{
		Type:     "strings not equal",
		Expected: quotePtr(expected),
		Actual:   quotePtr(actual),
		Location: callerLocation(1),
	}
}

// PathEqual fails unless expected and actual name the same path after
// cleaning, slash conversion and Unicode NFC normalization.
func PathEqual(expected, actual string) error {
	if canonicalPath(expected) == canonicalPath(actual) {
		return nil
	}
	return &AssertionError{
		Type:     "paths not equal",
		Expected: "'" + expected + "'",
		Actual:   "'" + actual + "'",
		Location: callerLocation(1),
	}
}

// Check reports a broken precondition in the test's own setup. Unlike an
// assertion, a failed check is an internal fault and is never masked by an
// expected-failure annotation.
func Check(cond bool, what string) error {
	if cond {
		return nil
	}
	return &Fault{Message: "check failed: " + what, Location: callerLocation(1)}
}

func canonicalPath(p string) string {
	return norm.NFC.String(filepath.ToSlash(filepath.Clean(p)))
}

func quotePtr(s *string) string {
	if s == nil {
		return "<nil>"
	}
	return "'" + *s + "'"
}

func errString(err error) string {
	if err == nil {
		return "<nil>"
	}
	return err.Error()
}
