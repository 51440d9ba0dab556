package harness

import (
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
)

// Failure is a domain failure: the test's own logic found a violated
// expectation. It is the only kind of failure an expected-failure test may
// absorb.
type Failure struct {
	// Message describes what went wrong.
	Message string

	// Location is the file:line that produced the failure.
	Location string

	// Err is the underlying cause, if any.
	Err error
}

func (e *Failure) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Head(), e.Err)
	}
	return e.Head()
}

// Head returns the message and location without the cause chain.
func (e *Failure) Head() string {
	if e.Location != "" {
		return fmt.Sprintf("%s: %s", e.Location, e.Message)
	}
	return e.Message
}

func (e *Failure) Unwrap() error { return e.Err }

// Fault is an internal fault: the test or the harness assertion machinery is
// broken. A Fault is never masked by an expected-failure annotation.
type Fault struct {
	Message  string
	Location string

	// Stack is set when the fault was a recovered panic.
	Stack []byte

	Err error
}

func (e *Fault) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Head(), e.Err)
	}
	return e.Head()
}

// Head returns the message and location without the cause chain.
func (e *Fault) Head() string {
	if e.Location != "" {
		return fmt.Sprintf("internal fault at %s: %s", e.Location, e.Message)
	}
	return "internal fault: " + e.Message
}

func (e *Fault) Unwrap() error { return e.Err }

// ConfigError reports a table entry that cannot be resolved or run: no
// driver, an invalid mode, or a predicate whose evaluator failed. It fails
// that test but not the run.
type ConfigError struct {
	Num    int
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Head(), e.Err)
	}
	return e.Head()
}

// Head returns the reason without the cause chain.
func (e *ConfigError) Head() string {
	return fmt.Sprintf("test %d: configuration error: %s", e.Num, e.Reason)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// HarnessError means the scheduler itself cannot proceed. The run is
// aborted and no summary is produced.
type HarnessError struct {
	Op  string
	Err error
}

func (e *HarnessError) Error() string {
	return fmt.Sprintf("harness: %s: %v", e.Op, e.Err)
}

func (e *HarnessError) Unwrap() error { return e.Err }

// SkipError is returned by a test body that decides at run time that it
// cannot run in this environment.
type SkipError struct {
	Reason string
}

func (e *SkipError) Error() string {
	return "test skipped: " + e.Reason
}

// Skip returns the error a test body returns to skip itself.
func Skip(reason string) error {
	return &SkipError{Reason: reason}
}

// Failf returns a Failure located at the caller.
func Failf(format string, args ...any) error {
	return &Failure{
		Message:  fmt.Sprintf(format, args...),
		Location: callerLocation(1),
	}
}

// Wrap returns a Failure located at the caller with err as its cause.
// Wrap returns nil if err is nil, so it can be used on every return path:
//
//	return harness.Wrap(repos.Import(ctx, tree), "import greek tree")
func Wrap(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &Failure{
		Message:  fmt.Sprintf(format, args...),
		Location: callerLocation(1),
		Err:      err,
	}
}

// Faultf returns a Fault located at the caller.
func Faultf(format string, args ...any) error {
	return &Fault{
		Message:  fmt.Sprintf(format, args...),
		Location: callerLocation(1),
	}
}

// IsFault reports whether err or anything it wraps is a Fault.
func IsFault(err error) bool {
	var f *Fault
	return errors.As(err, &f)
}

// IsSkip reports whether err or anything it wraps is a SkipError.
func IsSkip(err error) bool {
	var s *SkipError
	return errors.As(err, &s)
}

// IsConfigError reports whether err or anything it wraps is a ConfigError.
func IsConfigError(err error) bool {
	var c *ConfigError
	return errors.As(err, &c)
}

// Chain returns one line per link of err's cause chain, outermost first.
// Links produced by this package contribute only their own head; the first
// foreign error ends the chain with its full text.
func Chain(err error) []string {
	var lines []string
	for err != nil {
		h, ok := err.(interface{ Head() string })
		if !ok {
			lines = append(lines, err.Error())
			break
		}
		lines = append(lines, h.Head())
		err = errors.Unwrap(err)
	}
	return lines
}

// callerLocation returns "file.go:line" for the caller skip frames above the
// function that calls callerLocation.
func callerLocation(skip int) string {
	_, file, line, ok := runtime.Caller(skip + 1)
	if !ok {
		return ""
	}
	return fmt.Sprintf("%s:%d", filepath.Base(file), line)
}
