package harness

import (
	"fmt"
	"runtime/debug"
	"time"

	"code.cloudfoundry.org/clock"

	"github.com/roach88/testmain/internal/config"
)

// Outcome is the raw result of calling a test body.
type Outcome int

const (
	// OutcomeSuccess means the body returned nil.
	OutcomeSuccess Outcome = iota

	// OutcomeFailure means the body returned a domain failure.
	OutcomeFailure

	// OutcomeFault means the body returned a Fault or panicked.
	OutcomeFault

	// OutcomeSkipped means the body asked to be skipped.
	OutcomeSkipped
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeFailure:
		return "failure"
	case OutcomeFault:
		return "fault"
	case OutcomeSkipped:
		return "skipped"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// RawResult is what the invoker observed, before classification.
type RawResult struct {
	Outcome  Outcome
	Err      error
	Duration time.Duration
}

// Invoke calls the test body exactly once and captures its result. A panic
// in the body becomes a Fault carrying the stack.
func Invoke(d Descriptor, opts *config.Options, s *Scope, clk clock.Clock) (raw RawResult) {
	start := clk.Now()
	defer func() {
		raw.Duration = clk.Since(start)
	}()

	err := callDriver(d.Driver, opts, s)
	return RawResult{Outcome: outcomeOf(err), Err: err}
}

func callDriver(drv Driver, opts *config.Options, s *Scope) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &Fault{
				Message: fmt.Sprintf("panic: %v", r),
				Stack:   debug.Stack(),
			}
		}
	}()
	return drv.invoke(opts, s)
}

// outcomeOf maps a body's error to an outcome. A Fault anywhere in the chain
// wins over everything else.
func outcomeOf(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeSuccess
	case IsFault(err):
		return OutcomeFault
	case IsSkip(err):
		return OutcomeSkipped
	default:
		return OutcomeFailure
	}
}
