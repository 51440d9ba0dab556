package harness

import (
	"fmt"
	"strings"
	"time"

	"github.com/roach88/testmain/internal/config"
)

// Mode is the expectation attached to a test.
type Mode int

const (
	// ModePass expects the test to succeed.
	ModePass Mode = iota

	// ModeXFail expects the test to fail with a domain failure.
	ModeXFail

	// ModeSkip means the test body is not run.
	ModeSkip

	// ModeAll is only meaningful as a mode filter: it matches every mode.
	// It is never a valid declared or effective mode.
	ModeAll
)

var modeNames = [...]string{"PASS", "XFAIL", "SKIP", "ALL"}

func (m Mode) String() string {
	if m < 0 || int(m) >= len(modeNames) {
		return fmt.Sprintf("Mode(%d)", int(m))
	}
	return modeNames[m]
}

// runnable reports whether m may be the declared or effective mode of a test.
func (m Mode) runnable() bool {
	return m == ModePass || m == ModeXFail || m == ModeSkip
}

// ParseMode parses a mode name, case-insensitively.
func ParseMode(s string) (Mode, error) {
	for i, name := range modeNames {
		if strings.EqualFold(s, name) {
			return Mode(i), nil
		}
	}
	return 0, fmt.Errorf("invalid mode %q: must be one of %s", s, strings.Join(modeNames[:], ", "))
}

// Verdict is the final classification of one test.
type Verdict string

const (
	VerdictPass  Verdict = "PASS"
	VerdictFail  Verdict = "FAIL"
	VerdictXFail Verdict = "XFAIL"
	VerdictXPass Verdict = "XPASS"
	VerdictSkip  Verdict = "SKIP"
)

// Verdicts lists every verdict in summary order.
var Verdicts = []Verdict{VerdictPass, VerdictXFail, VerdictSkip, VerdictFail, VerdictXPass}

// Failed reports whether the verdict makes the run unsuccessful. XPASS counts:
// an expected failure that passes means its annotation is stale.
func (v Verdict) Failed() bool {
	return v == VerdictFail || v == VerdictXPass
}

// Driver is the body of a test. It is implemented by Func and OptsFunc only.
type Driver interface {
	invoke(opts *config.Options, s *Scope) error
	isNil() bool
}

// Func is a test body that needs only its scope.
type Func func(s *Scope) error

func (f Func) invoke(_ *config.Options, s *Scope) error { return f(s) }
func (f Func) isNil() bool                              { return f == nil }

// OptsFunc is a test body that also reads the run configuration.
type OptsFunc func(opts *config.Options, s *Scope) error

func (f OptsFunc) invoke(opts *config.Options, s *Scope) error { return f(opts, s) }
func (f OptsFunc) isNil() bool                                 { return f == nil }

// Descriptor describes one entry of a test table.
//
// Tables are plain slices; a test's number is its 1-based position.
type Descriptor struct {
	// Mode is the declared expectation.
	Mode Mode

	// Driver is the test body.
	Driver Driver

	// Msg is the one-line description printed in reports.
	Msg string

	// WIP, if set, describes an unfinished feature. It is shown next to the
	// verdict whenever the test resolves to ModeXFail.
	WIP string

	// Predicate optionally overrides Mode at run time.
	Predicate *Predicate
}

// Pass declares a test expected to succeed.
func Pass(d Driver, msg string) Descriptor {
	return Descriptor{Mode: ModePass, Driver: d, Msg: msg}
}

// XFail declares a test expected to fail.
func XFail(d Driver, msg string) Descriptor {
	return Descriptor{Mode: ModeXFail, Driver: d, Msg: msg}
}

// XFailIf declares a test expected to fail when cond holds and to pass
// otherwise.
func XFailIf(cond bool, d Driver, msg string) Descriptor {
	if cond {
		return XFail(d, msg)
	}
	return Pass(d, msg)
}

// SkipIf declares a test that is skipped when cond holds and expected to pass
// otherwise.
func SkipIf(cond bool, d Driver, msg string) Descriptor {
	if cond {
		return Descriptor{Mode: ModeSkip, Driver: d, Msg: msg}
	}
	return Pass(d, msg)
}

// WIMP declares an expected failure for work in progress.
func WIMP(d Driver, msg, wip string) Descriptor {
	return Descriptor{Mode: ModeXFail, Driver: d, Msg: msg, WIP: wip}
}

// WIMPIf is WIMP when cond holds and Pass otherwise. The WIP text is kept in
// both cases but only shown for an expected failure.
func WIMPIf(cond bool, d Driver, msg, wip string) Descriptor {
	desc := XFailIf(cond, d, msg)
	desc.WIP = wip
	return desc
}

// XFailOtoh declares an expected failure whose expectation flips to p's
// alternate mode when p holds.
func XFailOtoh(d Driver, msg string, p *Predicate) Descriptor {
	return Descriptor{Mode: ModeXFail, Driver: d, Msg: msg, Predicate: p}
}

// WithPredicate returns a copy of desc carrying p.
func (desc Descriptor) WithPredicate(p *Predicate) Descriptor {
	desc.Predicate = p
	return desc
}

// Exclusion records why a test was not run at all.
type Exclusion int

const (
	// Included tests were considered for execution.
	Included Exclusion = iota

	// NotSelected tests were left out by the test-number selection.
	NotSelected

	// ModeFiltered tests resolved to a mode other than the mode filter.
	ModeFiltered
)

func (e Exclusion) String() string {
	switch e {
	case NotSelected:
		return "not selected"
	case ModeFiltered:
		return "mode filtered"
	default:
		return ""
	}
}

// Result is the outcome of one table entry.
type Result struct {
	// Num is the 1-based table position.
	Num int `json:"num"`

	Msg string `json:"msg"`

	// Mode is the effective mode, or the declared mode when resolution did
	// not happen.
	Mode Mode `json:"-"`

	Verdict Verdict `json:"verdict"`

	// Outcome is the raw invocation result. Meaningful only when Invoked.
	Outcome Outcome `json:"-"`

	// Invoked is true when the test body was called.
	Invoked bool `json:"invoked"`

	// Err is the error returned by the body, or the configuration error.
	Err error `json:"-"`

	// WIP is the work-in-progress text, set only when the test resolved to
	// an expected failure.
	WIP string `json:"wip,omitempty"`

	// Note is the predicate description, if the test has a predicate.
	Note string `json:"note,omitempty"`

	Excluded Exclusion `json:"-"`

	// ConfigError marks a descriptor that could not be resolved or run.
	ConfigError bool `json:"config_error,omitempty"`

	Duration time.Duration `json:"duration"`

	// Seq is the completion order among invoked tests, starting at 1.
	Seq int64 `json:"seq,omitempty"`
}

// Summary is the aggregate of a run. Results are in table order regardless
// of completion order.
type Summary struct {
	ProgName     string          `json:"prog_name"`
	RunID        string          `json:"run_id"`
	Seed         uint32          `json:"seed"`
	Results      []Result        `json:"results"`
	Counts       map[Verdict]int `json:"counts"`
	ConfigErrors int             `json:"config_errors"`
	Duration     time.Duration   `json:"duration"`
}

// Count returns the number of results with verdict v.
func (s *Summary) Count(v Verdict) int {
	return s.Counts[v]
}

// Failed reports whether the run should fail a CI gate: any FAIL, any XPASS
// or any configuration error.
func (s *Summary) Failed() bool {
	return s.Counts[VerdictFail]+s.Counts[VerdictXPass]+s.ConfigErrors > 0
}

// Invoked returns the number of test bodies that were called.
func (s *Summary) Invoked() int {
	n := 0
	for _, r := range s.Results {
		if r.Invoked {
			n++
		}
	}
	return n
}

func newSummary(progName, runID string, seed uint32, results []Result) *Summary {
	s := &Summary{
		ProgName: progName,
		RunID:    runID,
		Seed:     seed,
		Results:  results,
		Counts:   make(map[Verdict]int, len(Verdicts)),
	}
	for _, r := range results {
		s.Counts[r.Verdict]++
		if r.ConfigError {
			s.ConfigErrors++
		}
	}
	return s
}
