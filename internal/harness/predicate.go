package harness

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/roach88/testmain/internal/config"
)

// PredicateFunc decides whether a predicate holds for the run configuration.
// Value is the predicate's comparison value. An error means the predicate
// itself is broken (for example a malformed value).
type PredicateFunc func(opts *config.Options, value string) (bool, error)

// Predicate is a run-time condition that replaces a test's declared mode
// with AlternateMode when it holds.
type Predicate struct {
	Func          PredicateFunc
	Value         string
	AlternateMode Mode
	Description   string
}

// Evaluate runs the predicate against opts.
func (p *Predicate) Evaluate(opts *config.Options) (bool, error) {
	if p.Func == nil {
		return false, errors.New("predicate has no evaluator")
	}
	ok, err := p.Func(opts, p.Value)
	if err != nil {
		return false, fmt.Errorf("predicate %q: %w", p.Description, err)
	}
	return ok, nil
}

// FSTypeIs holds when the configured backend is value.
func FSTypeIs(opts *config.Options, value string) (bool, error) {
	if value == "" {
		return false, errors.New("empty fs-type")
	}
	return opts.FSType == value, nil
}

// FSTypeIsNot holds when the configured backend is not value.
func FSTypeIsNot(opts *config.Options, value string) (bool, error) {
	ok, err := FSTypeIs(opts, value)
	return !ok, err
}

// MinorVersionBelow holds when the effective server minor version is lower
// than value.
func MinorVersionBelow(opts *config.Options, value string) (bool, error) {
	v, err := strconv.Atoi(value)
	if err != nil {
		return false, fmt.Errorf("invalid minor version %q: %w", value, err)
	}
	return opts.MinorVersion() < v, nil
}

// PassIfFSTypeIs expects success on the given backend.
func PassIfFSTypeIs(fsType string) *Predicate {
	return &Predicate{
		Func:          FSTypeIs,
		Value:         fsType,
		AlternateMode: ModePass,
		Description:   "PASS if fs-type = " + fsType,
	}
}

// PassIfFSTypeIsNot expects success on every backend but the given one.
func PassIfFSTypeIsNot(fsType string) *Predicate {
	return &Predicate{
		Func:          FSTypeIsNot,
		Value:         fsType,
		AlternateMode: ModePass,
		Description:   "PASS if fs-type != " + fsType,
	}
}

// SkipIfFSTypeIs skips the test on the given backend.
func SkipIfFSTypeIs(fsType string) *Predicate {
	return &Predicate{
		Func:          FSTypeIs,
		Value:         fsType,
		AlternateMode: ModeSkip,
		Description:   "SKIP if fs-type = " + fsType,
	}
}

// SkipIfMinorVersionBelow skips the test against servers older than minor.
func SkipIfMinorVersionBelow(minor int) *Predicate {
	return &Predicate{
		Func:          MinorVersionBelow,
		Value:         strconv.Itoa(minor),
		AlternateMode: ModeSkip,
		Description:   fmt.Sprintf("SKIP if server minor version < %d", minor),
	}
}
