package harness

import (
	"errors"
	"fmt"

	"github.com/roach88/testmain/internal/config"
)

// Resolution is the effective expectation of a test for this run.
type Resolution struct {
	Mode Mode

	// WIP is true when the test carries work-in-progress text and resolved
	// to an expected failure. It affects presentation only.
	WIP bool

	// Note is the predicate description, if any.
	Note string
}

// Validate checks a descriptor before scheduling.
func Validate(d Descriptor) error {
	if d.Driver == nil || d.Driver.isNil() {
		return errors.New("no test driver set")
	}
	if !d.Mode.runnable() {
		return fmt.Errorf("invalid declared mode %s", d.Mode)
	}
	if p := d.Predicate; p != nil {
		if p.Func == nil {
			return errors.New("predicate has no evaluator")
		}
		if !p.AlternateMode.runnable() {
			return fmt.Errorf("invalid predicate alternate mode %s", p.AlternateMode)
		}
	}
	return nil
}

// Resolve computes the effective mode of d for opts. The predicate, when
// present and true, always wins over the declared mode.
func Resolve(d Descriptor, opts *config.Options) (Resolution, error) {
	mode := d.Mode
	var note string

	if p := d.Predicate; p != nil {
		note = p.Description
		holds, err := p.Evaluate(opts)
		if err != nil {
			return Resolution{}, err
		}
		if holds {
			mode = p.AlternateMode
		}
	}

	if !mode.runnable() {
		return Resolution{}, fmt.Errorf("invalid effective mode %s", mode)
	}

	return Resolution{
		Mode: mode,
		WIP:  d.WIP != "" && mode == ModeXFail,
		Note: note,
	}, nil
}

// Planned is one row of a test listing.
type Planned struct {
	Num  int
	Msg  string
	Mode Mode
	WIP  string
	Note string

	// Err is set when the entry cannot be resolved.
	Err error
}

// Plan resolves every entry of table without running anything.
func Plan(table []Descriptor, opts *config.Options) []Planned {
	plans := make([]Planned, len(table))
	for i, d := range table {
		p := Planned{Num: i + 1, Msg: d.Msg, Mode: d.Mode}
		if d.Predicate != nil {
			p.Note = d.Predicate.Description
		}

		if err := Validate(d); err != nil {
			p.Err = &ConfigError{Num: p.Num, Reason: err.Error()}
			plans[i] = p
			continue
		}

		res, err := Resolve(d, opts)
		if err != nil {
			p.Err = &ConfigError{Num: p.Num, Reason: "cannot resolve mode", Err: err}
			plans[i] = p
			continue
		}

		p.Mode = res.Mode
		if res.WIP {
			p.WIP = d.WIP
		}
		plans[i] = p
	}
	return plans
}
