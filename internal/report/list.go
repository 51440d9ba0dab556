package report

import (
	"fmt"
	"io"

	"github.com/roach88/testmain/internal/harness"
)

const listHeader = "Test #  Mode   Test Description\n" +
	"------  -----  ----------------\n"

// List renders the resolved test table without running anything. Tests that
// expect to pass show an empty mode column. WIP text is shown only when
// verbose.
func List(w io.Writer, plans []harness.Planned, verbose bool) error {
	if _, err := io.WriteString(w, listHeader); err != nil {
		return err
	}
	for _, p := range plans {
		if _, err := io.WriteString(w, listLine(p, verbose)); err != nil {
			return err
		}
	}
	return nil
}

func listLine(p harness.Planned, verbose bool) string {
	var mode string
	switch {
	case p.Err != nil:
		mode = "ERROR"
	case p.Mode == harness.ModeXFail:
		mode = "XFAIL"
	case p.Mode == harness.ModeSkip:
		mode = "SKIP"
	}

	msg := p.Msg
	if msg == "" {
		msg = "(test did not provide name)"
	}

	var wimp, otoh, problem string
	if verbose && p.WIP != "" {
		wimp = " [[" + p.WIP + "]]"
	}
	if p.Note != "" {
		otoh = " / " + p.Note
	}
	if p.Err != nil {
		problem = " [[" + p.Err.Error() + "]]"
	}
	return fmt.Sprintf(" %3d    %-5s  %s%s%s%s\n", p.Num, mode, msg, wimp, otoh, problem)
}
