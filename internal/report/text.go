package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/roach88/testmain/internal/harness"
)

// labels are padded to a common width so descriptions line up.
var labels = map[harness.Verdict]string{
	harness.VerdictPass:  "PASS: ",
	harness.VerdictFail:  "FAIL: ",
	harness.VerdictSkip:  "SKIP: ",
	harness.VerdictXFail: "XFAIL:",
	harness.VerdictXPass: "XPASS:",
}

func writeText(w, errW io.Writer, s *harness.Summary, opts Options) error {
	for _, r := range s.Results {
		if !shown(r, opts.Quiet) {
			continue
		}
		if r.Err != nil && (r.Verdict.Failed() || opts.Verbose) {
			for _, line := range harness.Chain(r.Err) {
				if _, err := fmt.Fprintf(errW, "%s: %s\n", s.ProgName, line); err != nil {
					return err
				}
			}
		}
		if _, err := io.WriteString(w, resultLine(s.ProgName, r)); err != nil {
			return err
		}
	}

	if opts.Quiet {
		return nil
	}
	_, err := fmt.Fprintln(w, summaryLine(s))
	return err
}

// resultLine formats one verdict line, e.g. "XFAIL: prog 3: msg [[WIMP: text]]".
func resultLine(prog string, r harness.Result) string {
	var wimp string
	if r.WIP != "" {
		wimp = " [[WIMP: " + r.WIP + "]]"
	}
	return fmt.Sprintf("%s %s %d: %s%s\n", labels[r.Verdict], prog, r.Num, r.Msg, wimp)
}

// summaryLine counts every verdict in summary order.
func summaryLine(s *harness.Summary) string {
	parts := make([]string, 0, len(harness.Verdicts))
	for _, v := range harness.Verdicts {
		parts = append(parts, fmt.Sprintf("%d %s", s.Count(v), v))
	}
	line := fmt.Sprintf("%s: %d tests: %s", s.ProgName, len(s.Results), strings.Join(parts, ", "))
	if s.ConfigErrors > 0 {
		line += fmt.Sprintf(" (%d configuration errors)", s.ConfigErrors)
	}
	return line
}
