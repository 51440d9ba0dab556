package report

import (
	"fmt"
	"io"

	"github.com/roach88/testmain/internal/harness"
)

// Output formats accepted by Write.
const (
	FormatText  = "text"
	FormatTable = "table"
	FormatJSON  = "json"
)

// Formats lists every supported output format.
var Formats = []string{FormatText, FormatTable, FormatJSON}

// Options controls how a summary is rendered.
type Options struct {
	// Format is one of FormatText, FormatTable or FormatJSON. Empty means
	// FormatText.
	Format string

	// Quiet prints only failing results.
	Quiet bool

	// Verbose adds diagnostics for expected failures and per-test timing.
	Verbose bool
}

// Write renders summary to w. Error chains of failed tests go to errW in the
// text format; the other formats carry them inline.
func Write(w, errW io.Writer, summary *harness.Summary, opts Options) error {
	switch opts.Format {
	case "", FormatText:
		return writeText(w, errW, summary, opts)
	case FormatTable:
		return writeTable(w, summary, opts)
	case FormatJSON:
		return writeJSON(w, summary)
	default:
		return fmt.Errorf("unknown output format %q", opts.Format)
	}
}

// ValidFormat reports whether format is accepted by Write.
func ValidFormat(format string) bool {
	for _, f := range Formats {
		if f == format {
			return true
		}
	}
	return false
}

// Exit codes of a completed run.
const (
	ExitSuccess = 0
	ExitFailure = 1
)

// ExitCode returns ExitSuccess unless any test failed, passed unexpectedly
// or could not be configured.
func ExitCode(summary *harness.Summary) int {
	if summary.Failed() {
		return ExitFailure
	}
	return ExitSuccess
}

// shown reports whether r appears in per-test output.
func shown(r harness.Result, quiet bool) bool {
	if r.Excluded != harness.Included {
		return false
	}
	if quiet {
		return r.Verdict.Failed()
	}
	return true
}
