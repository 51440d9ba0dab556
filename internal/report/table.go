package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/roach88/testmain/internal/harness"
)

func writeTable(w io.Writer, s *harness.Summary, opts Options) error {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle(s.ProgName)
	t.SetStyle(table.StyleLight)

	t.AppendHeader(table.Row{"#", "Mode", "Verdict", "Description", "Duration"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "#", Align: text.AlignRight},
		{Name: "Description", WidthMax: 80, WidthMaxEnforcer: text.WrapSoft},
		{Name: "Duration", Align: text.AlignRight},
	})

	for _, r := range s.Results {
		if !shown(r, opts.Quiet) {
			continue
		}
		desc := r.Msg
		if r.WIP != "" {
			desc += " [[WIMP: " + r.WIP + "]]"
		}
		if opts.Verbose && r.Note != "" {
			desc += " / " + r.Note
		}
		duration := "-"
		if r.Invoked {
			duration = formatDuration(r.Duration)
		}
		t.AppendRow(table.Row{r.Num, r.Mode, r.Verdict, desc, duration})
	}

	t.AppendFooter(table.Row{
		"",
		"TOTAL",
		overallStatus(s),
		summaryCounts(s),
		formatDuration(s.Duration),
	})

	t.Render()
	return nil
}

func overallStatus(s *harness.Summary) string {
	if s.Failed() {
		return "FAIL"
	}
	return "PASS"
}

func summaryCounts(s *harness.Summary) string {
	parts := make([]string, 0, len(harness.Verdicts))
	for _, v := range harness.Verdicts {
		parts = append(parts, fmt.Sprintf("%s=%d", v, s.Count(v)))
	}
	return strings.Join(parts, " ")
}

func formatDuration(d time.Duration) string {
	return d.Round(time.Millisecond).String()
}
