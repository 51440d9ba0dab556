package cli

import (
	"fmt"

	"code.cloudfoundry.org/clock"
	"github.com/spf13/cobra"

	"github.com/roach88/testmain/internal/config"
	"github.com/roach88/testmain/internal/harness"
	"github.com/roach88/testmain/internal/metrics"
	"github.com/roach88/testmain/internal/report"
)

// runSettings is the outcome of merging flags with the config file.
type runSettings struct {
	opts       *config.Options
	parallel   bool
	maxThreads int
	modeFilter *harness.Mode
	cleanup    bool
}

// runConfig returns the options handed to a run. Tests get their own copy.
func (s *runSettings) runConfig() *config.Options {
	return s.opts.Clone()
}

func (p *Program) runTests(cmd *cobra.Command, ro *RootOptions, args []string) error {
	s, err := p.resolveSettings(cmd, ro)
	if err != nil {
		return err
	}

	sel, err := ParseSelection(args, p.Table)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid test selection", err)
	}

	if ro.List || sel.List {
		return p.list(ro, s.opts, sel.Nums)
	}

	clk := p.Clock
	if clk == nil {
		clk = clock.NewClock()
	}

	seed := ro.Seed
	if !cmd.Flags().Changed("seed") {
		seed = uint32(clk.Now().UnixNano())
	}

	concurrency := 1
	if s.parallel {
		concurrency = s.maxThreads
	}

	logger := newLogger(p.Stderr, s.opts.Verbose, ro.Quiet)

	var (
		observer harness.Observer
		recorder *metrics.Recorder
	)
	if ro.MetricsFile != "" {
		recorder = metrics.NewRecorder(p.Name, s.opts.FSType)
		observer = recorder
	}

	summary, err := harness.Run(cmd.Context(), p.Table, s.runConfig(), harness.RunOptions{
		MaxConcurrency: concurrency,
		Selected:       sel.Nums,
		ModeFilter:     s.modeFilter,
		DataDir:        ro.DataDir,
		Seed:           seed,
		Cleanup:        s.cleanup,
		KeepFailedData: ro.KeepFailed,
		Logger:         logger,
		Clock:          clk,
		Observer:       observer,
		RunIDs:         p.RunIDs,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "cannot run tests", err)
	}

	err = report.Write(p.Stdout, p.Stderr, summary, report.Options{
		Format:  ro.Format,
		Quiet:   ro.Quiet,
		Verbose: s.opts.Verbose,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "write report", err)
	}

	if recorder != nil {
		recorder.Finish(summary)
		if err := recorder.WriteTextfile(ro.MetricsFile); err != nil {
			return WrapExitError(ExitCommandError, "write metrics", err)
		}
	}

	if report.ExitCode(summary) != report.ExitSuccess {
		return errTestsFailed
	}
	return nil
}

// resolveSettings merges defaults, the config file and flags, in increasing
// order of precedence. Only flags given on the command line override the
// file.
func (p *Program) resolveSettings(cmd *cobra.Command, ro *RootOptions) (*runSettings, error) {
	flags := cmd.Flags()
	opts := config.New(p.Name)
	s := &runSettings{
		opts:       opts,
		parallel:   ro.Parallel,
		maxThreads: ro.MaxThreads,
		cleanup:    ro.Cleanup,
	}
	modeFilter := ro.ModeFilter

	if ro.ConfigFile != "" {
		f, err := config.LoadFile(ro.ConfigFile)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "cannot load config file", err)
		}
		f.Apply(opts)
		opts.ConfigFile = ro.ConfigFile

		if f.Parallel != nil && !flags.Changed("parallel") {
			s.parallel = *f.Parallel
		}
		if f.MaxThreads != nil && !flags.Changed("max-threads") {
			s.maxThreads = *f.MaxThreads
		}
		if f.Cleanup != nil && !flags.Changed("cleanup") {
			s.cleanup = *f.Cleanup
		}
		if f.ModeFilter != nil && !flags.Changed("mode-filter") {
			modeFilter = *f.ModeFilter
		}
	}

	override := func(name string, apply func()) {
		if flags.Changed(name) {
			apply()
		}
	}
	override("fs-type", func() { opts.FSType = ro.FSType })
	override("srcdir", func() { opts.SrcDir = ro.SrcDir })
	override("repos-dir", func() { opts.ReposDir = ro.ReposDir })
	override("repos-url", func() { opts.ReposURL = ro.ReposURL })
	override("repos-template", func() { opts.ReposTemplate = ro.ReposTemplate })
	override("server-minor-version", func() { opts.ServerMinorVersion = ro.ServerMinorVersion })
	override("verbose", func() { opts.Verbose = ro.Verbose })

	if err := opts.Validate(); err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	if modeFilter != "" {
		m, err := harness.ParseMode(modeFilter)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "invalid --mode-filter", err)
		}
		s.modeFilter = &m
	}

	return s, nil
}

// listEntry is one row of a JSON test listing.
type listEntry struct {
	Num   int    `json:"num"`
	Msg   string `json:"msg"`
	Mode  string `json:"mode"`
	WIP   string `json:"wip,omitempty"`
	Note  string `json:"note,omitempty"`
	Error string `json:"error,omitempty"`
}

func (p *Program) list(ro *RootOptions, opts *config.Options, nums []int) error {
	plans := harness.Plan(p.Table, opts)
	if nums != nil {
		selected := make([]harness.Planned, 0, len(nums))
		for _, n := range nums {
			if n < 1 || n > len(plans) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("test number %d out of range [1, %d]", n, len(plans)))
			}
			selected = append(selected, plans[n-1])
		}
		plans = selected
	}

	if ro.Format == report.FormatJSON {
		entries := make([]listEntry, 0, len(plans))
		for _, pl := range plans {
			e := listEntry{Num: pl.Num, Msg: pl.Msg, Mode: pl.Mode.String(), WIP: pl.WIP, Note: pl.Note}
			if pl.Err != nil {
				e.Error = pl.Err.Error()
			}
			entries = append(entries, e)
		}
		f := &OutputFormatter{Format: ro.Format, Writer: p.Stdout, ErrWriter: p.Stderr, Prog: p.Name}
		return f.Success(entries)
	}

	return report.List(p.Stdout, plans, opts.Verbose)
}
