package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"code.cloudfoundry.org/clock"
	"github.com/spf13/cobra"

	"github.com/roach88/testmain/internal/config"
	"github.com/roach88/testmain/internal/harness"
	"github.com/roach88/testmain/internal/report"
	"github.com/roach88/testmain/internal/testutil"
)

// Program is a test program: a named table of tests plus the environment it
// runs in.
type Program struct {
	Name  string
	Table []harness.Descriptor

	// MaxThreads is the default worker count for --parallel.
	MaxThreads int

	Stdout io.Writer
	Stderr io.Writer

	// Clock and RunIDs default to the real clock and random run IDs.
	Clock  clock.Clock
	RunIDs testutil.RunIDGenerator
}

// RootOptions holds every flag of a test program.
type RootOptions struct {
	FSType             string
	ConfigFile         string
	SrcDir             string
	ReposDir           string
	ReposURL           string
	ReposTemplate      string
	ServerMinorVersion int

	Verbose bool
	Quiet   bool
	List    bool
	Format  string

	Parallel    bool
	MaxThreads  int
	ModeFilter  string
	Cleanup     bool
	KeepFailed  bool
	Seed        uint32
	DataDir     string
	MetricsFile string
}

// Main runs a test program with the process's standard streams and returns
// its exit code.
func Main(prog string, args []string, maxThreads int, table []harness.Descriptor) int {
	p := &Program{
		Name:       prog,
		Table:      table,
		MaxThreads: maxThreads,
		Stdout:     os.Stdout,
		Stderr:     os.Stderr,
	}
	return p.Run(context.Background(), args)
}

// Run parses args, runs the table and returns the exit code.
func (p *Program) Run(ctx context.Context, args []string) int {
	opts := &RootOptions{}
	cmd := p.NewRootCommand(opts)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return ExitSuccess
	}
	if !errors.Is(err, errTestsFailed) {
		p.printError(opts.Format, err)
	}
	return GetExitCode(err)
}

func (p *Program) printError(format string, err error) {
	code := CodeUsage
	var (
		fileErr    *config.FileError
		harnessErr *harness.HarnessError
	)
	switch {
	case errors.As(err, &fileErr):
		code = CodeConfig
	case errors.As(err, &harnessErr):
		code = CodeHarness
	}

	if format != report.FormatJSON {
		format = report.FormatText
	}
	f := &OutputFormatter{Format: format, Writer: p.Stdout, ErrWriter: p.Stderr, Prog: p.Name}
	_ = f.Error(code, err.Error(), nil)
}

// NewRootCommand creates the command for the test program, binding its flags
// to opts.
func (p *Program) NewRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   p.Name + " [flags] [list] [N | N-M | N:M | pattern]...",
		Short: "Run the " + p.Name + " test table",
		Long: `Run the tests of this program and report one verdict per test.

Positional arguments select tests by number, by inclusive range (N-M or N:M)
or by a glob pattern matched against test descriptions. The word "list"
prints the table instead of running it.

Exit codes:
  0 - Every test met its expectation
  1 - A test failed, passed unexpectedly or was misconfigured
  2 - Command error (bad flags, bad config file, harness failure)`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !report.ValidFormat(opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, report.Formats))
			}
			if opts.Verbose && opts.Quiet {
				return NewExitError(ExitCommandError, "--verbose and --quiet are mutually exclusive")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return p.runTests(cmd, opts, args)
		},
	}
	cmd.SetOut(p.Stdout)
	cmd.SetErr(p.Stderr)
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return WrapExitError(ExitCommandError, "invalid flags", err)
	})

	flags := cmd.Flags()
	flags.StringVar(&opts.FSType, "fs-type", config.DefaultFSType, "repository backend under test")
	flags.StringVar(&opts.ConfigFile, "config-file", "", "YAML file with harness settings")
	flags.StringVar(&opts.SrcDir, "srcdir", "", "source directory holding checked-in test data")
	flags.StringVar(&opts.ReposDir, "repos-dir", "", "directory scratch repositories are created in")
	flags.StringVar(&opts.ReposURL, "repos-url", "", "URL through which --repos-dir is reachable")
	flags.StringVar(&opts.ReposTemplate, "repos-template", "", "pre-created repository to copy")
	flags.IntVar(&opts.ServerMinorVersion, "server-minor-version", 0,
		fmt.Sprintf("emulate an older server (3..%d, 0 for the latest)", config.LatestMinorVersion))

	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	flags.BoolVarP(&opts.Quiet, "quiet", "q", false, "print only failing tests")
	flags.BoolVar(&opts.List, "list", false, "list tests instead of running them")
	flags.StringVar(&opts.Format, "format", report.FormatText, "output format (text|table|json)")

	flags.BoolVar(&opts.Parallel, "parallel", false, "run tests concurrently")
	flags.IntVar(&opts.MaxThreads, "max-threads", p.MaxThreads, "worker count for --parallel (0 for no limit)")
	flags.StringVar(&opts.ModeFilter, "mode-filter", "", "run only tests of this mode (pass|xfail|skip|all)")
	flags.BoolVar(&opts.Cleanup, "cleanup", false, "remove test data when the run ends")
	flags.BoolVar(&opts.KeepFailed, "keep-failed", false, "with --cleanup, keep data of failed tests")
	flags.Uint32Var(&opts.Seed, "seed", 0, "run seed (random if not given)")
	flags.StringVar(&opts.DataDir, "data-dir", "", "directory for the run's scratch data")
	flags.StringVar(&opts.MetricsFile, "metrics-file", "", "write Prometheus metrics to this file")

	return cmd
}

// newLogger builds the diagnostic logger: debug output with --verbose,
// errors only with --quiet, warnings otherwise.
func newLogger(w io.Writer, verbose, quiet bool) *slog.Logger {
	level := slog.LevelWarn
	switch {
	case verbose:
		level = slog.LevelDebug
	case quiet:
		level = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
