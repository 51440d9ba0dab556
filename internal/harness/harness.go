package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"code.cloudfoundry.org/clock"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/testmain/internal/config"
	"github.com/roach88/testmain/internal/testutil"
)

// Observer is told about every result once the run has finished, in table
// order.
type Observer interface {
	Observe(r Result)
}

// RunOptions controls scheduling of a run.
type RunOptions struct {
	// MaxConcurrency bounds the number of test bodies running at once.
	// 1 runs tests serially in table order; zero or less means no bound.
	MaxConcurrency int

	// Selected restricts the run to these 1-based test numbers. Nil runs
	// every test.
	Selected []int

	// ModeFilter, if set, runs only tests whose effective mode matches.
	// ModeAll matches every test.
	ModeFilter *Mode

	// DataDir is where the run's scratch directory is created. Defaults to
	// os.TempDir().
	DataDir string

	// Seed is the run seed; each test derives its own from it.
	Seed uint32

	// Cleanup removes directories registered by tests when the run ends.
	Cleanup bool

	// KeepFailedData keeps the directories of failed tests even when
	// Cleanup is set.
	KeepFailedData bool

	Logger   *slog.Logger
	Clock    clock.Clock
	Observer Observer
	RunIDs   testutil.RunIDGenerator
}

// Harness runs one pass over a test table.
type Harness struct {
	opts    *config.Options
	ro      RunOptions
	logger  *slog.Logger
	clock   clock.Clock
	seq     *testutil.Sequence
	cleanup *Cleanup
	runID   string
	root    string
}

// Run executes table against opts and returns the summary.
//
// Test failures of any kind never abort the run: every entry gets a result.
// An error is returned only when the harness itself cannot proceed (a
// *HarnessError); no summary is produced in that case.
//
// Execution flow:
//  1. Check selection and create the run's scratch directory
//  2. Validate every entry, resolve its mode and apply filters
//  3. Dispatch the runnable tests to the worker pool, in table order
//  4. Wait for every dispatched test, then drain the cleanup registry
func Run(ctx context.Context, table []Descriptor, opts *config.Options, ro RunOptions) (*Summary, error) {
	h, err := newHarness(opts, ro)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, &HarnessError{Op: "start run", Err: err}
	}

	selected, err := selectionSet(ro.Selected, len(table))
	if err != nil {
		return nil, &HarnessError{Op: "select tests", Err: err}
	}

	if err := os.MkdirAll(h.root, 0755); err != nil {
		return nil, &HarnessError{Op: "create scratch directory", Err: err}
	}

	results := make([]Result, len(table))
	defer h.finish(results)

	start := h.clock.Now()
	h.logger.Info("run starting",
		"prog", opts.ProgName,
		"run_id", h.runID,
		"seed", ro.Seed,
		"tests", len(table),
		"max_concurrency", ro.MaxConcurrency,
		"fs_type", opts.FSType,
		"fs_config", opts.FSConfigKeys(),
	)

	// Every entry is validated and resolved before any body runs, so
	// configuration errors are reported up front.
	runnable := make([]bool, len(table))
	for i, d := range table {
		num := i + 1
		r := &results[i]
		r.Num = num
		r.Msg = d.Msg
		r.Mode = d.Mode

		if selected != nil && !selected[num] {
			r.Excluded = NotSelected
			r.Verdict = VerdictSkip
			continue
		}

		res, err := h.resolve(num, d)
		if err != nil {
			r.ConfigError = true
			r.Err = err
			r.Verdict = VerdictFail
			h.logger.Warn("test not runnable", "test", num, "error", err)
			continue
		}
		r.Mode = res.Mode
		r.Note = res.Note
		if res.WIP {
			r.WIP = d.WIP
		}

		if f := ro.ModeFilter; f != nil && *f != ModeAll && *f != res.Mode {
			r.Excluded = ModeFiltered
			r.Verdict = VerdictSkip
			continue
		}

		if res.Mode == ModeSkip {
			r.Verdict = VerdictSkip
			continue
		}
		runnable[i] = true
	}

	var g errgroup.Group
	g.SetLimit(poolLimit(ro.MaxConcurrency))

	for i, d := range table {
		if !runnable[i] {
			continue
		}
		d := d
		r := &results[i]
		mode := r.Mode

		// Each worker writes only its own slot.
		g.Go(func() error {
			h.execute(ctx, d, mode, r)
			return nil
		})
	}

	// Workers never return errors; Wait only joins them.
	_ = g.Wait()

	summary := newSummary(opts.ProgName, h.runID, ro.Seed, results)
	summary.Duration = h.clock.Since(start)

	h.logger.Info("run finished",
		"passed", summary.Count(VerdictPass),
		"failed", summary.Count(VerdictFail),
		"xfail", summary.Count(VerdictXFail),
		"xpass", summary.Count(VerdictXPass),
		"skipped", summary.Count(VerdictSkip),
		"config_errors", summary.ConfigErrors,
		"duration", summary.Duration,
	)

	if ro.Observer != nil {
		for _, r := range results {
			ro.Observer.Observe(r)
		}
	}

	return summary, nil
}

func newHarness(opts *config.Options, ro RunOptions) (*Harness, error) {
	if opts == nil {
		return nil, &HarnessError{Op: "start run", Err: errors.New("nil run configuration")}
	}

	logger := ro.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	clk := ro.Clock
	if clk == nil {
		clk = clock.NewClock()
	}
	runIDs := ro.RunIDs
	if runIDs == nil {
		runIDs = testutil.UUIDGenerator{}
	}
	dataDir := ro.DataDir
	if dataDir == "" {
		dataDir = os.TempDir()
	}

	runID := runIDs.Generate()
	return &Harness{
		opts:    opts,
		ro:      ro,
		logger:  logger,
		clock:   clk,
		seq:     testutil.NewSequence(),
		cleanup: NewCleanup(),
		runID:   runID,
		root:    filepath.Join(dataDir, fmt.Sprintf("%s-%s", opts.ProgName, runID)),
	}, nil
}

// resolve validates d and computes its effective mode. Any problem becomes a
// ConfigError for test num.
func (h *Harness) resolve(num int, d Descriptor) (Resolution, error) {
	if err := Validate(d); err != nil {
		return Resolution{}, &ConfigError{Num: num, Reason: err.Error()}
	}
	res, err := Resolve(d, h.opts)
	if err != nil {
		return Resolution{}, &ConfigError{Num: num, Reason: "cannot resolve mode", Err: err}
	}
	return res, nil
}

// execute runs one test body and fills in its result slot.
func (h *Harness) execute(ctx context.Context, d Descriptor, mode Mode, r *Result) {
	scope := newScope(ctx, r.Num, testutil.DeriveSeed(h.ro.Seed, r.Num), h.root, h.cleanup, h.logger)

	h.logger.Debug("test starting", "test", r.Num, "mode", mode, "msg", d.Msg)

	raw := Invoke(d, h.opts, scope, h.clock)

	r.Invoked = true
	r.Outcome = raw.Outcome
	r.Err = raw.Err
	r.Duration = raw.Duration
	r.Verdict = Classify(mode, raw)
	r.Seq = h.seq.Next()

	h.logger.Debug("test finished",
		"test", r.Num,
		"verdict", r.Verdict,
		"outcome", raw.Outcome,
		"duration", raw.Duration,
	)
	if raw.Outcome == OutcomeFault {
		var f *Fault
		if errors.As(raw.Err, &f) && len(f.Stack) > 0 {
			h.logger.Error("test panicked", "test", r.Num, "error", raw.Err, "stack", string(f.Stack))
		}
	}
}

// finish drains the cleanup registry and removes the scratch root if
// nothing is left in it.
func (h *Harness) finish(results []Result) {
	keep := func(num int) bool {
		if !h.ro.KeepFailedData || num < 1 || num > len(results) {
			return false
		}
		r := results[num-1]
		return r.Verdict.Failed() || r.ConfigError
	}

	for _, err := range h.cleanup.Drain(h.ro.Cleanup, keep, h.logger) {
		h.logger.Warn("cleanup failed", "error", err)
	}

	// Fails harmlessly when tests left data behind.
	_ = os.Remove(h.root)
}

// poolLimit converts a max-concurrency setting to an errgroup limit.
func poolLimit(maxConcurrency int) int {
	if maxConcurrency <= 0 {
		return -1
	}
	return maxConcurrency
}

// selectionSet validates 1-based test numbers against the table size. A nil
// selection means every test.
func selectionSet(selected []int, n int) (map[int]bool, error) {
	if selected == nil {
		return nil, nil
	}
	set := make(map[int]bool, len(selected))
	for _, num := range selected {
		if num < 1 || num > n {
			return nil, fmt.Errorf("test number %d out of range [1, %d]", num, n)
		}
		set[num] = true
	}
	return set, nil
}
