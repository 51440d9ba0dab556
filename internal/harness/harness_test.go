package harness

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/testmain/internal/config"
	"github.com/roach88/testmain/internal/testutil"
)

func runOpts(t *testing.T) RunOptions {
	t.Helper()
	return RunOptions{
		MaxConcurrency: 1,
		DataDir:        t.TempDir(),
		RunIDs:         testutil.NewFixedRunIDGenerator("run"),
	}
}

func verdicts(s *Summary) []Verdict {
	out := make([]Verdict, len(s.Results))
	for i, r := range s.Results {
		out[i] = r.Verdict
	}
	return out
}

func failing(*Scope) error { return Failf("expected something else") }

// mixedTable covers every verdict.
func mixedTable() []Descriptor {
	return []Descriptor{
		Pass(Func(noop), "passes"),
		Pass(Func(failing), "fails"),
		XFail(Func(failing), "fails as expected"),
		XFail(Func(noop), "passes unexpectedly"),
		{Mode: ModeSkip, Driver: Func(noop), Msg: "skipped"},
		Pass(Func(func(*Scope) error { panic("boom") }), "panics"),
		XFail(Func(func(*Scope) error { return Faultf("broken setup") }), "faults"),
	}
}

func TestRun_MixedVerdicts(t *testing.T) {
	s, err := Run(context.Background(), mixedTable(), optsWithFS("fsfs"), runOpts(t))
	require.NoError(t, err)

	assert.Equal(t, []Verdict{
		VerdictPass, VerdictFail, VerdictXFail, VerdictXPass,
		VerdictSkip, VerdictFail, VerdictFail,
	}, verdicts(s))

	assert.Equal(t, 1, s.Count(VerdictPass))
	assert.Equal(t, 3, s.Count(VerdictFail))
	assert.Equal(t, 1, s.Count(VerdictXFail))
	assert.Equal(t, 1, s.Count(VerdictXPass))
	assert.Equal(t, 1, s.Count(VerdictSkip))
	assert.True(t, s.Failed())
	assert.Equal(t, 6, s.Invoked())

	// Skip-mode tests are never invoked.
	assert.False(t, s.Results[4].Invoked)
	assert.Equal(t, "run", s.RunID)
}

func TestRun_AllPassing(t *testing.T) {
	table := []Descriptor{
		Pass(Func(noop), "a"),
		XFail(Func(failing), "b"),
		{Mode: ModeSkip, Driver: Func(noop), Msg: "c"},
	}

	s, err := Run(context.Background(), table, optsWithFS("fsfs"), runOpts(t))
	require.NoError(t, err)
	assert.False(t, s.Failed())
}

func TestRun_EmptyTable(t *testing.T) {
	s, err := Run(context.Background(), nil, optsWithFS("fsfs"), runOpts(t))
	require.NoError(t, err)
	assert.Empty(t, s.Results)
	assert.False(t, s.Failed())
}

func TestRun_SerialMatchesParallel(t *testing.T) {
	serial, err := Run(context.Background(), mixedTable(), optsWithFS("fsfs"), runOpts(t))
	require.NoError(t, err)

	ro := runOpts(t)
	ro.MaxConcurrency = 4
	parallel, err := Run(context.Background(), mixedTable(), optsWithFS("fsfs"), ro)
	require.NoError(t, err)

	ignore := cmpopts.IgnoreFields(Result{}, "Duration", "Seq", "Err")
	if diff := cmp.Diff(serial.Results, parallel.Results, ignore); diff != "" {
		t.Errorf("parallel results differ from serial (-serial +parallel):\n%s", diff)
	}
	assert.Equal(t, serial.Counts, parallel.Counts)
}

func TestRun_SerialCompletesInTableOrder(t *testing.T) {
	table := make([]Descriptor, 6)
	for i := range table {
		table[i] = Pass(Func(noop), "t")
	}

	s, err := Run(context.Background(), table, optsWithFS("fsfs"), runOpts(t))
	require.NoError(t, err)
	for i, r := range s.Results {
		assert.Equal(t, int64(i+1), r.Seq)
	}
}

func TestRun_ConcurrencyBound(t *testing.T) {
	var active, peak atomic.Int32
	body := Func(func(*Scope) error {
		n := active.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		active.Add(-1)
		return nil
	})

	table := make([]Descriptor, 12)
	for i := range table {
		table[i] = Pass(body, "bounded")
	}

	ro := runOpts(t)
	ro.MaxConcurrency = 3
	s, err := Run(context.Background(), table, optsWithFS("fsfs"), ro)
	require.NoError(t, err)
	assert.Equal(t, 12, s.Count(VerdictPass))
	assert.LessOrEqual(t, peak.Load(), int32(3))
}

func TestRun_ParallelTestsOverlap(t *testing.T) {
	const n = 3
	var arrived sync.WaitGroup
	arrived.Add(n)
	all := make(chan struct{})
	go func() {
		arrived.Wait()
		close(all)
	}()

	body := Func(func(*Scope) error {
		arrived.Done()
		select {
		case <-all:
			return nil
		case <-time.After(5 * time.Second):
			return Failf("tests did not run concurrently")
		}
	})

	table := []Descriptor{Pass(body, "a"), Pass(body, "b"), Pass(body, "c")}
	ro := runOpts(t)
	ro.MaxConcurrency = n
	s, err := Run(context.Background(), table, optsWithFS("fsfs"), ro)
	require.NoError(t, err)
	assert.Equal(t, n, s.Count(VerdictPass))
}

func TestRun_Selection(t *testing.T) {
	var calls atomic.Int32
	body := Func(func(*Scope) error {
		calls.Add(1)
		return nil
	})
	brokenPredicate := &Predicate{Func: MinorVersionBelow, Value: "not a number", AlternateMode: ModePass}
	table := []Descriptor{
		XFail(body, "1").WithPredicate(brokenPredicate),
		Pass(body, "2"),
		SkipIf(true, body, "3"),
		{Mode: ModePass, Msg: "4"},
		XFail(Func(failing), "5"),
	}

	for _, n := range []int{1, 4, 0} {
		ro := runOpts(t)
		ro.MaxConcurrency = n
		ro.Selected = []int{2}
		s, err := Run(context.Background(), table, optsWithFS("fsfs"), ro)
		require.NoError(t, err)

		assert.Equal(t, 1, s.Invoked())
		assert.Equal(t, VerdictPass, s.Results[1].Verdict)
		assert.Equal(t, 0, s.ConfigErrors)
		assert.False(t, s.Failed())
		for _, i := range []int{0, 2, 3, 4} {
			assert.Equal(t, VerdictSkip, s.Results[i].Verdict, "test %d", i+1)
			assert.Equal(t, NotSelected, s.Results[i].Excluded, "test %d", i+1)
			assert.False(t, s.Results[i].Invoked, "test %d", i+1)
		}
	}
	assert.Equal(t, int32(3), calls.Load())
}

// lockedBuffer is a log sink safe for concurrent writers.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestRun_ConfigErrorsReportedBeforeScheduling(t *testing.T) {
	var logs lockedBuffer
	var reportedFirst atomic.Bool
	table := []Descriptor{
		Pass(Func(noop), "first"),
		Pass(Func(func(*Scope) error {
			reportedFirst.Store(strings.Contains(logs.String(), "test not runnable"))
			return nil
		}), "looks at the log"),
		Pass(Func(noop), "third"),
		{Mode: ModePass, Msg: "no driver"},
	}

	ro := runOpts(t)
	ro.Logger = slog.New(slog.NewTextHandler(&logs, nil))
	s, err := Run(context.Background(), table, optsWithFS("fsfs"), ro)
	require.NoError(t, err)

	assert.True(t, reportedFirst.Load())
	assert.Equal(t, 1, s.ConfigErrors)
	assert.True(t, s.Results[3].ConfigError)
	assert.Equal(t, 3, s.Invoked())
}

func TestRun_SelectionOutOfRange(t *testing.T) {
	ro := runOpts(t)
	ro.Selected = []int{0}
	_, err := Run(context.Background(), mixedTable(), optsWithFS("fsfs"), ro)

	var he *HarnessError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, "select tests", he.Op)

	ro.Selected = []int{8}
	_, err = Run(context.Background(), mixedTable(), optsWithFS("fsfs"), ro)
	require.ErrorAs(t, err, &he)
}

func TestRun_NilOptions(t *testing.T) {
	_, err := Run(context.Background(), mixedTable(), nil, runOpts(t))
	var he *HarnessError
	assert.ErrorAs(t, err, &he)
}

func TestRun_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Run(ctx, mixedTable(), optsWithFS("fsfs"), runOpts(t))
	var he *HarnessError
	require.ErrorAs(t, err, &he)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRun_ModeFilter(t *testing.T) {
	xfail := ModeXFail
	ro := runOpts(t)
	ro.ModeFilter = &xfail

	s, err := Run(context.Background(), mixedTable(), optsWithFS("fsfs"), ro)
	require.NoError(t, err)

	for _, r := range s.Results {
		if r.Mode == ModeXFail {
			assert.True(t, r.Invoked, "test %d", r.Num)
			continue
		}
		assert.Equal(t, ModeFiltered, r.Excluded, "test %d", r.Num)
		assert.Equal(t, VerdictSkip, r.Verdict)
	}
	assert.Equal(t, 3, s.Invoked())
}

func TestRun_ModeFilterAll(t *testing.T) {
	all := ModeAll
	ro := runOpts(t)
	ro.ModeFilter = &all

	s, err := Run(context.Background(), mixedTable(), optsWithFS("fsfs"), ro)
	require.NoError(t, err)
	assert.Equal(t, 6, s.Invoked())
}

func TestRun_PredicateFlipsExpectation(t *testing.T) {
	table := []Descriptor{
		XFailOtoh(Func(noop), "works on fsfs", PassIfFSTypeIs("fsfs")),
	}

	s, err := Run(context.Background(), table, optsWithFS("fsfs"), runOpts(t))
	require.NoError(t, err)
	assert.Equal(t, VerdictPass, s.Results[0].Verdict)
	assert.Equal(t, ModePass, s.Results[0].Mode)

	s, err = Run(context.Background(), table, optsWithFS("bdb"), runOpts(t))
	require.NoError(t, err)
	assert.Equal(t, VerdictXPass, s.Results[0].Verdict)
	assert.True(t, s.Failed())
}

func TestRun_SkipPredicate(t *testing.T) {
	var called atomic.Bool
	body := Func(func(*Scope) error {
		called.Store(true)
		return nil
	})
	table := []Descriptor{Pass(body, "not on bdb").WithPredicate(SkipIfFSTypeIs("bdb"))}

	s, err := Run(context.Background(), table, optsWithFS("bdb"), runOpts(t))
	require.NoError(t, err)
	assert.Equal(t, VerdictSkip, s.Results[0].Verdict)
	assert.False(t, called.Load())
}

func TestRun_ConfigErrorDoesNotAbort(t *testing.T) {
	table := []Descriptor{
		{Mode: ModePass, Msg: "no driver"},
		Pass(Func(noop), "fine"),
		Pass(Func(noop), "bad predicate").WithPredicate(&Predicate{Func: FSTypeIs, AlternateMode: ModeSkip}),
	}

	s, err := Run(context.Background(), table, optsWithFS("fsfs"), runOpts(t))
	require.NoError(t, err)

	assert.True(t, s.Results[0].ConfigError)
	assert.True(t, IsConfigError(s.Results[0].Err))
	assert.Equal(t, VerdictFail, s.Results[0].Verdict)
	assert.Equal(t, VerdictPass, s.Results[1].Verdict)
	assert.True(t, s.Results[2].ConfigError)
	assert.Equal(t, 2, s.ConfigErrors)
	assert.True(t, s.Failed())
}

func TestRun_RuntimeSkip(t *testing.T) {
	table := []Descriptor{
		Pass(Func(func(*Scope) error { return Skip("no server") }), "needs server"),
		XFail(Func(func(*Scope) error { return Skip("no server") }), "needs server too"),
	}

	s, err := Run(context.Background(), table, optsWithFS("fsfs"), runOpts(t))
	require.NoError(t, err)
	assert.Equal(t, []Verdict{VerdictSkip, VerdictSkip}, verdicts(s))
	assert.True(t, s.Results[0].Invoked)
	assert.False(t, s.Failed())
}

func TestRun_WIPOnlyForExpectedFailures(t *testing.T) {
	table := []Descriptor{
		WIMP(Func(failing), "unfinished", "needs locking"),
		WIMPIf(false, Func(noop), "finished", "needs locking"),
	}

	s, err := Run(context.Background(), table, optsWithFS("fsfs"), runOpts(t))
	require.NoError(t, err)
	assert.Equal(t, "needs locking", s.Results[0].WIP)
	assert.Empty(t, s.Results[1].WIP)
}

func TestRun_SeedsAreDeterministic(t *testing.T) {
	var mu sync.Mutex
	seen := map[int]uint32{}
	body := Func(func(s *Scope) error {
		mu.Lock()
		defer mu.Unlock()
		seen[s.Num()] = s.Seed()
		return nil
	})
	table := []Descriptor{Pass(body, "a"), Pass(body, "b"), Pass(body, "c")}

	ro := runOpts(t)
	ro.Seed = 42
	ro.MaxConcurrency = 3
	_, err := Run(context.Background(), table, optsWithFS("fsfs"), ro)
	require.NoError(t, err)

	for num, seed := range seen {
		assert.Equal(t, testutil.DeriveSeed(42, num), seed)
	}
	assert.Len(t, seen, 3)
}

type recordingObserver struct {
	nums []int
}

func (o *recordingObserver) Observe(r Result) { o.nums = append(o.nums, r.Num) }

func TestRun_ObserverSeesTableOrder(t *testing.T) {
	obs := &recordingObserver{}
	ro := runOpts(t)
	ro.MaxConcurrency = 4
	ro.Observer = obs

	_, err := Run(context.Background(), mixedTable(), optsWithFS("fsfs"), ro)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7}, obs.nums)
}

func TestRun_Cleanup(t *testing.T) {
	var dirs sync.Map
	body := func(fail bool) Func {
		return func(s *Scope) error {
			dir, err := s.WorkDir()
			if err != nil {
				return err
			}
			dirs.Store(s.Num(), dir)
			if fail {
				return Failf("failed")
			}
			return nil
		}
	}
	table := []Descriptor{Pass(body(false), "ok"), Pass(body(true), "broken")}

	exists := func(t *testing.T, num int) bool {
		t.Helper()
		v, ok := dirs.Load(num)
		require.True(t, ok)
		_, err := os.Stat(v.(string))
		return err == nil
	}

	t.Run("no cleanup keeps everything", func(t *testing.T) {
		ro := runOpts(t)
		_, err := Run(context.Background(), table, optsWithFS("fsfs"), ro)
		require.NoError(t, err)
		assert.True(t, exists(t, 1))
		assert.True(t, exists(t, 2))
	})

	t.Run("cleanup removes everything", func(t *testing.T) {
		ro := runOpts(t)
		ro.Cleanup = true
		_, err := Run(context.Background(), table, optsWithFS("fsfs"), ro)
		require.NoError(t, err)
		assert.False(t, exists(t, 1))
		assert.False(t, exists(t, 2))

		// The emptied scratch root is removed too.
		_, err = os.Stat(filepath.Join(ro.DataDir, "harness-test-run"))
		assert.True(t, errors.Is(err, os.ErrNotExist))
	})

	t.Run("keep failed data", func(t *testing.T) {
		ro := runOpts(t)
		ro.Cleanup = true
		ro.KeepFailedData = true
		_, err := Run(context.Background(), table, optsWithFS("fsfs"), ro)
		require.NoError(t, err)
		assert.False(t, exists(t, 1))
		assert.True(t, exists(t, 2))
	})
}

func TestRun_ScratchDirFailure(t *testing.T) {
	file := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(file, nil, 0644))

	ro := runOpts(t)
	ro.DataDir = file
	_, err := Run(context.Background(), mixedTable(), optsWithFS("fsfs"), ro)

	var he *HarnessError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, "create scratch directory", he.Op)
}

func TestRun_OptionsAreShared(t *testing.T) {
	opts := &config.Options{ProgName: "shared", FSType: "bdb"}
	var seen atomic.Value
	body := OptsFunc(func(o *config.Options, _ *Scope) error {
		seen.Store(o)
		return nil
	})

	_, err := Run(context.Background(), []Descriptor{Pass(body, "opts")}, opts, runOpts(t))
	require.NoError(t, err)
	assert.Same(t, opts, seen.Load().(*config.Options))
}
