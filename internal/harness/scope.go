package harness

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// Scope is the per-test handle passed to every test body. It carries the
// run's context, a reproducible seed and a private scratch area.
type Scope struct {
	ctx     context.Context
	num     int
	seed    uint32
	root    string
	cleanup *Cleanup
	logger  *slog.Logger

	mu      sync.Mutex
	workDir string
}

func newScope(ctx context.Context, num int, seed uint32, root string, cleanup *Cleanup, logger *slog.Logger) *Scope {
	return &Scope{
		ctx:     ctx,
		num:     num,
		seed:    seed,
		root:    root,
		cleanup: cleanup,
		logger:  logger.With("test", num),
	}
}

// Context returns the run's context. The harness never cancels a running
// test; bodies may use the context for their own deadlines.
func (s *Scope) Context() context.Context { return s.ctx }

// Num returns the test's 1-based table position.
func (s *Scope) Num() int { return s.num }

// Seed returns the test's seed for testutil.Rand. It depends only on the
// run seed and the test number.
func (s *Scope) Seed() uint32 { return s.seed }

// Logger returns a logger tagged with the test number.
func (s *Scope) Logger() *slog.Logger { return s.logger }

// DataPath returns the path of basename inside the test's scratch
// directory. The directory is not created.
func (s *Scope) DataPath(basename string) string {
	return filepath.Join(s.root, fmt.Sprintf("test-%d", s.num), basename)
}

// WorkDir creates the test's scratch directory on first use and registers it
// for cleanup.
func (s *Scope) WorkDir() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.workDir != "" {
		return s.workDir, nil
	}

	dir := filepath.Join(s.root, fmt.Sprintf("test-%d", s.num))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create work dir: %w", err)
	}
	s.cleanup.Add(s.num, dir)
	s.workDir = dir
	return dir, nil
}

// AddDirCleanup registers path for removal at the end of the run.
func (s *Scope) AddDirCleanup(path string) {
	s.cleanup.Add(s.num, path)
}
