package harness

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
)

// Cleanup collects directories created by tests. It is owned by a single run
// and drained exactly once when the run ends.
type Cleanup struct {
	mu      sync.Mutex
	entries []cleanupEntry
	drained bool
}

type cleanupEntry struct {
	num  int
	path string
}

// NewCleanup returns an empty registry.
func NewCleanup() *Cleanup {
	return &Cleanup{}
}

// Add registers path, created on behalf of test num.
func (c *Cleanup) Add(num int, path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, cleanupEntry{num: num, path: path})
}

// Len returns the number of registered paths.
func (c *Cleanup) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Drain empties the registry. When remove is true every registered path is
// deleted, except those for which keep returns true. Removal errors are
// collected rather than stopping the drain. Draining twice is a no-op.
func (c *Cleanup) Drain(remove bool, keep func(num int) bool, logger *slog.Logger) []error {
	c.mu.Lock()
	entries := c.entries
	c.entries = nil
	already := c.drained
	c.drained = true
	c.mu.Unlock()

	if already {
		return nil
	}

	var errs []error
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		if !remove || (keep != nil && keep(e.num)) {
			logger.Debug("keeping test data", "test", e.num, "path", e.path)
			continue
		}
		if err := os.RemoveAll(e.path); err != nil {
			errs = append(errs, fmt.Errorf("remove %s: %w", e.path, err))
			continue
		}
		logger.Debug("removed test data", "test", e.num, "path", e.path)
	}
	return errs
}
