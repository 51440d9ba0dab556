package testutil

import "github.com/google/uuid"

// RunIDGenerator names a run. The name becomes part of the scratch directory
// so concurrent invocations of the same test program never collide.
type RunIDGenerator interface {
	Generate() string
}

// UUIDGenerator returns a fresh random UUID for every run.
type UUIDGenerator struct{}

// Generate implements RunIDGenerator.
func (UUIDGenerator) Generate() string {
	return uuid.NewString()
}

// FixedRunIDGenerator returns the same run ID every time, so tests can
// predict scratch paths.
type FixedRunIDGenerator struct {
	id string
}

// NewFixedRunIDGenerator creates a generator for id. An empty id becomes
// "test-run".
func NewFixedRunIDGenerator(id string) *FixedRunIDGenerator {
	if id == "" {
		id = "test-run"
	}
	return &FixedRunIDGenerator{id: id}
}

// Generate implements RunIDGenerator.
func (g *FixedRunIDGenerator) Generate() string {
	return g.id
}
