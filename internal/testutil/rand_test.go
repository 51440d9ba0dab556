package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRand_KnownSequence(t *testing.T) {
	// Values of the classic ANSI C LCG, truncated to 32 bits.
	seed := uint32(0)
	seed = Rand(seed)
	assert.Equal(t, uint32(12345), seed)
	seed = Rand(seed)
	assert.Equal(t, uint32(3554416254), seed)
}

func TestRand_Deterministic(t *testing.T) {
	a, b := uint32(42), uint32(42)
	for i := 0; i < 1000; i++ {
		a = Rand(a)
		b = Rand(b)
	}
	assert.Equal(t, a, b)
}

func TestDeriveSeed_DistinctPerTest(t *testing.T) {
	seen := make(map[uint32]int)
	for num := 1; num <= 100; num++ {
		s := DeriveSeed(7, num)
		if prev, ok := seen[s]; ok {
			t.Fatalf("tests %d and %d share seed %d", prev, num, s)
		}
		seen[s] = num
	}
	assert.Equal(t, DeriveSeed(7, 3), DeriveSeed(7, 3))
	assert.NotEqual(t, DeriveSeed(7, 3), DeriveSeed(8, 3))
}

func TestRunIDGenerators(t *testing.T) {
	fixed := NewFixedRunIDGenerator("")
	assert.Equal(t, "test-run", fixed.Generate())
	assert.Equal(t, "abc", NewFixedRunIDGenerator("abc").Generate())

	var gen UUIDGenerator
	a, b := gen.Generate(), gen.Generate()
	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b)
}
