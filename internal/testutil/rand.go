package testutil

// Rand returns the next pseudo-random value after seed. The returned value is
// also the seed for the following call, so a caller threads it through:
//
//	seed := scope.Seed()
//	for i := 0; i < n; i++ {
//	    seed = testutil.Rand(seed)
//	    pick := seed % uint32(len(items))
//	}
//
// The generator keeps no state of its own; a given seed always yields the
// same sequence on every platform.
func Rand(seed uint32) uint32 {
	return seed*1103515245 + 12345
}

// DeriveSeed mixes a run seed with a test number so that every test gets its
// own reproducible stream.
func DeriveSeed(runSeed uint32, num int) uint32 {
	s := runSeed ^ (uint32(num) * 2654435761)
	return Rand(Rand(s))
}
