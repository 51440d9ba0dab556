// Package harness runs a table of test functions and classifies each one
// against its expectation.
//
// A test program declares its tests as a slice of Descriptor values. Each
// entry carries a declared Mode, a Driver (the test body), a one-line
// description and optionally a Predicate that swaps the mode at run time
// depending on the run configuration:
//
//	var tests = []harness.Descriptor{
//		harness.Pass(harness.Func(testCreate), "create a repository"),
//		harness.XFail(harness.Func(testLocks), "lock a directory"),
//		harness.XFailOtoh(harness.Func(testPack), "pack revprops",
//			harness.PassIfFSTypeIs("fsfs")),
//	}
//
// # Modes and Verdicts
//
// The effective mode of a test is its declared mode unless a predicate holds,
// in which case the predicate's alternate mode wins. The body's raw outcome is
// then reconciled with the effective mode by Classify:
//
//	mode   success  failure  fault  skipped
//	PASS   PASS     FAIL     FAIL   SKIP
//	XFAIL  XPASS    XFAIL    FAIL   SKIP
//	SKIP   SKIP     (body is never called)
//
// Bodies report domain failures by returning an error, typically built with
// Failf, Wrap or one of the assertion helpers. Internal faults (Faultf, Check,
// or a panic) always produce FAIL, even for expected failures. A body that
// returns Skip is reported as SKIP whatever its mode.
//
// # Scheduling
//
// Run executes a table with a bounded pool of workers. Results are always
// reported in table order, whatever order the tests finished in, and a
// failing or panicking test never stops the others. Each test gets a Scope
// with a reproducible seed and a private scratch directory that can be
// registered for removal at the end of the run.
package harness
