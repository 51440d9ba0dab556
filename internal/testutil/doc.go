// Package testutil holds small deterministic helpers shared by the harness
// and by test bodies: a stateless random source, a completion sequence and
// run-ID generators.
package testutil
