// Package report renders run summaries and test listings.
//
// The text format prints one line per test in table order:
//
//	PASS:  prog 1: create a repository
//	XFAIL: prog 2: lock a directory [[WIMP: locking is unfinished]]
//	FAIL:  prog 3: commit a file
//
// followed by a line of per-verdict counts. Error chains of failed tests are
// written to the error stream, one line per link. The table format renders the
// same data with go-pretty, and the json format wraps it in the CLI's
// {status, data, error} envelope.
package report
