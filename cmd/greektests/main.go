// Command greektests runs repository round-trip tests against the Greek tree
// fixture. It doubles as a usage example of the harness.
package main

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/roach88/testmain/internal/auth"
	"github.com/roach88/testmain/internal/cli"
	"github.com/roach88/testmain/internal/config"
	"github.com/roach88/testmain/internal/fixture"
	"github.com/roach88/testmain/internal/harness"
	"github.com/roach88/testmain/internal/testutil"
)

var tests = []harness.Descriptor{
	harness.Pass(harness.OptsFunc(testCreateRepos), "create an empty repository"),
	harness.Pass(harness.OptsFunc(testImportGreekTree), "import the Greek tree"),
	harness.Pass(harness.OptsFunc(testCheckoutRoundTrip), "checkout reproduces every file"),
	harness.Pass(harness.OptsFunc(testRandomFile), "random file survives a round trip"),
	harness.Pass(harness.OptsFunc(testNoSuchRevision), "checkout of a future revision fails"),
	harness.Pass(harness.Func(testCredentials), "baton hands out each credential once"),
	harness.XFail(harness.OptsFunc(testAuthorTrimmed), "author names are stored trimmed"),
	harness.Pass(harness.OptsFunc(testEmptyLogMessage), "empty log messages are accepted").
		WithPredicate(harness.SkipIfMinorVersionBelow(5)),
	harness.WIMP(harness.OptsFunc(testCaseOnlyRename), "case-only renames keep history",
		"renames are stored as delete plus add"),
	harness.Pass(harness.OptsFunc(testReposURL), "repository URL is file based").
		WithPredicate(harness.SkipIfFSTypeIs("remote")),
}

func main() {
	os.Exit(cli.Main("greektests", os.Args[1:], runtime.NumCPU(), tests))
}

// newRepos creates a repository in the test's scratch directory.
func newRepos(opts *config.Options, s *harness.Scope) (*fixture.Repos, error) {
	dir, err := s.WorkDir()
	if err != nil {
		return nil, harness.Wrap(err, "scratch directory")
	}
	repos, err := fixture.CreateRepos(s.Context(), opts, filepath.Join(dir, "repos"))
	if err != nil {
		return nil, harness.Wrap(err, "create repository")
	}
	return repos, nil
}

func testCreateRepos(opts *config.Options, s *harness.Scope) error {
	repos, err := newRepos(opts, s)
	if err != nil {
		return err
	}
	defer repos.Close()

	youngest, err := repos.Youngest(s.Context())
	if err != nil {
		return err
	}
	if err := harness.Assertf(youngest == 0, "youngest revision is %d, not 0", youngest); err != nil {
		return err
	}

	fsType, err := repos.Meta(s.Context(), "fs_type")
	if err != nil {
		return err
	}
	return harness.StringEqual(opts.FSType, fsType)
}

func testImportGreekTree(opts *config.Options, s *harness.Scope) error {
	repos, err := newRepos(opts, s)
	if err != nil {
		return err
	}
	defer repos.Close()

	rev, err := repos.Import(s.Context(), fixture.GreekTree(), auth.DefaultUsername, "Log message for revision 1.")
	if err != nil {
		return err
	}
	if err := harness.Assertf(rev == 1, "import created r%d, not r1", rev); err != nil {
		return err
	}

	tree, err := repos.Tree(s.Context(), rev)
	if err != nil {
		return err
	}
	return harness.Assertf(len(tree) == len(fixture.GreekTree()),
		"r1 has %d nodes, want %d", len(tree), len(fixture.GreekTree()))
}

func testCheckoutRoundTrip(opts *config.Options, s *harness.Scope) error {
	repos, err := newRepos(opts, s)
	if err != nil {
		return err
	}
	defer repos.Close()

	rev, err := repos.Import(s.Context(), fixture.GreekTree(), auth.DefaultUsername, "import")
	if err != nil {
		return err
	}

	wc := filepath.Join(filepath.Dir(repos.Dir()), "wc")
	if err := repos.Checkout(s.Context(), rev, wc); err != nil {
		return err
	}

	for _, e := range fixture.GreekTree().Files() {
		data, err := os.ReadFile(filepath.Join(wc, filepath.FromSlash(e.Path)))
		if err != nil {
			return harness.Wrap(err, "read %s", e.Path)
		}
		if err := harness.StringEqual(*e.Contents, string(data)); err != nil {
			return err
		}
	}
	return nil
}

func testRandomFile(opts *config.Options, s *harness.Scope) error {
	files := fixture.GreekTree().Files()
	seed := testutil.Rand(s.Seed())
	want := files[seed%uint32(len(files))]
	s.Logger().Debug("picked file", "path", want.Path)

	repos, err := newRepos(opts, s)
	if err != nil {
		return err
	}
	defer repos.Close()

	rev, err := repos.Import(s.Context(), fixture.GreekTree(), auth.DefaultUsername, "import")
	if err != nil {
		return err
	}
	tree, err := repos.Tree(s.Context(), rev)
	if err != nil {
		return err
	}

	got, ok := tree.Lookup(want.Path)
	if err := harness.Check(ok, want.Path+" is in the imported tree"); err != nil {
		return err
	}
	if err := harness.PathEqual(want.Path, got.Path); err != nil {
		return err
	}
	return harness.StringPtrEqual(want.Contents, got.Contents)
}

func testNoSuchRevision(opts *config.Options, s *harness.Scope) error {
	repos, err := newRepos(opts, s)
	if err != nil {
		return err
	}
	defer repos.Close()

	err = repos.Checkout(s.Context(), 7, filepath.Join(filepath.Dir(repos.Dir()), "wc"))
	if err := harness.AssertAnyError(err); err != nil {
		return err
	}
	return harness.AssertError(err, fixture.ErrNoSuchRevision)
}

func testCredentials(s *harness.Scope) error {
	baton := auth.NewBaton("").WithCredentials(auth.Credentials{Username: "harry", Password: "harryssecret"})

	first, err := baton.FirstCredentials("greek")
	if err != nil {
		return err
	}
	if err := harness.StringEqual(auth.DefaultUsername, first.Username); err != nil {
		return err
	}

	next, err := baton.NextCredentials("greek")
	if err != nil {
		return err
	}
	if err := harness.StringEqual("harry", next.Username); err != nil {
		return err
	}

	_, err = baton.NextCredentials("greek")
	return harness.AssertError(err, auth.ErrNoCredentials)
}

// testAuthorTrimmed documents that authors are stored verbatim.
func testAuthorTrimmed(opts *config.Options, s *harness.Scope) error {
	repos, err := newRepos(opts, s)
	if err != nil {
		return err
	}
	defer repos.Close()

	rev, err := repos.Import(s.Context(), fixture.GreekTree(), " jrandom ", "import")
	if err != nil {
		return err
	}
	author, err := repos.Author(s.Context(), rev)
	if err != nil {
		return err
	}
	return harness.StringEqual(auth.DefaultUsername, author)
}

func testEmptyLogMessage(opts *config.Options, s *harness.Scope) error {
	repos, err := newRepos(opts, s)
	if err != nil {
		return err
	}
	defer repos.Close()

	_, err = repos.Import(s.Context(), fixture.GreekTree(), auth.DefaultUsername, "")
	return err
}

func testCaseOnlyRename(opts *config.Options, s *harness.Scope) error {
	repos, err := newRepos(opts, s)
	if err != nil {
		return err
	}
	defer repos.Close()

	tree := fixture.GreekTree()
	if _, err := repos.Import(s.Context(), tree, auth.DefaultUsername, "import"); err != nil {
		return err
	}

	renamed := make(fixture.Tree, 0, len(tree))
	for _, e := range tree {
		if e.Path == "iota" {
			e.Path = "IOTA"
		}
		renamed = append(renamed, e)
	}
	rev, err := repos.Import(s.Context(), renamed, auth.DefaultUsername, "rename iota")
	if err != nil {
		return err
	}

	// Revisions are independent snapshots, so there is no copy-from record
	// linking IOTA back to iota.
	return harness.Failf("r%d: IOTA has no history", rev)
}

func testReposURL(opts *config.Options, s *harness.Scope) error {
	repos, err := newRepos(opts, s)
	if err != nil {
		return err
	}
	defer repos.Close()

	if opts.ReposURL != "" {
		return harness.Skip("--repos-url overrides file URLs")
	}
	url := repos.URL()
	return harness.Assertf(strings.HasPrefix(url, "file://"), "URL %q is not a file URL", url)
}
