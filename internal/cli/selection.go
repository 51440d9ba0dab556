package cli

import (
	"fmt"
	"path"
	"slices"
	"strconv"
	"strings"

	"github.com/roach88/testmain/internal/harness"
)

// Selection is what the positional arguments ask for.
type Selection struct {
	// Nums are the selected 1-based test numbers, sorted and unique. Nil
	// means every test.
	Nums []int

	// List is set by the word "list".
	List bool
}

// ParseSelection interprets positional arguments: test numbers, inclusive
// ranges written N-M or N:M, the word "list", or glob patterns matched
// against test descriptions. Numbers and range bounds outside the table are
// rejected before any range is expanded.
func ParseSelection(args []string, table []harness.Descriptor) (Selection, error) {
	var sel Selection
	inRange := func(n int) error {
		if n < 1 || n > len(table) {
			return fmt.Errorf("test number %d out of range [1, %d]", n, len(table))
		}
		return nil
	}
	seen := make(map[int]bool)
	add := func(n int) {
		if !seen[n] {
			seen[n] = true
			sel.Nums = append(sel.Nums, n)
		}
	}

	for _, arg := range args {
		if arg == "list" {
			sel.List = true
			continue
		}

		if lo, hi, ok, err := parseRange(arg); ok {
			if err != nil {
				return Selection{}, err
			}
			if err := inRange(lo); err != nil {
				return Selection{}, err
			}
			if err := inRange(hi); err != nil {
				return Selection{}, err
			}
			for n := lo; n <= hi; n++ {
				add(n)
			}
			continue
		}

		if n, err := strconv.Atoi(arg); err == nil {
			if err := inRange(n); err != nil {
				return Selection{}, err
			}
			add(n)
			continue
		}

		matched := false
		for i, d := range table {
			ok, err := path.Match(arg, d.Msg)
			if err != nil {
				return Selection{}, fmt.Errorf("invalid test pattern %q: %w", arg, err)
			}
			if ok {
				add(i + 1)
				matched = true
			}
		}
		if !matched {
			return Selection{}, fmt.Errorf("no test description matches %q", arg)
		}
	}

	slices.Sort(sel.Nums)
	return sel, nil
}

// parseRange recognizes "N-M" and "N:M". ok is false when arg is not shaped
// like a range at all.
func parseRange(arg string) (lo, hi int, ok bool, err error) {
	i := strings.IndexAny(arg, "-:")
	if i <= 0 || i == len(arg)-1 {
		return 0, 0, false, nil
	}
	lo, err1 := strconv.Atoi(arg[:i])
	hi, err2 := strconv.Atoi(arg[i+1:])
	if err1 != nil || err2 != nil {
		return 0, 0, false, nil
	}
	if lo > hi {
		return 0, 0, true, fmt.Errorf("invalid test range %q: start is after end", arg)
	}
	return lo, hi, true, nil
}
