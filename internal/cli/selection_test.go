package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/testmain/internal/harness"
)

func selectionTable() []harness.Descriptor {
	noop := harness.Func(func(*harness.Scope) error { return nil })
	return []harness.Descriptor{
		harness.Pass(noop, "create a repository"),
		harness.Pass(noop, "commit a file"),
		harness.Pass(noop, "commit a directory"),
		harness.Pass(noop, "lock a file"),
		harness.Pass(noop, "pack revprops"),
	}
}

func TestParseSelection(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want []int
		list bool
	}{
		{"none", nil, nil, false},
		{"numbers", []string{"3", "1"}, []int{1, 3}, false},
		{"dash range", []string{"2-4"}, []int{2, 3, 4}, false},
		{"colon range", []string{"4:5"}, []int{4, 5}, false},
		{"duplicates", []string{"2", "1-3", "2"}, []int{1, 2, 3}, false},
		{"glob", []string{"commit*"}, []int{2, 3}, false},
		{"list only", []string{"list"}, nil, true},
		{"list with numbers", []string{"list", "5"}, []int{5}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel, err := ParseSelection(tt.args, selectionTable())
			require.NoError(t, err)
			assert.Equal(t, tt.want, sel.Nums)
			assert.Equal(t, tt.list, sel.List)
		})
	}
}

func TestParseSelection_Errors(t *testing.T) {
	for _, args := range [][]string{
		{"4-2"},
		{"0"},
		{"9"},
		{"0-3"},
		{"3:6"},
		{"no match*"},
		{"[unterminated"},
	} {
		_, err := ParseSelection(args, selectionTable())
		assert.Error(t, err, "%v", args)
	}
}

func TestParseSelection_HugeRange(t *testing.T) {
	table := selectionTable()[:1]
	for _, arg := range []string{"1-50000000", "1:2147483647", "2147483647"} {
		sel, err := ParseSelection([]string{arg}, table)
		require.Error(t, err, arg)
		assert.Contains(t, err.Error(), "out of range [1, 1]")
		assert.Nil(t, sel.Nums)
	}
}
