package fixture

import (
	"fmt"
	"os"
	"path/filepath"
)

// TreeEntry is one node of a fixture tree. Directories have nil Contents.
type TreeEntry struct {
	Path     string
	Contents *string
}

// IsDir reports whether the entry is a directory.
func (e TreeEntry) IsDir() bool { return e.Contents == nil }

// Tree is a list of entries, parents before children. Paths use forward
// slashes and are relative to the tree root.
type Tree []TreeEntry

func fileEntry(path string) TreeEntry {
	contents := fmt.Sprintf("This is the file '%s'.\n", filepath.Base(path))
	return TreeEntry{Path: path, Contents: &contents}
}

func dirEntry(path string) TreeEntry {
	return TreeEntry{Path: path}
}

// GreekTree returns a fresh copy of the standard twenty-entry test tree.
// Callers may modify the result.
func GreekTree() Tree {
	return Tree{
		fileEntry("iota"),
		dirEntry("A"),
		fileEntry("A/mu"),
		dirEntry("A/B"),
		fileEntry("A/B/lambda"),
		dirEntry("A/B/E"),
		fileEntry("A/B/E/alpha"),
		fileEntry("A/B/E/beta"),
		dirEntry("A/B/F"),
		dirEntry("A/C"),
		dirEntry("A/D"),
		fileEntry("A/D/gamma"),
		dirEntry("A/D/G"),
		fileEntry("A/D/G/pi"),
		fileEntry("A/D/G/rho"),
		fileEntry("A/D/G/tau"),
		dirEntry("A/D/H"),
		fileEntry("A/D/H/chi"),
		fileEntry("A/D/H/psi"),
		fileEntry("A/D/H/omega"),
	}
}

// Lookup returns the entry at path.
func (t Tree) Lookup(path string) (TreeEntry, bool) {
	for _, e := range t {
		if e.Path == path {
			return e, true
		}
	}
	return TreeEntry{}, false
}

// Files returns only the file entries of t.
func (t Tree) Files() Tree {
	var files Tree
	for _, e := range t {
		if !e.IsDir() {
			files = append(files, e)
		}
	}
	return files
}

// Materialize writes t under dir, creating dir if needed.
func (t Tree) Materialize(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create tree root: %w", err)
	}
	for _, e := range t {
		p := filepath.Join(dir, filepath.FromSlash(e.Path))
		if e.IsDir() {
			if err := os.MkdirAll(p, 0755); err != nil {
				return fmt.Errorf("create %s: %w", e.Path, err)
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			return fmt.Errorf("create parent of %s: %w", e.Path, err)
		}
		if err := os.WriteFile(p, []byte(*e.Contents), 0644); err != nil {
			return fmt.Errorf("write %s: %w", e.Path, err)
		}
	}
	return nil
}
