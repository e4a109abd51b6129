package models

import (
	"path"
	"sort"
	"strings"
)

// FileSet is a set of slash-separated paths relative to some root.
// It holds required or forbidden checklists as well as enumerated trees.
type FileSet struct {
	paths map[string]struct{}
}

// NewFileSet builds a FileSet from the given paths.
// Paths are cleaned and converted to forward slashes.
func NewFileSet(paths ...string) *FileSet {
	fs := &FileSet{paths: make(map[string]struct{}, len(paths))}
	for _, p := range paths {
		fs.Add(p)
	}
	return fs
}

// Add inserts a path into the set.
func (fs *FileSet) Add(p string) {
	if fs.paths == nil {
		fs.paths = make(map[string]struct{})
	}
	fs.paths[normalizePath(p)] = struct{}{}
}

// Contains reports whether the path is a member of the set.
func (fs *FileSet) Contains(p string) bool {
	if fs == nil {
		return false
	}
	_, ok := fs.paths[normalizePath(p)]
	return ok
}

// Len returns the number of paths in the set.
func (fs *FileSet) Len() int {
	if fs == nil {
		return 0
	}
	return len(fs.paths)
}

// Paths returns the members sorted lexically.
func (fs *FileSet) Paths() []string {
	if fs == nil {
		return nil
	}
	out := make([]string, 0, len(fs.paths))
	for p := range fs.paths {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Missing returns the entries of want that are not members, in want order.
func (fs *FileSet) Missing(want []string) []string {
	var missing []string
	for _, w := range want {
		if !fs.Contains(w) {
			missing = append(missing, w)
		}
	}
	return missing
}

func normalizePath(p string) string {
	p = strings.ReplaceAll(p, `\`, "/")
	p = path.Clean(p)
	return strings.TrimPrefix(p, "./")
}
