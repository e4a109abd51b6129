package fileutil

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/harrison/templatecheck/internal/models"
)

// TreeOptions configures Tree.
type TreeOptions struct {
	// ExcludeDirs lists directory names that are not descended into (e.g. "node_modules").
	// The directory itself is still reported.
	ExcludeDirs []string
	// SkipHidden drops entries whose name starts with a dot, like a default shell glob.
	SkipHidden bool
}

// Tree recursively enumerates every path under root, relative to root.
func Tree(root string, opts TreeOptions) (*models.FileSet, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("failed to access directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("path is not a directory: %s", root)
	}

	exclude := make(map[string]bool, len(opts.ExcludeDirs))
	for _, d := range opts.ExcludeDirs {
		exclude[d] = true
	}

	set := models.NewFileSet()
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}

		if opts.SkipHidden && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		set.Add(filepath.ToSlash(rel))

		if d.IsDir() && exclude[d.Name()] {
			return filepath.SkipDir
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk directory: %w", err)
	}

	return set, nil
}

// Exists reports whether path exists, following symlinks.
// Any error other than "not exist" counts as existing, so a permission
// problem never hides a forbidden path.
func Exists(path string) bool {
	_, err := os.Stat(path)
	if err == nil {
		return true
	}
	return !errors.Is(err, fs.ErrNotExist)
}
