package display

import (
	"errors"
	"io/fs"
	"os"
	"sort"
	"strings"

	"github.com/harrison/templatecheck/internal/models"
)

// FindStaleFixtures returns the names of directories directly under
// fixturesDir that do not match any template. Hidden entries are ignored.
// A missing fixturesDir yields no names and no error.
func FindStaleFixtures(fixturesDir string, templates []models.Template) ([]string, error) {
	entries, err := os.ReadDir(fixturesDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	known := make(map[string]bool, len(templates))
	for _, t := range templates {
		known[t.Name] = true
	}

	var stale []string
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") || known[e.Name()] {
			continue
		}
		stale = append(stale, e.Name())
	}
	sort.Strings(stale)
	return stale, nil
}
