package models

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Template identifies one project template under test.
// The name doubles as the scaffolding CLI argument and as the fixture
// directory name, so it must be a single path segment.
type Template struct {
	Name string `yaml:"name"`
}

// Validate checks that the template name is usable as a path segment.
func (t Template) Validate() error {
	name := strings.TrimSpace(t.Name)
	if name == "" {
		return fmt.Errorf("template name cannot be empty")
	}
	if name != t.Name {
		return fmt.Errorf("template name %q has surrounding whitespace", t.Name)
	}
	if name == "." || name == ".." || strings.ContainsAny(name, `/\`) || filepath.Base(name) != name {
		return fmt.Errorf("template name %q must be a single path segment", t.Name)
	}
	return nil
}

// String returns the template name.
func (t Template) String() string {
	return t.Name
}
