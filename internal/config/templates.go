package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/harrison/templatecheck/internal/models"
)

// templateEntry accepts either a bare name or a {name: ...} mapping.
type templateEntry struct {
	Name string
}

func (e *templateEntry) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		return node.Decode(&e.Name)
	case yaml.MappingNode:
		var m struct {
			Name  string `yaml:"name"`
			Value string `yaml:"value"`
		}
		if err := node.Decode(&m); err != nil {
			return err
		}
		e.Name = m.Name
		if e.Name == "" {
			e.Name = m.Value
		}
		return nil
	default:
		return fmt.Errorf("line %d: template entry must be a name or a mapping", node.Line)
	}
}

// ParseTemplates decodes a templates document. Both shapes are accepted:
//
//	templates:
//	  - name: minimal
//	  - blog
//
// and a bare top-level list of names.
func ParseTemplates(data []byte) ([]models.Template, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	if len(root.Content) == 0 {
		return nil, fmt.Errorf("templates document is empty")
	}

	var entries []templateEntry
	doc := root.Content[0]
	switch doc.Kind {
	case yaml.SequenceNode:
		if err := doc.Decode(&entries); err != nil {
			return nil, fmt.Errorf("failed to parse templates: %w", err)
		}
	case yaml.MappingNode:
		var wrapper struct {
			Templates []templateEntry `yaml:"templates"`
		}
		if err := doc.Decode(&wrapper); err != nil {
			return nil, fmt.Errorf("failed to parse templates: %w", err)
		}
		entries = wrapper.Templates
	default:
		return nil, fmt.Errorf("templates document must be a list or a mapping with a templates key")
	}

	if len(entries) == 0 {
		return nil, fmt.Errorf("no templates listed")
	}

	seen := make(map[string]bool, len(entries))
	templates := make([]models.Template, 0, len(entries))
	for i, e := range entries {
		tmpl := models.Template{Name: e.Name}
		if err := tmpl.Validate(); err != nil {
			return nil, fmt.Errorf("template %d: %w", i+1, err)
		}
		if seen[tmpl.Name] {
			return nil, fmt.Errorf("template %q listed more than once", tmpl.Name)
		}
		seen[tmpl.Name] = true
		templates = append(templates, tmpl)
	}

	return templates, nil
}

// LoadTemplates reads and parses the templates file at path.
func LoadTemplates(path string) ([]models.Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read templates file: %w", err)
	}
	return ParseTemplates(data)
}

// FilterTemplates keeps only the named templates, preserving list order.
// An empty filter returns the input unchanged. Unknown names are an error.
func FilterTemplates(templates []models.Template, names []string) ([]models.Template, error) {
	if len(names) == 0 {
		return templates, nil
	}

	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}

	var out []models.Template
	for _, t := range templates {
		if want[t.Name] {
			out = append(out, t)
			delete(want, t.Name)
		}
	}
	for n := range want {
		return nil, fmt.Errorf("unknown template %q", n)
	}
	return out, nil
}
