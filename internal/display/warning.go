package display

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// Warning represents a user-facing warning message
type Warning struct {
	Title      string   // Main warning title
	Message    string   // Detailed explanation (optional)
	Files      []string // Related paths (optional)
	Suggestion string   // Action to take (optional)
}

// Display writes the warning to out, in yellow when useColor is set.
func (w Warning) Display(out io.Writer, useColor bool) {
	var b strings.Builder

	b.WriteString("Warning: ")
	b.WriteString(w.Title)
	b.WriteString("\n")

	if w.Message != "" {
		b.WriteString("    ")
		b.WriteString(w.Message)
		b.WriteString("\n")
	}

	if len(w.Files) > 0 {
		if len(w.Files) == 1 {
			b.WriteString("    Affected path:\n")
		} else {
			b.WriteString("    Affected paths:\n")
		}
		for i, file := range w.Files {
			fmt.Fprintf(&b, "      %d. %s\n", i+1, file)
		}
	}

	if w.Suggestion != "" {
		b.WriteString("    Suggestion:\n")
		b.WriteString("    ")
		b.WriteString(w.Suggestion)
		b.WriteString("\n")
	}

	if !useColor {
		fmt.Fprint(out, b.String())
		return
	}
	c := color.New(color.FgYellow)
	c.EnableColor()
	c.Fprint(out, b.String())
}

// WarnStaleFixtures creates a warning for fixture directories left behind by
// templates that were removed from the templates file.
func WarnStaleFixtures(fixturesDir string, names []string) Warning {
	return Warning{
		Title:      "Fixture directories without a template",
		Message:    fmt.Sprintf("%s contains generated projects that no template in the templates file owns", fixturesDir),
		Files:      names,
		Suggestion: "Delete them by hand, or list them with --template in 'templatecheck clean'",
	}
}
