// Package report renders a harness run as Markdown and HTML.
package report

import (
	"bytes"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/harrison/templatecheck/internal/filelock"
	"github.com/harrison/templatecheck/internal/models"
)

// maxOutputLines bounds the subprocess output quoted per failure.
const maxOutputLines = 20

// RenderMarkdown renders run as a Markdown document. The output depends
// only on run, so identical runs render identically.
func RenderMarkdown(run *models.RunResult) string {
	var sb strings.Builder

	sb.WriteString("# Template validation report\n\n")
	fmt.Fprintf(&sb, "- **Run:** `%s`\n", run.RunID)
	fmt.Fprintf(&sb, "- **Revision:** `%s`\n", run.Revision)
	fmt.Fprintf(&sb, "- **Started:** %s\n", run.StartedAt.UTC().Format("2006-01-02 15:04:05 UTC"))
	fmt.Fprintf(&sb, "- **Duration:** %s\n", formatDuration(run.Duration))
	fmt.Fprintf(&sb, "- **Result:** %s\n", status(run))

	if run.Total == 0 {
		sb.WriteString("\nNo templates were validated.\n")
		return sb.String()
	}

	sb.WriteString("\n## Cases\n\n")
	sb.WriteString("| Template |")
	for _, kind := range models.CaseKinds {
		fmt.Fprintf(&sb, " %s |", kind)
	}
	sb.WriteString("\n| --- |")
	for range models.CaseKinds {
		sb.WriteString(" --- |")
	}
	sb.WriteString("\n")

	for _, row := range groupByTemplate(run.Cases) {
		fmt.Fprintf(&sb, "| %s |", escapeCell(row.name))
		for _, kind := range models.CaseKinds {
			c, ok := row.cases[kind]
			if !ok {
				sb.WriteString(" - |")
				continue
			}
			fmt.Fprintf(&sb, " %s (%s) |", c.Status(), formatDuration(c.Duration))
		}
		sb.WriteString("\n")
	}

	failed := run.FailedCases()
	if len(failed) == 0 {
		return sb.String()
	}

	sb.WriteString("\n## Failures\n")
	for _, c := range failed {
		fmt.Fprintf(&sb, "\n### %s\n\n", c.Label())
		writeFenced(&sb, c.Message)
		if out := lastLines(c.Output, maxOutputLines); out != "" {
			sb.WriteString("\nOutput (tail):\n\n")
			writeFenced(&sb, out)
		}
	}
	return sb.String()
}

// RenderHTML converts a Markdown report into a standalone HTML page.
func RenderHTML(title string, markdown []byte) ([]byte, error) {
	md := goldmark.New(goldmark.WithExtensions(extension.Table))

	var body bytes.Buffer
	if err := md.Convert(markdown, &body); err != nil {
		return nil, fmt.Errorf("render markdown: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&buf, "<title>%s</title>\n", html.EscapeString(title))
	buf.WriteString("</head>\n<body>\n")
	buf.Write(body.Bytes())
	buf.WriteString("</body>\n</html>\n")
	return buf.Bytes(), nil
}

// Writer stores reports under Dir.
type Writer struct {
	Dir string
}

// Paths of the files written for one run.
type Paths struct {
	Markdown string
	HTML     string
}

// Write renders run and writes <run-id>.md and <run-id>.html atomically,
// then refreshes latest.md and latest.html.
func (w *Writer) Write(run *models.RunResult) (*Paths, error) {
	if run == nil {
		return nil, fmt.Errorf("run cannot be nil")
	}
	if err := os.MkdirAll(w.Dir, 0755); err != nil {
		return nil, fmt.Errorf("create report directory: %w", err)
	}

	markdown := []byte(RenderMarkdown(run))
	page, err := RenderHTML("Template validation "+run.RunID, markdown)
	if err != nil {
		return nil, err
	}

	name := run.RunID
	if name == "" {
		name = run.StartedAt.UTC().Format("20060102-150405")
	}
	paths := &Paths{
		Markdown: filepath.Join(w.Dir, name+".md"),
		HTML:     filepath.Join(w.Dir, name+".html"),
	}

	files := []struct {
		path string
		data []byte
	}{
		{paths.Markdown, markdown},
		{paths.HTML, page},
		{filepath.Join(w.Dir, "latest.md"), markdown},
		{filepath.Join(w.Dir, "latest.html"), page},
	}
	for _, f := range files {
		if err := filelock.AtomicWrite(f.path, f.data); err != nil {
			return nil, fmt.Errorf("write %s: %w", filepath.Base(f.path), err)
		}
	}
	return paths, nil
}

type templateRow struct {
	name  string
	cases map[models.CaseKind]models.CaseResult
}

// groupByTemplate keeps templates in first-seen order.
func groupByTemplate(cases []models.CaseResult) []templateRow {
	var rows []templateRow
	index := make(map[string]int)
	for _, c := range cases {
		i, ok := index[c.Template.Name]
		if !ok {
			i = len(rows)
			index[c.Template.Name] = i
			rows = append(rows, templateRow{name: c.Template.Name, cases: make(map[models.CaseKind]models.CaseResult)})
		}
		rows[i].cases[c.Kind] = c
	}
	return rows
}

func status(run *models.RunResult) string {
	word := "PASSED"
	if !run.OK() {
		word = "FAILED"
	}
	return fmt.Sprintf("%s (%d/%d cases passed)", word, run.Passed, run.Total)
}

func formatDuration(d time.Duration) string {
	return d.Round(100 * time.Millisecond).String()
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

// writeFenced writes s as a code block whose fence cannot clash with s.
func writeFenced(sb *strings.Builder, s string) {
	fence := "```"
	for strings.Contains(s, fence) {
		fence += "`"
	}
	fmt.Fprintf(sb, "%s\n%s\n%s\n", fence, strings.TrimRight(s, "\n"), fence)
}

func lastLines(s string, n int) string {
	s = strings.TrimRight(s, "\n")
	if s == "" {
		return ""
	}
	lines := strings.Split(s, "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
