package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/fatih/color"

	"github.com/ppiankov/flagspan/internal/model"
)

// StdoutPath as an output path writes to standard output
const StdoutPath = "-"

// Renderer writes reports as JSON, Markdown or a terminal summary
type Renderer struct {
	excerptRadius int
	out           io.Writer
	colors        map[string]*color.Color
}

// NewRenderer creates a renderer. excerptRadius is the number of characters
// of context shown around each span in Markdown.
func NewRenderer(excerptRadius int, useColor bool) *Renderer {
	if !useColor {
		color.NoColor = true
	}
	if excerptRadius <= 0 {
		excerptRadius = 40
	}
	return &Renderer{
		excerptRadius: excerptRadius,
		out:           os.Stdout,
		colors: map[string]*color.Color{
			"green":  color.New(color.FgGreen),
			"yellow": color.New(color.FgYellow),
			"red":    color.New(color.FgRed),
			"cyan":   color.New(color.FgCyan),
			"faint":  color.New(color.Faint),
			"bold":   color.New(color.Bold),
		},
	}
}

// RenderJSON writes the report as indented JSON to path ("-" for stdout)
func (r *Renderer) RenderJSON(report *model.Report, path string) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	return r.write(path, append(data, '\n'))
}

// RenderMarkdown writes the report as Markdown to path ("-" for stdout)
func (r *Renderer) RenderMarkdown(report *model.Report, path string) error {
	return r.write(path, []byte(r.Markdown(report)))
}

func (r *Renderer) write(path string, data []byte) error {
	if path == StdoutPath {
		_, err := r.out.Write(data)
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	return os.WriteFile(path, data, 0644)
}

// Markdown renders the report: score, signals, a flag table and highlighted excerpts
func (r *Renderer) Markdown(report *model.Report) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# flagspan report: %s\n\n", escapeCell(report.Source))
	fmt.Fprintf(&b, "- Analyzed: %s\n", report.AnalyzedAt.Format("2006-01-02 15:04:05 UTC"))
	fmt.Fprintf(&b, "- Index: **%d/100** (confidence: %s)\n", report.Score.Index, report.Score.Confidence)
	fmt.Fprintf(&b, "- Characters: %d\n", utf8.RuneCountInString(report.Canonical))
	if d := report.Detection; d != nil {
		cached := ""
		if d.Cached {
			cached = ", cached"
		}
		fmt.Fprintf(&b, "- Detection: %s %s (AI probability %d%%%s)\n", d.Provider, d.Model, d.AIProbability, cached)
	}

	b.WriteString("\n## Signals\n\n")
	b.WriteString("| Signal | Severity | Description |\n|---|---|---|\n")
	for _, s := range report.Score.Signals {
		fmt.Fprintf(&b, "| %s | %s | %s |\n", s.Type, s.Severity, escapeCell(s.Description))
	}

	b.WriteString("\n## Flags\n\n")
	if len(report.Flags) == 0 {
		b.WriteString("No flags.\n")
		return b.String()
	}

	b.WriteString("| # | Type | Severity | Match | Confidence | Span |\n|---|---|---|---|---|---|\n")
	for i, f := range report.Flags {
		span := fmt.Sprintf("%d-%d", f.ResolvedStartIndex, f.ResolvedEndIndex)
		if f.DocumentWide {
			span = "document"
		}
		fmt.Fprintf(&b, "| %d | %s | %s | %s | %d → %d | %s |\n",
			i+1, f.Kind, f.Severity, f.MatchStrategy, f.Confidence, f.AdjustedConfidence, span)
	}

	b.WriteString("\n## Excerpts\n")
	for i, f := range report.Flags {
		fmt.Fprintf(&b, "\n### %d. %s (%s)\n\n", i+1, f.Kind, f.Severity)
		if f.DocumentWide {
			b.WriteString("> Entire text\n")
		} else {
			before, span, after := r.excerpt(report.Canonical, f.ResolvedStartIndex, f.ResolvedEndIndex)
			fmt.Fprintf(&b, "> %s**%s**%s\n", before, span, after)
		}
		if f.MatchStrategy != model.StrategyExact && !f.DocumentWide {
			fmt.Fprintf(&b, "\nClaimed: \"%s\"\n", f.ClaimedText)
		}
		if f.Explanation != "" {
			fmt.Fprintf(&b, "\n%s\n", f.Explanation)
		}
		if f.Suggestion != "" {
			fmt.Fprintf(&b, "\nSuggestion: %s\n", f.Suggestion)
		}
	}

	return b.String()
}

// RenderSummary prints a short colored summary
func (r *Renderer) RenderSummary(w io.Writer, report *model.Report) {
	indexColor := r.colors["green"]
	switch {
	case report.Score.Index >= 60:
		indexColor = r.colors["red"]
	case report.Score.Index >= 30:
		indexColor = r.colors["yellow"]
	}

	fmt.Fprintf(w, "%s %s\n", r.colors["bold"].Sprint("Source:"), report.Source)
	fmt.Fprintf(w, "%s %s (confidence: %s)\n",
		r.colors["bold"].Sprint("Index:"), indexColor.Sprintf("%d/100", report.Score.Index), report.Score.Confidence)
	if d := report.Detection; d != nil {
		fmt.Fprintf(w, "%s %s %s, AI probability %d%%\n", r.colors["bold"].Sprint("Detection:"), d.Provider, d.Model, d.AIProbability)
	}
	fmt.Fprintf(w, "%s %d\n", r.colors["bold"].Sprint("Flags:"), len(report.Flags))

	for _, f := range report.Flags {
		text := f.ResolvedText
		if !f.DocumentWide {
			text = truncate(text, 60)
		}
		fmt.Fprintf(w, "  %s %-24s %s %s\n",
			r.severityColor(f.Severity).Sprintf("%-8s", f.Severity),
			f.Kind,
			r.colors["faint"].Sprintf("[%s %d]", f.MatchStrategy, f.AdjustedConfidence),
			r.colors["cyan"].Sprintf("%q", text),
		)
	}
}

func (r *Renderer) severityColor(s model.Severity) *color.Color {
	switch s {
	case model.SeverityCritical, model.SeverityHigh:
		return r.colors["red"]
	case model.SeverityMedium:
		return r.colors["yellow"]
	default:
		return r.colors["green"]
	}
}

// excerpt returns up to excerptRadius characters of context on each side of [start, end)
func (r *Renderer) excerpt(canonical string, start, end int) (string, string, string) {
	before := []rune(canonical[:start])
	after := []rune(canonical[end:])

	prefix := ""
	if len(before) > r.excerptRadius {
		before = before[len(before)-r.excerptRadius:]
		prefix = "…"
	}
	suffix := ""
	if len(after) > r.excerptRadius {
		after = after[:r.excerptRadius]
		suffix = "…"
	}

	return prefix + string(before), canonical[start:end], string(after) + suffix
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}
