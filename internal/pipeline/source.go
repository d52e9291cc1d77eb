package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ppiankov/flagspan/internal/extract"
)

// StdinRef is the source reference that reads standard input
const StdinRef = "-"

// Source is a loaded document before sanitizing
type Source struct {
	Ref   string // As given: path, URL or "-"
	Name  string // Display name: path, final URL or "stdin"
	Text  string // Raw text; HTML pages are reduced to their visible text
	Title string // HTML <title>, if any
}

// IsURL reports whether ref is an http(s) URL
func IsURL(ref string) bool {
	lower := strings.ToLower(ref)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// LoadSource reads ref: "-" is stdin, an http(s) URL is fetched, anything else is a file
func (p *Pipeline) LoadSource(ctx context.Context, ref string) (*Source, error) {
	switch {
	case ref == StdinRef:
		data, err := io.ReadAll(io.LimitReader(p.stdin, p.config.HTTP.MaxBodyBytes))
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return p.fromBody(ref, "stdin", string(data), false)

	case IsURL(ref):
		result, err := p.fetcher.FetchWithRetry(ctx, ref)
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", ref, err)
		}
		return p.fromBody(ref, result.FinalURL, result.Body, result.IsHTML())

	default:
		data, err := os.ReadFile(ref)
		if err != nil {
			return nil, fmt.Errorf("read file: %w", err)
		}
		ext := strings.ToLower(filepath.Ext(ref))
		return p.fromBody(ref, ref, string(data), ext == ".html" || ext == ".htm")
	}
}

// fromBody reduces full HTML documents to visible text. Fragments with inline
// markup are left for the sanitizer.
func (p *Pipeline) fromBody(ref, name, body string, labelledHTML bool) (*Source, error) {
	src := &Source{Ref: ref, Name: name, Text: body}

	if labelledHTML || extract.IsHTMLDocument(body) {
		text, err := extract.VisibleText(body)
		if err != nil {
			return nil, fmt.Errorf("extract text: %w", err)
		}
		src.Text = text
		src.Title = extract.Title(body)
	}

	return src, nil
}
