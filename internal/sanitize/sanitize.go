// Package sanitize normalizes raw text into the canonical form that all
// reconciled flag offsets address.
package sanitize

import (
	"regexp"
	"strings"
)

var (
	tagPattern       = regexp.MustCompile(`<[^>]*>`)
	attributePattern = regexp.MustCompile(`(?:data-[\w-]+|class)="[^"]*"`)
	spacePattern     = regexp.MustCompile(`[\s\v\p{Z}\x{FEFF}]+`)
)

// entities are decoded in this order; &amp; is last so "&amp;lt;" yields "&lt;"
var entities = []struct{ from, to string }{
	{"&quot;", `"`},
	{"&apos;", "'"},
	{"&lt;", "<"},
	{"&gt;", ">"},
	{"&amp;", "&"},
}

// Sanitize strips markup, decodes the five standard entities, removes stray
// data-*/class attributes, collapses whitespace runs to one space and trims.
func Sanitize(raw string) string {
	if raw == "" {
		return ""
	}

	text := tagPattern.ReplaceAllString(raw, "")

	for _, e := range entities {
		text = strings.ReplaceAll(text, e.from, e.to)
	}

	text = attributePattern.ReplaceAllString(text, "")
	text = spacePattern.ReplaceAllString(text, " ")

	return strings.TrimSpace(text)
}

// Words splits sanitized text on whitespace
func Words(s string) []string {
	return strings.Fields(s)
}
