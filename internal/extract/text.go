// Package extract pulls the readable text out of fetched HTML pages.
package extract

import (
	"strings"

	"golang.org/x/net/html"
)

// skipped elements never contribute text
var skipped = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"iframe":   true,
	"template": true,
	"svg":      true,
	"head":     true,
}

// chrome elements are dropped when falling back to the whole <body>
var chrome = map[string]bool{
	"nav":    true,
	"header": true,
	"footer": true,
	"aside":  true,
	"form":   true,
}

// block elements end a run of text
var block = map[string]bool{
	"p": true, "div": true, "br": true, "li": true, "tr": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"section": true, "article": true, "blockquote": true, "pre": true,
	"ul": true, "ol": true, "table": true, "hr": true, "dd": true, "dt": true,
}

// contentIDs are element ids that hold the main text on common sites
var contentIDs = []string{"mw-content-text", "content", "main-content"}

// VisibleText returns the readable text of an HTML document.
// <article> or <main> is preferred over the whole body; block elements
// become line breaks so sentences from different paragraphs never run together.
func VisibleText(htmlContent string) (string, error) {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return "", err
	}

	root, dropChrome := contentRoot(doc)

	var buf strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if skipped[n.Data] || (dropChrome && chrome[n.Data]) || isHidden(n) {
				return
			}
		}

		if n.Type == html.TextNode {
			if text := strings.TrimSpace(n.Data); text != "" {
				buf.WriteString(text)
				buf.WriteString(" ")
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}

		if n.Type == html.ElementNode && block[n.Data] {
			buf.WriteString("\n")
		}
	}

	walk(root)
	return tidyLines(buf.String()), nil
}

// Title returns the document <title>, or "" if none
func Title(htmlContent string) string {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return ""
	}
	n := findFirst(doc, func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.Data == "title"
	})
	if n == nil || n.FirstChild == nil {
		return ""
	}
	return strings.TrimSpace(n.FirstChild.Data)
}

// IsHTMLDocument reports whether s looks like a full HTML page rather than
// text that merely contains inline markup
func IsHTMLDocument(s string) bool {
	head := strings.ToLower(strings.TrimSpace(s))
	if len(head) > 1024 {
		head = head[:1024]
	}
	return strings.HasPrefix(head, "<!doctype html") ||
		strings.HasPrefix(head, "<html") ||
		strings.Contains(head, "<head>") ||
		strings.Contains(head, "<body")
}

// contentRoot picks the subtree holding the main text. The second result
// reports whether page chrome should still be filtered out.
func contentRoot(doc *html.Node) (*html.Node, bool) {
	for _, tag := range []string{"article", "main"} {
		if n := findFirst(doc, isElement(tag)); n != nil {
			return n, false
		}
	}

	for _, id := range contentIDs {
		if n := findFirst(doc, func(n *html.Node) bool {
			return n.Type == html.ElementNode && attr(n, "id") == id
		}); n != nil {
			return n, false
		}
	}

	if body := findFirst(doc, isElement("body")); body != nil {
		return body, true
	}
	return doc, true
}

func isElement(tag string) func(*html.Node) bool {
	return func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.Data == tag
	}
}

func isHidden(n *html.Node) bool {
	for _, a := range n.Attr {
		switch a.Key {
		case "hidden":
			return true
		case "aria-hidden":
			if a.Val == "true" {
				return true
			}
		case "style":
			if strings.Contains(strings.ReplaceAll(a.Val, " ", ""), "display:none") {
				return true
			}
		}
	}
	return false
}

// attr gets an attribute value from a node
func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// findFirst finds the first node matching a predicate, depth first
func findFirst(n *html.Node, predicate func(*html.Node) bool) *html.Node {
	if predicate(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirst(c, predicate); found != nil {
			return found
		}
	}
	return nil
}

// tidyLines trims each line and drops empty ones
func tidyLines(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
