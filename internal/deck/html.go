package deck

import (
	"bytes"
	"strings"

	"github.com/ppiankov/deckcheck/internal/model"
	"golang.org/x/net/html"
)

// parseHTML treats every innermost <section> as a slide, the layout used by
// reveal.js and similar HTML exports. A page without sections is one slide.
func parseHTML(data []byte) ([]model.Slide, error) {
	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	var sections []*html.Node
	var find func(*html.Node)
	find = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "section" && !hasSection(n) {
			sections = append(sections, n)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			find(c)
		}
	}
	find(doc)

	if len(sections) == 0 {
		return []model.Slide{{Index: 1, Text: extractVisibleText(doc)}}, nil
	}

	slides := make([]model.Slide, len(sections))
	for i, s := range sections {
		slides[i] = model.Slide{Index: i + 1, Text: extractVisibleText(s)}
	}
	return slides, nil
}

func hasSection(n *html.Node) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == "section" {
			return true
		}
		if hasSection(c) {
			return true
		}
	}
	return false
}

// extractVisibleText extracts text nodes from HTML, skipping scripts/styles.
// Block-level elements start a new line so headings and bullets stay apart.
func extractVisibleText(n *html.Node) string {
	var lines []string
	var buf strings.Builder

	flush := func() {
		if line := strings.TrimSpace(buf.String()); line != "" {
			lines = append(lines, line)
		}
		buf.Reset()
	}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "iframe", "head", "aside":
				return
			}
		}

		if n.Type == html.TextNode {
			text := strings.TrimSpace(n.Data)
			if text != "" {
				buf.WriteString(text)
				buf.WriteString(" ")
			}
		}

		block := n.Type == html.ElementNode && isBlock(n.Data)
		if block {
			flush()
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if block {
			flush()
		}
	}

	walk(n)
	flush()
	return strings.Join(lines, "\n")
}

func isBlock(tag string) bool {
	switch tag {
	case "p", "div", "li", "ul", "ol", "h1", "h2", "h3", "h4", "h5", "h6",
		"br", "tr", "table", "section", "blockquote", "pre", "figcaption":
		return true
	}
	return false
}
