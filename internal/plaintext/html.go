package plaintext

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
)

// FromHTML builds the outline of an HTML document. The <title> element, when
// present, overrides title.
func FromHTML(r io.Reader, title string) (*Outline, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	if t := findTitle(doc); t != "" {
		title = t
	}

	b := newBuilder()
	var inline strings.Builder
	flush := func() {
		for _, line := range strings.Split(inline.String(), "\n") {
			b.block(strings.Join(strings.Fields(line), " "))
		}
		inline.Reset()
	}
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			inline.WriteString(n.Data)
			return
		case html.ElementNode:
			if level := htmlHeadingLevel(n.Data); level > 0 {
				flush()
				b.heading(level, textContent(n))
				return
			}
			switch n.Data {
			case "script", "style", "head", "template":
				return
			case "br":
				inline.WriteString("\n")
				return
			}
			if blockElements[n.Data] {
				flush()
				defer flush()
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	flush()
	return b.outline(title), nil
}

// HTMLText reduces an HTML fragment to its text.
func HTMLText(s string) string {
	o, err := FromHTML(strings.NewReader(s), "")
	if err != nil {
		return s
	}
	return o.PlainText()
}

var blockElements = map[string]bool{
	"p": true, "div": true, "li": true, "ul": true, "ol": true, "tr": true, "td": true, "th": true,
	"table": true, "blockquote": true, "pre": true, "dt": true, "dd": true, "section": true,
	"article": true, "body": true,
}

func htmlHeadingLevel(tag string) int {
	if len(tag) == 2 && tag[0] == 'h' && tag[1] >= '1' && tag[1] <= '6' {
		return int(tag[1] - '0')
	}
	return 0
}

func textContent(n *html.Node) string {
	var buf strings.Builder
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(n)
	return strings.Join(strings.Fields(buf.String()), " ")
}

func findTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.Data == "title" {
		return textContent(n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := findTitle(c); t != "" {
			return t
		}
	}
	return ""
}
