// Package preview renders a structural HTML view of a document: paragraphs,
// tables and slots. It is not a layout renderer.
package preview

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/beevik/etree"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/dgallion1/docslot/internal/container"
	"github.com/dgallion1/docslot/internal/doctree"
)

const stylesheet = `body{font-family:sans-serif;max-width:50em;margin:2em auto}` +
	`table{border-collapse:collapse}td{border:1px solid #999;padding:.25em .5em}` +
	`.slot{background:#eef;border-bottom:1px dotted #66c}`

// Render returns the preview of a .docx document.
func Render(doc []byte, title string) ([]byte, error) {
	_, tree, err := container.Load(doc)
	if err != nil {
		return nil, err
	}
	return RenderTree(tree, title)
}

// RenderTree returns the preview of a decoded document part.
func RenderTree(tree *doctree.Tree, title string) ([]byte, error) {
	root := &html.Node{Type: html.DocumentNode}
	root.AppendChild(&html.Node{Type: html.DoctypeNode, Data: "html"})
	htmlEl := element(atom.Html)
	root.AppendChild(htmlEl)

	head := element(atom.Head)
	htmlEl.AppendChild(head)
	head.AppendChild(withAttr(element(atom.Meta), "charset", "utf-8"))
	t := element(atom.Title)
	t.AppendChild(text(title))
	head.AppendChild(t)
	style := element(atom.Style)
	style.AppendChild(text(stylesheet))
	head.AppendChild(style)

	body := element(atom.Body)
	htmlEl.AppendChild(body)
	blocks(body, tree.Body())

	var buf bytes.Buffer
	if err := html.Render(&buf, root); err != nil {
		return nil, fmt.Errorf("render preview: %w", err)
	}
	return buf.Bytes(), nil
}

func blocks(dst *html.Node, src *etree.Element) {
	for _, c := range src.ChildElements() {
		switch doctree.KindOf(c) {
		case doctree.KindParagraph:
			dst.AppendChild(paragraph(c))
		case doctree.KindTable:
			dst.AppendChild(table(c))
		case doctree.KindSlot:
			if content := doctree.SlotContent(c); content != nil {
				div := withAttr(element(atom.Div), "class", "slot")
				div.Attr = append(div.Attr, html.Attribute{Key: "data-tag", Val: doctree.SlotTag(c)})
				blocks(div, content)
				dst.AppendChild(div)
			}
		}
	}
}

func paragraph(p *etree.Element) *html.Node {
	n := element(atom.P)
	var style string
	if ppr := doctree.Child(p, "pPr"); ppr != nil {
		style = doctree.Val(ppr, "pStyle")
	}
	if strings.HasPrefix(style, "Heading") {
		switch strings.TrimPrefix(style, "Heading") {
		case "1":
			n = element(atom.H1)
		case "2":
			n = element(atom.H2)
		case "3":
			n = element(atom.H3)
		case "4":
			n = element(atom.H4)
		}
	}
	inline(n, p)
	return n
}

func inline(dst *html.Node, src *etree.Element) {
	for _, c := range src.ChildElements() {
		switch doctree.KindOf(c) {
		case doctree.KindRun:
			dst.AppendChild(run(c))
		case doctree.KindSlot:
			span := withAttr(element(atom.Span), "class", "slot")
			span.Attr = append(span.Attr, html.Attribute{Key: "data-tag", Val: doctree.SlotTag(c)})
			if content := doctree.SlotContent(c); content != nil {
				inline(span, content)
			}
			dst.AppendChild(span)
		case doctree.KindOther:
			// hyperlinks, insertions and similar wrappers
			inline(dst, c)
		}
	}
}

func run(r *etree.Element) *html.Node {
	var sb strings.Builder
	for _, c := range r.ChildElements() {
		switch {
		case doctree.Is(c, "t"):
			sb.WriteString(c.Text())
		case doctree.Is(c, "tab"):
			sb.WriteString("\t")
		}
	}
	n := text(sb.String())
	if doctree.Child(r, "br") != nil {
		frag := element(atom.Span)
		frag.AppendChild(n)
		frag.AppendChild(element(atom.Br))
		n = frag
	}
	props := doctree.RunProps(r)
	if props == nil {
		return n
	}
	if doctree.Child(props, "i") != nil {
		n = wrap(atom.Em, n)
	}
	if doctree.Child(props, "b") != nil {
		n = wrap(atom.Strong, n)
	}
	return n
}

func table(tbl *etree.Element) *html.Node {
	n := element(atom.Table)
	tb := element(atom.Tbody)
	n.AppendChild(tb)
	for _, row := range doctree.Rows(tbl) {
		tr := element(atom.Tr)
		for _, cell := range doctree.Cells(row) {
			td := element(atom.Td)
			blocks(td, cell)
			tr.AppendChild(td)
		}
		tb.AppendChild(tr)
	}
	return n
}

func element(a atom.Atom) *html.Node {
	return &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String()}
}

func text(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}

func withAttr(n *html.Node, key, val string) *html.Node {
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
	return n
}

func wrap(a atom.Atom, child *html.Node) *html.Node {
	n := element(a)
	n.AppendChild(child)
	return n
}
