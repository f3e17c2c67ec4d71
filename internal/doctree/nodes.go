package doctree

import (
	"strconv"
	"strings"

	"github.com/beevik/etree"
)

// Is reports whether e is the w-namespace element with the given local name.
func Is(e *etree.Element, local string) bool {
	return e != nil && e.Space == W && e.Tag == local
}

// New returns a detached w-namespace element.
func New(local string) *etree.Element {
	return etree.NewElement(W + ":" + local)
}

// Child returns the first child element with the given local name.
func Child(e *etree.Element, local string) *etree.Element {
	for _, c := range e.ChildElements() {
		if Is(c, local) {
			return c
		}
	}
	return nil
}

// Children returns all child elements of the given kind.
func Children(e *etree.Element, kind Kind) []*etree.Element {
	var out []*etree.Element
	for _, c := range e.ChildElements() {
		if KindOf(c) == kind {
			out = append(out, c)
		}
	}
	return out
}

// Descendants returns every descendant of e of the given kind in document
// order. The result is a snapshot; mutating the tree does not affect it.
func Descendants(e *etree.Element, kind Kind) []*etree.Element {
	var out []*etree.Element
	var walk func(*etree.Element)
	walk = func(n *etree.Element) {
		for _, c := range n.ChildElements() {
			if KindOf(c) == kind {
				out = append(out, c)
			}
			walk(c)
		}
	}
	walk(e)
	return out
}

// Ancestor returns the nearest ancestor of e of the given kind, or nil.
func Ancestor(e *etree.Element, kind Kind) *etree.Element {
	for p := e.Parent(); p != nil; p = p.Parent() {
		if KindOf(p) == kind {
			return p
		}
	}
	return nil
}

// Val returns the w:val attribute of the named child, or "".
func Val(e *etree.Element, local string) string {
	c := Child(e, local)
	if c == nil {
		return ""
	}
	return c.SelectAttrValue(W+":val", "")
}

// TextLeaves returns the w:t descendants of e (including e itself when it is
// a w:t).
func TextLeaves(e *etree.Element) []*etree.Element {
	if KindOf(e) == KindText {
		return []*etree.Element{e}
	}
	return Descendants(e, KindText)
}

// InnerText concatenates the text of every w:t under e.
func InnerText(e *etree.Element) string {
	var sb strings.Builder
	for _, t := range TextLeaves(e) {
		sb.WriteString(t.Text())
	}
	return sb.String()
}

// SetText replaces the text of a w:t leaf, marking it space-preserving when
// the value has leading or trailing whitespace.
func SetText(leaf *etree.Element, s string) {
	leaf.SetText(s)
	if s != strings.TrimSpace(s) {
		leaf.CreateAttr("xml:space", "preserve")
	}
}

// NewText returns a detached w:t leaf holding s.
func NewText(s string) *etree.Element {
	t := New("t")
	SetText(t, s)
	return t
}

// Path returns an indexed location such as /w:document/w:body/w:tbl[0]/w:tr[1].
// Indexes count preceding siblings with the same tag.
func Path(e *etree.Element) string {
	var segs []string
	for n := e; n != nil && n.Tag != ""; n = n.Parent() {
		seg := n.FullTag()
		if p := n.Parent(); p != nil && p.Tag != "" {
			idx := 0
			for _, s := range p.ChildElements() {
				if s == n {
					break
				}
				if s.Space == n.Space && s.Tag == n.Tag {
					idx++
				}
			}
			seg += "[" + strconv.Itoa(idx) + "]"
		}
		segs = append(segs, seg)
	}
	for i, j := 0, len(segs)-1; i < j; i, j = i+1, j-1 {
		segs[i], segs[j] = segs[j], segs[i]
	}
	return "/" + strings.Join(segs, "/")
}
