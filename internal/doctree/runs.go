package doctree

import "github.com/beevik/etree"

// Elements that may sit between runs without affecting their text or
// formatting. They neither break a run span nor hold content.
var transparent = map[string]bool{
	"proofErr":           true,
	"bookmarkStart":      true,
	"bookmarkEnd":        true,
	"permStart":          true,
	"permEnd":            true,
	"commentRangeStart":  true,
	"commentRangeEnd":    true,
	"moveFromRangeStart": true,
	"moveFromRangeEnd":   true,
	"moveToRangeStart":   true,
	"moveToRangeEnd":     true,
}

// IsTransparent reports whether e is zero-width markup that may appear
// between runs of a paragraph.
func IsTransparent(e *etree.Element) bool {
	return e != nil && e.Space == W && transparent[e.Tag]
}

// RunProps returns the w:rPr of a run, or nil.
func RunProps(run *etree.Element) *etree.Element {
	return Child(run, "rPr")
}

// IsTextOnly reports whether every child of run is w:rPr or w:t.
func IsTextOnly(run *etree.Element) bool {
	for _, c := range run.ChildElements() {
		if !Is(c, "rPr") && !Is(c, "t") {
			return false
		}
	}
	return true
}

// RunText concatenates the direct w:t children of run.
func RunText(run *etree.Element) string {
	var s string
	for _, c := range Children(run, KindText) {
		s += c.Text()
	}
	return s
}

// PropsKey serializes a run's w:rPr for equality comparisons. Runs without
// properties share the empty key.
func PropsKey(run *etree.Element) string {
	pr := RunProps(run)
	if pr == nil {
		return ""
	}
	doc := etree.NewDocumentWithRoot(pr.Copy())
	s, err := doc.WriteToString()
	if err != nil {
		return ""
	}
	return s
}
