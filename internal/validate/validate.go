// Package validate checks a document tree against the subset of
// WordprocessingML schema rules that tagging, injection or upstream editors
// are known to break. It never modifies the tree.
package validate

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/beevik/etree"

	"github.com/dgallion1/docslot/internal/doctree"
)

// Violation is one broken rule.
type Violation struct {
	Location    string `json:"location"`
	Description string `json:"description"`
}

func (v Violation) String() string { return v.Location + ": " + v.Description }

var runParents = map[string]bool{
	"p": true, "sdtContent": true, "hyperlink": true, "ins": true, "del": true,
	"smartTag": true, "fldSimple": true, "customXml": true, "moveFrom": true, "moveTo": true,
	"rt": true, "rubyBase": true, "dir": true, "bdo": true,
}

var rowParents = map[string]bool{"tbl": true, "sdtContent": true, "customXml": true}

var cellParents = map[string]bool{"tr": true, "sdtContent": true, "customXml": true}

// Elements whose w:val is ST_OnOff.
var onOffElements = map[string]bool{
	"b": true, "bCs": true, "i": true, "iCs": true, "caps": true, "smallCaps": true,
	"strike": true, "dstrike": true, "outline": true, "shadow": true, "emboss": true,
	"imprint": true, "noProof": true, "snapToGrid": true, "vanish": true, "webHidden": true,
	"rtl": true, "bidi": true, "keepNext": true, "keepLines": true, "pageBreakBefore": true,
	"widowControl": true, "contextualSpacing": true, "tblHeader": true, "cantSplit": true,
	"noWrap": true, "hideMark": true,
}

var onOffValues = map[string]bool{"true": true, "false": true, "on": true, "off": true, "0": true, "1": true}

// Attributes (element -> attribute keys) that hold decimal numbers.
var decimalAttrs = map[string][]string{
	"sz":       {"val"},
	"szCs":     {"val"},
	"gridSpan": {"val"},
	"kern":     {"val"},
	"position": {"val"},
	"gridCol":  {"w"},
	"tcW":      {"w"},
	"tblW":     {"w"},
	"tblInd":   {"w"},
	"spacing":  {"before", "after", "line"},
	"ind":      {"left", "right", "start", "end", "hanging", "firstLine"},
}

// Validate returns every violation found under the document root, in
// document order.
func Validate(tree *doctree.Tree) []Violation {
	v := &validator{}
	v.walk(tree.Root())
	return v.out
}

type validator struct {
	out []Violation
}

func (v *validator) add(e *etree.Element, format string, args ...any) {
	v.out = append(v.out, Violation{Location: doctree.Path(e), Description: fmt.Sprintf(format, args...)})
}

func (v *validator) walk(e *etree.Element) {
	v.checkAttrs(e)
	if e.Space == doctree.W {
		v.checkElement(e)
	}
	for _, c := range e.ChildElements() {
		v.walk(c)
	}
}

func (v *validator) checkElement(e *etree.Element) {
	parent := e.Parent()
	switch e.Tag {
	case "r":
		if !wParentIn(parent, runParents) {
			v.add(e, "w:r is not allowed inside %s", name(parent))
		}
	case "t":
		if !doctree.Is(parent, "r") {
			v.add(e, "w:t is not allowed inside %s", name(parent))
		}
	case "tr":
		if !wParentIn(parent, rowParents) {
			v.add(e, "w:tr is not allowed inside %s", name(parent))
		}
	case "tc":
		if !wParentIn(parent, cellParents) {
			v.add(e, "w:tc is not allowed inside %s", name(parent))
		}
		kids := e.ChildElements()
		if len(kids) == 0 || !doctree.Is(kids[len(kids)-1], "p") {
			v.add(e, "table cell must end with a paragraph")
		}
	case "tbl":
		if len(doctree.Rows(e)) == 0 {
			v.add(e, "table has no rows")
		}
	case "sdt":
		v.checkSlot(e)
	}

	if onOffElements[e.Tag] {
		if val, ok := attr(e, "val"); ok && !onOffValues[val] {
			v.add(e, "w:val %q on w:%s is not a valid on/off value", val, e.Tag)
		}
	}
	for _, key := range decimalAttrs[e.Tag] {
		if val, ok := attr(e, key); ok && !isDecimal(val) {
			v.add(e, "w:%s %q on w:%s is not a decimal number", key, val, e.Tag)
		}
	}
}

func (v *validator) checkSlot(sdt *etree.Element) {
	kids := sdt.ChildElements()
	contents := 0
	for i, c := range kids {
		switch {
		case doctree.Is(c, "sdtContent"):
			contents++
		case doctree.Is(c, "sdtPr") && i != 0:
			v.add(sdt, "w:sdtPr must be the first child of w:sdt")
		}
	}
	if contents != 1 {
		v.add(sdt, "content control has %d w:sdtContent elements, want 1", contents)
	}
	pr := doctree.Child(sdt, "sdtPr")
	if pr == nil {
		return
	}
	for _, local := range []string{"tag", "alias"} {
		if c := doctree.Child(pr, local); c != nil {
			if _, ok := attr(c, "val"); !ok {
				v.add(c, "w:%s has no w:val", local)
			}
		}
	}
	if doctree.SlotTag(sdt) != "" && contents == 1 && len(doctree.TextLeaves(doctree.SlotContent(sdt))) == 0 {
		v.add(sdt, "tagged content control %q has no text", doctree.SlotTag(sdt))
	}
}

func (v *validator) checkAttrs(e *etree.Element) {
	for _, a := range e.Attr {
		if a.Key != "paraId" && a.Key != "textId" {
			continue
		}
		if a.Space == "" {
			v.add(e, "attribute %s is not namespace qualified", a.Key)
			continue
		}
		if !bound(e, a.Space) {
			v.add(e, "attribute %s:%s uses undeclared prefix %q", a.Space, a.Key, a.Space)
		}
	}
}

// bound reports whether prefix is declared on e or one of its ancestors.
func bound(e *etree.Element, prefix string) bool {
	for n := e; n != nil; n = n.Parent() {
		for _, a := range n.Attr {
			if a.Space == "xmlns" && a.Key == prefix {
				return true
			}
		}
	}
	return false
}

func attr(e *etree.Element, key string) (string, bool) {
	for _, a := range e.Attr {
		if a.Key == key && (a.Space == doctree.W || a.Space == "") {
			return a.Value, true
		}
	}
	return "", false
}

func isDecimal(s string) bool {
	s = strings.TrimSuffix(s, "%")
	_, err := strconv.Atoi(s)
	return err == nil
}

func wParentIn(p *etree.Element, allowed map[string]bool) bool {
	return p != nil && p.Space == doctree.W && allowed[p.Tag]
}

func name(e *etree.Element) string {
	if e == nil || e.Tag == "" {
		return "the document"
	}
	return e.FullTag()
}
