// Package doctree holds the WordprocessingML document part as a mutable
// element tree. Elements are *etree.Element values; this package classifies
// them and provides the small set of reshaping primitives the pipeline uses.
package doctree

import (
	"errors"
	"fmt"

	"github.com/beevik/etree"
)

// W is the namespace prefix of the WordprocessingML main namespace.
const W = "w"

// Namespace URIs declared on documents built by DocumentXML.
const (
	NamespaceW   = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"
	NamespaceR   = "http://schemas.openxmlformats.org/officeDocument/2006/relationships"
	NamespaceW14 = "http://schemas.microsoft.com/office/word/2010/wordml"
	NamespaceMC  = "http://schemas.openxmlformats.org/markup-compatibility/2006"
)

// ErrNoBody is returned when the document part has no w:body element.
var ErrNoBody = errors.New("document part has no w:body")

// Kind classifies an element of the tree.
type Kind int

const (
	KindOther Kind = iota
	KindBody
	KindTable
	KindRow
	KindCell
	KindParagraph
	KindRun
	KindText
	KindSlot
)

var kindNames = [...]string{
	KindOther:     "Other",
	KindBody:      "Body",
	KindTable:     "Table",
	KindRow:       "TableRow",
	KindCell:      "TableCell",
	KindParagraph: "Paragraph",
	KindRun:       "Run",
	KindText:      "Text",
	KindSlot:      "Slot",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

var kindByTag = map[string]Kind{
	"body": KindBody,
	"tbl":  KindTable,
	"tr":   KindRow,
	"tc":   KindCell,
	"p":    KindParagraph,
	"r":    KindRun,
	"t":    KindText,
	"sdt":  KindSlot,
}

// KindOf reports the kind of e. Elements outside the w namespace are KindOther.
func KindOf(e *etree.Element) Kind {
	if e == nil || e.Space != W {
		return KindOther
	}
	return kindByTag[e.Tag]
}

// Tree is one decoded document part.
type Tree struct {
	doc  *etree.Document
	body *etree.Element
}

// Parse decodes a word/document.xml part.
func Parse(data []byte) (*Tree, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("decode document part: %w", err)
	}
	root := doc.Root()
	if root == nil {
		return nil, ErrNoBody
	}
	body := Child(root, "body")
	if body == nil {
		return nil, ErrNoBody
	}
	return &Tree{doc: doc, body: body}, nil
}

// ParseBody builds a tree from the inner XML of a w:body element.
func ParseBody(inner string) (*Tree, error) {
	return Parse(DocumentXML(inner))
}

// DocumentXML wraps inner body markup in a complete document part with the
// namespace declarations Word writes.
func DocumentXML(inner string) []byte {
	return []byte(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<w:document xmlns:w="` + NamespaceW + `" xmlns:r="` + NamespaceR +
		`" xmlns:w14="` + NamespaceW14 + `" xmlns:mc="` + NamespaceMC +
		`" mc:Ignorable="w14"><w:body>` + inner + `</w:body></w:document>`)
}

// Root returns the w:document element.
func (t *Tree) Root() *etree.Element { return t.doc.Root() }

// Body returns the w:body element.
func (t *Tree) Body() *etree.Element { return t.body }

// Bytes serializes the document part.
func (t *Tree) Bytes() ([]byte, error) {
	t.doc.WriteSettings.CanonicalText = true
	t.doc.WriteSettings.CanonicalAttrVal = true
	return t.doc.WriteToBytes()
}

// String serializes the document part, returning "" on failure. Used for
// diagnostics and equality checks in tests.
func (t *Tree) String() string {
	b, err := t.Bytes()
	if err != nil {
		return ""
	}
	return string(b)
}
