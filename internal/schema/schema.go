// Package schema reduces a document tree to the structural summary handed to
// mapping collaborators: paragraphs, tables, rows and cells with stable
// positional ids.
package schema

import (
	"encoding/json"
	"strconv"

	"github.com/beevik/etree"

	"github.com/dgallion1/docslot/internal/doctree"
)

// Node types.
const (
	TypeBody      = "Body"
	TypeParagraph = "Paragraph"
	TypeTable     = "Table"
	TypeRow       = "TableRow"
	TypeCell      = "TableCell"
)

// RootID is the id of the Body node.
const RootID = "root"

var idPrefix = map[doctree.Kind]string{
	doctree.KindParagraph: "p",
	doctree.KindTable:     "tbl",
	doctree.KindRow:       "tr",
	doctree.KindCell:      "tc",
}

// Node is one element of the structural summary.
type Node struct {
	ID       string  `json:"id"`
	Type     string  `json:"type"`
	Text     string  `json:"text,omitempty"`
	Children []*Node `json:"children,omitempty"`

	el *etree.Element
}

// Element returns the tree element the node was built from.
func (n *Node) Element() *etree.Element { return n.el }

// JSON renders the node as indented JSON.
func (n *Node) JSON() (string, error) {
	b, err := json.MarshalIndent(n, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Walk calls fn for n and every descendant in document order. Returning
// false from fn skips the node's children.
func (n *Node) Walk(fn func(*Node) bool) {
	if !fn(n) {
		return
	}
	for _, c := range n.Children {
		c.Walk(fn)
	}
}

// Find returns the descendant with the given id, or nil.
func (n *Node) Find(id string) *Node {
	var found *Node
	n.Walk(func(c *Node) bool {
		if found != nil {
			return false
		}
		if c.ID == id {
			found = c
			return false
		}
		return true
	})
	return found
}

// Extract builds the summary of tree. It does not modify the tree.
func Extract(tree *doctree.Tree) *Node {
	root := &Node{ID: RootID, Type: TypeBody, el: tree.Body()}
	counts := map[doctree.Kind]int{}
	visit(tree.Body(), root, counts)
	return root
}

// FindTable resolves a table id from Extract back to its element.
func FindTable(tree *doctree.Tree, id string) *etree.Element {
	n := Extract(tree).Find(id)
	if n == nil || n.Type != TypeTable {
		return nil
	}
	return n.el
}

// visit attaches the emitted descendants of e to parent. counts tracks how
// many siblings of each kind parent already has.
func visit(e *etree.Element, parent *Node, counts map[doctree.Kind]int) {
	for _, c := range e.ChildElements() {
		kind := doctree.KindOf(c)
		prefix, ok := idPrefix[kind]
		if !ok {
			visit(c, parent, counts)
			continue
		}
		id := prefix + strconv.Itoa(counts[kind])
		counts[kind]++
		if parent.ID != RootID {
			id = parent.ID + "/" + id
		}
		n := &Node{ID: id, Type: typeName(kind), el: c}
		if kind == doctree.KindParagraph {
			n.Text = doctree.InnerText(c)
		}
		parent.Children = append(parent.Children, n)
		visit(c, n, map[doctree.Kind]int{})
	}
}

func typeName(k doctree.Kind) string {
	switch k {
	case doctree.KindParagraph:
		return TypeParagraph
	case doctree.KindTable:
		return TypeTable
	case doctree.KindRow:
		return TypeRow
	case doctree.KindCell:
		return TypeCell
	}
	return k.String()
}
