package doctree

import "github.com/beevik/etree"

// The reshaping primitives below are the only way the pipeline changes the
// shape of a tree. Each one detaches the node it attaches first, so a node
// never has two parents.

// Detach removes e from its parent. Detaching a root is a no-op.
func Detach(e *etree.Element) {
	if p := e.Parent(); p != nil {
		p.RemoveChild(e)
	}
}

// InsertBefore places n immediately before ref under ref's parent.
func InsertBefore(ref, n *etree.Element) {
	p := ref.Parent()
	if p == nil {
		return
	}
	Detach(n)
	p.InsertChildAt(ref.Index(), n)
}

// InsertAfter places n immediately after ref under ref's parent.
func InsertAfter(ref, n *etree.Element) {
	p := ref.Parent()
	if p == nil {
		return
	}
	Detach(n)
	p.InsertChildAt(ref.Index()+1, n)
}

// Append adds n as the last child of parent.
func Append(parent, n *etree.Element) {
	Detach(n)
	parent.AddChild(n)
}

// Replace puts n where old is and detaches old.
func Replace(old, n *etree.Element) {
	if old == n {
		return
	}
	InsertBefore(old, n)
	Detach(old)
}

// Clone returns a deep, parentless copy of e.
func Clone(e *etree.Element) *etree.Element {
	return e.Copy()
}
