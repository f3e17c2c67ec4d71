package doctree

import "github.com/beevik/etree"

// Rows returns the rows of tbl, looking through row-level content controls.
func Rows(tbl *etree.Element) []*etree.Element {
	return throughSlots(tbl, KindRow)
}

// Cells returns the cells of row, looking through cell-level content controls.
func Cells(row *etree.Element) []*etree.Element {
	return throughSlots(row, KindCell)
}

func throughSlots(e *etree.Element, kind Kind) []*etree.Element {
	var out []*etree.Element
	for _, c := range e.ChildElements() {
		switch KindOf(c) {
		case kind:
			out = append(out, c)
		case KindSlot:
			if content := SlotContent(c); content != nil {
				out = append(out, throughSlots(content, kind)...)
			}
		}
	}
	return out
}
