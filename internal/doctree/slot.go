package doctree

import "github.com/beevik/etree"

// NewSlot builds an empty inline content control:
// w:sdt/w:sdtPr(w:alias, w:tag)/w:sdtContent.
func NewSlot(tag string) *etree.Element {
	sdt := New("sdt")
	pr := sdt.CreateElement(W + ":sdtPr")
	pr.CreateElement(W+":alias").CreateAttr(W+":val", tag)
	pr.CreateElement(W+":tag").CreateAttr(W+":val", tag)
	sdt.CreateElement(W + ":sdtContent")
	return sdt
}

// SlotTag returns the w:tag value of a content control, or "" when it has none.
func SlotTag(sdt *etree.Element) string {
	pr := Child(sdt, "sdtPr")
	if pr == nil {
		return ""
	}
	return Val(pr, "tag")
}

// SlotContent returns the w:sdtContent child of a content control.
func SlotContent(sdt *etree.Element) *etree.Element {
	return Child(sdt, "sdtContent")
}

// WrapInSlot inserts a new slot where run is and moves run into its content.
func WrapInSlot(run *etree.Element, tag string) *etree.Element {
	sdt := NewSlot(tag)
	InsertBefore(run, sdt)
	Append(SlotContent(sdt), run)
	return sdt
}

// Slots returns every tagged content control under e in document order.
func Slots(e *etree.Element) []*etree.Element {
	var out []*etree.Element
	for _, sdt := range Descendants(e, KindSlot) {
		if SlotTag(sdt) != "" {
			out = append(out, sdt)
		}
	}
	return out
}

// Tags returns the set of slot tags present under e.
func Tags(e *etree.Element) map[string]bool {
	tags := make(map[string]bool)
	for _, sdt := range Slots(e) {
		tags[SlotTag(sdt)] = true
	}
	return tags
}

// FillSlot writes value into the first text leaf of sdt and blanks the
// others. A slot without any leaf gets one appended to its first run, or a
// new run when it has none. Returns false when the slot has no content.
func FillSlot(sdt *etree.Element, value string) bool {
	content := SlotContent(sdt)
	if content == nil {
		return false
	}
	leaves := TextLeaves(content)
	if len(leaves) == 0 {
		run := Child(content, "r")
		if run == nil {
			run = New("r")
			Append(content, run)
		}
		leaf := NewText("")
		Append(run, leaf)
		leaves = []*etree.Element{leaf}
	}
	SetText(leaves[0], value)
	for _, l := range leaves[1:] {
		l.SetText("")
	}
	return true
}

// UnwrapSlots replaces every content control under e with the children of
// its content, innermost first, and returns how many were removed.
func UnwrapSlots(e *etree.Element) int {
	sdts := Descendants(e, KindSlot)
	for i := len(sdts) - 1; i >= 0; i-- {
		sdt := sdts[i]
		if content := SlotContent(sdt); content != nil {
			for _, c := range content.ChildElements() {
				InsertBefore(sdt, c)
			}
		}
		Detach(sdt)
	}
	return len(sdts)
}
