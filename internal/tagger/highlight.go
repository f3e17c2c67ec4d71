package tagger

import (
	"strconv"
	"strings"

	"github.com/beevik/etree"

	"github.com/dgallion1/docslot/internal/doctree"
)

// HighlightPrefix is the tag prefix of generated-content slots.
const HighlightPrefix = "AI_GEN_CONTENT_"

// Sequence hands out numbered tags, skipping any already in use.
type Sequence struct {
	prefix string
	n      int
	taken  map[string]bool
}

// NewSequence starts a sequence at 1. Tags in existing are never returned.
func NewSequence(prefix string, existing map[string]bool) *Sequence {
	taken := make(map[string]bool, len(existing))
	for k := range existing {
		taken[k] = true
	}
	return &Sequence{prefix: prefix, taken: taken}
}

// Next returns the next free tag.
func (s *Sequence) Next() string {
	for {
		s.n++
		tag := s.prefix + strconv.Itoa(s.n)
		if !s.taken[tag] {
			s.taken[tag] = true
			return tag
		}
	}
}

// Group is one highlighted span turned into a slot.
type Group struct {
	Tag  string `json:"tag"`
	Text string `json:"text"`
}

// Highlights lists the groups found by DetectHighlights in document order.
type Highlights struct {
	Groups []Group `json:"groups"`
}

// Map returns tag -> original text.
func (h Highlights) Map() map[string]string {
	m := make(map[string]string, len(h.Groups))
	for _, g := range h.Groups {
		m[g.Tag] = g.Text
	}
	return m
}

// Tags returns the group tags in order.
func (h Highlights) Tags() []string {
	out := make([]string, len(h.Groups))
	for i, g := range h.Groups {
		out[i] = g.Tag
	}
	return out
}

// DetectHighlights groups contiguous highlighted runs of each paragraph into
// a slot tagged from seq and strips the highlight from the moved runs.
// Transparent markup between highlighted runs does not split a group.
func DetectHighlights(tree *doctree.Tree, seq *Sequence) Highlights {
	var h Highlights
	for _, p := range doctree.Descendants(tree.Body(), doctree.KindParagraph) {
		var group []*etree.Element
		for _, c := range p.ChildElements() {
			switch {
			case highlighted(c):
				group = append(group, c)
			case doctree.IsTransparent(c):
			default:
				if len(group) > 0 {
					h.Groups = append(h.Groups, wrapGroup(group, seq.Next()))
					group = nil
				}
			}
		}
		if len(group) > 0 {
			h.Groups = append(h.Groups, wrapGroup(group, seq.Next()))
		}
	}
	return h
}

func highlighted(e *etree.Element) bool {
	if doctree.KindOf(e) != doctree.KindRun {
		return false
	}
	pr := doctree.RunProps(e)
	if pr == nil {
		return false
	}
	hl := doctree.Child(pr, "highlight")
	if hl == nil || hl.SelectAttrValue(doctree.W+":val", "") == "none" {
		return false
	}
	return strings.TrimSpace(doctree.InnerText(e)) != ""
}

func wrapGroup(runs []*etree.Element, tag string) Group {
	sdt := doctree.NewSlot(tag)
	doctree.InsertBefore(runs[0], sdt)
	content := doctree.SlotContent(sdt)

	var sb strings.Builder
	for _, r := range runs {
		sb.WriteString(doctree.InnerText(r))
		pr := doctree.RunProps(r)
		if hl := doctree.Child(pr, "highlight"); hl != nil {
			pr.RemoveChild(hl)
		}
		doctree.Append(content, r)
	}
	return Group{Tag: tag, Text: sb.String()}
}
