// Package tagger anchors slots in a document tree. Literal placeholders from
// a mapping are wrapped in tagged content controls, splitting runs where a
// placeholder is only part of a run's text; highlighted spans are grouped
// into generated-content slots.
package tagger

import (
	"fmt"
	"strings"

	"github.com/beevik/etree"

	"github.com/dgallion1/docslot/internal/doctree"
)

// MaxIterations bounds the matches acted on in one paragraph. Runs visited
// without a match do not count.
const MaxIterations = 1000

// Rule maps a literal pattern to a slot tag.
type Rule struct {
	Pattern string `json:"pattern" yaml:"pattern"`
	Tag     string `json:"tag" yaml:"tag"`
}

// Mapping is an ordered rule list. Order breaks ties between rules that
// match at the same offset with the same length.
type Mapping []Rule

// Tags returns the distinct tags of m in order.
func (m Mapping) Tags() []string {
	seen := make(map[string]bool, len(m))
	var out []string
	for _, r := range m {
		if !seen[r.Tag] {
			seen[r.Tag] = true
			out = append(out, r.Tag)
		}
	}
	return out
}

// match finds the rule whose pattern occurs earliest in text, preferring the
// longest pattern at equal offsets.
func (m Mapping) match(text string) (Rule, int, bool) {
	best, bestIdx := -1, 0
	for i, r := range m {
		idx := strings.Index(text, r.Pattern)
		if idx < 0 {
			continue
		}
		if best < 0 || idx < bestIdx || (idx == bestIdx && len(r.Pattern) > len(m[best].Pattern)) {
			best, bestIdx = i, idx
		}
	}
	if best < 0 {
		return Rule{}, 0, false
	}
	return m[best], bestIdx, true
}

// Anomaly describes a paragraph the tagger gave up on.
type Anomaly struct {
	Location    string `json:"location"`
	Description string `json:"description"`
}

// LiteralReport summarizes a TagLiterals pass.
type LiteralReport struct {
	Tagged    int       `json:"tagged"`
	Anomalies []Anomaly `json:"anomalies,omitempty"`
}

// TagLiterals wraps every occurrence of a mapping pattern in the direct runs
// of each paragraph in a slot carrying the rule's tag. Tagging of a paragraph
// that exceeds MaxIterations stops where it is; slots already anchored are
// kept and the paragraph is reported.
func TagLiterals(tree *doctree.Tree, mapping Mapping) LiteralReport {
	var rep LiteralReport
	if len(mapping) == 0 {
		return rep
	}
	body := tree.Body()
	for _, p := range doctree.Descendants(body, doctree.KindParagraph) {
		if doctree.Ancestor(p, doctree.KindBody) != body {
			continue
		}
		n, ok := tagParagraph(p, mapping)
		rep.Tagged += n
		if !ok {
			rep.Anomalies = append(rep.Anomalies, Anomaly{
				Location:    doctree.Path(p),
				Description: fmt.Sprintf("tagging did not settle after %d matches; rest of paragraph left untagged", MaxIterations),
			})
		}
	}
	return rep
}

func tagParagraph(p *etree.Element, mapping Mapping) (int, bool) {
	queue := doctree.Children(p, doctree.KindRun)
	tagged := 0
	for len(queue) > 0 {
		run := queue[0]
		queue = queue[1:]

		text := doctree.RunText(run)
		rule, idx, ok := mapping.match(text)
		if !ok {
			continue
		}
		if tagged == MaxIterations {
			return tagged, false
		}
		tagged++
		if text == rule.Pattern {
			doctree.WrapInSlot(run, rule.Tag)
			continue
		}
		before, match, after := splitRun(run, idx, idx+len(rule.Pattern))
		if before != nil {
			doctree.InsertBefore(run, before)
		}
		doctree.InsertBefore(run, match)
		doctree.WrapInSlot(match, rule.Tag)
		if after != nil {
			doctree.InsertBefore(run, after)
			queue = append([]*etree.Element{after}, queue...)
		}
		doctree.Detach(run)
	}
	return tagged, true
}

// splitRun builds detached copies of run holding the text before, inside
// and after the byte range [start, end). Each copy carries the run's
// properties. Non-text children go to the part their offset falls in; one
// sitting exactly on a boundary stays outside the match. before and after are
// nil when they would be empty.
func splitRun(run *etree.Element, start, end int) (before, match, after *etree.Element) {
	parts := [3]*etree.Element{newPart(run), newPart(run), newPart(run)}
	used := [3]bool{}
	ranges := [3][2]int{{0, start}, {start, end}, {end, -1}}

	offset := 0
	for _, c := range run.ChildElements() {
		switch {
		case doctree.Is(c, "rPr"):
		case doctree.Is(c, "t"):
			s := c.Text()
			for i, r := range ranges {
				lo, hi := max(r[0], offset), offset+len(s)
				if r[1] >= 0 {
					hi = min(hi, r[1])
				}
				if lo < hi {
					doctree.Append(parts[i], doctree.NewText(s[lo-offset:hi-offset]))
					used[i] = true
				}
			}
			offset += len(s)
		default:
			i := 1
			if offset <= start {
				i = 0
			} else if offset >= end {
				i = 2
			}
			doctree.Append(parts[i], doctree.Clone(c))
			used[i] = true
		}
	}
	if len(doctree.Children(parts[1], doctree.KindText)) == 0 {
		doctree.Append(parts[1], doctree.NewText(""))
	}
	if used[0] {
		before = parts[0]
	}
	if used[2] {
		after = parts[2]
	}
	return before, parts[1], after
}

func newPart(run *etree.Element) *etree.Element {
	part := doctree.Clone(run)
	for _, c := range part.ChildElements() {
		if !doctree.Is(c, "rPr") {
			part.RemoveChild(c)
		}
	}
	return part
}
