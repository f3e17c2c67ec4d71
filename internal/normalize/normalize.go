// Package normalize repairs attribute values that some upstream editors
// write outside the WordprocessingML schema and collapses fragmented runs so
// placeholders split across runs become matchable.
package normalize

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/beevik/etree"

	"github.com/dgallion1/docslot/internal/doctree"
)

// MergeMode selects how adjacent runs are merged.
type MergeMode int

const (
	// MergeAll concatenates every span of adjacent text-only runs into the
	// first run of the span. Formatting of the later runs is lost.
	MergeAll MergeMode = iota
	// MergeSameFormat only merges runs whose properties are identical.
	MergeSameFormat
	// MergeOff disables run merging.
	MergeOff
)

func (m MergeMode) String() string {
	switch m {
	case MergeAll:
		return "all"
	case MergeSameFormat:
		return "same-format"
	case MergeOff:
		return "off"
	}
	return fmt.Sprintf("MergeMode(%d)", int(m))
}

// ParseMergeMode maps a configuration value to a MergeMode.
func ParseMergeMode(s string) (MergeMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all":
		return MergeAll, nil
	case "same-format", "same_format", "sameformat":
		return MergeSameFormat, nil
	case "off", "none", "false":
		return MergeOff, nil
	}
	return MergeAll, fmt.Errorf("unknown merge mode %q", s)
}

// Options controls a normalization pass.
type Options struct {
	Merge MergeMode
}

// Report counts what a pass changed. Running Normalize on its own output
// yields a zero Report.
type Report struct {
	AttributeFixes int `json:"attribute_fixes"`
	RunsMerged     int `json:"runs_merged"`
}

var floatInt = regexp.MustCompile(`^-?[0-9]+\.0$`)

// Elements whose w:val is a boolean that some writers emit as 0/1.
var onOffElements = map[string]bool{
	"tblheader": true,
	"cantsplit": true,
	"bidi":      true,
	"rtl":       true,
	"nowrap":    true,
}

// Revision-tracking ids that are dropped outright.
var deniedAttrs = map[string]bool{
	"paraId": true,
	"textId": true,
}

// Normalize repairs attributes across the whole document part and then
// merges runs according to opts. It never fails.
func Normalize(tree *doctree.Tree, opts Options) Report {
	var r Report
	r.AttributeFixes = repairAttributes(tree.Root())
	if opts.Merge != MergeOff {
		for _, p := range doctree.Descendants(tree.Body(), doctree.KindParagraph) {
			r.RunsMerged += mergeRuns(p, opts.Merge)
		}
	}
	return r
}

func repairAttributes(root *etree.Element) int {
	fixes := 0
	var walk func(*etree.Element)
	walk = func(e *etree.Element) {
		fixes += repairElement(e)
		for _, c := range e.ChildElements() {
			walk(c)
		}
	}
	walk(root)
	return fixes
}

func repairElement(e *etree.Element) int {
	fixes := 0
	kept := e.Attr[:0]
	for _, a := range e.Attr {
		if deniedAttrs[a.Key] {
			fixes++
			continue
		}
		switch {
		case floatInt.MatchString(a.Value):
			a.Value = strings.TrimSuffix(a.Value, ".0")
			fixes++
		case a.Key == "val" && (a.Value == "0" || a.Value == "1") && onOffElements[strings.ToLower(e.Tag)]:
			if a.Value == "1" {
				a.Value = "true"
			} else {
				a.Value = "false"
			}
			fixes++
		}
		kept = append(kept, a)
	}
	e.Attr = kept
	return fixes
}

// span is a run of merge candidates inside one paragraph.
type span struct {
	head   *etree.Element
	key    string
	text   strings.Builder
	merged []*etree.Element
}

func (s *span) flush() int {
	if s.head == nil || len(s.merged) == 0 {
		s.head = nil
		return 0
	}
	for _, t := range doctree.Children(s.head, doctree.KindText) {
		doctree.Detach(t)
	}
	doctree.Append(s.head, doctree.NewText(s.text.String()))
	for _, r := range s.merged {
		doctree.Detach(r)
	}
	n := len(s.merged)
	s.head, s.merged = nil, nil
	return n
}

func (s *span) start(run *etree.Element, key string) {
	s.head = run
	s.key = key
	s.merged = nil
	s.text.Reset()
	s.text.WriteString(doctree.RunText(run))
}

// mergeRuns collapses adjacent text-only runs among the direct children of
// p. Transparent markup between them is kept in place; anything else ends
// the current span.
func mergeRuns(p *etree.Element, mode MergeMode) int {
	var s span
	merged := 0
	for _, c := range p.ChildElements() {
		switch {
		case doctree.KindOf(c) == doctree.KindRun && doctree.IsTextOnly(c):
			key := ""
			if mode == MergeSameFormat {
				key = doctree.PropsKey(c)
			}
			if s.head == nil || key != s.key {
				merged += s.flush()
				s.start(c, key)
				continue
			}
			s.text.WriteString(doctree.RunText(c))
			s.merged = append(s.merged, c)
		case doctree.IsTransparent(c):
		default:
			merged += s.flush()
		}
	}
	merged += s.flush()
	return merged
}
