// Package tablectx renders a table as a markdown grid for prompts. Cells that
// hold slots show the slot tags as {{TAG}} tokens so a generator can tell
// which cells it is asked to fill.
package tablectx

import (
	"strings"

	"github.com/beevik/etree"

	"github.com/dgallion1/docslot/internal/doctree"
)

var cellEscaper = strings.NewReplacer("|", `\|`, "\r\n", " ", "\n", " ", "\r", " ")

// Token formats a slot tag the way Serialize renders it.
func Token(tag string) string {
	return "{{" + tag + "}}"
}

// Serialize renders tbl one line per row with a separator line after the
// first row. A table without rows renders as "".
func Serialize(tbl *etree.Element) string {
	rows := doctree.Rows(tbl)
	if len(rows) == 0 {
		return ""
	}
	var sb strings.Builder
	for i, row := range rows {
		cells := doctree.Cells(row)
		values := make([]string, len(cells))
		for j, cell := range cells {
			values[j] = cellText(cell)
		}
		writeLine(&sb, values)
		if i == 0 {
			sep := make([]string, len(cells))
			for j := range sep {
				sep[j] = "---"
			}
			writeLine(&sb, sep)
		}
	}
	return sb.String()
}

func writeLine(sb *strings.Builder, values []string) {
	sb.WriteString("| ")
	sb.WriteString(strings.Join(values, " | "))
	sb.WriteString(" |\n")
}

func cellText(cell *etree.Element) string {
	var tags []string
	seen := map[string]bool{}
	for _, sdt := range doctree.Slots(cell) {
		tag := doctree.SlotTag(sdt)
		if !seen[tag] {
			seen[tag] = true
			tags = append(tags, Token(tag))
		}
	}
	if len(tags) > 0 {
		return strings.Join(tags, " ")
	}
	var parts []string
	for _, p := range doctree.Descendants(cell, doctree.KindParagraph) {
		parts = append(parts, doctree.InnerText(p))
	}
	return cellEscaper.Replace(strings.Join(parts, " "))
}
