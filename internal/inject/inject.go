// Package inject writes values into tagged slots and expands template rows
// of tables from record lists.
package inject

import (
	"github.com/beevik/etree"

	"github.com/dgallion1/docslot/internal/doctree"
	"github.com/dgallion1/docslot/internal/schema"
)

// Values writes values[tag] into every slot carrying tag, in document
// order. The first text leaf of a slot gets the value and the other leaves
// are blanked; runs are kept. It returns the number of slots written.
func Values(tree *doctree.Tree, values map[string]string) int {
	if len(values) == 0 {
		return 0
	}
	return fill(tree.Body(), values)
}

func fill(e *etree.Element, values map[string]string) int {
	n := 0
	for _, sdt := range doctree.Slots(e) {
		v, ok := values[doctree.SlotTag(sdt)]
		if !ok {
			continue
		}
		if doctree.FillSlot(sdt, v) {
			n++
		}
	}
	return n
}

// TableStatus is the outcome of a Table call.
type TableStatus string

const (
	StatusNotFound      TableStatus = "not_found"
	StatusNoTemplateRow TableStatus = "no_template_row"
	StatusNoRecords     TableStatus = "no_records"
	StatusExpanded      TableStatus = "expanded"
)

// Target picks the table Table expands. The zero value is FirstMatch.
type Target struct {
	// TableID is a schema table id such as "tbl1". Empty means first match.
	TableID string
}

// FirstMatch targets the first table in document order that holds a slot
// whose tag is a key of the first record.
var FirstMatch = Target{}

// TableResult reports what Table did.
type TableResult struct {
	Status  TableStatus `json:"status"`
	TableID string      `json:"table_id,omitempty"`
	Rows    int         `json:"rows"`
}

// Table replaces the data rows of the target table with one clone of its
// template row (index 1) per record, in record order. The header row is
// kept. Missing tables, tables with fewer than two rows and empty record
// lists are reported in the result and leave the tree unchanged, except that
// an explicit target with no records loses its data rows.
func Table(tree *doctree.Tree, records []map[string]string, target Target) TableResult {
	root := schema.Extract(tree)

	var tbl *etree.Element
	var id string
	if target.TableID != "" {
		if n := root.Find(target.TableID); n != nil && n.Type == schema.TypeTable {
			tbl, id = n.Element(), n.ID
		}
	} else {
		if len(records) == 0 {
			return TableResult{Status: StatusNoRecords}
		}
		root.Walk(func(n *schema.Node) bool {
			if tbl != nil {
				return false
			}
			if n.Type == schema.TypeTable && holdsAny(n.Element(), records[0]) {
				tbl, id = n.Element(), n.ID
				return false
			}
			return true
		})
	}
	if tbl == nil {
		return TableResult{Status: StatusNotFound}
	}

	rows := doctree.Rows(tbl)
	if len(rows) < 2 {
		return TableResult{Status: StatusNoTemplateRow, TableID: id, Rows: len(rows)}
	}
	template := doctree.Clone(rows[1])
	for _, r := range rows[1:] {
		doctree.Detach(r)
	}
	if len(records) == 0 {
		return TableResult{Status: StatusNoRecords, TableID: id, Rows: 1}
	}

	anchor := rows[0]
	for _, rec := range records {
		row := doctree.Clone(template)
		fill(row, rec)
		if anchor.Parent() == tbl {
			doctree.InsertAfter(anchor, row)
		} else {
			doctree.Append(tbl, row)
		}
		anchor = row
	}
	return TableResult{Status: StatusExpanded, TableID: id, Rows: 1 + len(records)}
}

func holdsAny(tbl *etree.Element, record map[string]string) bool {
	for _, sdt := range doctree.Slots(tbl) {
		if _, ok := record[doctree.SlotTag(sdt)]; ok {
			return true
		}
	}
	return false
}
