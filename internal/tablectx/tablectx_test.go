package tablectx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"

	"github.com/dgallion1/docslot/internal/doctree"
)

func slot(tag, inner string) string {
	return `<w:sdt><w:sdtPr><w:alias w:val="` + tag + `"/><w:tag w:val="` + tag + `"/></w:sdtPr>` +
		`<w:sdtContent><w:r><w:t>` + inner + `</w:t></w:r></w:sdtContent></w:sdt>`
}

func table(t *testing.T, inner string) *doctree.Tree {
	t.Helper()
	tree, err := doctree.ParseBody(`<w:tbl>` + inner + `</w:tbl>`)
	require.NoError(t, err)
	return tree
}

func TestSerialize(t *testing.T) {
	tree := table(t, `<w:tr><w:tc><w:p><w:r><w:t>Policy Type</w:t></w:r></w:p></w:tc><w:tc><w:p><w:r><w:t>Premium</w:t></w:r></w:p></w:tc></w:tr>`+
		`<w:tr><w:tc><w:p><w:r><w:t>General</w:t></w:r></w:p></w:tc><w:tc><w:p>`+slot("AI_GEN_CONTENT_1", "calc")+`</w:p></w:tc></w:tr>`)

	got := Serialize(doctree.Descendants(tree.Body(), doctree.KindTable)[0])
	assert.Equal(t, "| Policy Type | Premium |\n| --- | --- |\n| General | {{AI_GEN_CONTENT_1}} |\n", got)
}

func TestSerialize_EscapingAndMultipleSlots(t *testing.T) {
	tree := table(t, `<w:tr><w:tc><w:p><w:r><w:t>a|b</w:t></w:r></w:p><w:p><w:r><w:t>second</w:t></w:r></w:p></w:tc>`+
		`<w:tc><w:p>`+slot("A", "x")+`<w:r><w:t> and </w:t></w:r>`+slot("B", "y")+`</w:p></w:tc></w:tr>`)

	got := Serialize(doctree.Descendants(tree.Body(), doctree.KindTable)[0])
	assert.Equal(t, "| a\\|b second | {{A}} {{B}} |\n| --- | --- |\n", got)
}

func TestSerialize_Empty(t *testing.T) {
	tree := table(t, `<w:tblPr/>`)
	assert.Equal(t, "", Serialize(doctree.Descendants(tree.Body(), doctree.KindTable)[0]))
}

func TestSerialize_ParsesAsMarkdownTable(t *testing.T) {
	tree := table(t, `<w:tr><w:tc><w:p><w:r><w:t>H1</w:t></w:r></w:p></w:tc><w:tc><w:p><w:r><w:t>H2</w:t></w:r></w:p></w:tc></w:tr>`+
		`<w:tr><w:tc><w:p><w:r><w:t>x|y</w:t></w:r></w:p></w:tc><w:tc><w:p>`+slot("T1", "v")+`</w:p></w:tc></w:tr>`+
		`<w:tr><w:tc><w:p/></w:tc><w:tc><w:p>`+slot("T2", "w")+`</w:p></w:tc></w:tr>`)
	src := []byte(Serialize(doctree.Descendants(tree.Body(), doctree.KindTable)[0]))

	md := goldmark.New(goldmark.WithExtensions(extension.Table))
	doc := md.Parser().Parse(text.NewReader(src))

	var tables, headers, rows, cells int
	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n.Kind() {
		case extast.KindTable:
			tables++
		case extast.KindTableHeader:
			headers++
		case extast.KindTableRow:
			rows++
		case extast.KindTableCell:
			cells++
		}
		return ast.WalkContinue, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, tables)
	assert.Equal(t, 1, headers)
	assert.Equal(t, 2, rows)
	assert.Equal(t, 6, cells)
}

func TestSerialize_RowLevelContentControl(t *testing.T) {
	tree := table(t, `<w:tr><w:tc><w:p><w:r><w:t>H</w:t></w:r></w:p></w:tc></w:tr>`+
		`<w:sdt><w:sdtPr/><w:sdtContent><w:tr><w:tc><w:p><w:r><w:t>inside</w:t></w:r></w:p></w:tc></w:tr></w:sdtContent></w:sdt>`)
	got := Serialize(doctree.Descendants(tree.Body(), doctree.KindTable)[0])
	assert.Equal(t, "| H |\n| --- |\n| inside |\n", got)
}
