package schema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/docslot/internal/doctree"
)

const body = `<w:p><w:r><w:t>Title</w:t></w:r></w:p>` +
	`<w:tbl><w:tr><w:tc><w:p><w:r><w:t>A</w:t></w:r></w:p></w:tc></w:tr></w:tbl>` +
	`<w:sdt><w:sdtContent><w:p><w:r><w:t>Inside </w:t></w:r><w:r><w:t>control</w:t></w:r></w:p></w:sdtContent></w:sdt>` +
	`<w:tbl><w:tr><w:tc><w:p/></w:tc><w:tc><w:p><w:r><w:t>[X]</w:t></w:r></w:p><w:p/></w:tc></w:tr></w:tbl>`

func TestExtract_IDsAndText(t *testing.T) {
	tree, err := doctree.ParseBody(body)
	require.NoError(t, err)
	before := tree.String()

	root := Extract(tree)
	assert.Equal(t, RootID, root.ID)
	assert.Equal(t, TypeBody, root.Type)

	var ids []string
	root.Walk(func(n *Node) bool {
		ids = append(ids, n.ID)
		return true
	})
	assert.Equal(t, []string{
		"root",
		"p0",
		"tbl0", "tbl0/tr0", "tbl0/tr0/tc0", "tbl0/tr0/tc0/p0",
		"p1",
		"tbl1", "tbl1/tr0", "tbl1/tr0/tc0", "tbl1/tr0/tc0/p0",
		"tbl1/tr0/tc1", "tbl1/tr0/tc1/p0", "tbl1/tr0/tc1/p1",
	}, ids)

	assert.Equal(t, "Inside control", root.Find("p1").Text)
	assert.Equal(t, "[X]", root.Find("tbl1/tr0/tc1/p0").Text)
	assert.Empty(t, root.Find("tbl1").Text)
	assert.Equal(t, before, tree.String())
}

func TestExtract_JSON(t *testing.T) {
	tree, err := doctree.ParseBody(`<w:p><w:r><w:t>Hi</w:t></w:r></w:p>`)
	require.NoError(t, err)

	out, err := Extract(tree).JSON()
	require.NoError(t, err)

	var decoded struct {
		ID       string `json:"id"`
		Type     string `json:"type"`
		Children []struct {
			ID   string `json:"id"`
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"children"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, "root", decoded.ID)
	require.Len(t, decoded.Children, 1)
	assert.Equal(t, "Paragraph", decoded.Children[0].Type)
	assert.Equal(t, "Hi", decoded.Children[0].Text)
}

func TestFindTable(t *testing.T) {
	tree, err := doctree.ParseBody(body)
	require.NoError(t, err)

	tbl := FindTable(tree, "tbl1")
	require.NotNil(t, tbl)
	assert.Equal(t, "[X]", doctree.InnerText(tbl))

	assert.Nil(t, FindTable(tree, "p0"))
	assert.Nil(t, FindTable(tree, "tbl9"))
}
