package container

import (
	"archive/zip"
	"bytes"
	"fmt"

	"github.com/dgallion1/docslot/internal/doctree"
)

const contentTypesXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">` +
	`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>` +
	`<Default Extension="xml" ContentType="application/xml"/>` +
	`<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>` +
	`</Types>`

const packageRelsXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
	`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>` +
	`</Relationships>`

const documentRelsXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"></Relationships>`

// sampleBody is a title whose placeholder is fragmented across three
// identically formatted runs, followed by a two-row policy table whose second
// row is the template row.
const sampleBody = `<w:p>` +
	`<w:r><w:rPr><w:b/><w:color w:val="FF0000"/></w:rPr><w:t xml:space="preserve">Annual Review for </w:t></w:r>` +
	`<w:r><w:rPr><w:b/><w:color w:val="FF0000"/></w:rPr><w:t>[CLIENT</w:t></w:r>` +
	`<w:r><w:rPr><w:b/><w:color w:val="FF0000"/></w:rPr><w:t>_NAME]</w:t></w:r>` +
	`</w:p>` +
	`<w:tbl><w:tblPr><w:tblW w:w="0" w:type="auto"/></w:tblPr>` +
	`<w:tr><w:tc><w:p><w:r><w:t>Policy Type</w:t></w:r></w:p></w:tc><w:tc><w:p><w:r><w:t>Premium</w:t></w:r></w:p></w:tc></w:tr>` +
	`<w:tr><w:tc><w:p><w:r><w:t>[POLICY_TYPE]</w:t></w:r></w:p></w:tc><w:tc><w:p><w:r><w:t>[PREMIUM_AMOUNT]</w:t></w:r></w:p></w:tc></w:tr>` +
	`</w:tbl>` +
	`<w:p><w:r><w:rPr><w:highlight w:val="yellow"/></w:rPr><w:t>Executive Summary</w:t></w:r></w:p>` +
	`<w:sectPr/>`

// Build assembles a minimal .docx around the given document part.
func Build(documentXML []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	parts := []struct {
		name string
		data []byte
	}{
		{"[Content_Types].xml", []byte(contentTypesXML)},
		{"_rels/.rels", []byte(packageRelsXML)},
		{DocumentPart, documentXML},
		{"word/_rels/document.xml.rels", []byte(documentRelsXML)},
	}
	for _, p := range parts {
		fw, err := w.Create(p.name)
		if err != nil {
			return nil, fmt.Errorf("create %s: %w", p.name, err)
		}
		if _, err := fw.Write(p.data); err != nil {
			return nil, fmt.Errorf("write %s: %w", p.name, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("finalize container: %w", err)
	}
	return buf.Bytes(), nil
}

// Sample returns the sample template.
func Sample() ([]byte, error) {
	return Build(doctree.DocumentXML(sampleBody))
}
