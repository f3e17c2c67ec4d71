// Package container reads and writes the zip package around a
// WordprocessingML document. Only word/document.xml is ever rewritten; every
// other part is copied through untouched.
package container

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/dgallion1/docslot/internal/doctree"
)

// DocumentPart is the name of the main document part.
const DocumentPart = "word/document.xml"

// maxPartSize bounds the decompressed size of the document part.
const maxPartSize = 256 << 20

var (
	// ErrCorrupt is returned when the bytes are not a readable zip package
	// or the document part is not well-formed XML.
	ErrCorrupt = errors.New("corrupt document container")
	// ErrNoDocumentPart is returned when the package has no word/document.xml.
	ErrNoDocumentPart = errors.New("container has no word/document.xml")
)

// Package is an opened .docx container.
type Package struct {
	src   []byte
	zr    *zip.Reader
	parts map[string]*zip.File
}

// Open indexes the parts of a .docx container held in memory.
func Open(data []byte) (*Package, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	pkg := &Package{src: data, zr: zr, parts: make(map[string]*zip.File, len(zr.File))}
	for _, f := range zr.File {
		pkg.parts[f.Name] = f
	}
	if _, ok := pkg.parts[DocumentPart]; !ok {
		return nil, ErrNoDocumentPart
	}
	return pkg, nil
}

// Parts lists the part names in archive order.
func (p *Package) Parts() []string {
	names := make([]string, 0, len(p.zr.File))
	for _, f := range p.zr.File {
		names = append(names, f.Name)
	}
	return names
}

// ReadPart returns the decompressed content of a part.
func (p *Package) ReadPart(name string) ([]byte, error) {
	f, ok := p.parts[name]
	if !ok {
		return nil, fmt.Errorf("part %q not found", name)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrCorrupt, name, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, maxPartSize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrCorrupt, name, err)
	}
	if len(data) > maxPartSize {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", ErrCorrupt, name, maxPartSize)
	}
	return data, nil
}

// Tree decodes the document part.
func (p *Package) Tree() (*doctree.Tree, error) {
	data, err := p.ReadPart(DocumentPart)
	if err != nil {
		return nil, err
	}
	tree, err := doctree.Parse(data)
	if err != nil {
		if errors.Is(err, doctree.ErrNoBody) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return tree, nil
}

// Save writes a new container: the serialized tree as the document part and
// every other part copied raw from the source.
func (p *Package) Save(tree *doctree.Tree) ([]byte, error) {
	xmlBytes, err := tree.Bytes()
	if err != nil {
		return nil, fmt.Errorf("serialize document part: %w", err)
	}

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, f := range p.zr.File {
		if f.Name != DocumentPart {
			if err := w.Copy(f); err != nil {
				return nil, fmt.Errorf("copy %s: %w", f.Name, err)
			}
			continue
		}
		fw, err := w.CreateHeader(&zip.FileHeader{Name: f.Name, Method: zip.Deflate, Modified: f.Modified})
		if err != nil {
			return nil, fmt.Errorf("create %s: %w", f.Name, err)
		}
		if _, err := fw.Write(xmlBytes); err != nil {
			return nil, fmt.Errorf("write %s: %w", f.Name, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("finalize container: %w", err)
	}
	return buf.Bytes(), nil
}

// Load opens data and decodes its document part in one step.
func Load(data []byte) (*Package, *doctree.Tree, error) {
	pkg, err := Open(data)
	if err != nil {
		return nil, nil, err
	}
	tree, err := pkg.Tree()
	if err != nil {
		return nil, nil, err
	}
	return pkg, tree, nil
}
