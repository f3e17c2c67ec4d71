// Package plaintext produces plain-text views used in prompts: a heading
// outline of an uploaded .docx, and markdown or HTML reduced to text for
// cleaning generated values.
package plaintext

import "strings"

// Section is a heading and the text that follows it up to the next heading
// of the same or a higher level.
type Section struct {
	Title    string
	Level    int
	Text     string
	Children []*Section
}

// Outline is the heading structure of one document.
type Outline struct {
	Title    string
	Sections []*Section
}

// PlainText renders the outline as paragraphs separated by blank lines,
// headings included as their own paragraphs.
func (o *Outline) PlainText() string {
	var parts []string
	var walk func([]*Section)
	walk = func(ss []*Section) {
		for _, s := range ss {
			if s.Title != "" {
				parts = append(parts, s.Title)
			}
			if s.Text != "" {
				parts = append(parts, s.Text)
			}
			walk(s.Children)
		}
	}
	walk(o.Sections)
	return strings.Join(parts, "\n\n")
}

// builder assembles an outline from a flat stream of headings and text
// blocks. Text before the first heading lands in an untitled section.
type builder struct {
	root  *Section
	stack []*Section
	text  strings.Builder
}

func newBuilder() *builder {
	root := &Section{}
	return &builder{root: root, stack: []*Section{root}}
}

func (b *builder) heading(level int, title string) {
	b.flush()
	s := &Section{Title: title, Level: level}
	for len(b.stack) > 1 && b.stack[len(b.stack)-1].Level >= level {
		b.stack = b.stack[:len(b.stack)-1]
	}
	parent := b.stack[len(b.stack)-1]
	parent.Children = append(parent.Children, s)
	b.stack = append(b.stack, s)
}

func (b *builder) block(t string) {
	t = strings.TrimSpace(t)
	if t == "" {
		return
	}
	if b.text.Len() > 0 {
		b.text.WriteString("\n\n")
	}
	b.text.WriteString(t)
}

func (b *builder) flush() {
	t := strings.TrimSpace(b.text.String())
	b.text.Reset()
	if t == "" {
		return
	}
	top := b.stack[len(b.stack)-1]
	if top.Text != "" {
		top.Text += "\n\n" + t
	} else {
		top.Text = t
	}
}

func (b *builder) outline(title string) *Outline {
	b.flush()
	o := &Outline{Title: title, Sections: b.root.Children}
	if b.root.Text != "" {
		o.Sections = append([]*Section{{Text: b.root.Text}}, o.Sections...)
	}
	return o
}
