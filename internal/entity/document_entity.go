package entity

import (
	"errors"
	"fmt"
	"strings"

	"ai-review-be/pkg/utils"
)

var ErrInvalidDocument = errors.New("invalid document")

type Sentence struct {
	ID    string `json:"id"`
	Text  string `json:"text"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

type Paragraph struct {
	ID        string     `json:"id"`
	SectionID string     `json:"section_id"`
	Text      string     `json:"text"`
	Sentences []Sentence `json:"sentences,omitempty"`
}

func (p Paragraph) WordCount() int {
	return utils.WordCount(p.Text)
}

// HasSentence reports whether the sentence id belongs to this paragraph.
func (p Paragraph) HasSentence(id string) bool {
	for _, s := range p.Sentences {
		if s.ID == id {
			return true
		}
	}
	return false
}

type Section struct {
	ID         string      `json:"id"`
	Title      string      `json:"title"`
	Level      int         `json:"level"`
	Paragraphs []Paragraph `json:"paragraphs"`
}

// Document is the read-only input shared by every stage. It is never mutated
// after NewDocument returns, so concurrent readers need no locking.
type Document struct {
	id         string
	title      string
	sections   []Section
	paragraphs []Paragraph
	index      map[string]int
}

func NewDocument(id, title string, sections []Section) (*Document, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: empty document id", ErrInvalidDocument)
	}

	d := &Document{
		id:       id,
		title:    title,
		sections: make([]Section, 0, len(sections)),
		index:    make(map[string]int),
	}

	seenSections := make(map[string]bool, len(sections))
	for _, sec := range sections {
		if sec.ID == "" {
			return nil, fmt.Errorf("%w: section without id", ErrInvalidDocument)
		}
		if seenSections[sec.ID] {
			return nil, fmt.Errorf("%w: duplicate section id %q", ErrInvalidDocument, sec.ID)
		}
		seenSections[sec.ID] = true

		copied := Section{ID: sec.ID, Title: sec.Title, Level: sec.Level, Paragraphs: make([]Paragraph, 0, len(sec.Paragraphs))}
		for _, p := range sec.Paragraphs {
			if p.ID == "" {
				return nil, fmt.Errorf("%w: paragraph without id in section %q", ErrInvalidDocument, sec.ID)
			}
			if _, dup := d.index[p.ID]; dup {
				return nil, fmt.Errorf("%w: duplicate paragraph id %q", ErrInvalidDocument, p.ID)
			}
			for _, s := range p.Sentences {
				if s.Start < 0 || s.End > len(p.Text) || s.Start > s.End {
					return nil, fmt.Errorf("%w: sentence %q out of paragraph %q bounds", ErrInvalidDocument, s.ID, p.ID)
				}
			}
			p.SectionID = sec.ID
			p.Sentences = append([]Sentence(nil), p.Sentences...)
			copied.Paragraphs = append(copied.Paragraphs, p)
			d.index[p.ID] = len(d.paragraphs)
			d.paragraphs = append(d.paragraphs, p)
		}
		d.sections = append(d.sections, copied)
	}

	return d, nil
}

func (d *Document) ID() string {
	return d.id
}

func (d *Document) Title() string {
	return d.title
}

// Sections returns the sections in document order. Callers must not modify the result.
func (d *Document) Sections() []Section {
	return d.sections
}

// Paragraphs returns every paragraph in document order. Callers must not modify the result.
func (d *Document) Paragraphs() []Paragraph {
	return d.paragraphs
}

func (d *Document) Paragraph(id string) (Paragraph, bool) {
	i, ok := d.index[id]
	if !ok {
		return Paragraph{}, false
	}
	return d.paragraphs[i], true
}

func (d *Document) Section(id string) (Section, bool) {
	for _, s := range d.sections {
		if s.ID == id {
			return s, true
		}
	}
	return Section{}, false
}

func (d *Document) WordCount() int {
	total := 0
	for _, p := range d.paragraphs {
		total += p.WordCount()
	}
	return total
}

// TextWithIDs renders the document as "[p_id] text" lines grouped under section headings.
func (d *Document) TextWithIDs() string {
	var sb strings.Builder
	for _, sec := range d.sections {
		if len(sec.Paragraphs) == 0 {
			continue
		}
		if sec.Title != "" {
			sb.WriteString("## ")
			sb.WriteString(sec.Title)
			sb.WriteString("\n\n")
		}
		for _, p := range sec.Paragraphs {
			fmt.Fprintf(&sb, "[%s] %s\n\n", p.ID, p.Text)
		}
	}
	return strings.TrimSpace(sb.String())
}

func (d *Document) FullText() string {
	texts := make([]string, len(d.paragraphs))
	for i, p := range d.paragraphs {
		texts[i] = p.Text
	}
	return strings.Join(texts, "\n\n")
}

// LocateQuote returns the span of the first literal occurrence of quote inside
// the paragraph text.
func (d *Document) LocateQuote(paragraphID, quote string) (start, end int, ok bool) {
	p, found := d.Paragraph(paragraphID)
	if !found || quote == "" {
		return 0, 0, false
	}
	i := strings.Index(p.Text, quote)
	if i < 0 {
		return 0, 0, false
	}
	return i, i + len(quote), true
}
