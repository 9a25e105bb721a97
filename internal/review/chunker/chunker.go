// Package chunker splits a document into analysis units that respect
// paragraph boundaries and carry read-only context from their neighbours.
package chunker

import (
	"fmt"
	"strings"

	"ai-review-be/internal/entity"
	"ai-review-be/pkg/utils"
)

const (
	DefaultContextSentences = 3

	contextMarker = "CONTEXT ONLY - DO NOT CRITIQUE"
)

type Mode string

const (
	ModeWords   Mode = "words"
	ModeSection Mode = "section"
)

// TargetWords maps a review depth to the word budget of a word-bounded chunk.
func TargetWords(depth entity.Depth) int {
	switch depth {
	case entity.DepthQuick:
		return 1800
	case entity.DepthDeep:
		return 1200
	default:
		return 1500
	}
}

type ContextSource string

const (
	ContextPrevious ContextSource = "previous"
	ContextNext     ContextSource = "next"
)

// ContextWindow holds neighbour sentences that may be read but never critiqued.
type ContextWindow struct {
	Sentences []string
	Source    ContextSource
}

func (w *ContextWindow) Empty() bool {
	return w == nil || len(w.Sentences) == 0
}

func (w *ContextWindow) render() string {
	return fmt.Sprintf("[%s: %s]", contextMarker, strings.Join(w.Sentences, " "))
}

type Chunk struct {
	Mode       Mode
	Index      int
	Total      int
	Section    *entity.Section
	Paragraphs []entity.Paragraph
	WordCount  int
	Before     *ContextWindow
	After      *ContextWindow
}

// ParagraphIDs lists the primary paragraphs in order.
func (c Chunk) ParagraphIDs() []string {
	ids := make([]string, len(c.Paragraphs))
	for i, p := range c.Paragraphs {
		ids[i] = p.ID
	}
	return ids
}

// Contains reports whether the paragraph is part of the chunk proper. Context
// paragraphs never count.
func (c Chunk) Contains(paragraphID string) bool {
	for _, p := range c.Paragraphs {
		if p.ID == paragraphID {
			return true
		}
	}
	return false
}

// Text renders the chunk for a prompt: section heading, context markers and
// "[p_id] text" lines for the primary paragraphs.
func (c Chunk) Text() string {
	var sb strings.Builder
	if c.Section != nil && c.Section.Title != "" {
		fmt.Fprintf(&sb, "## %s\n\n", c.Section.Title)
	}
	if !c.Before.Empty() {
		sb.WriteString(c.Before.render())
		sb.WriteString("\n\n")
	}
	for _, p := range c.Paragraphs {
		fmt.Fprintf(&sb, "[%s] %s\n\n", p.ID, p.Text)
	}
	if !c.After.Empty() {
		sb.WriteString(c.After.render())
	}
	return strings.TrimSpace(sb.String())
}

// ByWords groups paragraphs in document order until the next paragraph would
// push the chunk over targetWords. A paragraph is never split, so a single
// oversized paragraph forms its own chunk.
func ByWords(doc *entity.Document, targetWords, contextSentences int) []Chunk {
	var chunks []Chunk
	var current []entity.Paragraph
	currentWords := 0

	flush := func() {
		if len(current) == 0 {
			return
		}
		chunks = append(chunks, Chunk{
			Mode:       ModeWords,
			Index:      len(chunks),
			Paragraphs: current,
			WordCount:  currentWords,
		})
		current = nil
		currentWords = 0
	}

	for _, p := range doc.Paragraphs() {
		words := p.WordCount()
		if currentWords+words > targetWords && len(current) > 0 {
			flush()
		}
		current = append(current, p)
		currentWords += words
	}
	flush()

	return finalize(chunks, contextSentences)
}

// BySection emits one chunk per section that has at least one paragraph.
func BySection(doc *entity.Document, contextSentences int) []Chunk {
	var chunks []Chunk
	for _, sec := range doc.Sections() {
		if len(sec.Paragraphs) == 0 {
			continue
		}
		section := sec
		words := 0
		for _, p := range sec.Paragraphs {
			words += p.WordCount()
		}
		chunks = append(chunks, Chunk{
			Mode:       ModeSection,
			Index:      len(chunks),
			Section:    &section,
			Paragraphs: sec.Paragraphs,
			WordCount:  words,
		})
	}
	return finalize(chunks, contextSentences)
}

// finalize stamps the total and attaches context once the full split is known.
func finalize(chunks []Chunk, contextSentences int) []Chunk {
	for i := range chunks {
		chunks[i].Total = len(chunks)
		if contextSentences <= 0 {
			continue
		}
		if i > 0 {
			if s := lastSentences(chunks[i-1].Paragraphs, contextSentences); len(s) > 0 {
				chunks[i].Before = &ContextWindow{Sentences: s, Source: ContextPrevious}
			}
		}
		if i < len(chunks)-1 {
			if s := firstSentences(chunks[i+1].Paragraphs, contextSentences); len(s) > 0 {
				chunks[i].After = &ContextWindow{Sentences: s, Source: ContextNext}
			}
		}
	}
	return chunks
}

func sentencesOf(p entity.Paragraph) []string {
	if len(p.Sentences) == 0 {
		return utils.SplitSentences(p.Text)
	}
	out := make([]string, 0, len(p.Sentences))
	for _, s := range p.Sentences {
		if t := strings.TrimSpace(s.Text); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func lastSentences(paragraphs []entity.Paragraph, n int) []string {
	var out []string
	for i := len(paragraphs) - 1; i >= 0 && len(out) < n; i-- {
		s := sentencesOf(paragraphs[i])
		for j := len(s) - 1; j >= 0 && len(out) < n; j-- {
			out = append([]string{s[j]}, out...)
		}
	}
	return out
}

func firstSentences(paragraphs []entity.Paragraph, n int) []string {
	var out []string
	for _, p := range paragraphs {
		for _, s := range sentencesOf(p) {
			if len(out) >= n {
				return out
			}
			out = append(out, s)
		}
	}
	return out
}
