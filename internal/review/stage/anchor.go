package stage

import (
	"fmt"

	"ai-review-be/internal/entity"
)

// ValidateAnchors checks every anchor of f against the document and returns
// the finding with resolved spans. A non-empty reason means the finding must
// be dropped. Sentence ids that do not belong to the paragraph are cleared
// rather than rejected.
func ValidateAnchors(doc *entity.Document, f entity.Finding, scope func(string) bool) (entity.Finding, string) {
	if len(f.Anchors) == 0 {
		return f, "no anchors"
	}

	anchors := make([]entity.Anchor, len(f.Anchors))
	for i, a := range f.Anchors {
		resolved, reason := resolveAnchor(doc, a, scope)
		if reason != "" {
			return f, reason
		}
		anchors[i] = resolved
	}
	f.Anchors = anchors

	if f.ProposedEdit != nil {
		edit := *f.ProposedEdit
		if resolved, reason := resolveAnchor(doc, edit.Anchor, scope); reason == "" {
			edit.Anchor = resolved
		} else {
			edit.Anchor = anchors[0]
		}
		f.ProposedEdit = &edit
	}
	return f, ""
}

func resolveAnchor(doc *entity.Document, a entity.Anchor, scope func(string) bool) (entity.Anchor, string) {
	p, ok := doc.Paragraph(a.ParagraphID)
	if !ok {
		return a, fmt.Sprintf("unknown paragraph %q", a.ParagraphID)
	}
	if scope != nil && !scope(a.ParagraphID) {
		return a, fmt.Sprintf("paragraph %q is outside the reviewed chunk", a.ParagraphID)
	}
	start, end, ok := doc.LocateQuote(a.ParagraphID, a.QuotedText)
	if !ok {
		return a, fmt.Sprintf("quote not found in paragraph %q", a.ParagraphID)
	}
	a.Start, a.End = start, end
	if a.SentenceID != "" && !p.HasSentence(a.SentenceID) {
		a.SentenceID = ""
	}
	return a, ""
}
