package stage

import (
	"math"
	"strings"

	"ai-review-be/internal/entity"
	"ai-review-be/internal/pkg/logger"
)

type RawAnchor struct {
	ParagraphID string `json:"paragraph_id"`
	SentenceID  string `json:"sentence_id"`
	QuotedText  string `json:"quoted_text"`
}

type RawEdit struct {
	Type       string     `json:"type"`
	Anchor     *RawAnchor `json:"anchor"`
	NewText    *string    `json:"new_text"`
	Rationale  string     `json:"rationale"`
	Suggestion string     `json:"suggestion"`
}

// RawFinding is a finding as models return it. Anchors arrive either as an
// array or as flat paragraph_id/quoted_text fields.
type RawFinding struct {
	Title        string      `json:"title"`
	Category     string      `json:"category"`
	Severity     string      `json:"severity"`
	Confidence   *float64    `json:"confidence"`
	Description  string      `json:"description"`
	Anchors      []RawAnchor `json:"anchors"`
	ParagraphID  string      `json:"paragraph_id"`
	SentenceID   string      `json:"sentence_id"`
	QuotedText   string      `json:"quoted_text"`
	ProposedEdit *RawEdit    `json:"proposed_edit"`
	Suggestion   string      `json:"suggestion"`
	Rationale    string      `json:"rationale"`
	Citations    []string    `json:"citations"`
}

type FindingsOutput struct {
	Findings []RawFinding `json:"findings" validate:"required"`
}

func (r RawFinding) anchors() []entity.Anchor {
	var out []entity.Anchor
	for _, a := range r.Anchors {
		out = append(out, entity.Anchor{
			ParagraphID: strings.TrimSpace(a.ParagraphID),
			SentenceID:  strings.TrimSpace(a.SentenceID),
			QuotedText:  a.QuotedText,
		})
	}
	if len(out) == 0 && r.ParagraphID != "" {
		out = append(out, entity.Anchor{
			ParagraphID: strings.TrimSpace(r.ParagraphID),
			SentenceID:  strings.TrimSpace(r.SentenceID),
			QuotedText:  r.QuotedText,
		})
	}
	return out
}

// Convert builds a finding for agent from the raw model output. categories
// lists the categories the agent may emit; an unknown category falls back to
// the first one.
func Convert(agent entity.AgentID, raw RawFinding, categories ...entity.Category) (entity.Finding, error) {
	anchors := raw.anchors()

	category := entity.Category(strings.ToLower(strings.TrimSpace(raw.Category)))
	if len(categories) > 0 && !containsCategory(categories, category) {
		category = categories[0]
	}

	var confidence *float64
	if raw.Confidence != nil && !math.IsNaN(*raw.Confidence) {
		c := math.Max(0, math.Min(1, *raw.Confidence))
		confidence = &c
	}

	var edit *entity.ProposedEdit
	switch {
	case raw.ProposedEdit != nil && len(anchors) > 0:
		edit = convertEdit(*raw.ProposedEdit, anchors[0])
	case (raw.Suggestion != "" || raw.Rationale != "") && len(anchors) > 0:
		edit = &entity.ProposedEdit{
			Kind:       entity.EditSuggestion,
			Anchor:     anchors[0],
			Rationale:  raw.Rationale,
			Suggestion: raw.Suggestion,
		}
	}

	return entity.NewFinding(entity.FindingParams{
		Agent:        agent,
		Category:     category,
		Severity:     ParseSeverity(raw.Severity),
		Confidence:   confidence,
		Title:        raw.Title,
		Description:  strings.TrimSpace(raw.Description),
		Anchors:      anchors,
		ProposedEdit: edit,
		Citations:    raw.Citations,
	})
}

func convertEdit(raw RawEdit, fallback entity.Anchor) *entity.ProposedEdit {
	anchor := fallback
	if raw.Anchor != nil && raw.Anchor.ParagraphID != "" && raw.Anchor.QuotedText != "" {
		anchor = entity.Anchor{
			ParagraphID: strings.TrimSpace(raw.Anchor.ParagraphID),
			SentenceID:  strings.TrimSpace(raw.Anchor.SentenceID),
			QuotedText:  raw.Anchor.QuotedText,
		}
	}
	return &entity.ProposedEdit{
		Kind:       ParseEditKind(raw.Type, raw.NewText),
		Anchor:     anchor,
		NewText:    raw.NewText,
		Rationale:  raw.Rationale,
		Suggestion: raw.Suggestion,
	}
}

// ParseSeverity maps model wording onto a severity, defaulting to minor.
func ParseSeverity(s string) entity.Severity {
	switch sev := entity.Severity(strings.ToLower(strings.TrimSpace(s))); sev {
	case entity.SeverityCritical, entity.SeverityMajor, entity.SeverityMinor, entity.SeveritySuggestion:
		return sev
	}
	return entity.SeverityMinor
}

// ParseEditKind falls back to a suggestion when there is no replacement text
// and to a replacement otherwise.
func ParseEditKind(s string, newText *string) entity.EditKind {
	kind := entity.EditKind(strings.ToLower(strings.TrimSpace(s)))
	switch kind {
	case entity.EditReplace, entity.EditDelete, entity.EditInsertBefore, entity.EditInsertAfter, entity.EditSuggestion:
		if newText == nil && kind != entity.EditDelete {
			return entity.EditSuggestion
		}
		return kind
	}
	if newText == nil {
		return entity.EditSuggestion
	}
	return entity.EditReplace
}

func containsCategory(list []entity.Category, c entity.Category) bool {
	for _, v := range list {
		if v == c {
			return true
		}
	}
	return false
}

// Collect converts and validates raw findings, dropping anything that cannot
// be anchored in the document. scope limits which paragraphs may be cited; nil
// allows the whole document.
func Collect(doc *entity.Document, agent entity.AgentID, raws []RawFinding, scope func(string) bool, log logger.ILogger, categories ...entity.Category) []entity.Finding {
	out := make([]entity.Finding, 0, len(raws))
	for _, raw := range raws {
		f, err := Convert(agent, raw, categories...)
		if err != nil {
			log.Debug("Stage", "Dropped malformed finding", map[string]interface{}{
				"agent": agent, "title": raw.Title, "error": err.Error(),
			})
			continue
		}
		valid, reason := ValidateAnchors(doc, f, scope)
		if reason != "" {
			log.Debug("Stage", "Dropped finding with invalid anchor", map[string]interface{}{
				"agent": agent, "title": f.Title, "reason": reason,
			})
			continue
		}
		out = append(out, valid)
	}
	return out
}
