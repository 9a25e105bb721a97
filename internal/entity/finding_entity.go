package entity

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var (
	ErrNoAnchors      = errors.New("finding has no anchors")
	ErrInvalidFinding = errors.New("invalid finding")
)

var validate = validator.New()

type Severity string

const (
	SeverityCritical   Severity = "critical"
	SeverityMajor      Severity = "major"
	SeverityMinor      Severity = "minor"
	SeveritySuggestion Severity = "suggestion"
)

// Weight orders severities, critical highest.
func (s Severity) Weight() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityMajor:
		return 3
	case SeverityMinor:
		return 2
	case SeveritySuggestion:
		return 1
	}
	return 0
}

type Category string

const (
	CategoryClaritySentence        Category = "clarity_sentence"
	CategoryClarityParagraph       Category = "clarity_paragraph"
	CategoryClarityFlow            Category = "clarity_flow"
	CategoryRigorMethodology       Category = "rigor_methodology"
	CategoryRigorLogic             Category = "rigor_logic"
	CategoryRigorEvidence          Category = "rigor_evidence"
	CategoryRigorStatistics        Category = "rigor_statistics"
	CategoryEvidenceContradiction  Category = "evidence_contradiction"
	CategoryEvidenceLimitation     Category = "evidence_limitation"
	CategoryAdversarialWeakness    Category = "adversarial_weakness"
	CategoryAdversarialGap         Category = "adversarial_gap"
	CategoryAdversarialAlternative Category = "adversarial_alternative"
)

type EditKind string

const (
	EditReplace      EditKind = "replace"
	EditDelete       EditKind = "delete"
	EditInsertBefore EditKind = "insert_before"
	EditInsertAfter  EditKind = "insert_after"
	EditSuggestion   EditKind = "suggestion"
)

const (
	DefaultConfidence = 0.8
	MaxTitleLength    = 100
)

// Anchor points at the document text a finding is about. Start and End are
// byte offsets into the paragraph text, resolved during anchor validation.
type Anchor struct {
	ParagraphID string `json:"paragraph_id" validate:"required"`
	SentenceID  string `json:"sentence_id,omitempty"`
	QuotedText  string `json:"quoted_text" validate:"required"`
	Start       int    `json:"start"`
	End         int    `json:"end"`
}

// Resolved reports whether the anchor carries a located span.
func (a Anchor) Resolved() bool {
	return a.End > a.Start
}

// Overlaps reports whether both anchors point at intersecting text of the same
// paragraph. Unresolved anchors fall back to case-insensitive quote containment.
func (a Anchor) Overlaps(b Anchor) bool {
	if a.ParagraphID != b.ParagraphID {
		return false
	}
	if a.Resolved() && b.Resolved() {
		return a.Start < b.End && b.Start < a.End
	}
	qa := strings.ToLower(strings.TrimSpace(a.QuotedText))
	qb := strings.ToLower(strings.TrimSpace(b.QuotedText))
	if qa == "" || qb == "" {
		return false
	}
	return strings.Contains(qa, qb) || strings.Contains(qb, qa)
}

type ProposedEdit struct {
	Kind       EditKind `json:"type" validate:"required,oneof=replace delete insert_before insert_after suggestion"`
	Anchor     Anchor   `json:"anchor"`
	NewText    *string  `json:"new_text,omitempty"`
	Rationale  string   `json:"rationale"`
	Suggestion string   `json:"suggestion,omitempty"`
}

// Fixable reports whether the edit carries replacement text.
func (e ProposedEdit) Fixable() bool {
	return e.NewText != nil
}

type Finding struct {
	ID           string        `json:"id"`
	Agent        AgentID       `json:"agent_id"`
	Category     Category      `json:"category"`
	Severity     Severity      `json:"severity"`
	Confidence   float64       `json:"confidence"`
	Title        string        `json:"title"`
	Description  string        `json:"description"`
	Anchors      []Anchor      `json:"anchors"`
	ProposedEdit *ProposedEdit `json:"proposed_edit,omitempty"`
	Votes        *int          `json:"votes,omitempty"`
	Citations    []string      `json:"citations,omitempty"`
	Backend      string        `json:"backend,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
}

type FindingParams struct {
	ID           string
	Agent        AgentID  `validate:"required"`
	Category     Category `validate:"required"`
	Severity     Severity `validate:"required,oneof=critical major minor suggestion"`
	Confidence   *float64 `validate:"omitempty,gte=0,lte=1"`
	Title        string   `validate:"required"`
	Description  string
	Anchors      []Anchor `validate:"dive"`
	ProposedEdit *ProposedEdit
	Votes        *int `validate:"omitempty,gte=1,lte=3"`
	Citations    []string
	Backend      string
	CreatedAt    time.Time
}

// NewFinding validates params and builds a finding. A finding without anchors
// cannot be constructed.
func NewFinding(p FindingParams) (Finding, error) {
	if len(p.Anchors) == 0 {
		return Finding{}, ErrNoAnchors
	}
	p.Title = strings.TrimSpace(p.Title)
	if err := validate.Struct(p); err != nil {
		return Finding{}, fmt.Errorf("%w: %v", ErrInvalidFinding, err)
	}
	if !p.Agent.Valid() {
		return Finding{}, fmt.Errorf("%w: unknown agent %q", ErrInvalidFinding, p.Agent)
	}
	confidence := DefaultConfidence
	if p.Confidence != nil {
		confidence = *p.Confidence
	}
	id := p.ID
	if id == "" {
		id = uuid.NewString()
	}
	created := p.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}

	return Finding{
		ID:           id,
		Agent:        p.Agent,
		Category:     p.Category,
		Severity:     p.Severity,
		Confidence:   confidence,
		Title:        truncateRunes(p.Title, MaxTitleLength),
		Description:  p.Description,
		Anchors:      append([]Anchor(nil), p.Anchors...),
		ProposedEdit: p.ProposedEdit,
		Votes:        p.Votes,
		Citations:    p.Citations,
		Backend:      p.Backend,
		CreatedAt:    created,
	}, nil
}

func (f Finding) Track() Track {
	return f.Agent.Track()
}

// PrimaryAnchor is the first anchor; every constructed finding has one.
func (f Finding) PrimaryAnchor() Anchor {
	return f.Anchors[0]
}

// Overlaps reports whether any anchor of f overlaps any anchor of g.
func (f Finding) Overlaps(g Finding) bool {
	for _, a := range f.Anchors {
		for _, b := range g.Anchors {
			if a.Overlaps(b) {
				return true
			}
		}
	}
	return false
}

func (f Finding) VoteCount() int {
	if f.Votes == nil {
		return 0
	}
	return *f.Votes
}

func truncateRunes(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return strings.TrimSpace(string(r[:max]))
}
