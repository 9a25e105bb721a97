package stage

import (
	"testing"

	"ai-review-be/internal/entity"
	"ai-review-be/internal/pkg/logger"
	"ai-review-be/internal/review/reviewtest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvert_FlatAnchorAndDefaults(t *testing.T) {
	conf := 1.7
	f, err := Convert(entity.AgentAdversary, RawFinding{
		Title:       "Causal claim from a correlational design",
		Category:    "made_up",
		Severity:    "MAJOR",
		Confidence:  &conf,
		Description: "  The design cannot support causation. ",
		ParagraphID: "p_002",
		QuotedText:  "Therefore sleep causes better memory",
		Suggestion:  "Soften the claim",
		Rationale:   "Matches the design",
	}, entity.CategoryAdversarialWeakness, entity.CategoryAdversarialGap)
	require.NoError(t, err)

	assert.Equal(t, entity.CategoryAdversarialWeakness, f.Category)
	assert.Equal(t, entity.SeverityMajor, f.Severity)
	assert.Equal(t, 1.0, f.Confidence)
	assert.Equal(t, "The design cannot support causation.", f.Description)
	require.Len(t, f.Anchors, 1)
	assert.Equal(t, "p_002", f.Anchors[0].ParagraphID)
	require.NotNil(t, f.ProposedEdit)
	assert.Equal(t, entity.EditSuggestion, f.ProposedEdit.Kind)
	assert.False(t, f.ProposedEdit.Fixable())
}

func TestConvert_Confidence(t *testing.T) {
	ptr := func(v float64) *float64 { return &v }
	tests := []struct {
		name string
		in   *float64
		want float64
	}{
		{"omitted uses default", nil, entity.DefaultConfidence},
		{"explicit zero kept", ptr(0), 0},
		{"negative clamped to zero", ptr(-0.3), 0},
		{"in range kept", ptr(0.5), 0.5},
		{"above one clamped", ptr(2), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := Convert(entity.AgentClarity, RawFinding{
				Title:       "Vague",
				Severity:    "minor",
				Confidence:  tt.in,
				ParagraphID: "p_001",
				QuotedText:  "results",
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, f.Confidence)
		})
	}
}

func TestConvert_NoAnchorsRejected(t *testing.T) {
	_, err := Convert(entity.AgentClarity, RawFinding{Title: "Vague", Severity: "minor"})
	assert.ErrorIs(t, err, entity.ErrNoAnchors)
}

func TestParseEditKind(t *testing.T) {
	text := "x"
	tests := []struct {
		in      string
		newText *string
		want    entity.EditKind
	}{
		{"replace", &text, entity.EditReplace},
		{"replace", nil, entity.EditSuggestion},
		{"insert_after", &text, entity.EditInsertAfter},
		{"delete", nil, entity.EditDelete},
		{"rewrite", &text, entity.EditReplace},
		{"", nil, entity.EditSuggestion},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseEditKind(tt.in, tt.newText), tt.in)
	}
}

func TestValidateAnchors(t *testing.T) {
	doc := reviewtest.Document(t)

	build := func(a ...entity.Anchor) entity.Finding {
		f, err := entity.NewFinding(entity.FindingParams{
			Agent: entity.AgentClarity, Category: entity.CategoryClaritySentence,
			Severity: entity.SeverityMinor, Title: "t", Anchors: a,
		})
		require.NoError(t, err)
		return f
	}

	tests := []struct {
		name    string
		anchors []entity.Anchor
		scope   func(string) bool
		dropped bool
	}{
		{"valid", []entity.Anchor{{ParagraphID: "p_001", QuotedText: "results was very significant"}}, nil, false},
		{"unknown paragraph", []entity.Anchor{{ParagraphID: "p_099", QuotedText: "results"}}, nil, true},
		{"quote elsewhere", []entity.Anchor{{ParagraphID: "p_002", QuotedText: "results was very significant"}}, nil, true},
		{"paraphrased quote", []entity.Anchor{{ParagraphID: "p_001", QuotedText: "results were significant"}}, nil, true},
		{"one bad anchor drops all", []entity.Anchor{
			{ParagraphID: "p_001", QuotedText: "results"},
			{ParagraphID: "p_003", QuotedText: "not there"},
		}, nil, true},
		{"out of scope", []entity.Anchor{{ParagraphID: "p_003", QuotedText: "older adults"}},
			func(id string) bool { return id == "p_001" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, reason := ValidateAnchors(doc, build(tt.anchors...), tt.scope)
			assert.Equal(t, tt.dropped, reason != "", reason)
		})
	}
}

func TestValidateAnchors_ResolvesSpansAndSentences(t *testing.T) {
	doc := reviewtest.Document(t)
	f, err := entity.NewFinding(entity.FindingParams{
		Agent: entity.AgentClarity, Category: entity.CategoryClaritySentence,
		Severity: entity.SeverityMinor, Title: "t",
		Anchors: []entity.Anchor{
			{ParagraphID: "p_001", SentenceID: "p_001_s2", QuotedText: "results was"},
			{ParagraphID: "p_002", SentenceID: "p_001_s1", QuotedText: "four or eight"},
		},
		ProposedEdit: &entity.ProposedEdit{
			Kind:   entity.EditReplace,
			Anchor: entity.Anchor{ParagraphID: "p_009", QuotedText: "gone"},
		},
	})
	require.NoError(t, err)

	got, reason := ValidateAnchors(doc, f, nil)
	require.Empty(t, reason)

	p1, _ := doc.Paragraph("p_001")
	a := got.Anchors[0]
	assert.Equal(t, "results was", p1.Text[a.Start:a.End])
	assert.Equal(t, "p_001_s2", a.SentenceID)
	assert.Empty(t, got.Anchors[1].SentenceID, "foreign sentence id is cleared")
	assert.Equal(t, got.Anchors[0], got.ProposedEdit.Anchor, "invalid edit anchor falls back to the first anchor")
}

func TestCollect_DropsInvalid(t *testing.T) {
	doc := reviewtest.Document(t)
	raws := []RawFinding{
		{Title: "ok", Severity: "minor", Anchors: []RawAnchor{{ParagraphID: "p_001", QuotedText: "The results was"}}},
		{Title: "hallucinated", Severity: "minor", Anchors: []RawAnchor{{ParagraphID: "p_001", QuotedText: "nowhere in text"}}},
		{Title: "no anchor", Severity: "minor"},
	}
	got := Collect(doc, entity.AgentClarity, raws, nil, logger.NewNopLogger(), entity.CategoryClaritySentence)
	require.Len(t, got, 1)
	assert.Equal(t, "ok", got[0].Title)
	assert.Equal(t, entity.CategoryClaritySentence, got[0].Category)
}
