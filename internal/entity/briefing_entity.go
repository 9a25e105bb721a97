package entity

import (
	"fmt"
	"strings"
)

const (
	MaxBriefingSummary = 500
	MaxMainClaims      = 10
	MaxDomainKeywords  = 20
)

// BriefingOutput is the document-level context shared with every downstream stage.
type BriefingOutput struct {
	Summary            string   `json:"summary" validate:"required"`
	MainClaims         []string `json:"main_claims" validate:"required,min=1"`
	StatedScope        *string  `json:"stated_scope"`
	StatedLimitations  []string `json:"stated_limitations"`
	MethodologySummary *string  `json:"methodology_summary"`
	DomainKeywords     []string `json:"domain_keywords"`
}

// Normalize applies the size limits the model is asked to respect.
func (b *BriefingOutput) Normalize() {
	b.Summary = truncateRunes(strings.TrimSpace(b.Summary), MaxBriefingSummary)
	if len(b.MainClaims) > MaxMainClaims {
		b.MainClaims = b.MainClaims[:MaxMainClaims]
	}
	if len(b.DomainKeywords) > MaxDomainKeywords {
		b.DomainKeywords = b.DomainKeywords[:MaxDomainKeywords]
	}
}

func (b BriefingOutput) FormatForPrompt() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Summary: %s\n", b.Summary)

	sb.WriteString("\nMain Claims:\n")
	for i, c := range b.MainClaims {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, c)
	}

	if b.StatedScope != nil && *b.StatedScope != "" {
		fmt.Fprintf(&sb, "\nStated Scope: %s\n", *b.StatedScope)
	}

	if len(b.StatedLimitations) > 0 {
		sb.WriteString("\nAcknowledged Limitations:\n")
		for _, l := range b.StatedLimitations {
			fmt.Fprintf(&sb, "- %s\n", l)
		}
	}

	if b.MethodologySummary != nil && *b.MethodologySummary != "" {
		fmt.Fprintf(&sb, "\nMethodology: %s\n", *b.MethodologySummary)
	}

	if len(b.DomainKeywords) > 0 {
		fmt.Fprintf(&sb, "\nKey Terms: %s\n", strings.Join(b.DomainKeywords, ", "))
	}

	return strings.TrimSpace(sb.String())
}
