package entity

import (
	"fmt"
	"strings"
)

type SearchType string

const (
	SearchDesignLimitation SearchType = "design_limitation"
	SearchContradiction    SearchType = "contradiction"
	SearchMethodLimitation SearchType = "method_limitation"
	SearchMissingContext   SearchType = "missing_context"
	SearchFailedAttempts   SearchType = "failed_attempts"
	SearchReplication      SearchType = "replication"
	SearchConsensus        SearchType = "consensus"
)

type SearchPriority struct {
	SearchFor    string     `json:"search_for" validate:"required"`
	WhyItMatters string     `json:"why_it_matters"`
	Type         SearchType `json:"search_type" validate:"required,oneof=design_limitation contradiction method_limitation missing_context failed_attempts replication consensus"`
}

// EvidenceTargets describes what in the document needs external validation.
type EvidenceTargets struct {
	DocumentType    string           `json:"document_type"`
	StudyDesign     string           `json:"study_design" validate:"required"`
	CanEstablish    []string         `json:"design_can_establish" validate:"min=1,max=3"`
	CannotEstablish []string         `json:"design_cannot_establish" validate:"min=1,max=3"`
	Summary         string           `json:"summary"`
	Priorities      []SearchPriority `json:"search_priorities" validate:"min=1,max=6,dive"`
	Field           string           `json:"field"`
	Subfield        string           `json:"subfield"`
}

type QueryType string

const (
	QueryFactCheck     QueryType = "fact_check"
	QueryConvention    QueryType = "convention"
	QueryTerminology   QueryType = "terminology"
	QueryBenchmark     QueryType = "benchmark"
	QueryContradiction QueryType = "contradiction"
)

const MaxQueryLength = 100

type SearchQuery struct {
	ID        string    `json:"query_id" validate:"required"`
	Text      string    `json:"query_text" validate:"required"`
	Type      QueryType `json:"query_type" validate:"required,oneof=fact_check convention terminology benchmark contradiction"`
	Rationale string    `json:"rationale"`
}

type SearchResult struct {
	QueryID   string          `json:"query_id"`
	Text      string          `json:"response_text"`
	Citations []SourceSnippet `json:"citations"`
	Failed    bool            `json:"failed,omitempty"`
	Error     string          `json:"error,omitempty"`
}

type SourceSnippet struct {
	QueryID string `json:"query_id"`
	URL     string `json:"url,omitempty"`
	Title   string `json:"title,omitempty"`
	Date    string `json:"date,omitempty"`
	Text    string `json:"text"`
}

type EvidenceConfidence string

const (
	ConfidenceHigh   EvidenceConfidence = "high"
	ConfidenceMedium EvidenceConfidence = "medium"
	ConfidenceLow    EvidenceConfidence = "low"
)

// EvidenceBundle is the external evidence handed to the Adversary. The zero
// value is not valid; use EmptyEvidence for the degraded case.
type EvidenceBundle struct {
	QueriesUsed       []string           `json:"queries_used"`
	QueryRationale    []string           `json:"query_rationale"`
	DesignLimitations []string           `json:"design_limitations"`
	Contradictions    []string           `json:"contradictions"`
	PriorWork         []string           `json:"prior_work"`
	FieldConsensus    []string           `json:"field_consensus"`
	MethodContext     []string           `json:"method_context"`
	FailedAttempts    []string           `json:"failed_attempts"`
	Sources           []SourceSnippet    `json:"sources"`
	Confidence        EvidenceConfidence `json:"confidence"`
	Gaps              string             `json:"gaps,omitempty"`
}

func EmptyEvidence() EvidenceBundle {
	return EvidenceBundle{Confidence: ConfidenceLow}
}

func (e EvidenceBundle) HasContent() bool {
	return len(e.DesignLimitations) > 0 ||
		len(e.Contradictions) > 0 ||
		len(e.PriorWork) > 0 ||
		len(e.FieldConsensus) > 0 ||
		len(e.MethodContext) > 0 ||
		len(e.FailedAttempts) > 0 ||
		e.Gaps != ""
}

func (e EvidenceBundle) FormatForPrompt() string {
	var sb strings.Builder
	writeBucket := func(title string, items []string) {
		if len(items) == 0 {
			return
		}
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(title)
		sb.WriteString(":\n")
		for _, item := range items {
			fmt.Fprintf(&sb, "  - %s\n", item)
		}
	}

	writeBucket("DESIGN LIMITATIONS (what this study cannot establish)", e.DesignLimitations)
	writeBucket("CONTRADICTIONS", e.Contradictions)
	writeBucket("PRIOR WORK", e.PriorWork)
	writeBucket("FIELD CONSENSUS", e.FieldConsensus)
	writeBucket("METHOD CONTEXT", e.MethodContext)
	writeBucket("FAILED ATTEMPTS", e.FailedAttempts)
	if e.Gaps != "" {
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "EVIDENCE GAPS: %s\n", e.Gaps)
	}

	if sb.Len() == 0 {
		return "No external evidence found."
	}
	if len(e.Sources) > 0 {
		sb.WriteString("\nSOURCES:\n")
		for i, s := range e.Sources {
			label := s.Title
			if label == "" {
				label = s.URL
			}
			fmt.Fprintf(&sb, "  [%d] %s\n", i+1, label)
		}
	}
	return strings.TrimSpace(sb.String())
}
