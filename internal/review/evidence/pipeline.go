// Package evidence gathers external evidence for the adversary: target
// extraction, query generation, parallel web search and synthesis. Only a
// target extraction failure is reported as an error; later failures degrade
// to an empty bundle with a gap note.
package evidence

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"ai-review-be/internal/entity"
	"ai-review-be/internal/gateway"
	"ai-review-be/internal/review/stage"
	"ai-review-be/pkg/utils"

	"golang.org/x/sync/errgroup"
)

const MaxQueries = 8

type Result struct {
	Bundle   entity.EvidenceBundle
	Findings []entity.Finding
	Targets  *entity.EvidenceTargets
}

type queryOutput struct {
	Queries []entity.SearchQuery `json:"queries" validate:"required,min=1"`
}

type synthesisOutput struct {
	DesignLimitations []string           `json:"design_limitations"`
	Contradictions    []string           `json:"contradictions"`
	PriorWork         []string           `json:"prior_work"`
	FieldConsensus    []string           `json:"field_consensus"`
	MethodContext     []string           `json:"method_context"`
	FailedAttempts    []string           `json:"failed_attempts"`
	Confidence        string             `json:"confidence"`
	Gaps              string             `json:"gaps"`
	FlaggedClaims     []stage.RawFinding `json:"flagged_claims"`
}

func Run(ctx context.Context, deps stage.Deps, doc *entity.Document) (Result, error) {
	// 1. Targets
	targets, err := extractTargets(ctx, deps, doc)
	if err != nil {
		return Result{Bundle: entity.EmptyEvidence()}, err
	}
	res := Result{Bundle: entity.EmptyEvidence(), Targets: targets}

	// 2. Queries
	queries, err := generateQueries(ctx, deps, *targets)
	if err != nil {
		deps.Logger.Warn("Evidence", "Query generation failed, continuing without evidence", map[string]interface{}{"error": err.Error()})
		res.Bundle.Gaps = "Query generation failed; no external evidence was gathered."
		return res, nil
	}

	// 3. Search
	results := search(ctx, deps, queries)
	failed := 0
	for _, r := range results {
		if r.Failed {
			failed++
		}
	}
	deps.Logger.Info("Evidence", "Searches finished", map[string]interface{}{
		"queries": len(queries), "failed": failed,
	})

	base := entity.EmptyEvidence()
	for _, q := range queries {
		base.QueriesUsed = append(base.QueriesUsed, q.Text)
		base.QueryRationale = append(base.QueryRationale, q.Rationale)
	}
	base.Sources = collectSources(results)

	if failed == len(results) {
		base.Gaps = "Every search failed; no external evidence was gathered."
		res.Bundle = base
		return res, nil
	}

	// 4. Synthesis
	bundle, findings, err := synthesize(ctx, deps, doc, *targets, results, base)
	if err != nil {
		deps.Logger.Warn("Evidence", "Synthesis failed, continuing without evidence", map[string]interface{}{"error": err.Error()})
		base.Gaps = "Evidence synthesis failed; search results could not be classified."
		res.Bundle = base
		return res, nil
	}
	res.Bundle = bundle
	res.Findings = findings
	return res, nil
}

func extractTargets(ctx context.Context, deps stage.Deps, doc *entity.Document) (*entity.EvidenceTargets, error) {
	instructions, payload := deps.Composer.EvidenceTargets(doc)

	var targets entity.EvidenceTargets
	if err := deps.Invoke(ctx, gateway.Request{
		Agent:        entity.AgentEvidenceTargets,
		Instructions: instructions,
		Payload:      payload,
		MaxTokens:    2048,
	}, &targets); err != nil {
		return nil, fmt.Errorf("evidence targets: %w", err)
	}

	PrioritizeDesignLimitations(targets.Priorities)
	return &targets, nil
}

// PrioritizeDesignLimitations moves design-limitation priorities to the front,
// keeping the model's order otherwise.
func PrioritizeDesignLimitations(priorities []entity.SearchPriority) {
	sort.SliceStable(priorities, func(i, j int) bool {
		return priorities[i].Type == entity.SearchDesignLimitation && priorities[j].Type != entity.SearchDesignLimitation
	})
}

func generateQueries(ctx context.Context, deps stage.Deps, targets entity.EvidenceTargets) ([]entity.SearchQuery, error) {
	instructions, payload := deps.Composer.EvidenceQueries(targets)

	var out queryOutput
	if err := deps.Invoke(ctx, gateway.Request{
		Agent:        entity.AgentEvidenceQueries,
		Instructions: instructions,
		Payload:      payload,
		MaxTokens:    1024,
	}, &out); err != nil {
		return nil, fmt.Errorf("evidence queries: %w", err)
	}

	queries := NormalizeQueries(out.Queries)
	if len(queries) == 0 {
		return nil, fmt.Errorf("evidence queries: model returned no usable query")
	}
	return queries, nil
}

// NormalizeQueries trims and caps query text, drops empty queries, gives
// every query a unique id and keeps at most MaxQueries.
func NormalizeQueries(in []entity.SearchQuery) []entity.SearchQuery {
	seen := make(map[string]bool, len(in))
	out := make([]entity.SearchQuery, 0, len(in))
	for _, q := range in {
		q.Text = utils.Truncate(strings.TrimSpace(q.Text), entity.MaxQueryLength)
		if q.Text == "" {
			continue
		}
		q.ID = strings.TrimSpace(q.ID)
		if q.ID == "" || seen[q.ID] {
			q.ID = fmt.Sprintf("q%d", len(out)+1)
			for seen[q.ID] {
				q.ID += "_"
			}
		}
		seen[q.ID] = true
		switch q.Type {
		case entity.QueryFactCheck, entity.QueryConvention, entity.QueryTerminology, entity.QueryBenchmark, entity.QueryContradiction:
		default:
			q.Type = entity.QueryFactCheck
		}
		out = append(out, q)
		if len(out) == MaxQueries {
			break
		}
	}
	return out
}

// search runs every query under the search gateway's own ceiling. Results
// keep the query order.
func search(ctx context.Context, deps stage.Deps, queries []entity.SearchQuery) []entity.SearchResult {
	results := make([]entity.SearchResult, len(queries))

	var g errgroup.Group
	for i, q := range queries {
		g.Go(func() error {
			res, m, err := deps.Searcher.Search(ctx, q)
			if deps.Metrics != nil && m.Duration > 0 {
				deps.Metrics.Add(m)
			}
			if err != nil {
				// A failed query only drops its own evidence.
				res.Failed = true
				if res.Error == "" {
					res.Error = err.Error()
				}
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func collectSources(results []entity.SearchResult) []entity.SourceSnippet {
	seen := make(map[string]bool)
	var sources []entity.SourceSnippet
	for _, r := range results {
		for _, c := range r.Citations {
			if c.URL == "" || seen[c.URL] {
				continue
			}
			seen[c.URL] = true
			sources = append(sources, c)
		}
	}
	return sources
}

func synthesize(ctx context.Context, deps stage.Deps, doc *entity.Document, targets entity.EvidenceTargets, results []entity.SearchResult, base entity.EvidenceBundle) (entity.EvidenceBundle, []entity.Finding, error) {
	instructions, payload := deps.Composer.EvidenceSynthesis(targets, results, doc)

	var out synthesisOutput
	if err := deps.Invoke(ctx, gateway.Request{
		Agent:        entity.AgentEvidenceSynthesis,
		Instructions: instructions,
		Payload:      payload,
	}, &out); err != nil {
		return base, nil, fmt.Errorf("evidence synthesis: %w", err)
	}

	bundle := base
	bundle.DesignLimitations = out.DesignLimitations
	bundle.Contradictions = out.Contradictions
	bundle.PriorWork = out.PriorWork
	bundle.FieldConsensus = out.FieldConsensus
	bundle.MethodContext = out.MethodContext
	bundle.FailedAttempts = out.FailedAttempts
	bundle.Gaps = strings.TrimSpace(out.Gaps)
	bundle.Confidence = parseConfidence(out.Confidence)
	if !bundle.HasContent() {
		bundle.Confidence = entity.ConfidenceLow
	}

	for i := range out.FlaggedClaims {
		if out.FlaggedClaims[i].Category == "" {
			out.FlaggedClaims[i].Category = string(entity.CategoryEvidenceContradiction)
		}
	}
	findings := stage.Collect(doc, entity.AgentEvidence, out.FlaggedClaims, nil, deps.Logger,
		entity.CategoryEvidenceContradiction, entity.CategoryEvidenceLimitation)

	return bundle, findings, nil
}

func parseConfidence(s string) entity.EvidenceConfidence {
	switch c := entity.EvidenceConfidence(strings.ToLower(strings.TrimSpace(s))); c {
	case entity.ConfidenceHigh, entity.ConfidenceMedium, entity.ConfidenceLow:
		return c
	}
	return entity.ConfidenceLow
}
