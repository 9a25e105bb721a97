// Package rigor checks methodological and logical rigor in two phases: Find
// locates issues section by section, Rewrite proposes a fix for each one.
package rigor

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"ai-review-be/internal/entity"
	"ai-review-be/internal/gateway"
	"ai-review-be/internal/review/chunker"
	"ai-review-be/internal/review/stage"

	"golang.org/x/sync/errgroup"
)

var categories = []entity.Category{
	entity.CategoryRigorMethodology,
	entity.CategoryRigorLogic,
	entity.CategoryRigorEvidence,
	entity.CategoryRigorStatistics,
}

// Find reviews each section in parallel. Findings carry no proposed edits.
// Like clarity, it only fails when every section failed.
func Find(ctx context.Context, deps stage.Deps, doc *entity.Document, brief *entity.BriefingOutput, onChunk stage.ChunkFunc) ([]entity.Finding, error) {
	chunks := chunker.BySection(doc, deps.Settings.ContextSentences)
	if len(chunks) == 0 {
		return nil, nil
	}

	results := make([][]entity.Finding, len(chunks))
	var (
		mu   sync.Mutex
		errs []error
	)

	var g errgroup.Group
	for i, chunk := range chunks {
		g.Go(func() error {
			findings, err := findInSection(ctx, deps, doc, brief, chunk)
			if err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			results[i] = findings
			if onChunk != nil {
				onChunk(stage.ChunkResult{Agent: entity.AgentRigorFind, Index: chunk.Index, Total: chunk.Total, Findings: findings, Err: err})
			}
			return nil
		})
	}
	_ = g.Wait()

	var all []entity.Finding
	for _, r := range results {
		all = append(all, r...)
	}
	if len(errs) == len(chunks) {
		return nil, fmt.Errorf("rigor find: all %d sections failed: %w", len(chunks), errors.Join(errs...))
	}
	return all, nil
}

func findInSection(ctx context.Context, deps stage.Deps, doc *entity.Document, brief *entity.BriefingOutput, chunk chunker.Chunk) ([]entity.Finding, error) {
	instructions, payload := deps.Composer.RigorFind(chunk, brief)
	index, total := chunk.Index, chunk.Total

	var out stage.FindingsOutput
	err := deps.Invoke(ctx, gateway.Request{
		Agent:        entity.AgentRigorFind,
		Instructions: instructions,
		Payload:      payload,
		ChunkIndex:   &index,
		ChunkTotal:   &total,
	}, &out)
	if err != nil {
		return nil, fmt.Errorf("rigor find section %d/%d: %w", index+1, total, err)
	}

	for i := range out.Findings {
		out.Findings[i].ProposedEdit = nil
		out.Findings[i].Suggestion = ""
		out.Findings[i].Rationale = ""
	}
	return stage.Collect(doc, entity.AgentRigorFind, out.Findings, chunk.Contains, deps.Logger, categories...), nil
}
