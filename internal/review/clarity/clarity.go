// Package clarity reviews writing quality, one model call per word-bounded chunk.
package clarity

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
	entity.CategoryClaritySentence,
	entity.CategoryClarityParagraph,
	entity.CategoryClarityFlow,
}

// Run reviews every chunk in parallel. onChunk, when set, is called as each
// chunk settles. A failed chunk does not stop the others; Run only returns an
// error when every chunk failed.
func Run(ctx context.Context, deps stage.Deps, doc *entity.Document, brief *entity.BriefingOutput, depth entity.Depth, onChunk stage.ChunkFunc) ([]entity.Finding, error) {
	chunks := chunker.ByWords(doc, chunker.TargetWords(depth), deps.Settings.ContextSentences)
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
			findings, err := reviewChunk(ctx, deps, doc, brief, chunk)
			if err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			results[i] = findings
			if onChunk != nil {
				onChunk(stage.ChunkResult{Agent: entity.AgentClarity, Index: chunk.Index, Total: chunk.Total, Findings: findings, Err: err})
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
		return nil, fmt.Errorf("clarity: all %d chunks failed: %w", len(chunks), errors.Join(errs...))
	}
	return all, nil
}

func reviewChunk(ctx context.Context, deps stage.Deps, doc *entity.Document, brief *entity.BriefingOutput, chunk chunker.Chunk) ([]entity.Finding, error) {
	instructions, payload := deps.Composer.Clarity(chunk, brief)
	index, total := chunk.Index, chunk.Total

	var out stage.FindingsOutput
	err := deps.Invoke(ctx, gateway.Request{
		Agent:        entity.AgentClarity,
		Instructions: instructions,
		Payload:      payload,
		ChunkIndex:   &index,
		ChunkTotal:   &total,
	}, &out)
	if err != nil {
		return nil, fmt.Errorf("clarity chunk %d/%d: %w", index+1, total, err)
	}

	return stage.Collect(doc, entity.AgentClarity, out.Findings, chunk.Contains, deps.Logger, categories...), nil
}
