package rigor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"ai-review-be/internal/entity"
	"ai-review-be/internal/gateway"
	"ai-review-be/internal/review/stage"

	"golang.org/x/sync/errgroup"
)

const DefaultBatchSize = 8

type rewriteEdit struct {
	IssueIndex  *int    `json:"issue_index"`
	Type        string  `json:"type"`
	ParagraphID string  `json:"paragraph_id"`
	QuotedText  string  `json:"quoted_text"`
	NewText     *string `json:"new_text"`
	Rationale   string  `json:"rationale"`
	Suggestion  string  `json:"suggestion"`
}

type rewriteOutput struct {
	Rewrites []rewriteEdit `json:"rewrites" validate:"required"`
}

// Rewrite proposes an edit for each finding, in parallel batches. It returns
// copies of the findings that received an edit, attributed to rigor_rewrite
// and keeping their original ids so they can replace the Find results. With
// no findings it returns immediately without calling the model.
func Rewrite(ctx context.Context, deps stage.Deps, doc *entity.Document, findings []entity.Finding) ([]entity.Finding, error) {
	if len(findings) == 0 {
		return nil, nil
	}

	size := deps.Settings.RewriteBatchSize
	if size <= 0 {
		size = DefaultBatchSize
	}
	var batches [][]entity.Finding
	for start := 0; start < len(findings); start += size {
		end := min(start+size, len(findings))
		batches = append(batches, findings[start:end])
	}

	results := make([][]entity.Finding, len(batches))
	var (
		mu   sync.Mutex
		errs []error
	)

	var g errgroup.Group
	for i, batch := range batches {
		g.Go(func() error {
			rewritten, err := rewriteBatch(ctx, deps, doc, batch, i, len(batches))
			if err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
				deps.Logger.Warn("Rigor", "Rewrite batch failed", map[string]interface{}{
					"batch": i + 1, "batches": len(batches), "error": err.Error(),
				})
			}
			results[i] = rewritten
			return nil
		})
	}
	_ = g.Wait()

	var all []entity.Finding
	for _, r := range results {
		all = append(all, r...)
	}
	if len(errs) == len(batches) {
		return nil, fmt.Errorf("rigor rewrite: all %d batches failed: %w", len(batches), errors.Join(errs...))
	}
	return all, nil
}

func rewriteBatch(ctx context.Context, deps stage.Deps, doc *entity.Document, batch []entity.Finding, index, total int) ([]entity.Finding, error) {
	instructions, payload := deps.Composer.RigorRewrite(batch, doc)

	var out rewriteOutput
	err := deps.Invoke(ctx, gateway.Request{
		Agent:        entity.AgentRigorRewrite,
		Instructions: instructions,
		Payload:      payload,
		ChunkIndex:   &index,
		ChunkTotal:   &total,
	}, &out)
	if err != nil {
		return nil, fmt.Errorf("rigor rewrite batch %d/%d: %w", index+1, total, err)
	}

	var rewritten []entity.Finding
	done := make(map[int]bool, len(batch))
	for _, e := range out.Rewrites {
		if e.IssueIndex == nil || *e.IssueIndex < 0 || *e.IssueIndex >= len(batch) || done[*e.IssueIndex] {
			continue
		}
		done[*e.IssueIndex] = true

		f := batch[*e.IssueIndex]
		f.Agent = entity.AgentRigorRewrite
		f.ProposedEdit = buildEdit(doc, f, e)
		rewritten = append(rewritten, f)
	}
	return rewritten, nil
}

// buildEdit targets the quoted text when it exists in the paragraph and the
// finding's first anchor otherwise.
func buildEdit(doc *entity.Document, f entity.Finding, e rewriteEdit) *entity.ProposedEdit {
	anchor := f.PrimaryAnchor()
	paragraphID := strings.TrimSpace(e.ParagraphID)
	if paragraphID == "" {
		paragraphID = anchor.ParagraphID
	}
	if e.QuotedText != "" {
		if start, end, ok := doc.LocateQuote(paragraphID, e.QuotedText); ok {
			anchor = entity.Anchor{ParagraphID: paragraphID, QuotedText: e.QuotedText, Start: start, End: end}
		}
	}

	newText := e.NewText
	if newText != nil && strings.TrimSpace(*newText) == "" {
		newText = nil
	}
	kind := stage.ParseEditKind(e.Type, newText)
	if kind == entity.EditSuggestion {
		newText = nil
	}

	return &entity.ProposedEdit{
		Kind:       kind,
		Anchor:     anchor,
		NewText:    newText,
		Rationale:  strings.TrimSpace(e.Rationale),
		Suggestion: strings.TrimSpace(e.Suggestion),
	}
}
