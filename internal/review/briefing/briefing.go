// Package briefing extracts the document-level context every later stage reads.
package briefing

import (
	"context"
	"fmt"

	"ai-review-be/internal/entity"
	"ai-review-be/internal/gateway"
	"ai-review-be/internal/review/stage"
)

// Run makes one call over the whole document. Its error is fatal to the job.
func Run(ctx context.Context, deps stage.Deps, doc *entity.Document) (*entity.BriefingOutput, error) {
	instructions, payload := deps.Composer.Briefing(doc)

	var out entity.BriefingOutput
	err := deps.Invoke(ctx, gateway.Request{
		Agent:        entity.AgentBriefing,
		Instructions: instructions,
		Payload:      payload,
		MaxTokens:    2048,
	}, &out)
	if err != nil {
		return nil, fmt.Errorf("briefing: %w", err)
	}

	out.Normalize()
	return &out, nil
}
