// Package adversary plays the skeptical expert reviewer, either with one
// model or with a panel of models whose critiques are reconciled into votes.
package adversary

import (
	"context"
	"fmt"

	"ai-review-be/internal/entity"
	"ai-review-be/internal/gateway"
	"ai-review-be/internal/review/stage"
)

var categories = []entity.Category{
	entity.CategoryAdversarialWeakness,
	entity.CategoryAdversarialGap,
	entity.CategoryAdversarialAlternative,
}

// Input is everything the adversary sees. Evidence may be the empty bundle.
type Input struct {
	Doc      *entity.Document
	Briefing *entity.BriefingOutput
	Rigor    []entity.Finding
	Evidence entity.EvidenceBundle
}

// Single runs one adversary call on the configured model.
func Single(ctx context.Context, deps stage.Deps, in Input) ([]entity.Finding, error) {
	raws, err := critique(ctx, deps, in, entity.AgentAdversary, "")
	if err != nil {
		return nil, fmt.Errorf("adversary: %w", err)
	}
	return stage.Collect(in.Doc, entity.AgentAdversary, raws, nil, deps.Logger, categories...), nil
}

func critique(ctx context.Context, deps stage.Deps, in Input, agent entity.AgentID, model string) ([]stage.RawFinding, error) {
	instructions, payload := deps.Composer.Adversary(in.Doc, in.Briefing, in.Rigor, in.Evidence)

	var out stage.FindingsOutput
	if err := deps.Invoke(ctx, gateway.Request{
		Agent:        agent,
		Model:        model,
		Instructions: instructions,
		Payload:      payload,
	}, &out); err != nil {
		return nil, err
	}
	return out.Findings, nil
}
