// Package stage holds what every review stage shares: its dependencies, the
// wire shape of model findings and their conversion into validated findings.
package stage

import (
	"context"

	"ai-review-be/internal/config"
	"ai-review-be/internal/entity"
	"ai-review-be/internal/gateway"
	"ai-review-be/internal/metrics"
	"ai-review-be/internal/pkg/logger"
	"ai-review-be/internal/review/prompt"
)

// Deps is built once per job by the orchestrator.
type Deps struct {
	Invoker  gateway.Invoker
	Searcher gateway.Searcher
	Composer *prompt.Composer
	Metrics  *metrics.Aggregator
	Logger   logger.ILogger
	Settings config.ReviewSettings
}

// Invoke forwards to the gateway and records the call in the job's metrics
// whenever the backend was actually reached.
func (d Deps) Invoke(ctx context.Context, req gateway.Request, out any) error {
	m, err := d.Invoker.Invoke(ctx, req, out)
	if d.Metrics != nil && (err == nil || m.Duration > 0) {
		d.Metrics.Add(m)
	}
	return err
}

// ChunkResult reports one settled chunk of a chunked stage.
type ChunkResult struct {
	Agent    entity.AgentID
	Index    int
	Total    int
	Findings []entity.Finding
	Err      error
}

type ChunkFunc func(ChunkResult)
