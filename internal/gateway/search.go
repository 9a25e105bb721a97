package gateway

import (
	"context"
	"time"

	"ai-review-be/internal/config"
	"ai-review-be/internal/entity"
	"ai-review-be/internal/pkg/logger"
	"ai-review-be/pkg/search/perplexity"
	"ai-review-be/pkg/utils"

	"golang.org/x/sync/semaphore"
)

// SearchBackend is the web search service. *perplexity.Client satisfies it.
type SearchBackend interface {
	Search(ctx context.Context, query string) (*perplexity.Answer, error)
}

// Searcher runs web searches under their own ceiling and timeout. A failed
// search returns a *Error; the result is still marked Failed so callers can
// degrade per query.
type Searcher interface {
	Search(ctx context.Context, query entity.SearchQuery) (entity.SearchResult, entity.CallMetrics, error)
}

type SearchGateway struct {
	backend  SearchBackend
	registry *config.Registry
	model    string
	timeout  time.Duration
	sem      *semaphore.Weighted
	logger   logger.ILogger
}

var _ Searcher = (*SearchGateway)(nil)

func NewSearchGateway(backend SearchBackend, registry *config.Registry, model string, settings config.ReviewSettings, log logger.ILogger) *SearchGateway {
	ceiling := settings.MaxConcurrentSearches
	if ceiling <= 0 {
		ceiling = 1
	}
	if model == "" {
		model = registry.ModelFor(entity.AgentEvidenceSearch)
	}
	return &SearchGateway{
		backend:  backend,
		registry: registry,
		model:    model,
		timeout:  settings.SearchTimeout,
		sem:      semaphore.NewWeighted(int64(ceiling)),
		logger:   log,
	}
}

func (s *SearchGateway) Search(ctx context.Context, query entity.SearchQuery) (entity.SearchResult, entity.CallMetrics, error) {
	result := entity.SearchResult{QueryID: query.ID}
	metrics := entity.CallMetrics{
		Agent:     entity.AgentEvidenceSearch,
		Model:     s.model,
		Timestamp: time.Now(),
	}

	if err := s.sem.Acquire(ctx, 1); err != nil {
		gerr := &Error{Kind: classify(ctx, err), Agent: entity.AgentEvidenceSearch, Model: s.model, Err: err}
		result.Failed = true
		result.Error = gerr.Error()
		return result, metrics, gerr
	}
	defer s.sem.Release(1)

	start := time.Now()
	callCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	answer, err := s.backend.Search(callCtx, query.Text)
	metrics.Duration = time.Since(start)
	metrics.TimeMs = float64(metrics.Duration.Microseconds()) / 1000

	if err != nil {
		kind := classify(ctx, err)
		if callCtx.Err() == context.DeadlineExceeded {
			kind = KindTimeout
		}
		s.logger.Warn("SearchGateway", "Search failed", map[string]interface{}{
			"query_id": query.ID, "kind": kind, "error": err.Error(),
		})
		gerr := &Error{Kind: kind, Agent: entity.AgentEvidenceSearch, Model: s.model, Err: err}
		result.Failed = true
		result.Error = gerr.Error()
		return result, metrics, gerr
	}

	result.Text = answer.Text
	for _, c := range answer.Citations {
		if c.URL == "" {
			continue
		}
		result.Citations = append(result.Citations, entity.SourceSnippet{
			QueryID: query.ID,
			URL:     c.URL,
			Title:   c.Title,
			Date:    c.Date,
			Text:    c.Snippet,
		})
	}

	metrics.InputTokens = answer.Usage.PromptTokens
	if metrics.InputTokens == 0 {
		metrics.InputTokens = utils.EstimateTokens(query.Text)
	}
	metrics.OutputTokens = answer.Usage.CompletionTokens
	if metrics.OutputTokens == 0 {
		metrics.OutputTokens = utils.EstimateTokens(answer.Text)
	}
	metrics.CostUSD = s.registry.CalculateCost(s.model, metrics.InputTokens, metrics.OutputTokens)
	return result, metrics, nil
}
