package bootstrap

import (
	"fmt"

	"ai-review-be/internal/config"
	"ai-review-be/internal/gateway"
	"ai-review-be/internal/pkg/logger"
	"ai-review-be/internal/review/orchestrator"
	"ai-review-be/pkg/search/perplexity"
)

// NewReviewEngine builds the orchestrator with its model and search gateways
// from the registry named in cfg.
func NewReviewEngine(cfg *config.Config, log logger.ILogger) (*orchestrator.Orchestrator, error) {
	registry, err := config.LoadRegistry(cfg.Ai.ModelRegistryPath)
	if err != nil {
		return nil, fmt.Errorf("model registry: %w", err)
	}

	providers := gateway.NewRegistryProviders(registry, cfg.Ai)
	llmGateway := gateway.NewGateway(registry, cfg.Review, providers, log)

	searchClient := perplexity.NewClient(cfg.Ai.PerplexityBaseURL, cfg.Ai.PerplexityAPIKey, cfg.Ai.SearchModel)
	searchGateway := gateway.NewSearchGateway(searchClient, registry, cfg.Ai.SearchModel, cfg.Review, log)

	log.Info("Bootstrap", "Review engine ready", map[string]interface{}{
		"models":          registry.Models(),
		"panel_backends":  len(registry.Panel()),
		"max_concurrency": cfg.Review.MaxConcurrentCalls,
	})

	return orchestrator.New(llmGateway, searchGateway, registry.Panel(), cfg.Review, log), nil
}
