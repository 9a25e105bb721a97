package gateway

import (
	"fmt"
	"sync"

	"ai-review-be/internal/config"
	"ai-review-be/pkg/llm"
	"ai-review-be/pkg/llm/factory"
)

// RegistryProviders builds one provider client per model from the registry
// and caches it. Base URLs and keys from the environment take precedence for
// the local ollama and openai providers.
type RegistryProviders struct {
	registry *config.Registry
	ai       config.AIConfig

	mu    sync.Mutex
	cache map[string]llm.LLMProvider
}

var _ ProviderSource = (*RegistryProviders)(nil)

func NewRegistryProviders(registry *config.Registry, ai config.AIConfig) *RegistryProviders {
	return &RegistryProviders{
		registry: registry,
		ai:       ai,
		cache:    make(map[string]llm.LLMProvider),
	}
}

func (p *RegistryProviders) ProviderFor(model string) (llm.LLMProvider, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if cached, ok := p.cache[model]; ok {
		return cached, nil
	}

	name, spec, ok := p.registry.Provider(model)
	if !ok {
		return nil, fmt.Errorf("no provider configured for model %q", model)
	}

	baseURL, apiKey := spec.BaseURL, spec.APIKey()
	switch name {
	case "ollama":
		if p.ai.OllamaBaseURL != "" {
			baseURL = p.ai.OllamaBaseURL
		}
	case "openai":
		if p.ai.OpenAIBaseURL != "" {
			baseURL = p.ai.OpenAIBaseURL
		}
		if p.ai.OpenAIAPIKey != "" {
			apiKey = p.ai.OpenAIAPIKey
		}
	}

	provider, err := factory.NewLLMProvider(factory.Spec{Type: spec.Type, Model: model, BaseURL: baseURL, APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("provider %s for model %s: %w", name, model, err)
	}
	p.cache[model] = provider
	return provider, nil
}
