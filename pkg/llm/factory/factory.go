package factory

import (
	"fmt"
	"sort"

	"ai-review-be/pkg/llm"
	"ai-review-be/pkg/llm/ollama"
	"ai-review-be/pkg/llm/openai"
)

// Spec is what the model registry knows about a backend.
type Spec struct {
	// Type is the wire protocol: "ollama" or "openai". OpenAI-compatible
	// hosts such as Anthropic and Gemini use "openai".
	Type    string
	Model   string
	BaseURL string
	APIKey  string
}

type constructor func(s Spec) llm.LLMProvider

var constructors = map[string]constructor{
	"ollama": func(s Spec) llm.LLMProvider {
		return ollama.NewOllamaProvider(orDefault(s.BaseURL, "http://localhost:11434"), s.Model)
	},
	"openai": func(s Spec) llm.LLMProvider {
		return openai.NewOpenAIProvider(orDefault(s.BaseURL, "https://api.openai.com/v1"), s.APIKey, s.Model)
	},
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// SupportedTypes lists the protocols NewLLMProvider accepts.
func SupportedTypes() []string {
	types := make([]string, 0, len(constructors))
	for t := range constructors {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

func NewLLMProvider(s Spec) (llm.LLMProvider, error) {
	build, ok := constructors[s.Type]
	if !ok {
		return nil, fmt.Errorf("unsupported LLM provider type %q (supported: %v)", s.Type, SupportedTypes())
	}
	if s.Model == "" {
		return nil, fmt.Errorf("provider type %s: model is required", s.Type)
	}
	return build(s), nil
}
