package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"

	"ai-review-be/internal/entity"

	"gopkg.in/yaml.v3"
)

//go:embed models.yaml
var defaultRegistryYAML []byte

const (
	MinPanelSize = 2
	MaxPanelSize = 3
)

var ErrInvalidRegistry = errors.New("invalid model registry")

type ProviderSpec struct {
	Type      string `yaml:"type"`
	BaseURL   string `yaml:"base_url"`
	APIKeyEnv string `yaml:"api_key_env"`
}

// APIKey resolves the provider key from the environment.
func (p ProviderSpec) APIKey() string {
	if p.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(p.APIKeyEnv)
}

type ModelCost struct {
	Input  float64 `yaml:"input_cost"`
	Output float64 `yaml:"output_cost"`
}

type ModelSpec struct {
	Provider  string `yaml:"provider"`
	ModelCost `yaml:",inline"`
}

type PanelBackend struct {
	Name  string `yaml:"name"`
	Model string `yaml:"model"`
}

type registryFile struct {
	Providers    map[string]ProviderSpec `yaml:"providers"`
	Models       map[string]ModelSpec    `yaml:"models"`
	DefaultCost  ModelCost               `yaml:"default_cost"`
	DefaultModel string                  `yaml:"default_model"`
	Agents       map[string]string       `yaml:"agents"`
	Panel        []PanelBackend          `yaml:"panel"`
}

// Registry maps agents to models and models to prices. It is built once and
// never modified, so it is shared freely between goroutines.
type Registry struct {
	providers    map[string]ProviderSpec
	models       map[string]ModelSpec
	defaultCost  ModelCost
	defaultModel string
	agents       map[entity.AgentID]string
	panel        []PanelBackend
}

// LoadRegistry reads the registry from path, or the embedded default when path is empty.
func LoadRegistry(path string) (*Registry, error) {
	data := defaultRegistryYAML
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read model registry: %w", err)
		}
		data = b
	}
	return ParseRegistry(data)
}

func ParseRegistry(data []byte) (*Registry, error) {
	var f registryFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRegistry, err)
	}

	r := &Registry{
		providers:    f.Providers,
		models:       f.Models,
		defaultCost:  f.DefaultCost,
		defaultModel: f.DefaultModel,
		agents:       make(map[entity.AgentID]string, len(f.Agents)),
		panel:        append([]PanelBackend(nil), f.Panel...),
	}
	if r.providers == nil {
		r.providers = map[string]ProviderSpec{}
	}
	if r.models == nil {
		r.models = map[string]ModelSpec{}
	}

	for name, model := range f.Agents {
		id, err := entity.ParseAgentID(name)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRegistry, err)
		}
		r.agents[id] = model
	}

	if r.defaultModel == "" {
		return nil, fmt.Errorf("%w: default_model is required", ErrInvalidRegistry)
	}
	if len(r.panel) != 0 && (len(r.panel) < MinPanelSize || len(r.panel) > MaxPanelSize) {
		return nil, fmt.Errorf("%w: panel needs %d..%d backends, got %d", ErrInvalidRegistry, MinPanelSize, MaxPanelSize, len(r.panel))
	}
	seen := make(map[string]bool, len(r.panel))
	for _, b := range r.panel {
		if b.Name == "" || b.Model == "" {
			return nil, fmt.Errorf("%w: panel backend needs name and model", ErrInvalidRegistry)
		}
		if seen[b.Name] {
			return nil, fmt.Errorf("%w: duplicate panel backend %q", ErrInvalidRegistry, b.Name)
		}
		seen[b.Name] = true
	}

	return r, nil
}

// ModelFor returns the model configured for the agent, or the default model.
func (r *Registry) ModelFor(agent entity.AgentID) string {
	if m, ok := r.agents[agent]; ok && m != "" {
		return m
	}
	return r.defaultModel
}

func (r *Registry) Cost(model string) ModelCost {
	if m, ok := r.models[model]; ok {
		return m.ModelCost
	}
	return r.defaultCost
}

// CalculateCost prices a call in USD from its token counts.
func (r *Registry) CalculateCost(model string, inputTokens, outputTokens int) float64 {
	c := r.Cost(model)
	return float64(inputTokens)/1_000_000*c.Input + float64(outputTokens)/1_000_000*c.Output
}

// Provider returns the provider name and spec serving the model.
func (r *Registry) Provider(model string) (string, ProviderSpec, bool) {
	m, ok := r.models[model]
	if !ok {
		return "", ProviderSpec{}, false
	}
	p, ok := r.providers[m.Provider]
	return m.Provider, p, ok
}

func (r *Registry) Panel() []PanelBackend {
	return append([]PanelBackend(nil), r.panel...)
}

// Models lists every model with a known provider, sorted by name.
func (r *Registry) Models() []string {
	names := make([]string, 0, len(r.models))
	for name := range r.models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
