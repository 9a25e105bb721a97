package config

import (
	"testing"

	"ai-review-be/internal/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRegistry_EmbeddedDefault(t *testing.T) {
	r, err := LoadRegistry("")
	require.NoError(t, err)

	assert.Equal(t, "sonar", r.ModelFor(entity.AgentEvidenceSearch))
	assert.Equal(t, "claude-haiku-4-5-20251001", r.ModelFor(entity.AgentClarity))
	assert.Len(t, r.Panel(), 3)

	name, spec, ok := r.Provider("gpt-5")
	require.True(t, ok)
	assert.Equal(t, "openai", name)
	assert.Equal(t, "openai", spec.Type)
}

func TestRegistry_CalculateCost(t *testing.T) {
	r, err := LoadRegistry("")
	require.NoError(t, err)

	tests := []struct {
		name   string
		model  string
		in     int
		out    int
		expect float64
	}{
		{"haiku", "claude-haiku-4-5-20251001", 1_000_000, 1_000_000, 4.8},
		{"opus half", "claude-opus-4-20250514", 500_000, 0, 7.5},
		{"unknown uses default", "mystery-model", 1_000_000, 1_000_000, 18},
		{"zero tokens", "gpt-5", 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expect, r.CalculateCost(tt.model, tt.in, tt.out), 1e-9)
		})
	}
}

func TestParseRegistry_FallsBackToDefaultModel(t *testing.T) {
	r, err := ParseRegistry([]byte("default_model: llama3\n"))
	require.NoError(t, err)
	assert.Equal(t, "llama3", r.ModelFor(entity.AgentAdversary))
}

func TestParseRegistry_Rejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown agent", "default_model: x\nagents:\n  editor: x\n"},
		{"missing default", "agents:\n  clarity: x\n"},
		{"panel too small", "default_model: x\npanel:\n  - name: a\n    model: x\n"},
		{"duplicate backend", "default_model: x\npanel:\n  - name: a\n    model: x\n  - name: a\n    model: y\n"},
		{"broken yaml", "default_model: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRegistry([]byte(tt.yaml))
			assert.ErrorIs(t, err, ErrInvalidRegistry)
		})
	}
}
