package metrics

import (
	"sync"
	"testing"

	"ai-review-be/internal/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregator_Summary(t *testing.T) {
	a := NewAggregator()
	a.Add(entity.CallMetrics{Agent: entity.AgentClarity, Model: "m1", InputTokens: 100, OutputTokens: 10, TimeMs: 50, CostUSD: 0.01})
	a.Add(entity.CallMetrics{Agent: entity.AgentClarity, Model: "m1", InputTokens: 200, OutputTokens: 20, TimeMs: 70, CostUSD: 0.02})
	a.Add(entity.CallMetrics{Agent: entity.AgentAdversary, Model: "m2", InputTokens: 300, OutputTokens: 30, TimeMs: 100, CostUSD: 0.5})

	s := a.Summary()
	assert.Equal(t, 3, s.TotalCalls)
	assert.Equal(t, 600, s.TotalInputTokens)
	assert.Equal(t, 60, s.TotalOutputTokens)
	assert.InDelta(t, 220.0, s.TotalTimeMs, 1e-9)
	assert.InDelta(t, 0.53, s.TotalCostUSD, 1e-9)
	assert.InDelta(t, 0.03, s.ByTrack[entity.TrackClarity], 1e-9)

	require.Len(t, s.ByAgent, 2)
	assert.Equal(t, entity.AgentAdversary, s.ByAgent[0].Agent)
	clarity := a.ForAgent(entity.AgentClarity)
	assert.Equal(t, 2, clarity.Calls)
	assert.Equal(t, 330, clarity.TotalTokens())
}

func TestAggregator_MixedModels(t *testing.T) {
	a := NewAggregator()
	a.Add(entity.CallMetrics{Agent: entity.AgentAdversaryPanel, Model: "a"})
	a.Add(entity.CallMetrics{Agent: entity.AgentAdversaryPanel, Model: "b"})

	assert.Equal(t, "mixed", a.ForAgent(entity.AgentAdversaryPanel).Model)
}

func TestAggregator_ConcurrentAdd(t *testing.T) {
	a := NewAggregator()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.Add(entity.CallMetrics{Agent: entity.AgentClarity, CostUSD: 0.001})
		}()
	}
	wg.Wait()

	assert.Len(t, a.Records(), 50)
	assert.InDelta(t, 0.05, a.Summary().TotalCostUSD, 1e-9)
}
