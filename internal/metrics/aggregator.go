package metrics

import (
	"sort"
	"sync"

	"ai-review-be/internal/entity"
)

// Aggregator accumulates call metrics for one review job. Records are only
// appended; summaries are computed on demand.
type Aggregator struct {
	mu      sync.Mutex
	records []entity.CallMetrics
}

func NewAggregator() *Aggregator {
	return &Aggregator{}
}

func (a *Aggregator) Add(m entity.CallMetrics) {
	a.mu.Lock()
	a.records = append(a.records, m)
	a.mu.Unlock()
}

// Records returns a copy of every recorded call in arrival order.
func (a *Aggregator) Records() []entity.CallMetrics {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]entity.CallMetrics(nil), a.records...)
}

// ForAgent sums the calls recorded for one agent.
func (a *Aggregator) ForAgent(agent entity.AgentID) entity.AgentBreakdown {
	for _, b := range a.ByAgent() {
		if b.Agent == agent {
			return b
		}
	}
	return entity.AgentBreakdown{Agent: agent}
}

// ByAgent rolls records up per agent, sorted by agent id.
func (a *Aggregator) ByAgent() []entity.AgentBreakdown {
	records := a.Records()

	byAgent := make(map[entity.AgentID]*entity.AgentBreakdown)
	for _, r := range records {
		b, ok := byAgent[r.Agent]
		if !ok {
			b = &entity.AgentBreakdown{Agent: r.Agent, Model: r.Model}
			byAgent[r.Agent] = b
		}
		if b.Model != r.Model {
			b.Model = "mixed"
		}
		b.Calls++
		b.TimeMs += r.TimeMs
		b.CostUSD += r.CostUSD
		b.InputTokens += r.InputTokens
		b.OutputTokens += r.OutputTokens
	}

	out := make([]entity.AgentBreakdown, 0, len(byAgent))
	for _, b := range byAgent {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Agent < out[j].Agent })
	return out
}

func (a *Aggregator) Summary() entity.MetricsSummary {
	byAgent := a.ByAgent()

	s := entity.MetricsSummary{
		ByAgent: byAgent,
		ByTrack: make(map[entity.Track]float64),
	}
	for _, b := range byAgent {
		s.TotalCalls += b.Calls
		s.TotalTimeMs += b.TimeMs
		s.TotalCostUSD += b.CostUSD
		s.TotalInputTokens += b.InputTokens
		s.TotalOutputTokens += b.OutputTokens
		s.ByTrack[b.Agent.Track()] += b.CostUSD
	}
	return s
}
