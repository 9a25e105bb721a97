package entity

import "time"

// CallMetrics records one model or search invocation.
type CallMetrics struct {
	Agent        AgentID       `json:"agent_id"`
	Model        string        `json:"model"`
	InputTokens  int           `json:"input_tokens"`
	OutputTokens int           `json:"output_tokens"`
	Duration     time.Duration `json:"-"`
	TimeMs       float64       `json:"time_ms"`
	CostUSD      float64       `json:"cost_usd"`
	ChunkIndex   *int          `json:"chunk_index,omitempty"`
	ChunkTotal   *int          `json:"chunk_total,omitempty"`
	Timestamp    time.Time     `json:"timestamp"`
}

// AgentBreakdown is the per-agent rollup in a metrics summary.
type AgentBreakdown struct {
	Agent        AgentID `json:"agent_id"`
	Model        string  `json:"model"`
	Calls        int     `json:"calls"`
	TimeMs       float64 `json:"time_ms"`
	CostUSD      float64 `json:"cost_usd"`
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
}

func (b AgentBreakdown) TotalTokens() int {
	return b.InputTokens + b.OutputTokens
}

type MetricsSummary struct {
	TotalCalls        int               `json:"total_calls"`
	TotalTimeMs       float64           `json:"total_time_ms"`
	TotalCostUSD      float64           `json:"total_cost_usd"`
	TotalInputTokens  int               `json:"total_input_tokens"`
	TotalOutputTokens int               `json:"total_output_tokens"`
	ByAgent           []AgentBreakdown  `json:"by_agent"`
	ByTrack           map[Track]float64 `json:"cost_by_track"`
}
