// Package progress carries the typed progress events of a review job from the
// orchestrator to its consumers.
package progress

import (
	"encoding/json"
	"fmt"
	"time"

	"ai-review-be/internal/entity"
	"ai-review-be/pkg/events"

	"github.com/google/uuid"
)

type Kind string

const (
	KindPhaseStarted      Kind = "phase_started"
	KindPhaseCompleted    Kind = "phase_completed"
	KindAgentStarted      Kind = "agent_started"
	KindAgentCompleted    Kind = "agent_completed"
	KindChunkCompleted    Kind = "chunk_completed"
	KindFindingDiscovered Kind = "finding_discovered"
	KindReviewCompleted   Kind = "review_completed"
	KindError             Kind = "error"
)

const (
	PhaseBriefing = "briefing"
	PhaseAnalysis = "analysis"
	PhaseCritique = "critique"
	PhaseAssembly = "assembly"
)

// Event is one progress notification. Seq increases by one per job, starting
// at 1, so consumers can merge a replayed log with a live stream.
type Event struct {
	JobID      uuid.UUID `json:"job_id"`
	Seq        int64     `json:"seq"`
	Kind       Kind      `json:"type"`
	OccurredAt time.Time `json:"timestamp"`

	Phase string         `json:"phase,omitempty"`
	Agent entity.AgentID `json:"agent_id,omitempty"`

	// agent_completed
	FindingsCount *int    `json:"findings_count,omitempty"`
	TimeMs        float64 `json:"time_ms,omitempty"`
	CostUSD       float64 `json:"cost_usd,omitempty"`

	// chunk_completed
	ChunkIndex *int `json:"chunk_index,omitempty"`
	ChunkTotal *int `json:"chunk_total,omitempty"`
	Failed     bool `json:"failed,omitempty"`

	Finding *entity.Finding `json:"finding,omitempty"`

	// review_completed
	TotalFindings *int                   `json:"total_findings,omitempty"`
	Status        entity.JobStatus       `json:"status,omitempty"`
	Metrics       *entity.MetricsSummary `json:"metrics,omitempty"`
	Summary       *entity.ReviewSummary  `json:"summary,omitempty"`

	// error
	Message     string `json:"message,omitempty"`
	Recoverable *bool  `json:"recoverable,omitempty"`
}

var _ events.Event = Event{}

func (e Event) EventType() string {
	return "review." + string(e.Kind)
}

// Payload is the JSON object form of the event.
func (e Event) Payload() map[string]interface{} {
	data, err := json.Marshal(e)
	if err != nil {
		return map[string]interface{}{"job_id": e.JobID.String(), "seq": e.Seq, "type": string(e.Kind)}
	}
	var out map[string]interface{}
	_ = json.Unmarshal(data, &out)
	return out
}

// EventID is unique per job and Seq.
func (e Event) EventID() string {
	return fmt.Sprintf("%s:%d", e.JobID, e.Seq)
}

func (e Event) Timestamp() time.Time {
	return e.OccurredAt
}

// Terminal reports whether no event follows this one.
func (e Event) Terminal() bool {
	if e.Kind == KindReviewCompleted {
		return true
	}
	return e.Kind == KindError && e.Recoverable != nil && !*e.Recoverable
}

// SSE renders the event as a server-sent events frame.
func (e Event) SSE() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	return []byte(fmt.Sprintf("id: %d\nevent: %s\ndata: %s\n\n", e.Seq, e.Kind, data)), nil
}

func PhaseStarted(phase string) Event {
	return Event{Kind: KindPhaseStarted, Phase: phase}
}

func PhaseCompleted(phase string) Event {
	return Event{Kind: KindPhaseCompleted, Phase: phase}
}

func AgentStarted(agent entity.AgentID) Event {
	return Event{Kind: KindAgentStarted, Agent: agent}
}

func AgentCompleted(agent entity.AgentID, findings int, usage entity.AgentBreakdown) Event {
	return Event{Kind: KindAgentCompleted, Agent: agent, FindingsCount: &findings, TimeMs: usage.TimeMs, CostUSD: usage.CostUSD}
}

func ChunkCompleted(agent entity.AgentID, index, total, findings int, failed bool) Event {
	return Event{Kind: KindChunkCompleted, Agent: agent, ChunkIndex: &index, ChunkTotal: &total, FindingsCount: &findings, Failed: failed}
}

func FindingDiscovered(f entity.Finding) Event {
	return Event{Kind: KindFindingDiscovered, Agent: f.Agent, Finding: &f}
}

func ReviewCompleted(status entity.JobStatus, total int, summary entity.ReviewSummary, metrics entity.MetricsSummary) Event {
	return Event{Kind: KindReviewCompleted, Status: status, TotalFindings: &total, Summary: &summary, Metrics: &metrics}
}

func Error(agent entity.AgentID, message string, recoverable bool) Event {
	return Event{Kind: KindError, Agent: agent, Message: message, Recoverable: &recoverable}
}

// FromPayload rebuilds an event from the map produced by Payload.
func FromPayload(payload map[string]interface{}) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("decode progress event: %w", err)
	}
	return Decode(data)
}

// Decode parses an event from its JSON form.
func Decode(data []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return Event{}, fmt.Errorf("decode progress event: %w", err)
	}
	return e, nil
}
