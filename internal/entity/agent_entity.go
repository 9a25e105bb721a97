package entity

import (
	"encoding/json"
	"fmt"
)

// AgentID identifies the procedure that invoked a model or produced a finding.
// The set is closed: values outside agentTable are rejected on parse.
type AgentID string

const (
	AgentBriefing           AgentID = "briefing"
	AgentClarity            AgentID = "clarity"
	AgentRigorFind          AgentID = "rigor_find"
	AgentRigorRewrite       AgentID = "rigor_rewrite"
	AgentEvidenceTargets    AgentID = "evidence_targets"
	AgentEvidenceQueries    AgentID = "evidence_queries"
	AgentEvidenceSearch     AgentID = "evidence_search"
	AgentEvidenceSynthesis  AgentID = "evidence_synthesis"
	AgentEvidence           AgentID = "evidence"
	AgentAdversary          AgentID = "adversary"
	AgentAdversaryPanel     AgentID = "adversary_panel"
	AgentAdversaryReconcile AgentID = "adversary_reconcile"
)

// Track groups agents for conflict resolution and presentation.
type Track string

const (
	TrackBriefing  Track = "briefing"
	TrackClarity   Track = "clarity"
	TrackRigor     Track = "rigor"
	TrackEvidence  Track = "evidence"
	TrackAdversary Track = "adversary"
)

type trackInfo struct {
	// rank: lower wins an overlap conflict
	rank int
	// order: position in the final presentation
	order int
}

var trackTable = map[Track]trackInfo{
	TrackAdversary: {rank: 1, order: 4},
	TrackRigor:     {rank: 2, order: 2},
	TrackEvidence:  {rank: 2, order: 3},
	TrackClarity:   {rank: 3, order: 1},
	TrackBriefing:  {rank: 4, order: 5},
}

var agentTable = map[AgentID]Track{
	AgentBriefing:           TrackBriefing,
	AgentClarity:            TrackClarity,
	AgentRigorFind:          TrackRigor,
	AgentRigorRewrite:       TrackRigor,
	AgentEvidenceTargets:    TrackEvidence,
	AgentEvidenceQueries:    TrackEvidence,
	AgentEvidenceSearch:     TrackEvidence,
	AgentEvidenceSynthesis:  TrackEvidence,
	AgentEvidence:           TrackEvidence,
	AgentAdversary:          TrackAdversary,
	AgentAdversaryPanel:     TrackAdversary,
	AgentAdversaryReconcile: TrackAdversary,
}

// AllAgents lists every agent in a stable order.
func AllAgents() []AgentID {
	return []AgentID{
		AgentBriefing,
		AgentClarity,
		AgentRigorFind,
		AgentRigorRewrite,
		AgentEvidenceTargets,
		AgentEvidenceQueries,
		AgentEvidenceSearch,
		AgentEvidenceSynthesis,
		AgentEvidence,
		AgentAdversary,
		AgentAdversaryPanel,
		AgentAdversaryReconcile,
	}
}

func ParseAgentID(s string) (AgentID, error) {
	id := AgentID(s)
	if !id.Valid() {
		return "", fmt.Errorf("unknown agent id %q", s)
	}
	return id, nil
}

func (a AgentID) Valid() bool {
	_, ok := agentTable[a]
	return ok
}

func (a AgentID) String() string {
	return string(a)
}

func (a AgentID) Track() Track {
	return agentTable[a]
}

// Rank is the conflict priority of the agent's track. Unknown agents rank last.
func (a AgentID) Rank() int {
	info, ok := trackTable[a.Track()]
	if !ok {
		return len(trackTable) + 1
	}
	return info.rank
}

// PresentationOrder is the position of the agent's track in the final list.
func (a AgentID) PresentationOrder() int {
	info, ok := trackTable[a.Track()]
	if !ok {
		return len(trackTable) + 1
	}
	return info.order
}

func (a *AgentID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	id, err := ParseAgentID(s)
	if err != nil {
		return err
	}
	*a = id
	return nil
}

func (a AgentID) MarshalYAML() (interface{}, error) {
	return string(a), nil
}

func (a *AgentID) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	id, err := ParseAgentID(s)
	if err != nil {
		return err
	}
	*a = id
	return nil
}
