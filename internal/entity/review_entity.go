package entity

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrInvalidTransition = errors.New("invalid job status transition")

type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

type Depth string

const (
	DepthQuick    Depth = "quick"
	DepthStandard Depth = "standard"
	DepthDeep     Depth = "deep"
)

type ReviewConfig struct {
	PanelMode      bool     `json:"panel_mode"`
	FocusHints     []string `json:"focus_chips"`
	Steering       string   `json:"steering_memo"`
	EnableEvidence bool     `json:"enable_domain"`
	Depth          Depth    `json:"depth"`
}

func DefaultReviewConfig() ReviewConfig {
	return ReviewConfig{EnableEvidence: true, Depth: DepthStandard}
}

// ReviewJob is the mutable state of one review run. The orchestrator is the
// only writer; readers take a Snapshot.
type ReviewJob struct {
	mu sync.RWMutex

	id           uuid.UUID
	documentID   string
	config       ReviewConfig
	status       JobStatus
	currentPhase string
	findings     []Finding
	summary      *ReviewSummary
	metrics      MetricsSummary
	evidence     *EvidenceBundle
	err          string
	startedAt    time.Time
	completedAt  *time.Time
}

func NewReviewJob(documentID string, cfg ReviewConfig) *ReviewJob {
	return &ReviewJob{
		id:         uuid.New(),
		documentID: documentID,
		config:     cfg,
		status:     JobPending,
		startedAt:  time.Now(),
	}
}

func (j *ReviewJob) ID() uuid.UUID {
	return j.id
}

func (j *ReviewJob) Config() ReviewConfig {
	return j.config
}

func (j *ReviewJob) Status() JobStatus {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.status
}

// Transition moves the job along pending -> running -> completed|failed.
func (j *ReviewJob) Transition(to JobStatus) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	allowed := false
	switch j.status {
	case JobPending:
		allowed = to == JobRunning || to == JobFailed
	case JobRunning:
		allowed = to == JobCompleted || to == JobFailed
	}
	if !allowed {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.status, to)
	}

	j.status = to
	if to == JobRunning {
		j.startedAt = time.Now()
	}
	if to.Terminal() {
		now := time.Now()
		j.completedAt = &now
	}
	return nil
}

func (j *ReviewJob) SetPhase(phase string) {
	j.mu.Lock()
	j.currentPhase = phase
	j.mu.Unlock()
}

func (j *ReviewJob) SetError(msg string) {
	j.mu.Lock()
	j.err = msg
	j.mu.Unlock()
}

func (j *ReviewJob) SetResult(findings []Finding, summary ReviewSummary, metrics MetricsSummary) {
	j.mu.Lock()
	j.findings = append([]Finding(nil), findings...)
	j.summary = &summary
	j.metrics = metrics
	j.mu.Unlock()
}

func (j *ReviewJob) SetEvidence(bundle EvidenceBundle) {
	j.mu.Lock()
	j.evidence = &bundle
	j.mu.Unlock()
}

// ReviewJobSnapshot is a point-in-time copy of a job, safe to serialize.
type ReviewJobSnapshot struct {
	ID           uuid.UUID       `json:"id"`
	DocumentID   string          `json:"document_id"`
	Config       ReviewConfig    `json:"config"`
	Status       JobStatus       `json:"status"`
	CurrentPhase string          `json:"current_phase,omitempty"`
	Findings     []Finding       `json:"findings"`
	Summary      *ReviewSummary  `json:"summary,omitempty"`
	Metrics      MetricsSummary  `json:"metrics"`
	Evidence     *EvidenceBundle `json:"evidence,omitempty"`
	Error        string          `json:"error,omitempty"`
	StartedAt    time.Time       `json:"started_at"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
}

func (j *ReviewJob) Snapshot() ReviewJobSnapshot {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return ReviewJobSnapshot{
		ID:           j.id,
		DocumentID:   j.documentID,
		Config:       j.config,
		Status:       j.status,
		CurrentPhase: j.currentPhase,
		Findings:     append([]Finding(nil), j.findings...),
		Summary:      j.summary,
		Metrics:      j.metrics,
		Evidence:     j.evidence,
		Error:        j.err,
		StartedAt:    j.startedAt,
		CompletedAt:  j.completedAt,
	}
}

// ReviewSummary counts the assembled findings.
type ReviewSummary struct {
	TotalFindings int              `json:"total_findings"`
	ByTrack       map[Track]int    `json:"by_track"`
	BySeverity    map[Severity]int `json:"by_severity"`
	ByCategory    map[Category]int `json:"by_category"`
}
