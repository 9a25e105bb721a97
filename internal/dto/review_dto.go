package dto

import (
	"time"

	"ai-review-be/internal/entity"

	"github.com/google/uuid"
)

type SentenceRequest struct {
	Id    string `json:"id" validate:"required"`
	Text  string `json:"text"`
	Start int    `json:"start" validate:"gte=0"`
	End   int    `json:"end" validate:"gtefield=Start"`
}

type ParagraphRequest struct {
	Id        string            `json:"id" validate:"required"`
	Text      string            `json:"text" validate:"required"`
	Sentences []SentenceRequest `json:"sentences" validate:"dive"`
}

type SectionRequest struct {
	Id         string             `json:"id" validate:"required"`
	Title      string             `json:"title"`
	Level      int                `json:"level" validate:"gte=0"`
	Paragraphs []ParagraphRequest `json:"paragraphs" validate:"dive"`
}

type DocumentRequest struct {
	Id       string           `json:"id" validate:"required"`
	Title    string           `json:"title"`
	Sections []SectionRequest `json:"sections" validate:"required,min=1,dive"`
}

type ReviewConfigRequest struct {
	PanelMode    bool     `json:"panel_mode"`
	FocusChips   []string `json:"focus_chips" validate:"max=10"`
	SteeringMemo string   `json:"steering_memo" validate:"max=4000"`
	EnableDomain *bool    `json:"enable_domain"`
	Depth        string   `json:"depth" validate:"omitempty,oneof=quick standard deep"`
}

type StartReviewRequest struct {
	Document DocumentRequest      `json:"document" validate:"required"`
	Config   *ReviewConfigRequest `json:"config"`
}

type StartReviewResponse struct {
	JobId uuid.UUID `json:"job_id"`
}

type ReviewResultResponse struct {
	JobId        uuid.UUID              `json:"job_id"`
	DocumentId   string                 `json:"document_id"`
	Status       entity.JobStatus       `json:"status"`
	CurrentPhase string                 `json:"current_phase,omitempty"`
	Findings     []entity.Finding       `json:"findings"`
	Summary      *entity.ReviewSummary  `json:"summary,omitempty"`
	Metrics      entity.MetricsSummary  `json:"metrics"`
	Evidence     *entity.EvidenceBundle `json:"evidence,omitempty"`
	Error        string                 `json:"error,omitempty"`
	StartedAt    time.Time              `json:"started_at"`
	CompletedAt  *time.Time             `json:"completed_at,omitempty"`
}

// ToDocument converts the request body into the validated domain document.
func (r DocumentRequest) ToDocument() (*entity.Document, error) {
	sections := make([]entity.Section, 0, len(r.Sections))
	for _, s := range r.Sections {
		sec := entity.Section{ID: s.Id, Title: s.Title, Level: s.Level}
		for _, p := range s.Paragraphs {
			para := entity.Paragraph{ID: p.Id, Text: p.Text}
			for _, st := range p.Sentences {
				para.Sentences = append(para.Sentences, entity.Sentence{ID: st.Id, Text: st.Text, Start: st.Start, End: st.End})
			}
			sec.Paragraphs = append(sec.Paragraphs, para)
		}
		sections = append(sections, sec)
	}
	return entity.NewDocument(r.Id, r.Title, sections)
}

// ToConfig applies the request over the default review configuration.
func (r *ReviewConfigRequest) ToConfig() entity.ReviewConfig {
	cfg := entity.DefaultReviewConfig()
	if r == nil {
		return cfg
	}
	cfg.PanelMode = r.PanelMode
	cfg.FocusHints = r.FocusChips
	cfg.Steering = r.SteeringMemo
	if r.EnableDomain != nil {
		cfg.EnableEvidence = *r.EnableDomain
	}
	if r.Depth != "" {
		cfg.Depth = entity.Depth(r.Depth)
	}
	return cfg
}

func NewReviewResultResponse(s entity.ReviewJobSnapshot) *ReviewResultResponse {
	findings := s.Findings
	if findings == nil {
		findings = make([]entity.Finding, 0)
	}
	return &ReviewResultResponse{
		JobId:        s.ID,
		DocumentId:   s.DocumentID,
		Status:       s.Status,
		CurrentPhase: s.CurrentPhase,
		Findings:     findings,
		Summary:      s.Summary,
		Metrics:      s.Metrics,
		Evidence:     s.Evidence,
		Error:        s.Error,
		StartedAt:    s.StartedAt,
		CompletedAt:  s.CompletedAt,
	}
}

type ListReviewsRequest struct {
	DocumentId string `query:"document_id"`
	Status     string `query:"status" validate:"omitempty,oneof=completed failed"`
	Severity   string `query:"severity" validate:"omitempty,oneof=critical major minor suggestion"`
	Agent      string `query:"agent_id"`
	Page       int    `query:"page" validate:"omitempty,min=1"`
	Limit      int    `query:"limit" validate:"omitempty,min=1,max=100"`
}

// ReviewListItem is the archive listing row; findings are fetched through Show.
type ReviewListItem struct {
	JobId         uuid.UUID        `json:"job_id"`
	DocumentId    string           `json:"document_id"`
	Status        entity.JobStatus `json:"status"`
	TotalFindings int              `json:"total_findings"`
	CostUSD       float64          `json:"cost_usd"`
	Error         string           `json:"error,omitempty"`
	StartedAt     time.Time        `json:"started_at"`
	CompletedAt   *time.Time       `json:"completed_at,omitempty"`
}

type ListReviewsResponse struct {
	Items []ReviewListItem `json:"items"`
	Total int64            `json:"total"`
	Page  int              `json:"page"`
	Limit int              `json:"limit"`
}

func NewReviewListItem(s entity.ReviewJobSnapshot) ReviewListItem {
	return ReviewListItem{
		JobId:         s.ID,
		DocumentId:    s.DocumentID,
		Status:        s.Status,
		TotalFindings: len(s.Findings),
		CostUSD:       s.Metrics.TotalCostUSD,
		Error:         s.Error,
		StartedAt:     s.StartedAt,
		CompletedAt:   s.CompletedAt,
	}
}
