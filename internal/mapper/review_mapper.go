package mapper

import (
	"encoding/json"
	"fmt"

	"ai-review-be/internal/entity"
	"ai-review-be/internal/model"

	"gorm.io/datatypes"
)

type ReviewMapper struct{}

func NewReviewMapper() *ReviewMapper {
	return &ReviewMapper{}
}

func (m *ReviewMapper) ToModel(s *entity.ReviewJobSnapshot) (*model.ReviewJob, error) {
	if s == nil {
		return nil, nil
	}

	config, err := toJSON(s.Config)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	summary, err := toJSON(s.Summary)
	if err != nil {
		return nil, fmt.Errorf("summary: %w", err)
	}
	metrics, err := toJSON(s.Metrics)
	if err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}
	evidence, err := toJSON(s.Evidence)
	if err != nil {
		return nil, fmt.Errorf("evidence: %w", err)
	}

	out := &model.ReviewJob{
		Id:          s.ID,
		DocumentId:  s.DocumentID,
		Status:      string(s.Status),
		Config:      config,
		Summary:     summary,
		Metrics:     metrics,
		Evidence:    evidence,
		Error:       s.Error,
		StartedAt:   s.StartedAt,
		CompletedAt: s.CompletedAt,
	}
	for i, f := range s.Findings {
		fm, err := m.findingToModel(s, i, f)
		if err != nil {
			return nil, fmt.Errorf("finding %s: %w", f.ID, err)
		}
		out.Findings = append(out.Findings, *fm)
	}
	return out, nil
}

func (m *ReviewMapper) findingToModel(s *entity.ReviewJobSnapshot, position int, f entity.Finding) (*model.ReviewFinding, error) {
	anchors, err := toJSON(f.Anchors)
	if err != nil {
		return nil, err
	}
	var edit datatypes.JSON
	if f.ProposedEdit != nil {
		if edit, err = toJSON(f.ProposedEdit); err != nil {
			return nil, err
		}
	}
	return &model.ReviewFinding{
		ReviewJobId:  s.ID,
		Id:           f.ID,
		Position:     position,
		AgentId:      f.Agent.String(),
		Category:     string(f.Category),
		Severity:     string(f.Severity),
		Confidence:   f.Confidence,
		Title:        f.Title,
		Description:  f.Description,
		Anchors:      anchors,
		ProposedEdit: edit,
		Votes:        f.Votes,
		Citations:    datatypes.JSONSlice[string](f.Citations),
		Backend:      f.Backend,
		CreatedAt:    f.CreatedAt,
	}, nil
}

// ToSnapshot restores an archived job. Findings must be loaded in Position order.
func (m *ReviewMapper) ToSnapshot(r *model.ReviewJob) (*entity.ReviewJobSnapshot, error) {
	if r == nil {
		return nil, nil
	}

	s := &entity.ReviewJobSnapshot{
		ID:          r.Id,
		DocumentID:  r.DocumentId,
		Status:      entity.JobStatus(r.Status),
		Error:       r.Error,
		StartedAt:   r.StartedAt,
		CompletedAt: r.CompletedAt,
		Findings:    make([]entity.Finding, 0, len(r.Findings)),
	}
	if err := fromJSON(r.Config, &s.Config); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := fromJSON(r.Metrics, &s.Metrics); err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}
	if len(r.Summary) > 0 && string(r.Summary) != "null" {
		s.Summary = &entity.ReviewSummary{}
		if err := fromJSON(r.Summary, s.Summary); err != nil {
			return nil, fmt.Errorf("summary: %w", err)
		}
	}
	if len(r.Evidence) > 0 && string(r.Evidence) != "null" {
		s.Evidence = &entity.EvidenceBundle{}
		if err := fromJSON(r.Evidence, s.Evidence); err != nil {
			return nil, fmt.Errorf("evidence: %w", err)
		}
	}

	for _, fm := range r.Findings {
		f := entity.Finding{
			ID:          fm.Id,
			Agent:       entity.AgentID(fm.AgentId),
			Category:    entity.Category(fm.Category),
			Severity:    entity.Severity(fm.Severity),
			Confidence:  fm.Confidence,
			Title:       fm.Title,
			Description: fm.Description,
			Votes:       fm.Votes,
			Citations:   []string(fm.Citations),
			Backend:     fm.Backend,
			CreatedAt:   fm.CreatedAt,
		}
		if err := fromJSON(fm.Anchors, &f.Anchors); err != nil {
			return nil, fmt.Errorf("finding %s anchors: %w", fm.Id, err)
		}
		if len(fm.ProposedEdit) > 0 && string(fm.ProposedEdit) != "null" {
			f.ProposedEdit = &entity.ProposedEdit{}
			if err := fromJSON(fm.ProposedEdit, f.ProposedEdit); err != nil {
				return nil, fmt.Errorf("finding %s edit: %w", fm.Id, err)
			}
		}
		s.Findings = append(s.Findings, f)
	}
	return s, nil
}

func toJSON(v any) (datatypes.JSON, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(data), nil
}

func fromJSON(data datatypes.JSON, v any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}
