package service

import (
	"context"
	"errors"
	"time"

	"ai-review-be/internal/entity"
	"ai-review-be/internal/pkg/logger"
	"ai-review-be/internal/repository/specification"
	"ai-review-be/internal/repository/unitofwork"

	"github.com/google/uuid"
)

var ErrArchiveDisabled = errors.New("review archive is not configured")

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type ArchiveFilter struct {
	DocumentID string
	Status     entity.JobStatus
	Severity   entity.Severity
	Agent      entity.AgentID
	Page       int
	Limit      int
}

func (f ArchiveFilter) normalized() ArchiveFilter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = defaultPageSize
	}
	if f.Limit > maxPageSize {
		f.Limit = maxPageSize
	}
	return f
}

func (f ArchiveFilter) specs() []specification.Specification {
	var specs []specification.Specification
	if f.DocumentID != "" {
		specs = append(specs, specification.ByDocumentID{DocumentID: f.DocumentID})
	}
	if f.Status != "" {
		specs = append(specs, specification.ByStatus{Status: string(f.Status)})
	}
	if f.Severity != "" {
		specs = append(specs, specification.HasFindingSeverity{Severity: string(f.Severity)})
	}
	if f.Agent != "" {
		specs = append(specs, specification.ByAgent{Agent: f.Agent.String()})
	}
	return specs
}

// IArchiveService keeps finished reviews in Postgres after they leave memory.
type IArchiveService interface {
	Save(ctx context.Context, snap entity.ReviewJobSnapshot) error
	// Get returns nil when the review was never archived.
	Get(ctx context.Context, id uuid.UUID) (*entity.ReviewJobSnapshot, error)
	List(ctx context.Context, filter ArchiveFilter) ([]*entity.ReviewJobSnapshot, int64, error)
	// Prune removes reviews completed before the cutoff and returns how many.
	Prune(ctx context.Context, before time.Time) (int64, error)
}

type archiveService struct {
	uowFactory unitofwork.RepositoryFactory
	logger     logger.ILogger
}

func NewArchiveService(uowFactory unitofwork.RepositoryFactory, log logger.ILogger) IArchiveService {
	return &archiveService{
		uowFactory: uowFactory,
		logger:     log,
	}
}

func (s *archiveService) Save(ctx context.Context, snap entity.ReviewJobSnapshot) error {
	return unitofwork.Run(ctx, s.uowFactory, func(uow unitofwork.UnitOfWork) error {
		return uow.ReviewRepository().Save(ctx, &snap)
	})
}

func (s *archiveService) Get(ctx context.Context, id uuid.UUID) (*entity.ReviewJobSnapshot, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	return uow.ReviewRepository().FindOne(ctx, specification.ByID{ID: id})
}

func (s *archiveService) List(ctx context.Context, filter ArchiveFilter) ([]*entity.ReviewJobSnapshot, int64, error) {
	filter = filter.normalized()
	specs := filter.specs()
	repo := s.uowFactory.NewUnitOfWork(ctx).ReviewRepository()

	total, err := repo.Count(ctx, specs...)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return nil, 0, nil
	}

	page := append(specs,
		specification.OrderBy{Field: "started_at", Desc: true},
		specification.Page(filter.Page, filter.Limit),
	)
	items, err := repo.FindAll(ctx, page...)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (s *archiveService) Prune(ctx context.Context, before time.Time) (int64, error) {
	var n int64
	err := unitofwork.Run(ctx, s.uowFactory, func(uow unitofwork.UnitOfWork) error {
		var err error
		n, err = uow.ReviewRepository().Purge(ctx, specification.CompletedBefore{Cutoff: before})
		return err
	})
	if err != nil {
		return 0, err
	}

	s.logger.Info("ArchiveService", "Pruned archived reviews", map[string]interface{}{
		"before":  before.Format(time.RFC3339),
		"deleted": n,
	})
	return n, nil
}
