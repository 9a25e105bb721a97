package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ai-review-be/internal/dto"
	"ai-review-be/internal/entity"
	"ai-review-be/internal/pkg/logger"
	"ai-review-be/internal/repository/memory"
	"ai-review-be/internal/review/progress"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
)

var ErrJobNotFound = errors.New("review job not found")

const archiveTimeout = 30 * time.Second

// ReviewRunner executes one review job to a terminal state.
type ReviewRunner interface {
	Run(ctx context.Context, job *entity.ReviewJob, doc *entity.Document, emit *progress.Emitter) *entity.ReviewJob
}

// EventBus carries progress events between the running job and its watchers.
type EventBus interface {
	message.Publisher
	message.Subscriber
}

type IReviewService interface {
	Start(ctx context.Context, doc *entity.Document, cfg entity.ReviewConfig) (uuid.UUID, error)
	Events(ctx context.Context, jobId uuid.UUID) (<-chan progress.Event, error)
	History(ctx context.Context, jobId uuid.UUID) ([]progress.Event, error)
	Result(ctx context.Context, jobId uuid.UUID) (*dto.ReviewResultResponse, error)
	Cancel(ctx context.Context, jobId uuid.UUID) error
	List(ctx context.Context, req dto.ListReviewsRequest) (*dto.ListReviewsResponse, error)
}

type reviewService struct {
	runner  ReviewRunner
	jobs    *memory.JobRepository
	archive IArchiveService
	bus     EventBus
	hub     progress.JobBroadcaster
	natsPub progress.EventPublisher
	logger  logger.ILogger
}

// NewReviewService wires the job registry and event sinks. archive, hub and
// natsPub are optional.
func NewReviewService(
	runner ReviewRunner,
	jobs *memory.JobRepository,
	archive IArchiveService,
	bus EventBus,
	hub progress.JobBroadcaster,
	natsPub progress.EventPublisher,
	log logger.ILogger,
) IReviewService {
	return &reviewService{
		runner:  runner,
		jobs:    jobs,
		archive: archive,
		bus:     bus,
		hub:     hub,
		natsPub: natsPub,
		logger:  log,
	}
}

func (s *reviewService) sinks() []progress.Sink {
	sinks := []progress.Sink{progress.NewLogSink(s.logger)}
	if s.bus != nil {
		sinks = append(sinks, progress.NewBusSink(s.bus))
	}
	if s.hub != nil {
		sinks = append(sinks, progress.NewHubSink(s.hub))
	}
	if s.natsPub != nil {
		sinks = append(sinks, progress.NewNatsSink(s.natsPub))
	}
	return sinks
}

// Start registers the job and runs it in the background. The job outlives the
// request context; it ends on completion, deadline or Cancel.
func (s *reviewService) Start(ctx context.Context, doc *entity.Document, cfg entity.ReviewConfig) (uuid.UUID, error) {
	if doc == nil {
		return uuid.Nil, fmt.Errorf("%w: missing document", entity.ErrInvalidDocument)
	}

	job := entity.NewReviewJob(doc.ID(), cfg)
	runCtx, cancel := context.WithCancel(context.Background())
	entry := &memory.JobEntry{
		Job:      job,
		Document: doc,
		Emitter:  progress.NewEmitter(job.ID(), s.logger, s.sinks()...),
		Cancel:   cancel,
	}
	s.jobs.Save(entry)

	s.logger.Info("ReviewService", "Job accepted", map[string]interface{}{
		"job_id":      job.ID().String(),
		"document_id": doc.ID(),
		"panel_mode":  cfg.PanelMode,
	})

	go func() {
		defer cancel()
		s.runner.Run(runCtx, job, doc, entry.Emitter)
		entry.Emitter.Close()
		s.archiveJob(job.Snapshot())
	}()

	return job.ID(), nil
}

func (s *reviewService) archiveJob(snap entity.ReviewJobSnapshot) {
	if s.archive == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
	defer cancel()

	if err := s.archive.Save(ctx, snap); err != nil {
		s.logger.Error("ReviewService", "Archive failed", map[string]interface{}{"job_id": snap.ID.String(), "error": err.Error()})
		return
	}
	s.logger.Info("ReviewService", "Job archived", map[string]interface{}{
		"job_id":   snap.ID.String(),
		"status":   string(snap.Status),
		"findings": len(snap.Findings),
	})
}

// Events replays the job's event log and then follows it live. Bus messages
// only wake the stream; events are always read from the log so they arrive
// once each and in Seq order. The channel closes after a terminal event or
// when ctx ends.
func (s *reviewService) Events(ctx context.Context, jobId uuid.UUID) (<-chan progress.Event, error) {
	entry, ok := s.jobs.Get(jobId)
	if !ok {
		return nil, ErrJobNotFound
	}

	ctx, stop := context.WithCancel(ctx)
	var wake <-chan *message.Message
	if s.bus != nil {
		msgs, err := s.bus.Subscribe(ctx, progress.Topic(jobId))
		if err != nil {
			stop()
			return nil, fmt.Errorf("subscribe to job %s: %w", jobId, err)
		}
		wake = msgs
	}

	out := make(chan progress.Event, 64)
	go func() {
		defer close(out)
		defer stop()
		var sent int

		flush := func() bool {
			history := entry.Emitter.History()
			for ; sent < len(history); sent++ {
				ev := history[sent]
				select {
				case out <- ev:
				case <-ctx.Done():
					return true
				}
				if ev.Terminal() {
					return true
				}
			}
			return false
		}

		if flush() {
			return
		}

		// Without a bus, or when a sink skipped events under load, the log is
		// polled so a watcher never hangs on a finished job.
		ticker := time.NewTicker(500 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-wake:
				if !ok {
					wake = nil
					continue
				}
				msg.Ack()
			case <-ticker.C:
			}
			if flush() {
				return
			}
		}
	}()

	return out, nil
}

// History returns the events emitted so far by a live job.
func (s *reviewService) History(ctx context.Context, jobId uuid.UUID) ([]progress.Event, error) {
	entry, ok := s.jobs.Get(jobId)
	if !ok {
		return nil, ErrJobNotFound
	}
	return entry.Emitter.History(), nil
}

func (s *reviewService) Result(ctx context.Context, jobId uuid.UUID) (*dto.ReviewResultResponse, error) {
	if entry, ok := s.jobs.Get(jobId); ok {
		return dto.NewReviewResultResponse(entry.Job.Snapshot()), nil
	}
	if s.archive == nil {
		return nil, ErrJobNotFound
	}

	snap, err := s.archive.Get(ctx, jobId)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return nil, ErrJobNotFound
	}
	return dto.NewReviewResultResponse(*snap), nil
}

// Cancel stops a running job. The job still reaches a terminal state and
// keeps whatever findings had settled.
func (s *reviewService) Cancel(ctx context.Context, jobId uuid.UUID) error {
	entry, ok := s.jobs.Get(jobId)
	if !ok {
		return ErrJobNotFound
	}
	if entry.Job.Status().Terminal() {
		return nil
	}
	entry.Cancel()
	s.logger.Info("ReviewService", "Job cancel requested", map[string]interface{}{"job_id": jobId.String()})
	return nil
}

// List pages through archived reviews, newest first. Jobs still in memory
// appear once they finish.
func (s *reviewService) List(ctx context.Context, req dto.ListReviewsRequest) (*dto.ListReviewsResponse, error) {
	if s.archive == nil {
		return nil, ErrArchiveDisabled
	}

	filter := ArchiveFilter{
		DocumentID: req.DocumentId,
		Status:     entity.JobStatus(req.Status),
		Severity:   entity.Severity(req.Severity),
		Agent:      entity.AgentID(req.Agent),
		Page:       req.Page,
		Limit:      req.Limit,
	}.normalized()
	snaps, total, err := s.archive.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	items := make([]dto.ReviewListItem, 0, len(snaps))
	for _, snap := range snaps {
		items = append(items, dto.NewReviewListItem(*snap))
	}
	return &dto.ListReviewsResponse{
		Items: items,
		Total: total,
		Page:  filter.Page,
		Limit: filter.Limit,
	}, nil
}
