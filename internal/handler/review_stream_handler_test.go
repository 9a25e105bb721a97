package handler

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"ai-review-be/internal/dto"
	"ai-review-be/internal/entity"
	"ai-review-be/internal/pkg/logger"
	"ai-review-be/internal/pkg/serverutils"
	"ai-review-be/internal/review/progress"
	"ai-review-be/internal/service"
	internalWS "ai-review-be/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type streamService struct {
	jobId  uuid.UUID
	events []progress.Event
}

func (s *streamService) Start(context.Context, *entity.Document, entity.ReviewConfig) (uuid.UUID, error) {
	return s.jobId, nil
}

func (s *streamService) Events(_ context.Context, id uuid.UUID) (<-chan progress.Event, error) {
	if id != s.jobId {
		return nil, service.ErrJobNotFound
	}
	ch := make(chan progress.Event, len(s.events))
	for _, e := range s.events {
		ch <- e
	}
	close(ch)
	return ch, nil
}

func (s *streamService) History(_ context.Context, id uuid.UUID) ([]progress.Event, error) {
	if id != s.jobId {
		return nil, service.ErrJobNotFound
	}
	return s.events, nil
}

func (s *streamService) Result(context.Context, uuid.UUID) (*dto.ReviewResultResponse, error) {
	return nil, service.ErrJobNotFound
}

func (s *streamService) Cancel(context.Context, uuid.UUID) error {
	return nil
}

func (s *streamService) List(context.Context, dto.ListReviewsRequest) (*dto.ListReviewsResponse, error) {
	return nil, service.ErrArchiveDisabled
}

func newStreamApp(svc service.IReviewService) *fiber.App {
	app := fiber.New()
	app.Use(serverutils.ErrorHandlerMiddleware())
	hub := internalWS.NewHub(nil, logger.NewNopLogger())
	NewReviewStreamHandler(svc, hub, logger.NewNopLogger()).RegisterRoutes(app.Group("/api"))
	return app
}

func TestServeEvents_StreamsSSEFrames(t *testing.T) {
	jobId := uuid.New()
	started := progress.PhaseStarted(progress.PhaseBriefing)
	started.Seq, started.JobID = 1, jobId
	done := progress.ReviewCompleted(entity.JobCompleted, 0, entity.ReviewSummary{}, entity.MetricsSummary{})
	done.Seq, done.JobID = 2, jobId

	app := newStreamApp(&streamService{jobId: jobId, events: []progress.Event{started, done}})

	req := httptest.NewRequest(http.MethodGet, "/api/review/v1/"+jobId.String()+"/events", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	body := string(raw)
	assert.Contains(t, body, "id: 1\nevent: phase_started\n")
	assert.Contains(t, body, "id: 2\nevent: review_completed\n")
	assert.Less(t, strings.Index(body, "phase_started"), strings.Index(body, "review_completed"))
}

func TestStreamRoutes_Errors(t *testing.T) {
	app := newStreamApp(&streamService{jobId: uuid.New()})

	tests := []struct {
		name string
		path string
		want int
	}{
		{"events of unknown job", "/api/review/v1/" + uuid.NewString() + "/events", http.StatusNotFound},
		{"ws of unknown job", "/api/review/v1/" + uuid.NewString() + "/ws", http.StatusNotFound},
		{"bad id", "/api/review/v1/nope/events", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := app.Test(httptest.NewRequest(http.MethodGet, tt.path, nil), -1)
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestServeWs_RequiresUpgrade(t *testing.T) {
	jobId := uuid.New()
	app := newStreamApp(&streamService{jobId: jobId})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/review/v1/"+jobId.String()+"/ws", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUpgradeRequired, resp.StatusCode)
}
