package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"

	"ai-review-be/internal/pkg/logger"
	"ai-review-be/internal/pkg/serverutils"
	"ai-review-be/internal/service"
	internalWS "ai-review-be/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/valyala/fasthttp"
)

// ReviewStreamHandler serves the live progress of a job as Server-Sent
// Events or over a websocket.
type ReviewStreamHandler struct {
	service service.IReviewService
	hub     *internalWS.Hub
	logger  logger.ILogger
}

func NewReviewStreamHandler(service service.IReviewService, hub *internalWS.Hub, log logger.ILogger) *ReviewStreamHandler {
	return &ReviewStreamHandler{
		service: service,
		hub:     hub,
		logger:  log,
	}
}

func (h *ReviewStreamHandler) RegisterRoutes(r fiber.Router) {
	g := r.Group("/review/v1")
	g.Get(":id/events", h.ServeEvents)
	g.Get(":id/ws", h.ServeWs)
}

func parseJobID(c *fiber.Ctx) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return uuid.Nil, &serverutils.BadRequestError{Message: "invalid job id", Err: err}
	}
	return id, nil
}

func notFound(id uuid.UUID, err error) error {
	if errors.Is(err, service.ErrJobNotFound) {
		return &serverutils.NotFoundError{Resource: "review job", Id: id.String()}
	}
	return err
}

// ServeEvents streams the job's events, starting from the first one, until
// the job ends or the client goes away.
func (h *ReviewStreamHandler) ServeEvents(c *fiber.Ctx) error {
	jobID, err := parseJobID(c)
	if err != nil {
		return err
	}

	// The stream outlives the handler; fasthttp recycles c once it returns.
	streamCtx, cancel := context.WithCancel(context.Background())
	events, err := h.service.Events(streamCtx, jobID)
	if err != nil {
		cancel()
		return notFound(jobID, err)
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer cancel()
		for ev := range events {
			frame, err := ev.SSE()
			if err != nil {
				h.logger.Warn("ReviewStreamHandler", "Event encode failed", map[string]interface{}{"job_id": jobID.String(), "error": err.Error()})
				continue
			}
			if _, err := w.Write(frame); err != nil {
				return
			}
			if err := w.Flush(); err != nil {
				h.logger.Debug("ReviewStreamHandler", "SSE client gone", map[string]interface{}{"job_id": jobID.String()})
				return
			}
		}
	}))
	return nil
}

// ServeWs upgrades the connection and attaches it to the job on the hub.
// Events emitted before the connection are replayed first.
func (h *ReviewStreamHandler) ServeWs(c *fiber.Ctx) error {
	jobID, err := parseJobID(c)
	if err != nil {
		return err
	}
	if _, err := h.service.History(c.UserContext(), jobID); err != nil {
		return notFound(jobID, err)
	}

	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}

	backlog := func() [][]byte {
		history, err := h.service.History(context.Background(), jobID)
		if err != nil {
			return nil
		}
		frames := make([][]byte, 0, len(history))
		for _, ev := range history {
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			frames = append(frames, data)
		}
		return frames
	}

	return websocket.New(func(conn *websocket.Conn) {
		h.logger.Info("ReviewStreamHandler", "Starting WebSocket session", map[string]interface{}{"job_id": jobID.String()})
		internalWS.ServeWs(h.hub, conn, jobID, backlog)
		h.logger.Info("ReviewStreamHandler", "WebSocket session ended", map[string]interface{}{"job_id": jobID.String()})
	})(c)
}
