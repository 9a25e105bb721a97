package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"ai-review-be/internal/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const clusterChannel = "cluster_events"

// Hub routes progress frames to the websocket clients watching a job. With
// redis configured, frames are also published so clients connected to other
// instances receive them.
type Hub struct {
	// Registered clients map: JobID -> clients watching it
	clients map[uuid.UUID][]*Client

	register   chan *Client
	unregister chan *Client

	mu sync.RWMutex

	// Redis connection for cross-instance communication, optional
	rdb *redis.Client

	// Instance id, so frames published here are not delivered twice
	origin string

	logger logger.ILogger
}

type clusterFrame struct {
	Origin      string          `json:"origin"`
	TargetJobID string          `json:"target_job_id"`
	Message     json.RawMessage `json:"message"`
}

func NewHub(rdb *redis.Client, log logger.ILogger) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[uuid.UUID][]*Client),
		rdb:        rdb,
		origin:     uuid.NewString(),
		logger:     log,
	}
}

func (h *Hub) Run(ctx context.Context) {
	if h.rdb != nil {
		go h.subscribeToRedis(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.JobID] = append(h.clients[client.JobID], client)
			h.mu.Unlock()
			h.logger.Info("Hub", "Client registered", map[string]interface{}{"job_id": client.JobID.String()})

		case client := <-h.unregister:
			h.remove(client)
		}
	}
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients, ok := h.clients[client.JobID]
	if !ok {
		return
	}
	for i, c := range clients {
		if c == client {
			h.clients[client.JobID] = append(clients[:i], clients[i+1:]...)
			close(client.Send)
			break
		}
	}
	if len(h.clients[client.JobID]) == 0 {
		delete(h.clients, client.JobID)
		h.logger.Info("Hub", "No clients left for job", map[string]interface{}{"job_id": client.JobID.String()})
	}
}

// SendToJob delivers one frame to every local client of the job and
// publishes it for the other instances.
func (h *Hub) SendToJob(jobID uuid.UUID, data []byte) {
	h.deliver(jobID, data)

	if h.rdb != nil {
		payload, _ := json.Marshal(clusterFrame{
			Origin:      h.origin,
			TargetJobID: jobID.String(),
			Message:     data,
		})
		if err := h.rdb.Publish(context.Background(), clusterChannel, payload).Err(); err != nil {
			h.logger.Warn("Hub", "Redis publish failed", map[string]interface{}{"job_id": jobID.String(), "error": err.Error()})
		}
	}
}

// ClientCount reports how many local clients watch the job.
func (h *Hub) ClientCount(jobID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[jobID])
}

func (h *Hub) deliver(jobID uuid.UUID, data []byte) {
	h.mu.RLock()
	clients := append([]*Client(nil), h.clients[jobID]...)
	h.mu.RUnlock()

	for _, client := range clients {
		select {
		case client.Send <- data:
		default:
			h.logger.Warn("Hub", "Client Send buffer full, dropping client", map[string]interface{}{"job_id": jobID.String()})
			go func(c *Client) { h.unregister <- c }(client)
		}
	}
}

// All instances subscribe to one channel; a frame is delivered when this
// instance has clients for the target job.
func (h *Hub) subscribeToRedis(ctx context.Context) {
	pubsub := h.rdb.Subscribe(ctx, clusterChannel)
	defer pubsub.Close()

	for msg := range pubsub.Channel() {
		var frame clusterFrame
		if err := json.Unmarshal([]byte(msg.Payload), &frame); err != nil {
			h.logger.Warn("Hub", "Redis message parse error", map[string]interface{}{"error": err.Error()})
			continue
		}
		if frame.Origin == h.origin {
			continue
		}
		jobID, err := uuid.Parse(frame.TargetJobID)
		if err != nil {
			continue
		}
		h.deliver(jobID, frame.Message)
	}
}
