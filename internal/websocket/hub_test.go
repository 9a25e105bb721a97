package websocket

import (
	"context"
	"testing"
	"time"

	"ai-review-be/internal/pkg/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T) *Hub {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	hub := NewHub(nil, logger.NewNopLogger())
	go hub.Run(ctx)
	return hub
}

func attach(hub *Hub, jobID uuid.UUID, buffer int) *Client {
	c := &Client{Hub: hub, JobID: jobID, Send: make(chan []byte, buffer)}
	hub.register <- c
	return c
}

func TestHub_SendToJobRoutesByJob(t *testing.T) {
	hub := startHub(t)
	jobA, jobB := uuid.New(), uuid.New()
	a1, a2 := attach(hub, jobA, 4), attach(hub, jobA, 4)
	b := attach(hub, jobB, 4)

	require.Eventually(t, func() bool { return hub.ClientCount(jobA) == 2 }, time.Second, 5*time.Millisecond)

	hub.SendToJob(jobA, []byte(`{"seq":1}`))

	assert.Equal(t, `{"seq":1}`, string(<-a1.Send))
	assert.Equal(t, `{"seq":1}`, string(<-a2.Send))
	assert.Empty(t, b.Send)
}

func TestHub_UnregisterClosesSend(t *testing.T) {
	hub := startHub(t)
	jobID := uuid.New()
	c := attach(hub, jobID, 1)
	require.Eventually(t, func() bool { return hub.ClientCount(jobID) == 1 }, time.Second, 5*time.Millisecond)

	hub.unregister <- c
	hub.unregister <- c

	_, open := <-c.Send
	assert.False(t, open)
	assert.Equal(t, 0, hub.ClientCount(jobID))
}

func TestHub_SlowClientIsDropped(t *testing.T) {
	hub := startHub(t)
	jobID := uuid.New()
	slow := attach(hub, jobID, 0)
	require.Eventually(t, func() bool { return hub.ClientCount(jobID) == 1 }, time.Second, 5*time.Millisecond)

	hub.SendToJob(jobID, []byte("x"))

	require.Eventually(t, func() bool { return hub.ClientCount(jobID) == 0 }, time.Second, 5*time.Millisecond)
	_, open := <-slow.Send
	assert.False(t, open)
}
