package websocket

import (
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

// ServeWs attaches the connection to a job. The backlog frames are written
// before live delivery starts; a frame can show up in both, so watchers
// dedupe by seq.
func ServeWs(hub *Hub, c *websocket.Conn, jobID uuid.UUID, backlog func() [][]byte) {
	client := &Client{Hub: hub, Conn: c, JobID: jobID, Send: make(chan []byte, sendBuffer)}
	client.Hub.register <- client

	if backlog != nil {
		for _, frame := range backlog() {
			c.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.WriteMessage(websocket.TextMessage, frame); err != nil {
				client.Hub.unregister <- client
				c.Close()
				return
			}
		}
	}

	go client.writePump()
	client.readPump() // Run readPump in current goroutine (handler)
}
