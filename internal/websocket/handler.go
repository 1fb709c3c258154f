package websocket

import (
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

// ServeWs attaches conn to a session and blocks until the peer goes away.
// onOpen runs once the client is registered, so its messages reach conn.
func ServeWs(hub *Hub, c *websocket.Conn, sessionID string, userID uuid.UUID, onOpen func()) {
	client := newClient(hub, c, sessionID, userID)
	if !hub.add(client) {
		return
	}
	if onOpen != nil {
		onOpen()
	}

	go client.writePump()
	client.readPump()
}
