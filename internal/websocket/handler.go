package websocket

import (
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

// ServeWs wires one upgraded connection into the hub and the dispatcher.
// It blocks until the connection closes.
func ServeWs(hub *Hub, dispatcher *Dispatcher, conn *websocket.Conn, sessionID string) {
	client := &Client{
		Hub:        hub,
		Conn:       conn,
		ConnID:     uuid.NewString(),
		SessionID:  sessionID,
		Send:       make(chan []byte, 256),
		dispatcher: dispatcher,
	}
	client.Hub.register <- client
	dispatcher.OnConnect(client)

	go client.writePump()
	client.readPump() // Run readPump in current goroutine (handler)
}
