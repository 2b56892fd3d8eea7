package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/tarabaramaksym/jira-to-bulletpoints/internal/pkg/logger"
	"github.com/tarabaramaksym/jira-to-bulletpoints/internal/service"
)

const relayChannel = "pipeline_events"

// Envelope is the wire frame for every message in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type Hub struct {
	// Registered clients map: ConnID -> Client
	clients map[string]*Client

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	// Lock for safe map access
	mu sync.RWMutex

	// Optional Redis connection for cross-instance delivery
	rdb *redis.Client

	// Dedicated Logger
	logger logger.ILogger
}

func NewHub(rdb *redis.Client, log logger.ILogger) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[string]*Client),
		rdb:        rdb,
		logger:     log,
	}
}

func (h *Hub) Run() {
	if h.rdb != nil {
		go h.subscribeToRedis()
	}

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ConnID] = client
			h.mu.Unlock()
			h.logger.Info("Hub", "Client registered", map[string]interface{}{
				"conn_id":    client.ConnID,
				"session_id": client.SessionID,
			})

		case client := <-h.unregister:
			h.mu.Lock()
			if existing, ok := h.clients[client.ConnID]; ok && existing == client {
				delete(h.clients, client.ConnID)
				close(client.Send)
				h.logger.Info("Hub", "Client unregistered", map[string]interface{}{"conn_id": client.ConnID})
			}
			h.mu.Unlock()
		}
	}
}

// Emit delivers one event to one connection. When the connection is not
// local and Redis is configured, the message is relayed for another
// instance to pick up. Delivery is best effort.
func (h *Hub) Emit(connID, event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("Hub", "Failed to marshal event payload", map[string]interface{}{
			"event": event,
			"error": err.Error(),
		})
		return
	}
	frame, _ := json.Marshal(Envelope{Event: event, Data: data})

	if h.deliverLocal(connID, frame) {
		return
	}

	if h.rdb != nil {
		relay, _ := json.Marshal(map[string]interface{}{
			"target_conn_id": connID,
			"message":        json.RawMessage(frame),
		})
		h.rdb.Publish(context.Background(), relayChannel, relay)
	}
}

// deliverLocal pushes one frame to a locally registered connection. The send
// stays under the read lock: Run only closes a Send channel under the write
// lock after removing the client from the map, so a client observed here
// cannot have its channel closed out from under the send. A full buffer drops
// the connection instead of blocking a pipeline run.
func (h *Hub) deliverLocal(connID string, frame []byte) bool {
	h.mu.RLock()
	client, ok := h.clients[connID]
	if !ok {
		h.mu.RUnlock()
		return false
	}

	select {
	case client.Send <- frame:
		h.mu.RUnlock()
	default:
		h.mu.RUnlock()
		h.logger.Warn("Hub", "Client Send buffer full, dropping connection", map[string]interface{}{"conn_id": connID})
		h.unregister <- client
	}
	return true
}

// Emitter binds the hub to a single connection for the orchestrator.
func (h *Hub) Emitter(connID string) service.EventEmitter {
	return &connEmitter{hub: h, connID: connID}
}

type connEmitter struct {
	hub    *Hub
	connID string
}

func (e *connEmitter) Emit(event string, payload interface{}) {
	e.hub.Emit(e.connID, event, payload)
}

func (h *Hub) subscribeToRedis() {
	ctx := context.Background()
	pubsub := h.rdb.Subscribe(ctx, relayChannel)
	defer pubsub.Close()

	for msg := range pubsub.Channel() {
		var payload struct {
			TargetConnID string          `json:"target_conn_id"`
			Message      json.RawMessage `json:"message"`
		}
		if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
			h.logger.Warn("Hub", "Bad relay message", map[string]interface{}{"error": err.Error()})
			continue
		}

		h.deliverLocal(payload.TargetConnID, payload.Message)
	}
}
