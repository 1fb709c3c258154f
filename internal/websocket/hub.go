package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"explore-state-be/internal/dto"
	"explore-state-be/internal/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	hubModule      = "Hub"
	clusterChannel = "explore_cluster_events"
)

// Hub routes messages to the websocket clients of explore sessions. Session
// messages stay on this instance since sessions live in its memory; user
// messages also fan out to the other instances through Redis.
type Hub struct {
	sessions map[string][]*Client

	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	stopOnce   sync.Once

	mu sync.RWMutex

	rdb        *redis.Client
	instanceID string

	logger logger.ILogger
}

type clusterPayload struct {
	Origin       string          `json:"origin"`
	TargetUserID string          `json:"target_user_id"`
	Message      json.RawMessage `json:"message"`
}

func NewHub(rdb *redis.Client, log logger.ILogger) *Hub {
	return &Hub{
		sessions:   make(map[string][]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		rdb:        rdb,
		instanceID: uuid.NewString(),
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
			h.sessions[client.SessionID] = append(h.sessions[client.SessionID], client)
			h.mu.Unlock()
			close(client.registered)
			h.logger.Info(hubModule, "Client registered", map[string]interface{}{
				"session_id": client.SessionID,
				"user_id":    client.UserID,
			})

		case client := <-h.unregister:
			h.remove(client)

		case <-h.done:
			h.mu.Lock()
			for id, clients := range h.sessions {
				for _, c := range clients {
					close(c.Send)
				}
				delete(h.sessions, id)
			}
			h.mu.Unlock()
			return
		}
	}
}

// add registers client and waits until messages can reach it. It returns
// false once the hub is stopped.
func (h *Hub) add(client *Client) bool {
	select {
	case h.register <- client:
	case <-h.done:
		return false
	}
	select {
	case <-client.registered:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	clients := h.sessions[client.SessionID]
	for i, c := range clients {
		if c != client {
			continue
		}
		h.sessions[client.SessionID] = append(clients[:i], clients[i+1:]...)
		close(client.Send)
		break
	}
	if len(h.sessions[client.SessionID]) == 0 {
		delete(h.sessions, client.SessionID)
	}
}

// Connected reports how many clients watch sessionID.
func (h *Hub) Connected(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[sessionID])
}

func encodeMessage(msgType string, data interface{}) ([]byte, error) {
	return json.Marshal(dto.StreamMessage{Type: msgType, Data: data})
}

// SendToSession delivers a message to every client of one session.
func (h *Hub) SendToSession(sessionID, msgType string, data interface{}) {
	payload, err := encodeMessage(msgType, data)
	if err != nil {
		h.logger.Error(hubModule, "Failed to encode message", map[string]interface{}{"type": msgType, "error": err.Error()})
		return
	}

	h.mu.RLock()
	clients := append([]*Client(nil), h.sessions[sessionID]...)
	h.mu.RUnlock()
	for _, c := range clients {
		h.deliver(c, payload)
	}
}

// SendToUser delivers a message to all sessions of a user on every
// instance.
func (h *Hub) SendToUser(userID uuid.UUID, msgType string, data interface{}) {
	payload, err := encodeMessage(msgType, data)
	if err != nil {
		h.logger.Error(hubModule, "Failed to encode message", map[string]interface{}{"type": msgType, "error": err.Error()})
		return
	}
	h.sendLocalToUser(userID, payload)

	if h.rdb == nil {
		return
	}
	body, _ := json.Marshal(clusterPayload{
		Origin:       h.instanceID,
		TargetUserID: userID.String(),
		Message:      payload,
	})
	if err := h.rdb.Publish(context.Background(), clusterChannel, body).Err(); err != nil {
		h.logger.Warn(hubModule, "Failed to fan out message", map[string]interface{}{"error": err.Error()})
	}
}

func (h *Hub) sendLocalToUser(userID uuid.UUID, payload []byte) {
	h.mu.RLock()
	var targets []*Client
	for _, clients := range h.sessions {
		for _, c := range clients {
			if c.UserID == userID {
				targets = append(targets, c)
			}
		}
	}
	h.mu.RUnlock()
	for _, c := range targets {
		h.deliver(c, payload)
	}
}

// deliver never blocks; a client whose buffer is full is dropped.
func (h *Hub) deliver(c *Client, payload []byte) {
	defer func() {
		// Send may have been closed by a concurrent unregister.
		_ = recover()
	}()
	select {
	case c.Send <- payload:
	default:
		h.logger.Warn(hubModule, "Client send buffer full, dropping client", map[string]interface{}{
			"session_id": c.SessionID,
		})
		go func() {
			select {
			case h.unregister <- c:
			case <-h.done:
			}
		}()
	}
}

func (h *Hub) subscribeToRedis() {
	ctx := context.Background()
	pubsub := h.rdb.Subscribe(ctx, clusterChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-h.done:
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var payload clusterPayload
			if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
				h.logger.Warn(hubModule, "Redis message parse error", map[string]interface{}{"error": err.Error()})
				continue
			}
			if payload.Origin == h.instanceID {
				continue
			}
			uid, err := uuid.Parse(payload.TargetUserID)
			if err != nil {
				continue
			}
			h.sendLocalToUser(uid, payload.Message)
		}
	}
}
