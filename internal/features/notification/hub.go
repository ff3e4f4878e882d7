package notification

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

// Hub fans notifications out to the live websocket sessions of each user.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
	logger  *zap.Logger
}

// Client is one live session. Send is buffered; a slow session drops
// messages instead of blocking publishers.
type Client struct {
	UserID string
	Send   chan []byte
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients: make(map[string]map[*Client]struct{}),
		logger:  logger,
	}
}

func (h *Hub) Register(userID string) *Client {
	c := &Client{UserID: userID, Send: make(chan []byte, 16)}
	h.mu.Lock()
	if h.clients[userID] == nil {
		h.clients[userID] = make(map[*Client]struct{})
	}
	h.clients[userID][c] = struct{}{}
	h.mu.Unlock()
	return c
}

func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	sessions, ok := h.clients[c.UserID]
	if !ok {
		return
	}
	if _, ok := sessions[c]; !ok {
		return
	}
	delete(sessions, c)
	close(c.Send)
	if len(sessions) == 0 {
		delete(h.clients, c.UserID)
	}
}

// Publish delivers payload to every session of userID and reports how many
// sessions accepted it.
func (h *Hub) Publish(userID string, payload any) int {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("failed to encode websocket payload", zap.Error(err))
		return 0
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	delivered := 0
	for c := range h.clients[userID] {
		select {
		case c.Send <- data:
			delivered++
		default:
			h.logger.Warn("websocket session is slow, dropping message", zap.String("user_id", userID))
		}
	}
	return delivered
}

func (h *Hub) Online(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID]) > 0
}
