// Package realtime pushes live queue snapshots to connected clients over
// SockJS.
package realtime

import (
	"encoding/json"
	"sync"
)

// Client is one connected browser.
type Client struct {
	ID       string
	TenantID string
	Send     chan []byte
}

// Hub tracks connected clients.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

// SubscribeMessage is what clients send to start or stop a live queue.
type SubscribeMessage struct {
	Action string `json:"action"`
	Tenant string `json:"tenant"`
	Token  string `json:"token"`
	// Scheme is "session" for code logins and "bearer" for link logins.
	Scheme string `json:"scheme"`
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[string]*Client)}
}

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client.ID] = client
}

// Unregister removes client and closes its send channel.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client.ID]; !ok {
		return
	}
	delete(h.clients, client.ID)
	close(client.Send)
}

// SetTenant records which business client is watching.
func (h *Hub) SetTenant(client *Client, tenantID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	client.TenantID = tenantID
}

// Count returns how many clients watch tenantID; an empty id counts all.
func (h *Hub) Count(tenantID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if tenantID == "" {
		return len(h.clients)
	}
	n := 0
	for _, c := range h.clients {
		if c.TenantID == tenantID {
			n++
		}
	}
	return n
}

// Offer queues payload for client, replacing a pending payload that was not
// yet written. Only the newest snapshot matters.
func Offer(ch chan []byte, payload []byte) {
	select {
	case ch <- payload:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- payload:
	default:
	}
}

// ParseSubscribe decodes a client message.
func ParseSubscribe(data []byte) (SubscribeMessage, bool) {
	var msg SubscribeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return SubscribeMessage{}, false
	}
	if msg.Action != "subscribe" && msg.Action != "unsubscribe" {
		return SubscribeMessage{}, false
	}
	return msg, true
}
