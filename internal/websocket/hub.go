package websocket

import (
	"context"
	"log/slog"
	"sync"

	"github.com/princekumarofficial/plate-console/internal/types"
)

// Hub maintains the set of active clients, one per console session, and
// delivers submission events to them
type Hub struct {
	// Registered clients mapped by session ID
	clients map[string]*Client

	register   chan *Client
	unregister chan *Client

	// Mutex to protect clients map
	mu sync.RWMutex

	broadcast chan *BroadcastMessage

	// Closed when Run returns
	done chan struct{}
}

// BroadcastMessage represents a message to be delivered to one session
type BroadcastMessage struct {
	SessionID string       `json:"session_id"`
	Event     *types.Event `json:"event"`
}

// NewHub creates a new WebSocket hub
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *BroadcastMessage, 256),
		done:       make(chan struct{}),
	}
}

// Run starts the hub's main loop and returns when ctx is done
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			close(h.done)
			return

		case client := <-h.register:
			h.mu.Lock()
			// A newer tab for the same session takes over
			if existing, exists := h.clients[client.sessionID]; exists {
				close(existing.send)
				slog.Info("Replaced existing WebSocket connection", slog.String("session_id", client.sessionID))
			}
			h.clients[client.sessionID] = client
			h.mu.Unlock()
			slog.Info("WebSocket client connected", slog.String("session_id", client.sessionID))

		case client := <-h.unregister:
			h.mu.Lock()
			if current, ok := h.clients[client.sessionID]; ok && current == client {
				delete(h.clients, client.sessionID)
				close(client.send)
				slog.Info("WebSocket client disconnected", slog.String("session_id", client.sessionID))
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.deliver(message.SessionID, message.Event)
		}
	}
}

// RegisterClient registers a new client. It reports false once the hub
// has stopped.
func (h *Hub) RegisterClient(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// UnregisterClient unregisters a client
func (h *Hub) UnregisterClient(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// BroadcastToSession queues an event for a session
func (h *Hub) BroadcastToSession(sessionID string, event *types.Event) {
	message := &BroadcastMessage{
		SessionID: sessionID,
		Event:     event,
	}

	select {
	case h.broadcast <- message:
	default:
		slog.Warn("Broadcast channel is full, dropping message")
	}
}

func (h *Hub) deliver(sessionID string, event *types.Event) {
	h.mu.RLock()
	client, ok := h.clients[sessionID]
	h.mu.RUnlock()

	if !ok {
		return
	}

	if err := client.SendEvent(event); err != nil {
		slog.Error("Failed to send event to client",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()))
		// Remove the client if sending fails
		go h.UnregisterClient(client)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, client := range h.clients {
		close(client.send)
		delete(h.clients, id)
	}
}

// IsSessionConnected checks if a session has an open socket
func (h *Hub) IsSessionConnected(sessionID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	_, exists := h.clients[sessionID]
	return exists
}

// GetClientCount returns the number of connected clients
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.clients)
}
