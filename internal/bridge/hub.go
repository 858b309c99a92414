// Package bridge mirrors relay events to browser clients over WebSocket.
// The core publishes to topics; the hub fans each event out to every
// connected browser and tracks browser sessions on the presence board.
package bridge

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/ruhul03/crisis-connect/internal/presence"
)

// Event is one frame delivered to browser clients.
type Event struct {
	Topic   string      `json:"topic"`
	Payload interface{} `json:"payload"`
}

// Hub implements interfaces.Publisher over a set of WebSocket clients.
// Publish never blocks: each client has a buffered send channel drained by
// its own write pump, and a client that cannot keep up loses frames rather
// than stalling the relay.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client // sessionID -> client
	board   *presence.Board
}

// NewHub creates a hub that records browser sessions on the given board.
// The board may be nil at construction and supplied through SetBoard; the
// board itself is built against the hub as its publisher, and the hub serves
// no clients before the wiring completes.
func NewHub(board *presence.Board) *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		board:   board,
	}
}

// SetBoard completes the hub/board wiring. Must be called before the hub
// accepts its first WebSocket client.
func (h *Hub) SetBoard(board *presence.Board) {
	h.board = board
}

// Publish fans one event out to every connected browser client.
func (h *Hub) Publish(topic string, payload interface{}) {
	data, err := json.Marshal(Event{Topic: topic, Payload: payload})
	if err != nil {
		log.Printf("Failed to encode %s event: %v", topic, err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		client.enqueue(data)
	}
}

// register adds a client to the fan-out set.
func (h *Hub) register(client *Client) {
	h.mu.Lock()
	h.clients[client.sessionID] = client
	h.mu.Unlock()
	log.Printf("Browser client connected: session=%s", client.sessionID)
}

// unregister removes a client and ends its session on the presence board,
// which flips the user OFFLINE only when no other session remains.
func (h *Hub) unregister(client *Client) {
	h.mu.Lock()
	_, exists := h.clients[client.sessionID]
	delete(h.clients, client.sessionID)
	h.mu.Unlock()

	if exists {
		h.board.EndSession(client.sessionID)
		log.Printf("Browser client disconnected: session=%s", client.sessionID)
	}
}

// ClientCount returns the number of connected browser clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
