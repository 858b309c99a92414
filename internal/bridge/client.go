package bridge

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	HandshakeTimeout: 10 * time.Second,
	CheckOrigin: func(r *http.Request) bool {
		// The relay serves a trusted local network; browsers on it are the
		// whole point, so cross-origin pages are allowed.
		return true
	},
}

const (
	sendBufferSize = 64
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 45 * time.Second
)

// identifyFrame is the one frame browsers send: it binds their WebSocket
// session to a user so presence survives multi-tab usage correctly.
type identifyFrame struct {
	UserID string `json:"userId"`
}

// Client is one connected browser.
type Client struct {
	sessionID string
	conn      *websocket.Conn
	send      chan []byte
	hub       *Hub
}

// HandleWebSocket upgrades a browser request and runs the client's pumps.
// Each client gets a fresh session ID, distinct from any user or device
// connection identity.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	client := &Client{
		sessionID: uuid.New().String(),
		conn:      conn,
		send:      make(chan []byte, sendBufferSize),
		hub:       h,
	}

	h.register(client)

	go client.writePump()
	go client.readPump()
}

// enqueue hands a frame to the client's write pump without blocking; a full
// buffer means the client is too slow and the frame is dropped.
func (c *Client) enqueue(data []byte) {
	select {
	case c.send <- data:
	default:
		log.Printf("Dropping frame for slow browser client: session=%s", c.sessionID)
	}
}

// readPump consumes identify frames until the socket closes, then tears the
// client down. Closing here is what triggers EndSession on the board.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		_ = c.conn.Close()
	}()

	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var frame identifyFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			log.Printf("Ignoring malformed frame from session %s: %v", c.sessionID, err)
			continue
		}
		if frame.UserID != "" {
			c.hub.board.RegisterSession(c.sessionID, frame.UserID)
			log.Printf("Session %s registered for user %s", c.sessionID, frame.UserID)
		}
	}
}

// writePump drains the send channel onto the socket and keeps the
// connection alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
