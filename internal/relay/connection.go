package relay

import (
	"bufio"
	"log"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ruhul03/crisis-connect/internal/wire"
	"github.com/ruhul03/crisis-connect/pkg/types"
)

// ConnState is the lifecycle state of a device connection. Transitions are
// one-directional: Connecting -> Identified -> Closed, with no return from
// Closed.
type ConnState int32

const (
	StateConnecting ConnState = iota // socket accepted, no identity yet
	StateIdentified                  // first message with a sender name observed
	StateClosed                      // socket closed, by either peer or relay
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateIdentified:
		return "identified"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// connectionHandler receives the events a connection cannot act on itself:
// decoded inbound messages and the one closure notification.
type connectionHandler interface {
	HandleInbound(conn *Connection, msg *types.Message)
	HandleClosed(conn *Connection)
}

// Connection owns one device socket. A dedicated goroutine runs ReadLoop for
// the connection's lifetime; writes from any goroutine funnel through a
// buffered channel drained by a single writer goroutine so concurrent sends
// never interleave on the wire.
type Connection struct {
	id         string
	conn       net.Conn
	remoteAddr string
	handler    connectionHandler

	writeCh   chan []byte
	done      chan struct{}
	closeOnce sync.Once
	notifyOnce sync.Once

	mu       sync.RWMutex
	state    ConnState
	userName string
}

const (
	writeBufferSize = 100
	maxLineBytes    = 64 * 1024
)

// newConnection wraps an accepted socket and starts its writer goroutine.
func newConnection(conn net.Conn, handler connectionHandler) *Connection {
	c := &Connection{
		id:         uuid.New().String(),
		conn:       conn,
		remoteAddr: conn.RemoteAddr().String(),
		handler:    handler,
		writeCh:    make(chan []byte, writeBufferSize),
		done:       make(chan struct{}),
		state:      StateConnecting,
	}

	go c.writeLoop()

	return c
}

// ID returns the connection's opaque identifier, generated on accept.
func (c *Connection) ID() string {
	return c.id
}

// RemoteAddr returns the peer's address.
func (c *Connection) RemoteAddr() string {
	return c.remoteAddr
}

// State returns the current lifecycle state.
func (c *Connection) State() ConnState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// UserName returns the display name learned from the first identifying
// message, or "" while the connection is unidentified.
func (c *Connection) UserName() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.userName
}

// ReadLoop blocks reading newline-framed messages until the stream ends or
// fails. Malformed lines are dropped and logged; the loop keeps reading. On
// exit the connection is closed and the handler is notified exactly once.
func (c *Connection) ReadLoop() {
	defer func() {
		c.transitionClosed()
		_ = c.Close()
		c.notifyOnce.Do(func() { c.handler.HandleClosed(c) })
	}()

	scanner := bufio.NewScanner(c.conn)
	scanner.Buffer(make([]byte, 0, 4096), maxLineBytes)

	for scanner.Scan() {
		msg, err := wire.Decode(scanner.Bytes())
		if err != nil {
			log.Printf("Dropping malformed line from %s: %v", c.remoteAddr, err)
			continue
		}

		// The relay's clock is authoritative; a sender-supplied timestamp
		// is discarded.
		msg.Timestamp = time.Now()

		c.learnIdentity(msg)
		c.handler.HandleInbound(c, msg)
	}

	if err := scanner.Err(); err != nil && c.State() != StateClosed {
		log.Printf("Connection error for %s (%s): %v", c.id, c.remoteAddr, err)
	}
}

// learnIdentity promotes the connection to identified on the first message
// carrying a non-empty sender name.
func (c *Connection) learnIdentity(msg *types.Message) {
	if msg.SenderName == "" {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateConnecting {
		return
	}
	c.state = StateIdentified
	c.userName = msg.SenderName
	log.Printf("User identified as: %s (%s)", msg.SenderName, c.id)
}

// Send encodes and queues one message line. Safe to call concurrently with
// the read loop. Delivery is best-effort: a full buffer or a closed
// connection drops the message and the caller is not disturbed.
func (c *Connection) Send(msg *types.Message) error {
	data, err := wire.Encode(msg)
	if err != nil {
		log.Printf("Failed to encode message %s for %s: %v", msg.ID, c.id, err)
		return err
	}

	select {
	case <-c.done:
		return ErrConnectionClosed
	default:
	}

	select {
	case c.writeCh <- data:
		return nil
	case <-c.done:
		return ErrConnectionClosed
	default:
		log.Printf("Write buffer full for %s, dropping message %s", c.id, msg.ID)
		return ErrWriteBufferFull
	}
}

// writeLoop is the single writer for the socket.
func (c *Connection) writeLoop() {
	for {
		select {
		case data := <-c.writeCh:
			if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				return
			}
			if _, err := c.conn.Write(append(data, '\n')); err != nil {
				log.Printf("Write failed for %s: %v", c.id, err)
				return
			}
		case <-c.done:
			return
		}
	}
}

// Close releases the socket. Idempotent; safe from multiple callers and
// concurrent with the read loop. Closing the socket is what unblocks a
// reader parked in ReadLoop.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.transitionClosed()
		close(c.done)
		err = c.conn.Close()
	})
	return err
}

func (c *Connection) transitionClosed() {
	c.mu.Lock()
	c.state = StateClosed
	c.mu.Unlock()
}
