// Package relay implements the message relay and presence-tracking engine:
// it accepts raw device connections over TCP, fans inbound messages out to
// every connected device and to the web bridge, and keeps the presence board
// consistent as devices come and go.
package relay

import (
	"fmt"
	"log"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ruhul03/crisis-connect/internal/history"
	"github.com/ruhul03/crisis-connect/internal/presence"
	"github.com/ruhul03/crisis-connect/pkg/interfaces"
	"github.com/ruhul03/crisis-connect/pkg/types"
)

// TopicMessages is the bridge topic carrying every broadcast message.
const TopicMessages = "messages"

// stopTimeout bounds how long Stop waits for accept and read loops to
// observe closure.
const stopTimeout = 5 * time.Second

// Service orchestrates the relay: the accept loop, the connection registry,
// the presence board, the message history, and the bridge publisher.
type Service struct {
	addr      string
	registry  *Registry
	board     *presence.Board
	histLog   *history.Log
	publisher interfaces.Publisher

	mu       sync.Mutex
	listener net.Listener
	running  bool
	stopping chan struct{}
	wg       sync.WaitGroup
}

// NewService creates a relay service listening on addr once started.
func NewService(addr string, registry *Registry, board *presence.Board, histLog *history.Log, publisher interfaces.Publisher) *Service {
	return &Service{
		addr:      addr,
		registry:  registry,
		board:     board,
		histLog:   histLog,
		publisher: publisher,
	}
}

// Start binds the listening socket and begins accepting device connections.
// A bind failure (port in use, permission denied) is returned to the caller
// and never retried automatically.
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrAlreadyRunning
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to bind %s: %w", s.addr, err)
	}

	s.listener = listener
	s.running = true
	s.stopping = make(chan struct{})

	s.wg.Add(1)
	go s.acceptLoop(listener, s.stopping)

	log.Printf("CrisisConnect relay started on %s", listener.Addr())
	return nil
}

// Addr returns the actual listen address, useful when started on port 0.
func (s *Service) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return s.addr
	}
	return s.listener.Addr().String()
}

// acceptLoop accepts connections until the listener is closed. Each accepted
// socket gets a registered Connection and its own read-loop goroutine.
func (s *Service) acceptLoop(listener net.Listener, stopping chan struct{}) {
	defer s.wg.Done()

	for {
		netConn, err := listener.Accept()
		if err != nil {
			select {
			case <-stopping:
				return
			default:
				log.Printf("Error accepting connection: %v", err)
				continue
			}
		}

		conn := newConnection(netConn, s)
		if _, err := s.registry.Register(conn); err != nil {
			log.Printf("Failed to register connection: %v", err)
			_ = conn.Close()
			continue
		}
		log.Printf("New device connected: %s from %s", conn.ID(), conn.RemoteAddr())

		s.sendWelcome(conn)

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			conn.ReadLoop()
		}()
	}
}

// Stop closes the listener, closes every live connection (which unblocks
// their read loops), and waits for in-flight loops within a bounded window.
// Idempotent.
func (s *Service) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	close(s.stopping)
	listener := s.listener
	s.listener = nil
	s.mu.Unlock()

	if err := listener.Close(); err != nil {
		log.Printf("Error closing listener: %v", err)
	}

	for _, conn := range s.registry.Connections() {
		_ = conn.Close()
		s.registry.Unregister(conn.ID())
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(stopTimeout):
		log.Printf("Relay shutdown timed out after %v", stopTimeout)
	}

	log.Println("CrisisConnect relay stopped")
	return nil
}

// HandleInbound routes one decoded message from a device read loop: apply
// server-assigned defaults, auto-register presence for unknown senders,
// record history, mirror to the bridge, and fan out to every connection.
func (s *Service) HandleInbound(conn *Connection, msg *types.Message) {
	log.Printf("Message from %s: %s", conn.UserName(), msg.Content)
	s.route(msg)
}

// SendMessage is the REST-facing entry point: the relay assigns a fresh ID
// and timestamp, then routes the message exactly like device traffic. The
// stored message is returned to the caller.
func (s *Service) SendMessage(msg *types.Message) *types.Message {
	msg.ID = uuid.New().String()
	msg.Timestamp = time.Now()
	s.route(msg)
	return msg
}

// route applies the invariants every broadcast message carries, then
// delivers it. Broadcast includes the sender's own connection; senders are
// expected to de-duplicate by message ID.
func (s *Service) route(msg *types.Message) {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.Type == "" {
		msg.Type = types.MessageTypeText
	}
	if msg.Priority == "" {
		msg.Priority = types.PriorityNormal
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}

	s.autoRegisterSender(msg)

	s.histLog.Append(msg)
	s.publisher.Publish(TopicMessages, msg)
	s.registry.Broadcast(msg)
}

// autoRegisterSender gives a previously-unknown sender a default SAFE entry
// on the presence board before their first message is broadcast. System
// messages never represent a user and are skipped.
func (s *Service) autoRegisterSender(msg *types.Message) {
	if msg.Type == types.MessageTypeSystem {
		return
	}
	if msg.SenderID == "" || msg.SenderID == types.SystemSenderID {
		return
	}
	if _, known := s.board.Get(msg.SenderID); known {
		return
	}

	name := msg.SenderName
	if name == "" {
		name = msg.SenderID
	}
	s.board.Upsert(&types.StatusEntry{
		UserID:   msg.SenderID,
		UserName: name,
		Status:   types.StatusSafe,
	})
}

// HandleClosed runs once when a device connection ends, whether the peer
// disconnected or the relay shut it down. When a display name was learned, a
// SYSTEM disconnect notice is broadcast to the remaining devices.
func (s *Service) HandleClosed(conn *Connection) {
	s.registry.Unregister(conn.ID())
	name := conn.UserName()
	log.Printf("Client disconnected: %s (%s)", name, conn.ID())

	if name == "" {
		return
	}

	s.route(&types.Message{
		ID:         uuid.New().String(),
		SenderID:   conn.ID(),
		SenderName: name,
		Content:    name + " has disconnected",
		Type:       types.MessageTypeSystem,
		Priority:   types.PriorityNormal,
		Timestamp:  time.Now(),
	})
}

// DisconnectUser authoritatively removes a user from the presence board,
// regardless of how many sessions they hold. Reports whether an entry was
// removed; the board publishes the removal notification itself.
func (s *Service) DisconnectUser(userID string) bool {
	return s.board.Remove(userID)
}

// sendWelcome greets a freshly accepted device so it knows to identify
// itself. Sent only to that device, never broadcast or recorded.
func (s *Service) sendWelcome(conn *Connection) {
	_ = conn.Send(&types.Message{
		ID:         uuid.New().String(),
		SenderID:   types.SystemSenderID,
		SenderName: "System",
		Content:    "Connected to CrisisConnect. Please identify yourself.",
		Type:       types.MessageTypeSystem,
		Priority:   types.PriorityNormal,
		Timestamp:  time.Now(),
	})
}

// Stats returns a point-in-time snapshot of relay activity. The counters are
// read independently; slight skew under concurrent load is accepted.
func (s *Service) Stats() types.Stats {
	return types.Stats{
		ActiveConnections: s.registry.Count(),
		TotalMessages:     s.histLog.Len(),
		ActiveUsers:       s.board.ActiveCount(),
		CriticalUsers:     s.board.CriticalCount(),
		Timestamp:         time.Now(),
	}
}
