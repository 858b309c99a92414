package relay

import (
	"sync"

	"github.com/ruhul03/crisis-connect/pkg/types"
)

// Registry is the concurrent mapping from connection ID to live Connection.
// It holds a non-owning, removable reference for dispatch; each Connection
// owns its own socket.
type Registry struct {
	mu          sync.RWMutex
	connections map[string]*Connection
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		connections: make(map[string]*Connection),
	}
}

// Register adds a connection and returns its ID.
func (r *Registry) Register(conn *Connection) (string, error) {
	if conn == nil {
		return "", ErrNilConnection
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.connections[conn.ID()] = conn
	return conn.ID(), nil
}

// Unregister removes a connection by ID. Idempotent; unregistering an
// unknown ID is a no-op.
func (r *Registry) Unregister(connectionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.connections, connectionID)
}

// Get returns the connection for an ID, if registered.
func (r *Registry) Get(connectionID string) (*Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, exists := r.connections[connectionID]
	return conn, exists
}

// Broadcast sends a message to every registered connection, best-effort.
// The map is snapshotted under the read lock and sends happen outside it,
// so one slow or mid-teardown peer never blocks the others or the lock.
func (r *Registry) Broadcast(msg *types.Message) {
	for _, conn := range r.Connections() {
		// Send drops to closing connections and logs its own failures.
		_ = conn.Send(msg)
	}
}

// Connections returns a snapshot of all registered connections.
func (r *Registry) Connections() []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := make([]*Connection, 0, len(r.connections))
	for _, conn := range r.connections {
		conns = append(conns, conn)
	}
	return conns
}

// Count returns the number of registered connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.connections)
}

// Stats returns registry statistics keyed for the health endpoint.
func (r *Registry) Stats() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	identified := 0
	for _, conn := range r.connections {
		if conn.State() == StateIdentified {
			identified++
		}
	}
	return map[string]int{
		"total_connections":      len(r.connections),
		"identified_connections": identified,
	}
}
