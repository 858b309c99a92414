// Package database persists the relay's message log to SQLite so history
// survives a relay restart on the same machine.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	// SQLite driver, referenced only through the connection string.
	_ "github.com/mattn/go-sqlite3"

	"github.com/ruhul03/crisis-connect/pkg/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS messages (
	seq         INTEGER PRIMARY KEY AUTOINCREMENT,
	id          TEXT NOT NULL,
	sender_id   TEXT NOT NULL,
	sender_name TEXT NOT NULL,
	content     TEXT NOT NULL,
	type        TEXT NOT NULL,
	priority    TEXT NOT NULL,
	timestamp   DATETIME NOT NULL,
	latitude    REAL,
	longitude   REAL
);
`

// Manager implements interfaces.MessageStore on SQLite. All writes funnel
// through a single goroutine; SQLite permits concurrent readers under WAL
// but only one writer.
type Manager struct {
	db           *sql.DB
	writeChannel chan writeOperation
	shutdown     chan struct{}
	wg           sync.WaitGroup
	closed       bool
	mu           sync.RWMutex
}

// writeOperation is one queued database write.
type writeOperation struct {
	operation func(*sql.DB) error
	result    chan error
}

// NewManager opens the database at path, applies the schema, and starts the
// writer goroutine.
func NewManager(path string, maxConns int, connLifetime time.Duration) (*Manager, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(maxConns)
	db.SetConnMaxLifetime(connLifetime)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	m := &Manager{
		db:           db,
		writeChannel: make(chan writeOperation, 100),
		shutdown:     make(chan struct{}),
	}

	m.wg.Add(1)
	go m.writeLoop()

	return m, nil
}

// writeLoop processes all write operations in a single goroutine.
func (m *Manager) writeLoop() {
	defer m.wg.Done()

	for {
		select {
		case op := <-m.writeChannel:
			op.result <- op.operation(m.db)

		case <-m.shutdown:
			// Drain anything queued before the shutdown signal so callers
			// waiting on a result channel are released.
			for {
				select {
				case op := <-m.writeChannel:
					op.result <- ErrManagerClosed
				default:
					return
				}
			}
		}
	}
}

// executeWrite queues a write operation and waits for completion.
func (m *Manager) executeWrite(operation func(*sql.DB) error) error {
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return ErrManagerClosed
	}
	m.mu.RUnlock()

	result := make(chan error, 1)

	select {
	case m.writeChannel <- writeOperation{operation: operation, result: result}:
		return <-result
	case <-time.After(30 * time.Second):
		return ErrWriteTimeout
	case <-m.shutdown:
		return ErrManagerClosed
	}
}

// AppendMessage inserts one message at the end of the log.
func (m *Manager) AppendMessage(ctx context.Context, msg *types.Message) error {
	return m.executeWrite(func(db *sql.DB) error {
		query := `
			INSERT INTO messages (id, sender_id, sender_name, content, type, priority, timestamp, latitude, longitude)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`
		_, err := db.ExecContext(ctx, query,
			msg.ID,
			msg.SenderID,
			msg.SenderName,
			msg.Content,
			msg.Type,
			msg.Priority,
			msg.Timestamp,
			msg.Latitude,
			msg.Longitude,
		)
		if err != nil {
			return fmt.Errorf("failed to insert message %s: %w", msg.ID, err)
		}
		return nil
	})
}

// LoadMessages returns the full persisted log in insertion order.
func (m *Manager) LoadMessages(ctx context.Context) ([]*types.Message, error) {
	query := `
		SELECT id, sender_id, sender_name, content, type, priority, timestamp, latitude, longitude
		FROM messages ORDER BY seq
	`
	rows, err := m.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var messages []*types.Message
	for rows.Next() {
		var msg types.Message
		err := rows.Scan(
			&msg.ID,
			&msg.SenderID,
			&msg.SenderName,
			&msg.Content,
			&msg.Type,
			&msg.Priority,
			&msg.Timestamp,
			&msg.Latitude,
			&msg.Longitude,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, &msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate messages: %w", err)
	}
	return messages, nil
}

// DeleteAllMessages empties the persisted log.
func (m *Manager) DeleteAllMessages(ctx context.Context) error {
	return m.executeWrite(func(db *sql.DB) error {
		if _, err := db.ExecContext(ctx, `DELETE FROM messages`); err != nil {
			return fmt.Errorf("failed to delete messages: %w", err)
		}
		return nil
	})
}

// Close stops the writer goroutine and closes the database.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	close(m.shutdown)
	m.wg.Wait()

	if err := m.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	log.Println("Database closed")
	return nil
}
