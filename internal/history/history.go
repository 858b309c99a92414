// Package history keeps the bounded in-memory message log that backs the
// recent-messages API, independent of the persisted store's retention.
package history

import (
	"context"
	"log"
	"sync"

	"github.com/ruhul03/crisis-connect/pkg/interfaces"
	"github.com/ruhul03/crisis-connect/pkg/types"
)

// DefaultCapacity is the number of most-recent messages retained in memory.
const DefaultCapacity = 1000

// Log is a capacity-bounded, oldest-evicted-first message log. Every append
// is also handed to the store best-effort; persistence failures are logged
// and never propagated, so a broken disk cannot stall a broadcast.
type Log struct {
	mu       sync.Mutex
	messages []*types.Message
	capacity int
	store    interfaces.MessageStore
}

// NewLog creates a log with the given capacity, or DefaultCapacity when
// capacity is not positive. The store may be nil for memory-only operation.
func NewLog(capacity int, store interfaces.MessageStore) *Log {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Log{
		messages: make([]*types.Message, 0, capacity),
		capacity: capacity,
		store:    store,
	}
}

// Load primes the in-memory log from the store. Called once at startup,
// before any appends; a load failure leaves the log empty and is non-fatal.
func (l *Log) Load(ctx context.Context) {
	if l.store == nil {
		return
	}

	messages, err := l.store.LoadMessages(ctx)
	if err != nil {
		log.Printf("Failed to load message history: %v", err)
		return
	}
	if len(messages) == 0 {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.messages = append(l.messages, messages...)
	if excess := len(l.messages) - l.capacity; excess > 0 {
		l.messages = append(l.messages[:0:0], l.messages[excess:]...)
	}
	log.Printf("Restored %d messages from history", len(l.messages))
}

// Append records a message, evicting the oldest entry when the log is full,
// and persists it through the store.
func (l *Log) Append(msg *types.Message) {
	l.mu.Lock()
	l.messages = append(l.messages, msg)
	if len(l.messages) > l.capacity {
		// Copy rather than re-slice so evicted entries can be collected.
		l.messages = append(l.messages[:0:0], l.messages[1:]...)
	}
	l.mu.Unlock()

	if l.store != nil {
		if err := l.store.AppendMessage(context.Background(), msg); err != nil {
			log.Printf("Failed to persist message %s: %v", msg.ID, err)
		}
	}
}

// Recent returns the most recent limit messages in insertion order. A limit
// at or above the current length returns everything.
func (l *Log) Recent(limit int) []*types.Message {
	l.mu.Lock()
	defer l.mu.Unlock()

	if limit < 0 {
		limit = 0
	}
	from := len(l.messages) - limit
	if from < 0 {
		from = 0
	}
	out := make([]*types.Message, len(l.messages)-from)
	copy(out, l.messages[from:])
	return out
}

// All returns every retained message in insertion order.
func (l *Log) All() []*types.Message {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]*types.Message, len(l.messages))
	copy(out, l.messages)
	return out
}

// Len returns the number of retained messages.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.messages)
}

// Clear empties the in-memory log and the persisted store.
func (l *Log) Clear() {
	l.mu.Lock()
	l.messages = l.messages[:0]
	l.mu.Unlock()

	if l.store != nil {
		if err := l.store.DeleteAllMessages(context.Background()); err != nil {
			log.Printf("Failed to clear persisted history: %v", err)
		}
	}
	log.Println("Message history cleared")
}
