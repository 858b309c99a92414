// Package presence tracks the latest known status of every user and the
// transient sessions through which a user is currently reachable.
package presence

import (
	"log"
	"sync"
	"time"

	"github.com/ruhul03/crisis-connect/pkg/interfaces"
	"github.com/ruhul03/crisis-connect/pkg/types"
)

// Topics on which board changes are published to the web bridge.
const (
	TopicStatus        = "status"
	TopicStatusRemoved = "status.removed"
)

// Board is the in-memory presence board. All state lives behind one mutex so
// that, for a given user, the stored entry and the notification published for
// it can never be observed out of order.
type Board struct {
	mu        sync.Mutex
	statuses  map[string]*types.StatusEntry // userID -> latest entry
	sessions  map[string]string             // sessionID -> userID
	publisher interfaces.Publisher
}

// NewBoard creates an empty presence board. Changes are published through the
// given publisher; Publish is called while the board lock is held, which is
// safe because publishers never block on network I/O.
func NewBoard(publisher interfaces.Publisher) *Board {
	return &Board{
		statuses:  make(map[string]*types.StatusEntry),
		sessions:  make(map[string]string),
		publisher: publisher,
	}
}

// Upsert stamps the entry with the current time, replaces any prior entry for
// that user, and publishes the change. The stored copy is returned.
func (b *Board) Upsert(entry *types.StatusEntry) *types.StatusEntry {
	b.mu.Lock()
	defer b.mu.Unlock()

	entry.Timestamp = time.Now()
	stored := *entry
	b.statuses[entry.UserID] = &stored

	b.publisher.Publish(TopicStatus, &stored)
	log.Printf("Status updated: user=%s status=%s", entry.UserName, entry.Status)
	return &stored
}

// Get returns a copy of the entry for the user, if one exists.
func (b *Board) Get(userID string) (*types.StatusEntry, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	entry, exists := b.statuses[userID]
	if !exists {
		return nil, false
	}
	copied := *entry
	return &copied, true
}

// All returns copies of every entry on the board.
func (b *Board) All() []*types.StatusEntry {
	b.mu.Lock()
	defer b.mu.Unlock()

	entries := make([]*types.StatusEntry, 0, len(b.statuses))
	for _, entry := range b.statuses {
		copied := *entry
		entries = append(entries, &copied)
	}
	return entries
}

// Remove deletes the entry for the user, reporting whether anything was
// removed. On removal the userId is published on the removed topic and every
// session mapped to that user is dropped, so a later EndSession for one of
// them cannot resurrect the user as OFFLINE.
func (b *Board) Remove(userID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	_, exists := b.statuses[userID]
	if exists {
		delete(b.statuses, userID)
		b.publisher.Publish(TopicStatusRemoved, userID)
		log.Printf("Status removed: user=%s", userID)
	}

	for sessionID, id := range b.sessions {
		if id == userID {
			delete(b.sessions, sessionID)
		}
	}
	return exists
}

// RegisterSession records that a session belongs to a user. Multiple sessions
// per user are permitted and expected, e.g. one browser tab plus one device.
func (b *Board) RegisterSession(sessionID, userID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sessions[sessionID] = userID
}

// EndSession removes the session mapping. Only when no session remains for
// the user is their status flipped to OFFLINE and a change published; a user
// reachable through another tab or device keeps their status untouched.
// Ending an unknown session is a no-op.
func (b *Board) EndSession(sessionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	userID, exists := b.sessions[sessionID]
	if !exists {
		return
	}
	delete(b.sessions, sessionID)

	for _, id := range b.sessions {
		if id == userID {
			log.Printf("Session %s ended but user %s remains active elsewhere", sessionID, userID)
			return
		}
	}

	entry, exists := b.statuses[userID]
	if !exists {
		return
	}
	entry.Status = types.StatusOffline
	entry.Timestamp = time.Now()

	copied := *entry
	b.publisher.Publish(TopicStatus, &copied)
	log.Printf("User disconnected: %s (marked OFFLINE)", userID)
}

// ActiveCount returns the number of users whose status is not OFFLINE.
func (b *Board) ActiveCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	count := 0
	for _, entry := range b.statuses {
		if entry.Status != types.StatusOffline {
			count++
		}
	}
	return count
}

// CriticalCount returns the number of users whose status is CRITICAL or
// NEED_HELP.
func (b *Board) CriticalCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	count := 0
	for _, entry := range b.statuses {
		if entry.Status == types.StatusCritical || entry.Status == types.StatusNeedHelp {
			count++
		}
	}
	return count
}

// SessionCount returns the number of live session mappings.
func (b *Board) SessionCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.sessions)
}
