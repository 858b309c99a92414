package types

import (
	"regexp"
	"time"

	"github.com/google/uuid"
)

// Compiled once at package initialization; user IDs appear on every message
// and every status update.
var userIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// IsValidUserID checks if a user ID meets format requirements.
// The 1-50 character limit keeps IDs displayable on small mesh devices.
func IsValidUserID(userID string) bool {
	if len(userID) < 1 || len(userID) > 50 {
		return false
	}
	return userIDRegex.MatchString(userID)
}

// IsValidMessageType checks if the message type is one of the allowed types.
func IsValidMessageType(msgType string) bool {
	switch msgType {
	case MessageTypeText,
		MessageTypeStatusUpdate,
		MessageTypeEmergency,
		MessageTypeLocation,
		MessageTypeSystem:
		return true
	default:
		return false
	}
}

// IsValidStatus checks if the status is one of the board's known states.
func IsValidStatus(status string) bool {
	switch status {
	case StatusSafe, StatusNeedHelp, StatusInjured, StatusCritical, StatusOffline:
		return true
	default:
		return false
	}
}

// IsValidPriority checks if the priority is one of the allowed levels.
func IsValidPriority(priority string) bool {
	switch priority {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityCritical:
		return true
	default:
		return false
	}
}

// Normalize fills in the server-assigned fields of an inbound message.
// An omitted type defaults to TEXT and an omitted priority to NORMAL so
// minimal clients can send bare {senderId, senderName, content} records.
// The ID is assigned only when the sender left it empty.
func (m *Message) Normalize(now time.Time) {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.Type == "" {
		m.Type = MessageTypeText
	}
	if m.Priority == "" {
		m.Priority = PriorityNormal
	}
	m.Timestamp = now
}

// Validate ensures a broadcast-ready message meets the relay's invariants:
// non-empty id, recognized type and priority, and a stamped timestamp.
func (m *Message) Validate() error {
	if m.ID == "" {
		return ErrMissingMessageID
	}
	if !IsValidMessageType(m.Type) {
		return ErrInvalidMessageType
	}
	if !IsValidPriority(m.Priority) {
		return ErrInvalidPriority
	}
	if m.Timestamp.IsZero() {
		return ErrMissingTimestamp
	}
	return nil
}

// Validate ensures a status entry can be stored on the presence board.
func (s *StatusEntry) Validate() error {
	if !IsValidUserID(s.UserID) {
		return ErrInvalidUserID
	}
	if s.Status == "" {
		return ErrMissingStatus
	}
	if !IsValidStatus(s.Status) {
		return ErrInvalidStatus
	}
	return nil
}
