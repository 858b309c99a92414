package interfaces

import (
	"context"

	"github.com/ruhul03/crisis-connect/pkg/types"
)

// Publisher mirrors relay events to the browser-facing web layer.
// The core publishes to three topics and does not depend on how the
// payloads are transported:
//
//	"messages"       - every broadcast Message
//	"status"         - every presence change (StatusEntry)
//	"status.removed" - userId of every removed presence entry
//
// Publish must never block on network I/O; slow subscribers are the
// implementation's problem, not the relay's.
type Publisher interface {
	Publish(topic string, payload interface{})
}

// MessageStore persists the message log across relay restarts.
// Failures are non-fatal everywhere in the core: callers log and continue.
type MessageStore interface {
	AppendMessage(ctx context.Context, msg *types.Message) error
	LoadMessages(ctx context.Context) ([]*types.Message, error)
	DeleteAllMessages(ctx context.Context) error
	Close() error
}
