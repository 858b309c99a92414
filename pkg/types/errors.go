package types

import "errors"

// Validation errors shared across components.
var (
	ErrMissingMessageID   = errors.New("message id cannot be empty")
	ErrInvalidMessageType = errors.New("invalid message type")
	ErrInvalidPriority    = errors.New("invalid message priority")
	ErrMissingTimestamp   = errors.New("message timestamp not stamped")
	ErrInvalidUserID      = errors.New("invalid user id")
	ErrMissingStatus      = errors.New("status cannot be empty")
	ErrInvalidStatus      = errors.New("invalid status")
)
