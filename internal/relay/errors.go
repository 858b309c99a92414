package relay

import "errors"

// Connection errors.
var (
	ErrConnectionClosed = errors.New("connection closed")
	ErrWriteBufferFull  = errors.New("write buffer full")
)

// Registry errors.
var (
	ErrNilConnection = errors.New("connection cannot be nil")
)

// Service errors.
var (
	ErrAlreadyRunning = errors.New("relay service is already running")
	ErrNotRunning     = errors.New("relay service is not running")
)
