package database

import "errors"

// Manager errors.
var (
	ErrManagerClosed = errors.New("database manager is closed")
	ErrWriteTimeout  = errors.New("database write timeout")
)
