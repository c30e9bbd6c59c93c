package websocket

import "errors"

// Connection-related errors
var (
	ErrConnectionClosed = errors.New("connection closed")
	ErrWriteTimeout     = errors.New("write timeout after 5 seconds")
	ErrInvalidJSON      = errors.New("invalid JSON data")
)

// Handler-related errors
var (
	ErrNotAnnounced     = errors.New("identity not announced")
	ErrIdentityMismatch = errors.New("event identity does not match connection identity")
)
