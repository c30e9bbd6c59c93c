package interfaces

// Connection is a live bidirectional channel endpoint. The concrete
// implementation wraps a WebSocket; tests substitute in-memory fakes.
//
// WriteJSON must be safe for concurrent use: all implementations serialize
// writes through a single writer to keep frame boundaries intact.
type Connection interface {
	// WriteJSON sends a JSON message to the client (thread-safe).
	WriteJSON(v interface{}) error

	// Close closes the connection and releases its resources. Safe to call
	// more than once.
	Close() error

	// UserID returns the announced identity, or "" before the client has
	// announced itself.
	UserID() string

	// SetUserID records the announced identity. Called exactly once per
	// connection, by the lifecycle handler.
	SetUserID(userID string)

	// Announced reports whether the client has announced its identity.
	Announced() bool
}
