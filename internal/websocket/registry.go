package websocket

import (
	"log"
	"sync"

	"github.com/reyanshafi/mini-social-network/pkg/interfaces"
)

// Registry maps an announced user identity to its single live connection.
// It is the only shared mutable state in the realtime core: mutations are
// exclusive, lookups run concurrently under the read lock.
type Registry struct {
	mu          sync.RWMutex
	connections map[string]interfaces.Connection // userID -> live connection
}

// NewRegistry creates an empty connection registry.
func NewRegistry() *Registry {
	return &Registry{
		connections: make(map[string]interfaces.Connection),
	}
}

// Register inserts or replaces the entry for userID. It never fails. A
// superseded connection for the same identity is closed asynchronously so a
// stale tab cannot keep receiving events meant for the new connection.
func (r *Registry) Register(userID string, conn interfaces.Connection) {
	if conn == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.connections[userID]; ok && existing != conn {
		// Close outside the lock to avoid deadlocking against the
		// superseded connection's own cleanup path.
		go func() {
			if err := existing.Close(); err != nil {
				log.Printf("Failed to close superseded connection for %s: %v", userID, err)
			}
		}()
	}

	r.connections[userID] = conn
}

// Unregister removes the entry holding exactly this connection. Removal is
// handle-keyed: if a later Register replaced this connection for the same
// identity, the newer entry stays. Idempotent; unknown handles are a no-op.
func (r *Registry) Unregister(conn interfaces.Connection) {
	if conn == nil {
		return
	}

	userID := conn.UserID()
	if userID == "" {
		return // never announced, never registered
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	registered, ok := r.connections[userID]
	if !ok {
		return
	}
	if registered != conn {
		return // a newer connection superseded this one
	}

	delete(r.connections, userID)
}

// Lookup returns the live connection for userID. A miss means the user is
// offline, which callers treat as the silent drop case, never as an error.
func (r *Registry) Lookup(userID string) (interfaces.Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, ok := r.connections[userID]
	return conn, ok
}

// OnlineCount returns the number of registered connections.
func (r *Registry) OnlineCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.connections)
}
