// Package presence tracks which users currently hold live connections.
// State is process-local and rebuilt empty on restart; presence is a
// liveness signal, not durable history.
package presence

import (
	"sort"
	"sync"
)

// Registry maps a user id to the set of its live connection ids. A user
// appears in the registry iff its connection set is non-empty; empty sets
// are removed immediately. All operations are idempotent and safe for
// concurrent use.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]map[string]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		conns: make(map[string]map[string]struct{}),
	}
}

// Add records a connection for the given user. Adding a connection that
// is already present is a no-op.
func (r *Registry) Add(userID, connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conns[userID] == nil {
		r.conns[userID] = make(map[string]struct{})
	}
	r.conns[userID][connID] = struct{}{}
}

// Remove drops a connection for the given user. Removing an unknown
// connection is a no-op. The user entry goes away with its last
// connection.
func (r *Registry) Remove(userID, connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if conns, ok := r.conns[userID]; ok {
		delete(conns, connID)
		if len(conns) == 0 {
			delete(r.conns, userID)
		}
	}
}

// IsOnline reports whether the user has at least one live connection.
func (r *Registry) IsOnline(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns[userID]) > 0
}

// OnlineUserIDs returns the ids of all users with a live connection,
// sorted for stable broadcasts.
func (r *Registry) OnlineUserIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.conns))
	for id := range r.conns {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Snapshot returns a copy of the full user -> connection-ids mapping for
// the diagnostic endpoint.
func (r *Registry) Snapshot() map[string][]string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string][]string, len(r.conns))
	for userID, conns := range r.conns {
		ids := make([]string, 0, len(conns))
		for connID := range conns {
			ids = append(ids, connID)
		}
		sort.Strings(ids)
		out[userID] = ids
	}
	return out
}
