package presence

import (
	"sort"
	"sync"

	"github.com/iamasit07/chat-app/backend/internal/domain"
)

// Handle is one live connection owned by a user.
type Handle interface {
	ID() string
	Push(msg domain.ServerMessage) error
}

// ChangeFunc is called after a user goes online or offline, outside the
// registry lock.
type ChangeFunc func(userID int64, online bool)

// Registry maps user ids to their live connection handles. A user without
// handles has no entry. Safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	entries  map[int64]map[string]Handle
	onChange ChangeFunc
}

func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[int64]map[string]Handle),
	}
}

// OnChange installs the online/offline listener. Call before serving.
func (r *Registry) OnChange(fn ChangeFunc) {
	r.mu.Lock()
	r.onChange = fn
	r.mu.Unlock()
}

// Register adds h under userID. Registering the same handle twice is a no-op.
func (r *Registry) Register(userID int64, h Handle) {
	r.mu.Lock()
	handles, exists := r.entries[userID]
	if !exists {
		handles = make(map[string]Handle)
		r.entries[userID] = handles
	}
	handles[h.ID()] = h
	notify := r.onChange
	r.mu.Unlock()

	if !exists && notify != nil {
		notify(userID, true)
	}
}

// Unregister removes h from userID and drops the entry once it is empty.
// Unknown users or handles are ignored, so it is safe on any disconnect path.
func (r *Registry) Unregister(userID int64, h Handle) {
	r.mu.Lock()
	handles, exists := r.entries[userID]
	if !exists {
		r.mu.Unlock()
		return
	}
	if current, ok := handles[h.ID()]; !ok || current != h {
		r.mu.Unlock()
		return
	}
	delete(handles, h.ID())
	wentOffline := len(handles) == 0
	if wentOffline {
		delete(r.entries, userID)
	}
	notify := r.onChange
	r.mu.Unlock()

	if wentOffline && notify != nil {
		notify(userID, false)
	}
}

// Lookup returns a snapshot of the user's handles; empty when offline.
func (r *Registry) Lookup(userID int64) []Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()

	handles := r.entries[userID]
	out := make([]Handle, 0, len(handles))
	for _, h := range handles {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

func (r *Registry) IsOnline(userID int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[userID]
	return ok
}

// OnlineUsers returns the ids of every user with at least one handle, sorted.
func (r *Registry) OnlineUsers() []int64 {
	r.mu.RLock()
	ids := make([]int64, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// All returns a snapshot of every live handle.
func (r *Registry) All() []Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Handle
	for _, handles := range r.entries {
		for _, h := range handles {
			out = append(out, h)
		}
	}
	return out
}
