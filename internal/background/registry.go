package background

import (
	"sync"
	"time"

	"github.com/provideo/provideo/internal/engine"
	"github.com/provideo/provideo/pkg/types"
)

// Entry is one session's background-playback registration: a non-owning
// reference to its engine plus the metadata a notification renders.
type Entry struct {
	SessionID    int64
	Engine       engine.Engine
	Metadata     types.MediaMetadata
	RegisteredAt time.Time
}

// Registry is the process-wide session-id -> engine mapping consumed by the
// foreground audio service. It is constructed once at process start and
// injected into every session; its own lock makes concurrent registration
// from different session goroutines safe.
type Registry struct {
	mu      sync.RWMutex
	entries map[int64]Entry
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[int64]Entry)}
}

// Register adds or replaces the entry for a session
func (r *Registry) Register(sessionID int64, eng engine.Engine, meta types.MediaMetadata) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[sessionID] = Entry{
		SessionID:    sessionID,
		Engine:       eng,
		Metadata:     meta,
		RegisteredAt: time.Now(),
	}
}

// UpdateMetadata refreshes display metadata for a registered session.
// Returns false when the session is not registered.
func (r *Registry) UpdateMetadata(sessionID int64, meta types.MediaMetadata) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[sessionID]
	if !ok {
		return false
	}
	entry.Metadata = meta
	r.entries[sessionID] = entry
	return true
}

// Unregister removes a session's entry. Idempotent; returns whether an entry
// existed.
func (r *Registry) Unregister(sessionID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[sessionID]
	delete(r.entries, sessionID)
	return ok
}

// Get returns the entry for a session, if registered
func (r *Registry) Get(sessionID int64) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[sessionID]
	return entry, ok
}

// Registered reports whether a session currently holds an entry
func (r *Registry) Registered(sessionID int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[sessionID]
	return ok
}

// Snapshot returns a copy of all entries, for the notification service
func (r *Registry) Snapshot() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Entry, 0, len(r.entries))
	for _, entry := range r.entries {
		out = append(out, entry)
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
