package relay

import (
	"log/slog"
	"sort"
	"sync"
)

// Registry tracks the provider sessions belonging to one client connection.
// At most one session per provider. Safe for concurrent use.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Add registers a session under its provider name. If a session for that
// provider already exists it is closed first so the invariant of one session
// per provider holds.
func (r *Registry) Add(s *Session) {
	r.mu.Lock()
	old, exists := r.sessions[s.Provider]
	r.sessions[s.Provider] = s
	r.mu.Unlock()

	if exists {
		slog.Warn("replacing existing provider session", "provider", s.Provider)
		if err := old.Close(); err != nil {
			slog.Warn("failed to close replaced session", "provider", s.Provider, "err", err)
		}
	}
}

// Get returns the session registered for provider, if any.
func (r *Registry) Get(provider string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[provider]
	return s, ok
}

// All returns a snapshot of every registered session.
func (r *Registry) All() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}

// Providers returns the registered provider names, sorted.
func (r *Registry) Providers() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.sessions))
	for name := range r.sessions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RemoveAll closes every registered session and empties the registry. A
// close error from one session is logged and swallowed; it never prevents
// the remaining sessions from being closed. Returns the number of sessions
// that were removed.
func (r *Registry) RemoveAll() int {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	for name, s := range sessions {
		if err := s.Close(); err != nil {
			slog.Warn("failed to close provider session", "provider", name, "err", err)
		}
	}
	return len(sessions)
}
