package orchestrator

import (
	"sync"
)

// SessionStore keeps live conversation contexts keyed by session id. The
// map is mutex-guarded so sessions can be created from concurrent requests;
// the contexts themselves are not locked; per-session serialization is the
// caller's contract.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*Context
}

// NewSessionStore creates an empty session store.
func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]*Context)}
}

// GetOrCreate restores the context for sessionID, or creates one when the
// id is blank or unknown.
func (s *SessionStore) GetOrCreate(sessionID, userID, skillLevel string) *Context {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sessionID != "" {
		if ctx, ok := s.sessions[sessionID]; ok {
			return ctx
		}
	}

	ctx := NewContext(sessionID, userID, skillLevel)
	s.sessions[ctx.SessionID] = ctx
	return ctx
}

// Get returns the context for sessionID if it exists.
func (s *SessionStore) Get(sessionID string) (*Context, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ctx, ok := s.sessions[sessionID]
	return ctx, ok
}

// Len reports the number of live sessions.
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
