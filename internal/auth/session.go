package auth

import (
	"sync"
	"time"
)

// Session tracks one authenticated login
type Session struct {
	ID        string
	Username  string
	CreatedAt time.Time
}

// SessionStore keeps sessions in memory; a server restart invalidates all
// existing sessions by construction
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewSessionStore creates an empty session store
func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]*Session)}
}

// CreateSession registers a new session
func (s *SessionStore) CreateSession(id, username string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[id] = &Session{ID: id, Username: username, CreatedAt: time.Now()}
}

// ValidSession reports whether the session id is active
func (s *SessionStore) ValidSession(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.sessions[id]
	return ok
}

// InvalidateSession removes a session
func (s *SessionStore) InvalidateSession(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}
