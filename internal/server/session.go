package server

import (
	"log"
	"sort"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/johan-st/vpin-tui/internal/access"
)

// Session represents an active SSH session.
type Session struct {
	ID         string
	User       *access.UserInfo
	RemoteAddr string
	StartTime  time.Time
}

// NewSession creates a new session.
func NewSession(user *access.UserInfo, remoteAddr string) *Session {
	return &Session{
		ID:         uuid.New().String(),
		User:       user,
		RemoteAddr: remoteAddr,
		StartTime:  time.Now(),
	}
}

// Duration returns how long the session has been active.
func (s *Session) Duration() time.Duration {
	return time.Since(s.StartTime)
}

// Info returns the session as seen by command handlers.
func (s *Session) Info() *access.SessionInfo {
	return &access.SessionInfo{
		ID:         s.ID,
		User:       s.User,
		RemoteAddr: s.RemoteAddr,
		StartedAt:  s.StartTime,
	}
}

// SessionManager tracks the sessions that are connected. Each one owns a
// bridge worker for as long as it is registered.
type SessionManager struct {
	sessions map[string]*Session
	mu       sync.RWMutex
}

// NewSessionManager creates a new session manager.
func NewSessionManager() *SessionManager {
	return &SessionManager{
		sessions: make(map[string]*Session),
	}
}

// CreateSession creates and registers a new session.
func (sm *SessionManager) CreateSession(user *access.UserInfo, remoteAddr string) *Session {
	session := NewSession(user, remoteAddr)

	sm.mu.Lock()
	sm.sessions[session.ID] = session
	sm.mu.Unlock()

	return session
}

// GetSession returns a session by ID.
func (sm *SessionManager) GetSession(id string) *Session {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.sessions[id]
}

// EndSession ends a session.
func (sm *SessionManager) EndSession(id string) {
	sm.mu.Lock()
	session := sm.sessions[id]
	delete(sm.sessions, id)
	sm.mu.Unlock()

	if session != nil {
		log.Printf("Session %s of %s ended after %s", session.ID[:8],
			session.User.DisplayName(), humanize.RelTime(session.StartTime, time.Now(), "", ""))
	}
}

// ListActiveSessions returns all active sessions, oldest first.
func (sm *SessionManager) ListActiveSessions() []*Session {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	sessions := make([]*Session, 0, len(sm.sessions))
	for _, s := range sm.sessions {
		sessions = append(sessions, s)
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].StartTime.Before(sessions[j].StartTime)
	})
	return sessions
}

// Count returns the number of active sessions.
func (sm *SessionManager) Count() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.sessions)
}
