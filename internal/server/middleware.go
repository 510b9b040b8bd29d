package server

import (
	"log"

	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
	"github.com/johan-st/vpin-tui/internal/access"
)

// Context keys for middleware values
type ctxKey string

const (
	ctxKeySession    ctxKey = "session"
	ctxKeyUser       ctxKey = "user"
	ctxKeySessionMgr ctxKey = "session_mgr"
)

// SessionMiddleware registers a session for each connection.
func SessionMiddleware(sessionMgr *SessionManager) wish.Middleware {
	return func(next ssh.Handler) ssh.Handler {
		return func(s ssh.Session) {
			user := GetUserFromContext(s.Context())
			if user == nil {
				user = &access.UserInfo{
					IsAnonymous:   true,
					AnonymousName: "unknown",
					RemoteAddr:    s.RemoteAddr().String(),
				}
				s.Context().SetValue(ctxKeyUser, user)
			}

			session := sessionMgr.CreateSession(user, s.RemoteAddr().String())
			s.Context().SetValue(ctxKeySession, session)
			s.Context().SetValue(ctxKeySessionMgr, sessionMgr)
			defer sessionMgr.EndSession(session.ID)

			next(s)
		}
	}
}

// BrowseMiddleware rejects users who may not read any level.
func BrowseMiddleware(resolver func() *access.Resolver) wish.Middleware {
	return func(next ssh.Handler) ssh.Handler {
		return func(s ssh.Session) {
			user := GetUserFromContext(s.Context())
			if !resolver().CanBrowse(user) {
				log.Printf("Access denied for %s from %s", user.DisplayName(), s.RemoteAddr())
				wish.Fatalln(s, "Access denied: no read access to any level")
				return
			}
			next(s)
		}
	}
}

// LoggingMiddleware logs connections.
func LoggingMiddleware() wish.Middleware {
	return func(next ssh.Handler) ssh.Handler {
		return func(s ssh.Session) {
			user := GetUserFromContext(s.Context())
			log.Printf("Connection from %s as %s (command: %v)",
				s.RemoteAddr(), user.DisplayName(), s.Command())

			next(s)

			log.Printf("Disconnected: %s", s.RemoteAddr())
		}
	}
}

// GetSessionFromSSH retrieves the session from the SSH session context.
func GetSessionFromSSH(s ssh.Session) *Session {
	if session, ok := s.Context().Value(ctxKeySession).(*Session); ok {
		return session
	}
	return nil
}

// GetSessionMgrFromSSH retrieves the session manager from the SSH session context.
func GetSessionMgrFromSSH(s ssh.Session) *SessionManager {
	if mgr, ok := s.Context().Value(ctxKeySessionMgr).(*SessionManager); ok {
		return mgr
	}
	return nil
}
