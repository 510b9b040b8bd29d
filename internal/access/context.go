package access

import (
	"context"
	"time"
)

type contextKey string

const (
	userKey    contextKey = "user"
	sessionKey contextKey = "session"
)

// UserInfo describes who is driving a session.
type UserInfo struct {
	Name          string
	IsAdmin       bool
	PublicKeyFP   string // SSH public key fingerprint
	IsAnonymous   bool
	AnonymousName string // e.g. "guest-comp-0042"
	RemoteAddr    string
}

// SessionInfo describes one connected session.
type SessionInfo struct {
	ID         string
	User       *UserInfo
	RemoteAddr string
	StartedAt  time.Time
}

// WithUser adds user info to the context.
func WithUser(ctx context.Context, user *UserInfo) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// UserFromContext retrieves user info from the context.
func UserFromContext(ctx context.Context) (*UserInfo, bool) {
	user, ok := ctx.Value(userKey).(*UserInfo)
	return user, ok
}

// WithSession adds session info to the context.
func WithSession(ctx context.Context, session *SessionInfo) context.Context {
	return context.WithValue(ctx, sessionKey, session)
}

// SessionFromContext retrieves session info from the context.
func SessionFromContext(ctx context.Context) (*SessionInfo, bool) {
	session, ok := ctx.Value(sessionKey).(*SessionInfo)
	return session, ok
}

// DisplayName returns the name shown in the status bar.
func (u *UserInfo) DisplayName() string {
	if u == nil {
		return "unknown"
	}
	if u.IsAnonymous {
		return u.AnonymousName
	}
	return u.Name
}

// Author returns the name recorded on revisions saved by u.
func (u *UserInfo) Author() string {
	if u == nil {
		return ""
	}
	if u.IsAnonymous {
		return "anonymous:" + u.AnonymousName
	}
	return u.Name
}
