// Package access resolves what a user may do with version pins.
package access

import "strings"

// Permission is what a user may do with the pins at a level.
type Permission int

const (
	// None hides the pins entirely.
	None Permission = iota
	// ReadOnly allows browsing pins, withs and the revision history.
	ReadOnly
	// ReadWrite additionally allows saving pin changes.
	ReadWrite
	// Admin allows everything at every level.
	Admin
)

// String returns the config spelling of the permission.
func (p Permission) String() string {
	switch p {
	case None:
		return "none"
	case ReadOnly:
		return "read-only"
	case ReadWrite:
		return "read-write"
	case Admin:
		return "admin"
	default:
		return "unknown"
	}
}

// ParsePermission parses a permission from config. Unknown values are None.
func ParsePermission(s string) Permission {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none", "no-access", "deny":
		return None
	case "read-only", "readonly", "ro", "browse":
		return ReadOnly
	case "read-write", "readwrite", "rw", "edit":
		return ReadWrite
	case "admin":
		return Admin
	default:
		return None
	}
}

// CanRead reports whether pins may be browsed.
func (p Permission) CanRead() bool {
	return p >= ReadOnly
}

// CanWrite reports whether pin changes may be saved.
func (p Permission) CanWrite() bool {
	return p >= ReadWrite
}

// CanAdmin reports whether the permission is unrestricted.
func (p Permission) CanAdmin() bool {
	return p >= Admin
}
