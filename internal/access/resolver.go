package access

import (
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Rule grants a permission on the levels matching Pattern. Patterns are
// doublestar globs over level paths with the dots written as slashes or
// left as dots: "dev01/**" and "dev01.**" both cover a show and everything
// below it.
type Rule struct {
	Pattern    string
	Permission Permission
}

// Resolver resolves permissions for users and levels. It is not modified
// after it has been built, so it may be shared between sessions.
type Resolver struct {
	// Permission for levels no rule matches
	AnonymousAccess Permission

	// Rules that apply to every user
	PublicRules []Rule

	// User-specific rules (keyed by username)
	UserRules map[string][]Rule

	// Admin usernames
	Admins map[string]bool
}

// NewResolver creates an empty resolver that denies everything.
func NewResolver() *Resolver {
	return &Resolver{
		AnonymousAccess: None,
		PublicRules:     make([]Rule, 0),
		UserRules:       make(map[string][]Rule),
		Admins:          make(map[string]bool),
	}
}

// SetAnonymousAccess sets the fallback permission.
func (r *Resolver) SetAnonymousAccess(p Permission) {
	r.AnonymousAccess = p
}

// AddAdmin marks a user as admin.
func (r *Resolver) AddAdmin(username string) {
	r.Admins[username] = true
}

// AddPublicRule adds a rule for every user.
func (r *Resolver) AddPublicRule(pattern string, p Permission) {
	r.PublicRules = append(r.PublicRules, Rule{Pattern: pattern, Permission: p})
}

// AddUserRule adds a rule for one user.
func (r *Resolver) AddUserRule(username, pattern string, p Permission) {
	r.UserRules[username] = append(r.UserRules[username], Rule{Pattern: pattern, Permission: p})
}

func (r *Resolver) isAdmin(user *UserInfo) bool {
	if user == nil {
		return false
	}
	return user.IsAdmin || (!user.IsAnonymous && r.Admins[user.Name])
}

// Resolve determines the permission of user at a level such as
// "dev01.RD.0001". User rules are checked before public rules and the first
// matching rule wins, including rules that deny.
func (r *Resolver) Resolve(user *UserInfo, level string) Permission {
	if r.isAdmin(user) {
		return Admin
	}

	if user != nil && !user.IsAnonymous {
		if p, ok := matchRules(r.UserRules[user.Name], level); ok {
			return p
		}
	}

	if p, ok := matchRules(r.PublicRules, level); ok {
		return p
	}

	return r.AnonymousAccess
}

// Highest returns the strongest permission user holds at any level. It
// decides whether a session may open the pin browser at all.
func (r *Resolver) Highest(user *UserInfo) Permission {
	if r.isAdmin(user) {
		return Admin
	}

	best := r.AnonymousAccess
	consider := func(rules []Rule) {
		for _, rule := range rules {
			if rule.Permission > best {
				best = rule.Permission
			}
		}
	}
	if user != nil && !user.IsAnonymous {
		consider(r.UserRules[user.Name])
	}
	consider(r.PublicRules)
	return best
}

// CanBrowse reports whether user may see pins anywhere.
func (r *Resolver) CanBrowse(user *UserInfo) bool {
	return r.Highest(user).CanRead()
}

// Writer binds user to the resolver. The result checks saves level by
// level.
func (r *Resolver) Writer(user *UserInfo) LevelWriter {
	return LevelWriter{resolver: r, user: user}
}

// LevelWriter answers whether one user may save pins at a level.
type LevelWriter struct {
	resolver *Resolver
	user     *UserInfo
}

// CanWriteLevel reports whether the bound user may save pins at level.
func (w LevelWriter) CanWriteLevel(level string) bool {
	if w.resolver == nil {
		return false
	}
	return w.resolver.Resolve(w.user, level).CanWrite()
}

// LevelPath converts a dotted level name into the slash form rules match
// against.
func LevelPath(level string) string {
	return strings.ReplaceAll(strings.TrimSpace(level), ".", "/")
}

func matchRules(rules []Rule, level string) (Permission, bool) {
	for _, rule := range rules {
		if matchLevel(rule.Pattern, level) {
			return rule.Permission, true
		}
	}
	return None, false
}

func matchLevel(pattern, level string) bool {
	pattern = LevelPath(pattern)
	path := LevelPath(level)
	if pattern == "" || path == "" {
		return false
	}
	if pattern == path {
		return true
	}
	if matched, _ := doublestar.Match(pattern, path); matched {
		return true
	}
	// "show/**" covers the show itself
	if base, ok := strings.CutSuffix(pattern, "/**"); ok && base == path {
		return true
	}
	return false
}
