package config

import "github.com/johan-st/vpin-tui/internal/access"

// AccessRule grants a permission on the levels matching a pattern.
type AccessRule struct {
	Pattern    string `yaml:"pattern"`
	Permission string `yaml:"permission"`
}

// ToAccessRule converts a config AccessRule to an access.Rule.
func (r AccessRule) ToAccessRule() access.Rule {
	return access.Rule{
		Pattern:    r.Pattern,
		Permission: access.ParsePermission(r.Permission),
	}
}

// User represents a user in the config file.
type User struct {
	Name       string       `yaml:"name"`
	Admin      bool         `yaml:"admin"`
	PublicKeys []string     `yaml:"public_keys"`
	Access     []AccessRule `yaml:"access"`
}
