// Package config handles configuration file parsing and hot-reloading.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/johan-st/vpin-tui/internal/access"
	"github.com/johan-st/vpin-tui/internal/database"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Name     string         `yaml:"name"`
	Database DatabaseConfig `yaml:"database"`
	Server   ServerConfig   `yaml:"server"`

	// Author recorded on revisions saved locally. Empty means $USER.
	Author string `yaml:"author"`

	// Show selected when the browser opens
	Show string `yaml:"show"`

	// Capacity of the bridge queues
	QueueSize int `yaml:"queue_size"`

	// Fallback permission (none, read-only, read-write)
	AnonymousAccess string `yaml:"anonymous_access"`

	// Allow keyless SSH connections
	AllowKeyless bool `yaml:"allow_keyless"`

	Users  []User       `yaml:"users"`
	Public []AccessRule `yaml:"public"`

	path    string
	modTime time.Time

	mu sync.RWMutex
}

// DatabaseConfig locates the pin database.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	ReadOnly    bool   `yaml:"read_only"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// ServerConfig contains server-related configuration.
type ServerConfig struct {
	SSH SSHConfig `yaml:"ssh"`
}

// SSHConfig contains SSH server configuration.
type SSHConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Listen      string `yaml:"listen"`
	HostKeyPath string `yaml:"host_key_path"`
	IdleTimeout string `yaml:"idle_timeout"`
	MaxTimeout  string `yaml:"max_timeout"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Name: "vpin-tui",
		Database: DatabaseConfig{
			Path:        "pins.db",
			BusyTimeout: 5000,
		},
		Server: ServerConfig{
			SSH: SSHConfig{
				Enabled:     true,
				Listen:      ":2222",
				HostKeyPath: ".vpin-tui/host_key",
				IdleTimeout: "30m",
				MaxTimeout:  "24h",
			},
		},
		QueueSize:       64,
		AnonymousAccess: "none",
		AllowKeyless:    false,
		Users:           []User{},
		Public:          []AccessRule{},
	}
}

// Load reads and parses a configuration file. A relative database path is
// taken relative to the config file.
func Load(path string) (*Config, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path: %w", err)
	}

	cfg, err := parse(absPath)
	if err != nil {
		return nil, err
	}
	cfg.path = absPath
	if info, err := os.Stat(absPath); err == nil {
		cfg.modTime = info.ModTime()
	}
	return cfg, nil
}

func parse(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if cfg.Database.Path != "" && !filepath.IsAbs(cfg.Database.Path) {
		cfg.Database.Path = filepath.Join(filepath.Dir(path), cfg.Database.Path)
	}
	return cfg, nil
}

// Path returns the path to the config file.
func (c *Config) Path() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.path
}

// Reload reloads the configuration from disk. The database location is
// kept; a new one needs a restart.
func (c *Config) Reload() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	newCfg, err := parse(c.path)
	if err != nil {
		return err
	}

	c.Name = newCfg.Name
	c.Server = newCfg.Server
	c.Author = newCfg.Author
	c.Show = newCfg.Show
	c.QueueSize = newCfg.QueueSize
	c.AnonymousAccess = newCfg.AnonymousAccess
	c.AllowKeyless = newCfg.AllowKeyless
	c.Users = newCfg.Users
	c.Public = newCfg.Public

	if info, err := os.Stat(c.path); err == nil {
		c.modTime = info.ModTime()
	}
	return nil
}

// HasChanged checks if the config file has been modified.
func (c *Config) HasChanged() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	info, err := os.Stat(c.path)
	if err != nil {
		return false
	}
	return info.ModTime().After(c.modTime)
}

// OpenOptions returns the options for opening the pin database.
func (c *Config) OpenOptions() database.OpenOptions {
	c.mu.RLock()
	defer c.mu.RUnlock()

	opts := database.DefaultOpenOptions()
	opts.ReadOnly = c.Database.ReadOnly
	if c.Database.BusyTimeout > 0 {
		opts.BusyTimeout = c.Database.BusyTimeout
	}
	return opts
}

// BuildResolver creates an access.Resolver from the configuration.
func (c *Config) BuildResolver() *access.Resolver {
	c.mu.RLock()
	defer c.mu.RUnlock()

	resolver := access.NewResolver()
	resolver.SetAnonymousAccess(access.ParsePermission(c.AnonymousAccess))

	for _, rule := range c.Public {
		r := rule.ToAccessRule()
		resolver.AddPublicRule(r.Pattern, r.Permission)
	}

	for _, user := range c.Users {
		if user.Admin {
			resolver.AddAdmin(user.Name)
		}
		for _, rule := range user.Access {
			r := rule.ToAccessRule()
			resolver.AddUserRule(user.Name, r.Pattern, r.Permission)
		}
	}

	return resolver
}

// FindUserByPublicKey finds a user by one of their authorized keys.
func (c *Config) FindUserByPublicKey(key string) *User {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for i := range c.Users {
		for _, k := range c.Users[i].PublicKeys {
			if k == key {
				u := c.Users[i]
				return &u
			}
		}
	}
	return nil
}

// KeylessAllowed reports whether clients without a key may connect.
func (c *Config) KeylessAllowed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.AllowKeyless
}

// GetIdleTimeout parses and returns the idle timeout duration.
func (c *Config) GetIdleTimeout() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()

	d, err := time.ParseDuration(c.Server.SSH.IdleTimeout)
	if err != nil {
		return 30 * time.Minute
	}
	return d
}

// GetMaxTimeout parses and returns the max timeout duration.
func (c *Config) GetMaxTimeout() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()

	d, err := time.ParseDuration(c.Server.SSH.MaxTimeout)
	if err != nil {
		return 24 * time.Hour
	}
	return d
}

// LocalAuthor returns the author for revisions saved from a local session.
func (c *Config) LocalAuthor() string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.Author != "" {
		return c.Author
	}
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "unknown"
}

// DatabasePath returns the pin database location.
func (c *Config) DatabasePath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Database.Path
}

// AnonymousPermission returns the fallback permission for unknown clients.
func (c *Config) AnonymousPermission() access.Permission {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return access.ParsePermission(c.AnonymousAccess)
}

// ListUsers returns a copy of the configured users.
func (c *Config) ListUsers() []User {
	c.mu.RLock()
	defer c.mu.RUnlock()
	users := make([]User, len(c.Users))
	copy(users, c.Users)
	return users
}

// ListenAddr returns the SSH listen address.
func (c *Config) ListenAddr() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Server.SSH.Listen
}

// HostKeyPath returns the SSH host key location.
func (c *Config) HostKeyPath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Server.SSH.HostKeyPath
}
