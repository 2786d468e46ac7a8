package client

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/karmahq/questline/go/internal/session"
)

// DefaultServerURL is used until a config file says otherwise.
const DefaultServerURL = "http://localhost:8080"

// Config is the CLI's persisted state: where the server lives and the raw
// session cookie the last login produced.
type Config struct {
	ServerURL string `yaml:"server_url"`
	Cookie    string `yaml:"cookie"`
	UserID    string `yaml:"user_id"`
}

// DefaultConfigPath returns the per-user config location.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "questline.yaml"
	}
	return filepath.Join(home, ".questline", "config.yaml")
}

// LoadConfig reads the config file. A missing file is not an error; it
// yields defaults so first-run commands can still talk to a local server.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{ServerURL: DefaultServerURL}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.ServerURL == "" {
		cfg.ServerURL = DefaultServerURL
	}
	return cfg, nil
}

// Save writes the config file, creating its directory if needed. The file
// holds a session cookie, so it is not group or world readable.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// SessionToken extracts the session value from the stored raw cookie header.
func (c *Config) SessionToken() (string, bool) {
	return session.ReadCookie(c.Cookie, session.CookieName)
}
