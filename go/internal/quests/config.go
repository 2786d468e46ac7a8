// Package quests implements the quest lifecycle: system quest generation,
// completion with friend nomination, and expiry regeneration.
package quests

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Config holds the quest category pool and timing knobs.
type Config struct {
	// Categories is the pool a new quest's target category is drawn from.
	Categories []string `yaml:"categories"`
	// QuestDurationHours is how long a fresh quest stays open.
	QuestDurationHours int `yaml:"quest_duration_hours"`
}

// DefaultConfig returns a Config with the stock category pool.
func DefaultConfig() *Config {
	return &Config{
		Categories: []string{
			"Recycling Activity",
			"Litter Pickup",
			"Using Public Transit",
			"Environmental Care",
			"Self-Care Activity",
			"Helping Others (General)",
			"Community Involvement",
			"Creativity and Learning",
		},
		QuestDurationHours: 24,
	}
}

// Validate checks the config for usable values.
func (c *Config) Validate() error {
	if len(c.Categories) == 0 {
		return fmt.Errorf("at least one quest category is required")
	}
	if c.QuestDurationHours <= 0 {
		return fmt.Errorf("quest duration must be positive")
	}
	return nil
}

// LoadConfig reads a yaml config file, falling back to defaults for any
// omitted field.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// CategorySource hands out the current category pool and duration, and can
// hot-reload them when the config file changes.
type CategorySource struct {
	mu  sync.RWMutex
	cfg *Config
}

// NewCategorySource wraps a config for concurrent readers.
func NewCategorySource(cfg *Config) *CategorySource {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &CategorySource{cfg: cfg}
}

// Categories returns a copy of the current category pool.
func (s *CategorySource) Categories() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.cfg.Categories...)
}

// QuestDuration returns the configured quest lifetime.
func (s *CategorySource) QuestDuration() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return time.Duration(s.cfg.QuestDurationHours) * time.Hour
}

// Reload swaps in the config at path. Invalid files leave the current
// config untouched.
func (s *CategorySource) Reload(path string) error {
	cfg, err := LoadConfig(path)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
	return nil
}

// Watch reloads the config whenever the file at path is rewritten, until
// ctx is cancelled.
func (s *CategorySource) Watch(ctx context.Context, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(path); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", path, err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if err := s.Reload(path); err != nil {
					log.Warn().Err(err).Str("path", path).Msg("category config reload failed, keeping previous")
					continue
				}
				log.Info().Str("path", path).Msg("category config reloaded")
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Warn().Err(err).Msg("category config watcher error")
			}
		}
	}()
	return nil
}
