// Package config aggregates the engine's tunables into one YAML-loadable
// surface. Every field has a working default; a config file only has to
// name what it overrides.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/embermind/recall/assoc"
	"github.com/embermind/recall/attention"
	"github.com/embermind/recall/memory"
	"github.com/embermind/recall/retention"
	"github.com/embermind/recall/window"
)

// Storage selects and tunes the backing store.
type Storage struct {
	// Path is the sqlite database file. Empty means in-memory only.
	Path string `yaml:"path"`
}

// Cache tunes the two-tier computation cache.
type Cache struct {
	Capacity int `yaml:"capacity"`
}

// Summarizer tunes the compaction model call.
type Summarizer struct {
	Model     string `yaml:"model"`
	MaxTokens int64  `yaml:"max_tokens"`
}

// Heartbeat tunes the background consolidation loop.
type Heartbeat struct {
	// Schedule is a cron spec, e.g. "@every 10m".
	Schedule string `yaml:"schedule"`
}

// Config is the full engine configuration.
type Config struct {
	Storage     Storage          `yaml:"storage"`
	Cache       Cache            `yaml:"cache"`
	Memory      memory.Config    `yaml:"memory"`
	Retention   retention.Config `yaml:"retention"`
	Attention   attention.Config `yaml:"attention"`
	Association assoc.Config     `yaml:"association"`
	Window      window.Config    `yaml:"window"`
	Summarizer  Summarizer       `yaml:"summarizer"`
	Heartbeat   Heartbeat        `yaml:"heartbeat"`
}

// Default returns the stock configuration.
func Default() Config {
	return Config{
		Cache:       Cache{Capacity: 1024},
		Memory:      memory.DefaultConfig(),
		Retention:   retention.DefaultConfig(),
		Attention:   attention.DefaultConfig(),
		Association: assoc.DefaultConfig(),
		Window:      window.DefaultConfig(),
		Summarizer:  Summarizer{Model: "claude-sonnet-4-5", MaxTokens: 1024},
		Heartbeat:   Heartbeat{Schedule: "@every 10m"},
	}
}

// Load reads a YAML config file over the defaults. An empty path
// returns the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}
