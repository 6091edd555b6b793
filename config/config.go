// Package config handles CLI configuration for searchdock.
//
// Config is stored at $XDG_CONFIG_HOME/searchdock/config.yaml (defaults to
// ~/.config/searchdock/config.yaml).
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const defaultStackFile = "stack.yaml"

// Config holds the CLI defaults.
type Config struct {
	// StackFile is the stack document applied when no file argument is
	// given. Defaults to ./stack.yaml.
	StackFile string `yaml:"stack-file,omitempty"`
	// StatePath is the SQLite state database location. Defaults to
	// $XDG_STATE_HOME/searchdock/state.db.
	StatePath string `yaml:"state-path,omitempty"`
	// DockerHost overrides the engine address; empty uses the environment.
	DockerHost string `yaml:"docker-host,omitempty"`
}

// Path returns the config file location. It respects XDG_CONFIG_HOME,
// falling back to ~/.config/searchdock/config.yaml.
func Path() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(".config", "searchdock", "config.yaml")
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "searchdock", "config.yaml")
}

// DefaultStatePath returns the state database location. It respects
// XDG_STATE_HOME, falling back to ~/.local/state/searchdock/state.db.
func DefaultStatePath() string {
	dir := os.Getenv("XDG_STATE_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(".local", "state", "searchdock", "state.db")
		}
		dir = filepath.Join(home, ".local", "state")
	}
	return filepath.Join(dir, "searchdock", "state.db")
}

// Load reads the config file. If the file does not exist, a Config with
// defaults is returned (not an error).
func Load() (*Config, error) {
	data, err := os.ReadFile(Path())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return withDefaults(&Config{}), nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return withDefaults(&cfg), nil
}

// Save writes the config to disk, creating directories as needed.
func (c *Config) Save() error {
	p := Path()
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func withDefaults(cfg *Config) *Config {
	if cfg.StackFile == "" {
		cfg.StackFile = defaultStackFile
	}
	if cfg.StatePath == "" {
		cfg.StatePath = DefaultStatePath()
	}
	return cfg
}
