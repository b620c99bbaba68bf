// Package config manages vizedit configuration and the .vizedit directory.
// It handles loading, saving, and initializing the workspace configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

const (
	Dir          = ".vizedit"
	ConfigFile   = "config"
	DatabaseFile = "vizedit.db"
)

// Config represents the workspace configuration.
type Config struct {
	Remote      string `toml:"remote,omitempty"` // empty selects the local store
	DefaultType string `toml:"default_type,omitempty"`
	LogLevel    string `toml:"log_level,omitempty"`
	WeaviateURL string `toml:"weaviate_url,omitempty"`
	path        string // path to .vizedit directory
}

// FindRoot finds the .vizedit directory by walking up from the current directory.
func FindRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return findRootFrom(dir)
}

func findRootFrom(dir string) (string, error) {
	for {
		path := filepath.Join(dir, Dir)
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			return path, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("not a vizedit workspace (or any parent up to root)")
		}
		dir = parent
	}
}

// Load loads the configuration from the .vizedit directory.
func Load() (*Config, error) {
	root, err := FindRoot()
	if err != nil {
		return nil, err
	}
	return LoadFrom(root)
}

// LoadFrom loads the configuration stored in the given .vizedit directory.
func LoadFrom(root string) (*Config, error) {
	data, err := os.ReadFile(filepath.Join(root, ConfigFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.path = root
	return &cfg, nil
}

// Save saves the configuration to disk.
func (c *Config) Save() error {
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	return os.WriteFile(filepath.Join(c.path, ConfigFile), data, 0644)
}

// Path returns the path to the .vizedit directory.
func (c *Config) Path() string {
	return c.path
}

// DatabasePath returns the path to the bbolt database.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.path, DatabaseFile)
}

// SlogLevel parses LogLevel, defaulting to warn so the CLI stays quiet.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}

// Initialize creates a new .vizedit directory in dir with an initial configuration.
func Initialize(dir string, cfg Config) (*Config, error) {
	path := filepath.Join(dir, Dir)

	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("vizedit workspace already exists")
	}

	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create %s directory: %w", Dir, err)
	}

	cfg.path = path
	if err := cfg.Save(); err != nil {
		os.RemoveAll(path)
		return nil, err
	}

	return &cfg, nil
}
