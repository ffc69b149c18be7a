// Package config loads the eventflow CLI configuration.
//
// Configuration is stored under os.UserConfigDir()/eventflow/:
//
//	~/Library/Application Support/eventflow/   (macOS)
//	~/.config/eventflow/                       (Linux)
//	%AppData%/eventflow/                       (Windows)
//
// Layout:
//
//	eventflow/
//	├── config.yaml   # settings (see Config)
//	└── captures/     # default BadgerDB capture store
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-yaml"
)

const (
	appDir      = "eventflow"
	configFile  = "config.yaml"
	capturesDir = "captures"
)

// Config holds the CLI settings.
type Config struct {
	// Dir is the root configuration directory. Not serialized.
	Dir string `yaml:"-"`

	// StoreDir overrides the capture store location. Defaults to
	// <Dir>/captures.
	StoreDir string `yaml:"store_dir,omitempty"`

	// Headers are sent on every recording handshake, e.g. authorization.
	Headers map[string]string `yaml:"headers,omitempty"`
}

// Load loads the configuration from the default location. A missing
// config file is not an error; defaults apply.
func Load() (*Config, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return nil, fmt.Errorf("cannot determine config directory: %w", err)
	}
	return LoadFrom(filepath.Join(base, appDir))
}

// LoadFrom loads the configuration from a specific root directory.
func LoadFrom(dir string) (*Config, error) {
	cfg := &Config{Dir: dir}

	data, err := os.ReadFile(filepath.Join(dir, configFile))
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", configFile, err)
	}
	cfg.Dir = dir
	return cfg, nil
}

// Save writes the configuration back to disk.
func (c *Config) Save() error {
	if err := os.MkdirAll(c.Dir, 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return os.WriteFile(filepath.Join(c.Dir, configFile), data, 0o644)
}

// ResolveStoreDir returns the capture store directory, creating it if
// needed.
func (c *Config) ResolveStoreDir() (string, error) {
	dir := c.StoreDir
	if dir == "" {
		dir = filepath.Join(c.Dir, capturesDir)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create store dir: %w", err)
	}
	return dir, nil
}
