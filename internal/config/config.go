// Package config loads the server's YAML configuration.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// RemoteConfig describes the cloud event store this device syncs against.
type RemoteConfig struct {
	// BaseURL is the remote store's API root, e.g. "https://sync.example.com".
	// Empty disables remote sync entirely; the app runs local-only.
	BaseURL string `yaml:"base_url"`

	// Token is the bearer credential for the remote store.
	Token string `yaml:"token"`

	// Timeout bounds each remote request.
	Timeout time.Duration `yaml:"timeout"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the view and API.
	Listen string `yaml:"listen"`

	// DataDir holds the SQLite database.
	DataDir string `yaml:"data_dir"`

	// StaticDir holds the bundled view assets; empty disables serving them.
	StaticDir string `yaml:"static_dir"`

	// WeekStart is the default first weekday for calendar views,
	// "monday" or "sunday".
	WeekStart string `yaml:"week_start"`

	// SyncInterval is the periodic reconciliation backstop.
	SyncInterval time.Duration `yaml:"sync_interval"`

	// ProbeInterval is how often connectivity is re-checked.
	ProbeInterval time.Duration `yaml:"probe_interval"`

	Remote RemoteConfig `yaml:"remote"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:        "127.0.0.1:8094",
		DataDir:       "./data",
		StaticDir:     "./static",
		WeekStart:     "monday",
		SyncInterval:  30 * time.Second,
		ProbeInterval: 15 * time.Second,
	}
}

// Normalize fills in missing or zero values so partial configs still
// behave correctly.
func (c *Config) Normalize() {
	d := DefaultConfig()
	if c.Listen == "" {
		c.Listen = d.Listen
	}
	if c.DataDir == "" {
		c.DataDir = d.DataDir
	}
	switch c.WeekStart {
	case "monday", "sunday":
	default:
		c.WeekStart = d.WeekStart
	}
	if c.SyncInterval <= 0 {
		c.SyncInterval = d.SyncInterval
	}
	if c.ProbeInterval <= 0 {
		c.ProbeInterval = d.ProbeInterval
	}
	if c.Remote.Timeout <= 0 {
		c.Remote.Timeout = 10 * time.Second
	}
}

// Load reads configuration from the given YAML path. A missing file yields
// the defaults; a present but invalid file is an error.
func Load(path string) (*Config, error) {
	if path == "" {
		cfg := DefaultConfig()
		cfg.Normalize()
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			cfg.Normalize()
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	cfg.Normalize()
	return &cfg, nil
}
