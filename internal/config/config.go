package config

import (
	"fmt"
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/mpecan/tokf-sub001/internal/sandbox"
	"github.com/mpecan/tokf-sub001/internal/tee"
	"github.com/mpecan/tokf-sub001/internal/tracking"
)

// Config is the application configuration. Filter documents are separate.
type Config struct {
	Tracking TrackingConfig `toml:"tracking"`
	Display  DisplayConfig  `toml:"display"`
	Filters  FiltersConfig  `toml:"filters"`
	Tee      tee.Config     `toml:"tee"`
	Sandbox  sandbox.Limits `toml:"sandbox"`
}

type TrackingConfig struct {
	Enabled bool   `toml:"enabled"`
	DBPath  string `toml:"db_path"`
}

type DisplayConfig struct {
	// Color keeps ANSI codes in filtered output when stdout is a terminal.
	Color bool `toml:"color"`
}

type FiltersConfig struct {
	// Dirs are searched in order before the built-in library. A project
	// directory (.tokf/filters) is always searched first.
	Dirs []string `toml:"dirs"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return &Config{
		Tracking: TrackingConfig{
			Enabled: true,
			DBPath:  filepath.Join(home, ".local", "share", "tokf", "tracking.db"),
		},
		Display: DisplayConfig{Color: true},
		Filters: FiltersConfig{
			Dirs: []string{filepath.Join(home, ".config", "tokf", "filters")},
		},
		Tee:     tee.DefaultConfig(),
		Sandbox: sandbox.DefaultLimits(),
	}
}

// Load reads the config file over the defaults and applies environment
// overrides. A missing file is not an error.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	path := Path()
	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.Tracking.DBPath = tracking.DBPath(cfg.Tracking.DBPath)
	cfg.Tee = cfg.Tee.ApplyEnv()
	return cfg, nil
}

// FilterDirs returns the filter search path for a working directory, highest
// priority first.
func (c *Config) FilterDirs(cwd string) []string {
	dirs := make([]string, 0, len(c.Filters.Dirs)+1)
	if cwd != "" {
		dirs = append(dirs, filepath.Join(cwd, ".tokf", "filters"))
	}
	return append(dirs, c.Filters.Dirs...)
}

// Path is the config file location: TOKF_CONFIG or ~/.config/tokf/config.toml.
func Path() string {
	if p := os.Getenv("TOKF_CONFIG"); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".config", "tokf", "config.toml")
}
