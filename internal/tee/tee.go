// Package tee keeps the unfiltered output of runs so a compressed summary
// can always be traced back to what the command really printed.
package tee

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"unicode/utf8"
)

// Modes.
const (
	ModeFailures = "failures"
	ModeAlways   = "always"
	ModeNever    = "never"
)

// Config for tee behavior.
type Config struct {
	Mode        string `toml:"mode"`
	MaxFiles    int    `toml:"max_files"`
	MaxFileSize int64  `toml:"max_file_size"`
	// MinSize skips outputs too short to be worth keeping.
	MinSize int    `toml:"min_size"`
	Dir     string `toml:"dir"`
}

// DefaultConfig returns tee defaults.
func DefaultConfig() Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return Config{
		Mode:        ModeFailures,
		MaxFiles:    20,
		MaxFileSize: 1 << 20,
		MinSize:     500,
		Dir:         filepath.Join(home, ".local", "share", "tokf", "tee"),
	}
}

// ApplyEnv applies TOKF_TEE (a mode, or "0" for never) and TOKF_TEE_DIR.
func (c Config) ApplyEnv() Config {
	switch v := os.Getenv("TOKF_TEE"); v {
	case "":
	case "0":
		c.Mode = ModeNever
	default:
		c.Mode = v
	}
	if dir := os.Getenv("TOKF_TEE_DIR"); dir != "" {
		c.Dir = dir
	}
	return c
}

func (c Config) wants(exitCode int) bool {
	switch c.Mode {
	case ModeAlways:
		return true
	case ModeFailures:
		return exitCode != 0
	}
	return false
}

// Save writes raw to a new file when the config asks for it and returns the
// file's path. An empty path with a nil error means nothing was saved.
func Save(raw string, exitCode int, name string, cfg Config) (string, error) {
	if !cfg.wants(exitCode) || len(raw) < cfg.MinSize {
		return "", nil
	}
	if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
		return "", fmt.Errorf("create tee dir: %w", err)
	}

	data := truncateBytes(raw, cfg.MaxFileSize)
	filename := fmt.Sprintf("%d-%s.log", time.Now().UnixNano(), sanitize(name))
	path := filepath.Join(cfg.Dir, filename)
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		return "", fmt.Errorf("write tee file: %w", err)
	}

	rotateFiles(cfg.Dir, cfg.MaxFiles)
	return path, nil
}

// Hint is the line printed after filtered output that points at a tee file.
func Hint(path string) string {
	return fmt.Sprintf("[full output: %s]", path)
}

// truncateBytes cuts s to at most max bytes without splitting a rune.
func truncateBytes(s string, max int64) string {
	if max <= 0 || int64(len(s)) <= max {
		return s
	}
	cut := int(max)
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func sanitize(name string) string {
	return strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			return r
		}
		return '-'
	}, name)
}

func rotateFiles(dir string, maxFiles int) {
	if maxFiles <= 0 {
		return
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}

	var logFiles []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".log") {
			logFiles = append(logFiles, e.Name())
		}
	}
	if len(logFiles) <= maxFiles {
		return
	}

	// Timestamp prefix makes name order chronological.
	sort.Strings(logFiles)
	for _, name := range logFiles[:len(logFiles)-maxFiles] {
		os.Remove(filepath.Join(dir, name))
	}
}
