package initcmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/mpecan/tokf-sub001/internal/config"
)

const hookName = "tokf-rewrite.sh"

// Commands without a matching filter pass through unchanged, so the hook can
// route everything it sees.
const hookScript = `#!/bin/bash
# tokf hook: runs agent shell commands through the tokf output filters.

COMMAND="$1"
shift

if command -v tokf >/dev/null 2>&1; then
  exec tokf run "$COMMAND" "$@"
fi
exec "$COMMAND" "$@"
`

// Options locate the files init touches. Home defaults to the user's home
// directory.
type Options struct {
	Home      string
	Uninstall bool
	Out       io.Writer
}

func (o *Options) resolve() error {
	if o.Out == nil {
		o.Out = os.Stdout
	}
	if o.Home != "" {
		return nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("get home dir: %w", err)
	}
	o.Home = home
	return nil
}

// Run installs the agent hook, the user filter directory and a default
// config file, or removes the hook with Uninstall set.
func Run(opts Options) error {
	if err := opts.resolve(); err != nil {
		return err
	}
	if opts.Uninstall {
		return uninstall(opts)
	}

	filterDir := filepath.Join(opts.Home, ".config", "tokf", "filters")
	if err := os.MkdirAll(filterDir, 0755); err != nil {
		return fmt.Errorf("create filter dir: %w", err)
	}

	configPath := filepath.Join(opts.Home, ".config", "tokf", "config.toml")
	if err := writeDefaultConfig(configPath); err != nil {
		return err
	}

	hookDir := filepath.Join(opts.Home, ".claude", "hooks")
	if err := os.MkdirAll(hookDir, 0755); err != nil {
		return fmt.Errorf("create hook dir: %w", err)
	}
	hookPath := filepath.Join(hookDir, hookName)
	if err := os.WriteFile(hookPath, []byte(hookScript), 0755); err != nil {
		return fmt.Errorf("write hook: %w", err)
	}

	settingsPath := filepath.Join(opts.Home, ".claude", "settings.json")
	if err := patchSettings(settingsPath); err != nil {
		return fmt.Errorf("patch settings: %w", err)
	}

	fmt.Fprintln(opts.Out, "tokf init complete:")
	fmt.Fprintf(opts.Out, "  hook: %s\n", hookPath)
	fmt.Fprintf(opts.Out, "  filters: %s\n", filterDir)
	fmt.Fprintf(opts.Out, "  config: %s\n", configPath)
	fmt.Fprintf(opts.Out, "  settings: %s\n", settingsPath)
	return nil
}

// writeDefaultConfig writes the defaults once. An existing file is kept.
func writeDefaultConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	data, err := toml.Marshal(config.DefaultConfig())
	if err != nil {
		return fmt.Errorf("encode default config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func uninstall(opts Options) error {
	hookPath := filepath.Join(opts.Home, ".claude", "hooks", hookName)
	if err := os.Remove(hookPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove hook: %w", err)
	}
	if err := unpatchSettings(filepath.Join(opts.Home, ".claude", "settings.json")); err != nil {
		return fmt.Errorf("unpatch settings: %w", err)
	}
	fmt.Fprintln(opts.Out, "tokf hook removed")
	return nil
}

func readSettings(path string) (map[string]any, []byte, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return make(map[string]any), nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read settings: %w", err)
	}
	var settings map[string]any
	if err := json.Unmarshal(data, &settings); err != nil {
		return nil, nil, fmt.Errorf("parse settings: %w", err)
	}
	if settings == nil {
		settings = make(map[string]any)
	}
	return settings, data, nil
}

func writeSettings(path string, settings map[string]any) error {
	out, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	return os.WriteFile(path, out, 0644)
}

func patchSettings(path string) error {
	settings, original, err := readSettings(path)
	if err != nil {
		return err
	}
	if original != nil {
		if err := os.WriteFile(path+".bak", original, 0644); err != nil {
			return fmt.Errorf("backup settings: %w", err)
		}
	}

	// Merge into existing hooks rather than replacing them.
	hooks, _ := settings["hooks"].(map[string]any)
	if hooks == nil {
		hooks = make(map[string]any)
	}
	preToolUse, _ := hooks["PreToolUse"].(map[string]any)
	if preToolUse == nil {
		preToolUse = make(map[string]any)
	}
	preToolUse["Bash"] = map[string]any{"command": hookName}
	hooks["PreToolUse"] = preToolUse
	settings["hooks"] = hooks

	return writeSettings(path, settings)
}

func unpatchSettings(path string) error {
	settings, original, err := readSettings(path)
	if err != nil || original == nil {
		return err
	}
	hooks, _ := settings["hooks"].(map[string]any)
	if hooks == nil {
		return nil
	}
	preToolUse, _ := hooks["PreToolUse"].(map[string]any)
	if preToolUse == nil {
		return nil
	}
	delete(preToolUse, "Bash")
	if len(preToolUse) == 0 {
		delete(hooks, "PreToolUse")
	}
	if len(hooks) == 0 {
		delete(settings, "hooks")
	}
	return writeSettings(path, settings)
}
