package filter

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/shlex"
	"github.com/hashicorp/go-multierror"
	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// ErrNoCommand is returned for documents without a usable command pattern.
var ErrNoCommand = errors.New("missing 'command'")

// ParseFilter parses a TOML filter document.
func ParseFilter(data []byte) (*Filter, error) {
	var f Filter
	if err := toml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse filter: %w", err)
	}
	return finish(&f)
}

// ParseFilterYAML parses a YAML filter document.
func ParseFilterYAML(data []byte) (*Filter, error) {
	var f Filter
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse filter: %w", err)
	}
	return finish(&f)
}

// ParseFilterFile picks the decoder from the file extension.
func ParseFilterFile(name string, data []byte) (*Filter, error) {
	if strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml") {
		return ParseFilterYAML(data)
	}
	return ParseFilter(data)
}

func finish(f *Filter) (*Filter, error) {
	patterns, err := normalizeCommand(f.Command)
	if err != nil {
		return nil, fmt.Errorf("validate filter: %w", err)
	}
	f.Patterns = patterns
	if err := ValidateFilter(f); err != nil {
		return nil, err
	}
	return f, nil
}

func normalizeCommand(v any) ([]string, error) {
	switch c := v.(type) {
	case nil:
		return nil, ErrNoCommand
	case string:
		return []string{c}, nil
	case []string:
		return c, nil
	case []any:
		out := make([]string, 0, len(c))
		for i, item := range c {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("command[%d]: expected string, got %T", i, item)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("command: expected string or list, got %T", v)
	}
}

// ValidateFilter checks structural invariants and reports every violation.
// Regex syntax is deliberately not checked here: a bad pattern makes its rule
// inert at run time instead of rejecting the document.
func ValidateFilter(f *Filter) error {
	var result *multierror.Error
	add := func(format string, args ...any) {
		result = multierror.Append(result, fmt.Errorf(format, args...))
	}

	if len(f.Patterns) == 0 {
		add("%w", ErrNoCommand)
	}
	for i, p := range f.Patterns {
		if strings.TrimSpace(p) == "" {
			add("command[%d] is empty", i)
		}
	}
	if f.Run != "" {
		words, err := shlex.Split(f.Run)
		switch {
		case err != nil:
			add("run: %v", err)
		case len(words) == 0:
			add("run: %w", ErrEmptyRun)
		}
	}
	if f.Script != nil {
		hasFile, hasSource := f.Script.File != "", f.Script.Source != ""
		if hasFile == hasSource {
			add("lua_script: exactly one of 'file' or 'source' must be set")
		}
		switch f.Script.Lang {
		case "", "lua", "luau":
		default:
			add("lua_script: unsupported lang %q", f.Script.Lang)
		}
	}
	for i, s := range f.Section {
		if s.Key() == "" {
			add("section[%d]: missing 'name' or 'collect_as'", i)
		}
	}
	for i, c := range f.Chunk {
		if c.SplitOn == "" {
			add("chunk[%d]: missing 'split_on'", i)
		}
		if c.CollectAs == "" {
			add("chunk[%d]: missing 'collect_as'", i)
		}
		if c.ChildrenAs != "" && c.GroupBy == "" {
			add("chunk[%d]: 'children_as' requires 'group_by'", i)
		}
	}
	for name, b := range map[string]*OutputBranch{"on_success": f.OnSuccess, "on_failure": f.OnFailure} {
		if b == nil {
			continue
		}
		if b.Tail < 0 || b.Head < 0 {
			add("%s: 'tail' and 'head' must not be negative", name)
		}
	}
	if f.Fallback != nil && f.Fallback.Tail < 0 {
		add("fallback: 'tail' must not be negative")
	}
	if f.DedupWindow < 0 {
		add("'dedup_window' must not be negative")
	}
	for i, v := range f.Variant {
		if v.Filter == "" {
			add("variant[%d]: missing 'filter'", i)
		}
		if len(v.Detect.Files) == 0 && v.Detect.OutputPattern == "" {
			add("variant[%d]: 'detect' needs 'files' or 'output_pattern'", i)
		}
	}
	for i, s := range f.Step {
		if s.Run == "" || s.As == "" {
			add("step[%d]: 'run' and 'as' are required", i)
		}
	}

	if err := result.ErrorOrNil(); err != nil {
		label := f.Name
		if label == "" && len(f.Patterns) > 0 {
			label = f.Patterns[0]
		}
		return fmt.Errorf("validate filter %q: %w", label, err)
	}
	return nil
}
