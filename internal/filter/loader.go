package filter

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"strings"

	"go.uber.org/zap"
)

// EmbeddedFS is set by the main package to provide the standard filter library.
// This avoids go:embed constraints on internal packages.
var EmbeddedFS fs.FS

// TestDirSuffix marks a directory holding test cases for the filter of the same name.
const TestDirSuffix = "_test"

func isFilterFile(name string) bool {
	switch path.Ext(name) {
	case ".toml", ".yaml", ".yml":
		return true
	}
	return false
}

// LoadEmbedded loads the embedded filter library. Errors are fatal: the
// library ships with the binary and is covered by tests.
func LoadEmbedded() ([]Filter, error) {
	if EmbeddedFS == nil {
		return nil, nil
	}

	// Try "filters" subdir first (when embedded from root), then "." (flat)
	root := "filters"
	if _, err := fs.Stat(EmbeddedFS, root); err != nil {
		root = "."
	}
	return loadFS(EmbeddedFS, root, nil)
}

// LoadUserFilters loads all filter documents below dir. Invalid documents
// are skipped with a warning.
func LoadUserFilters(dir string, log *zap.Logger) ([]Filter, error) {
	if _, err := os.Stat(dir); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read filter dir: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return loadFS(os.DirFS(dir), ".", log)
}

// LoadAll loads filters from dirs (highest priority first) and then the
// embedded library. A name already seen shadows later definitions.
func LoadAll(dirs []string, log *zap.Logger) ([]Filter, error) {
	var result []Filter
	seen := make(map[string]bool)
	add := func(filters []Filter) {
		for _, f := range filters {
			if seen[f.Name] {
				continue
			}
			seen[f.Name] = true
			result = append(result, f)
		}
	}

	for _, dir := range dirs {
		user, err := LoadUserFilters(dir, log)
		if err != nil {
			return nil, err
		}
		add(user)
	}

	embedded, err := LoadEmbedded()
	if err != nil {
		return nil, err
	}
	add(embedded)
	return result, nil
}

// loadFS walks root in fsys. A nil log makes every parse error fatal.
func loadFS(fsys fs.FS, root string, log *zap.Logger) ([]Filter, error) {
	var filters []Filter
	err := fs.WalkDir(fsys, root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != root && strings.HasSuffix(d.Name(), TestDirSuffix) {
				return fs.SkipDir
			}
			return nil
		}
		if !isFilterFile(d.Name()) {
			return nil
		}

		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return fmt.Errorf("read filter %s: %w", p, err)
		}
		f, err := ParseFilterFile(p, data)
		if err != nil {
			if log == nil {
				return fmt.Errorf("parse filter %s: %w", p, err)
			}
			log.Warn("skipping invalid filter", zap.String("path", p), zap.Error(err))
			return nil
		}
		f.Name = nameFor(root, p)
		f.Source = Source{FS: fsys, Path: p}
		filters = append(filters, *f)
		return nil
	})
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	return filters, nil
}

func nameFor(root, p string) string {
	rel := p
	if root != "." {
		rel = strings.TrimPrefix(p, root+"/")
	}
	return strings.TrimSuffix(rel, path.Ext(rel))
}

// ReadScript returns the script source, resolving a file reference relative
// to the filter document.
func (f *Filter) ReadScript() (string, error) {
	if f.Script == nil {
		return "", nil
	}
	if f.Script.Source != "" {
		return f.Script.Source, nil
	}
	if f.Source.FS == nil {
		return "", fmt.Errorf("lua_script.file %q: filter has no source location", f.Script.File)
	}
	p := path.Join(path.Dir(f.Source.Path), f.Script.File)
	data, err := fs.ReadFile(f.Source.FS, p)
	if err != nil {
		return "", fmt.Errorf("read lua_script.file: %w", err)
	}
	return string(data), nil
}

// TestDir returns the directory holding this filter's test cases.
func (f *Filter) TestDir() string {
	return strings.TrimSuffix(f.Source.Path, path.Ext(f.Source.Path)) + TestDirSuffix
}
