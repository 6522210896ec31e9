package filter

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/shlex"
)

// Wildcard matches exactly one non-flag token in a command pattern.
const Wildcard = "*"

// Registry holds loaded filters indexed for fast command matching.
type Registry struct {
	byHead  map[string][]entry // key = basename of the first pattern word
	byName  map[string]*Filter
	filters []*Filter
}

type entry struct {
	filter  *Filter
	pattern string
	words   []string
	order   int
}

// Match is the result of matching a command line against the registry.
type Match struct {
	Filter  *Filter
	Pattern string
	// Rest holds the arguments following the last matched pattern word.
	Rest []string
}

// NewRegistry builds a registry from a list of filters. Earlier filters win
// ties, so callers pass higher-priority sources first.
func NewRegistry(filters []Filter) *Registry {
	r := &Registry{
		byHead: make(map[string][]entry),
		byName: make(map[string]*Filter),
	}
	order := 0
	for i := range filters {
		f := &filters[i]
		if f.Name != "" {
			if _, dup := r.byName[f.Name]; dup {
				continue
			}
			r.byName[f.Name] = f
		}
		r.filters = append(r.filters, f)
		for _, p := range f.Patterns {
			words := strings.Fields(p)
			if len(words) == 0 {
				continue
			}
			head := filepath.Base(words[0])
			r.byHead[head] = append(r.byHead[head], entry{filter: f, pattern: p, words: words, order: order})
			order++
		}
	}
	return r
}

// Lookup returns the filter with the given name.
func (r *Registry) Lookup(name string) (*Filter, bool) {
	f, ok := r.byName[name]
	return f, ok
}

// Names returns all filter names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Filters returns the registered filters in priority order.
func (r *Registry) Filters() []*Filter {
	return r.filters
}

// Match finds the most specific filter for argv (command followed by its args).
func (r *Registry) Match(argv []string) (*Match, bool) {
	if len(argv) == 0 {
		return nil, false
	}
	candidates := r.byHead[filepath.Base(argv[0])]

	var best *entry
	var bestRest []string
	for i := range candidates {
		c := &candidates[i]
		rest, ok := matchWords(c.words[1:], argv[1:])
		if !ok {
			continue
		}
		if best == nil || moreSpecific(c, best) {
			best, bestRest = c, rest
		}
	}
	if best == nil {
		return nil, false
	}
	return &Match{Filter: best.filter, Pattern: best.pattern, Rest: bestRest}, true
}

// MatchLine splits a shell-style command line and matches it.
func (r *Registry) MatchLine(line string) (*Match, []string, error) {
	argv, err := shlex.Split(line)
	if err != nil {
		return nil, nil, fmt.Errorf("split command line: %w", err)
	}
	m, ok := r.Match(argv)
	if !ok {
		return nil, argv, nil
	}
	return m, argv, nil
}

func moreSpecific(a, b *entry) bool {
	la, lb := literalWords(a.words), literalWords(b.words)
	if la != lb {
		return la > lb
	}
	if len(a.words) != len(b.words) {
		return len(a.words) > len(b.words)
	}
	return a.order < b.order
}

func literalWords(words []string) int {
	n := 0
	for _, w := range words {
		if w != Wildcard {
			n++
		}
	}
	return n
}

// matchWords matches pattern words in order against args, tolerating global
// flags (and one value following a flag) between them.
func matchWords(pattern, args []string) ([]string, bool) {
	i := 0
	for _, w := range pattern {
		matched := false
		flagValue := false
		for i < len(args) {
			a := args[i]
			i++
			isFlag := strings.HasPrefix(a, "-") && a != "-"
			if a == w || (w == Wildcard && !isFlag) {
				matched = true
				break
			}
			if isFlag {
				flagValue = !strings.Contains(a, "=")
				continue
			}
			if flagValue {
				flagValue = false
				continue
			}
			return nil, false
		}
		if !matched {
			return nil, false
		}
	}
	return args[i:], true
}

// ShouldInject computes final args with injections, respecting skip_if_present.
func (r *Registry) ShouldInject(f *Filter, args []string) ([]string, bool) {
	if f.Inject == nil {
		return args, false
	}

	for _, skip := range f.Inject.SkipIfPresent {
		if hasFlagPrefix(args, skip) {
			return args, false
		}
	}

	// Injected args go before a "--" separator when there is one.
	result := make([]string, 0, len(args)+len(f.Inject.Args))
	dashDashIdx := -1
	for i, a := range args {
		if a == "--" {
			dashDashIdx = i
			break
		}
	}
	if dashDashIdx >= 0 {
		result = append(result, args[:dashDashIdx]...)
		result = append(result, f.Inject.Args...)
		result = append(result, args[dashDashIdx:]...)
	} else {
		result = append(result, args...)
		result = append(result, f.Inject.Args...)
	}

	// Defaults only apply when the flag is absent. Sorted for a stable argv.
	flags := make([]string, 0, len(f.Inject.Defaults))
	for flag := range f.Inject.Defaults {
		flags = append(flags, flag)
	}
	sort.Strings(flags)
	for _, flag := range flags {
		if !hasFlagPrefix(result, flag) {
			result = append(result, flag, f.Inject.Defaults[flag])
		}
	}

	return result, true
}

// ErrEmptyRun is returned when a run override expands to no command.
var ErrEmptyRun = errors.New("run expands to an empty command")

// RunArgv expands the filter's run override for a match. Without an
// override the original argv is returned. A literal {args} token is replaced
// by the user's remaining args; otherwise they are appended.
func (f *Filter) RunArgv(argv []string, m *Match) ([]string, error) {
	if f.Run == "" {
		return argv, nil
	}
	words, err := shlex.Split(f.Run)
	if err != nil {
		return nil, fmt.Errorf("split run %q: %w", f.Run, err)
	}
	var rest []string
	if m != nil {
		rest = m.Rest
	}
	out := make([]string, 0, len(words)+len(rest))
	expanded := false
	for _, w := range words {
		if w == "{args}" {
			out = append(out, rest...)
			expanded = true
			continue
		}
		out = append(out, w)
	}
	if !expanded {
		out = append(out, rest...)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("run %q: %w", f.Run, ErrEmptyRun)
	}
	return out, nil
}

func hasFlagPrefix(args []string, flag string) bool {
	for _, arg := range args {
		if strings.HasPrefix(arg, flag) {
			return true
		}
	}
	return false
}

// BuildName joins argv for display.
func BuildName(argv []string) string {
	return strings.Join(argv, " ")
}
