// Package verify runs the test cases that ship next to filter documents.
//
// A case lives in <filter>_test/<name>.toml:
//
//	name = "clean tree"
//	inline = "## main\n"
//	exit_code = 0
//
//	[[expect]]
//	equals = "clean on main"
//
// The input is either inline text or a fixture file in the same directory.
package verify

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"regexp"

	"github.com/hashicorp/go-multierror"
	toml "github.com/pelletier/go-toml/v2"
)

var (
	// ErrNoInput is returned for a case with neither inline text nor a fixture.
	ErrNoInput = errors.New("exactly one of 'inline' or 'fixture' must be set")
	// ErrNoExpect is returned for a case without assertions.
	ErrNoExpect = errors.New("no [[expect]] blocks")
)

// Case is one test-case document.
type Case struct {
	Name     string   `toml:"name"`
	Inline   *string  `toml:"inline,omitempty"`
	Fixture  string   `toml:"fixture,omitempty"`
	ExitCode int      `toml:"exit_code"`
	Args     []string `toml:"args,omitempty"`
	Expect   []Expect `toml:"expect"`

	// Path is where the document was read from, relative to its file system.
	Path string `toml:"-"`
}

// Expect is one assertion block. Every kind that is set must hold.
type Expect struct {
	Contains    *string `toml:"contains,omitempty"`
	NotContains *string `toml:"not_contains,omitempty"`
	Equals      *string `toml:"equals,omitempty"`
	StartsWith  *string `toml:"starts_with,omitempty"`
	EndsWith    *string `toml:"ends_with,omitempty"`
	LineCount   *int    `toml:"line_count,omitempty"`
	Matches     *string `toml:"matches,omitempty"`
	NotMatches  *string `toml:"not_matches,omitempty"`
}

func (e Expect) empty() bool {
	return e.Contains == nil && e.NotContains == nil && e.Equals == nil &&
		e.StartsWith == nil && e.EndsWith == nil && e.LineCount == nil &&
		e.Matches == nil && e.NotMatches == nil
}

// ParseCase decodes and validates a test-case document.
func ParseCase(data []byte) (*Case, error) {
	var c Case
	if err := toml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse case: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Case) validate() error {
	var result *multierror.Error
	add := func(err error) {
		result = multierror.Append(result, err)
	}

	if (c.Inline == nil) == (c.Fixture == "") {
		add(ErrNoInput)
	}
	if len(c.Expect) == 0 {
		add(ErrNoExpect)
	}
	for i, e := range c.Expect {
		if e.empty() {
			add(fmt.Errorf("expect[%d]: no assertion set", i))
		}
		for kind, p := range map[string]*string{"matches": e.Matches, "not_matches": e.NotMatches} {
			if p == nil {
				continue
			}
			if _, err := regexp.Compile(*p); err != nil {
				add(fmt.Errorf("expect[%d].%s: %w", i, kind, err))
			}
		}
		if e.LineCount != nil && *e.LineCount < 0 {
			add(fmt.Errorf("expect[%d].line_count must not be negative", i))
		}
	}
	return result.ErrorOrNil()
}

// Input returns the raw command output the case feeds to the filter. Fixture
// paths are relative to the case document.
func (c *Case) Input(fsys fs.FS) (string, error) {
	if c.Inline != nil {
		return *c.Inline, nil
	}
	if fsys == nil {
		return "", fmt.Errorf("case %q: fixture %q: no file system", c.Name, c.Fixture)
	}
	data, err := fs.ReadFile(fsys, path.Join(path.Dir(c.Path), c.Fixture))
	if err != nil {
		return "", fmt.Errorf("case %q: read fixture: %w", c.Name, err)
	}
	return string(data), nil
}

// LoadCases reads every case document in dir. A missing directory yields no
// cases. Cases are returned in file name order.
func LoadCases(fsys fs.FS, dir string) ([]*Case, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read cases: %w", err)
	}

	var cases []*Case
	for _, e := range entries {
		if e.IsDir() || path.Ext(e.Name()) != ".toml" {
			continue
		}
		p := path.Join(dir, e.Name())
		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return nil, fmt.Errorf("read case %s: %w", p, err)
		}
		c, err := ParseCase(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
		c.Path = p
		if c.Name == "" {
			c.Name = e.Name()[:len(e.Name())-len(".toml")]
		}
		cases = append(cases, c)
	}
	return cases, nil
}
