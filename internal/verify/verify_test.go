package verify

import (
	"context"
	"errors"
	"io/fs"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpecan/tokf-sub001/internal/engine"
	"github.com/mpecan/tokf-sub001/internal/filter"
)

func ptr[T any](v T) *T { return &v }

func TestParseCase(t *testing.T) {
	doc := `
name = "clean tree"
inline = "## main\n"
exit_code = 1
args = ["--short"]

[[expect]]
equals = "clean on main"

[[expect]]
line_count = 1
not_matches = "(?i)error"
`
	c, err := ParseCase([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t, "clean tree", c.Name)
	assert.Equal(t, "## main\n", *c.Inline)
	assert.Equal(t, 1, c.ExitCode)
	assert.Equal(t, []string{"--short"}, c.Args)
	require.Len(t, c.Expect, 2)
	assert.Equal(t, 1, *c.Expect[1].LineCount)
}

func TestParseCaseEmptyInline(t *testing.T) {
	c, err := ParseCase([]byte("inline = \"\"\n[[expect]]\nequals = \"\"\n"))
	require.NoError(t, err)
	assert.Equal(t, "", *c.Inline)
}

func TestParseCaseInvalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want error
	}{
		{"no input", "[[expect]]\ncontains = \"x\"\n", ErrNoInput},
		{"both inputs", "inline = \"a\"\nfixture = \"f.txt\"\n[[expect]]\ncontains = \"x\"\n", ErrNoInput},
		{"no expect", "inline = \"a\"\n", ErrNoExpect},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCase([]byte(tt.doc))
			assert.ErrorIs(t, err, tt.want)
		})
	}

	_, err := ParseCase([]byte("inline = \"a\"\n[[expect]]\n\n[[expect]]\nmatches = \"(\"\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expect[0]: no assertion set")
	assert.Contains(t, err.Error(), "expect[1].matches")

	_, err = ParseCase([]byte("inline = "))
	assert.Error(t, err)
}

func TestEvaluate(t *testing.T) {
	output := "3 passed\n1 failed\n"
	tests := []struct {
		name   string
		expect Expect
		fail   string
	}{
		{"contains", Expect{Contains: ptr("passed")}, ""},
		{"contains fails", Expect{Contains: ptr("skipped")}, "contains"},
		{"not_contains", Expect{NotContains: ptr("panic")}, ""},
		{"not_contains fails", Expect{NotContains: ptr("failed")}, "not_contains"},
		{"equals", Expect{Equals: ptr(output)}, ""},
		{"equals fails", Expect{Equals: ptr("3 passed")}, "equals"},
		{"starts_with", Expect{StartsWith: ptr("3 ")}, ""},
		{"starts_with fails", Expect{StartsWith: ptr("1 ")}, "starts_with"},
		{"ends_with", Expect{EndsWith: ptr("failed\n")}, ""},
		{"ends_with fails", Expect{EndsWith: ptr("passed")}, "ends_with"},
		{"line_count", Expect{LineCount: ptr(2)}, ""},
		{"line_count fails", Expect{LineCount: ptr(3)}, "line_count"},
		{"matches", Expect{Matches: ptr(`(?m)^\d+ failed$`)}, ""},
		{"matches fails", Expect{Matches: ptr(`^\d+ failed$`)}, "matches"},
		{"invalid matches fails", Expect{Matches: ptr(`(`)}, "matches"},
		{"not_matches", Expect{NotMatches: ptr(`skipped`)}, ""},
		{"not_matches fails", Expect{NotMatches: ptr(`\d passed`)}, "not_matches"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got := Evaluate(output, []Expect{tt.expect})
			if tt.fail == "" {
				assert.Empty(t, got)
				return
			}
			require.Len(t, got, 1)
			assert.Equal(t, tt.fail, got[0].Kind)
		})
	}
}

func TestEvaluateReportsEveryFailure(t *testing.T) {
	got := Evaluate("", []Expect{
		{Contains: ptr("a"), LineCount: ptr(1)},
		{Equals: ptr("")},
		{StartsWith: ptr("b")},
	})
	require.Len(t, got, 3)
	assert.Equal(t, []int{0, 0, 2}, []int{got[0].Index, got[1].Index, got[2].Index})
	assert.Equal(t, `expect[0] line_count "1": got "0"`, got[1].Error())
}

func testFS() fstest.MapFS {
	return fstest.MapFS{
		"git/status.toml": {Data: []byte("command = \"git status\"\n")},
		"git/status_test/clean.toml": {Data: []byte(`
inline = "## main\n"
[[expect]]
equals = "clean on main"
`)},
		"git/status_test/dirty.toml": {Data: []byte(`
name = "dirty tree"
fixture = "dirty.txt"
[[expect]]
contains = "untracked: 2"
`)},
		"git/status_test/dirty.txt": {Data: []byte("## main\n?? a\n?? b\n")},
		"git/status_test/notes.md":  {Data: []byte("not a case")},
	}
}

func statusFilter(fsys fs.FS) *filter.Filter {
	return &filter.Filter{
		Name:     "git/status",
		Patterns: []string{"git status"},
		Parse: &filter.ParseConfig{
			Branch: &filter.LineExtract{Line: 1, Pattern: `^## (\S+)`, Output: "{1}"},
			Group: &filter.GroupConfig{
				Key:    filter.ExtractRule{Pattern: `^(.{2}) `},
				Labels: map[string]string{"??": "untracked"},
			},
		},
		Output: &filter.OutputConfig{Empty: "clean on {branch}"},
		Source: filter.Source{FS: fsys, Path: "git/status.toml"},
	}
}

func TestLoadCases(t *testing.T) {
	cases, err := LoadCases(testFS(), "git/status_test")
	require.NoError(t, err)
	require.Len(t, cases, 2)
	assert.Equal(t, "clean", cases[0].Name)
	assert.Equal(t, "dirty tree", cases[1].Name)
	assert.Equal(t, "git/status_test/dirty.toml", cases[1].Path)

	input, err := cases[1].Input(testFS())
	require.NoError(t, err)
	assert.Equal(t, "## main\n?? a\n?? b\n", input)

	cases, err = LoadCases(testFS(), "missing_test")
	assert.NoError(t, err)
	assert.Empty(t, cases)
}

func TestLoadCasesInvalidDocument(t *testing.T) {
	fsys := fstest.MapFS{"x_test/bad.toml": {Data: []byte("inline = \"a\"\n")}}
	_, err := LoadCases(fsys, "x_test")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "x_test/bad.toml")
}

func TestRunFilter(t *testing.T) {
	results, err := RunFilter(statusFilter(testFS()), engine.Options{})
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.True(t, r.Passed(), "%s: %v %v", r.Case, r.Failures, r.Err)
	}
}

func TestRunAllKeepsOrder(t *testing.T) {
	fsys := testFS()
	fsys["other.toml"] = &fstest.MapFile{Data: []byte("command = \"other\"\n")}
	fsys["other_test/fails.toml"] = &fstest.MapFile{Data: []byte("inline = \"x\"\n[[expect]]\nequals = \"y\"\n")}
	other := &filter.Filter{Name: "other", Patterns: []string{"other"}, Source: filter.Source{FS: fsys, Path: "other.toml"}}
	bare := &filter.Filter{Name: "bare", Patterns: []string{"bare"}}

	results, err := RunAll(context.Background(), []*filter.Filter{statusFilter(fsys), bare, other}, engine.Options{})
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, []string{"git/status", "git/status", "other"}, []string{results[0].Filter, results[1].Filter, results[2].Filter})
	assert.True(t, results[0].Passed())
	assert.False(t, results[2].Passed())
	assert.Equal(t, "x", results[2].Output)
}

func TestRunAllScriptedFiltersKeepOrder(t *testing.T) {
	fsys := testFS()
	fsys["upper.toml"] = &fstest.MapFile{Data: []byte("command = \"upper\"\n")}
	fsys["upper_test/basic.toml"] = &fstest.MapFile{Data: []byte("inline = \"abc\"\n[[expect]]\nequals = \"ABC\"\n")}
	upper := &filter.Filter{
		Name:     "upper",
		Patterns: []string{"upper"},
		Script:   &filter.ScriptConfig{Lang: "lua", Source: "return output:upper()"},
		Source:   filter.Source{FS: fsys, Path: "upper.toml"},
	}

	results, err := RunAll(context.Background(), []*filter.Filter{upper, statusFilter(fsys)}, engine.Options{})
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, []string{"upper", "git/status", "git/status"}, []string{results[0].Filter, results[1].Filter, results[2].Filter})
	for _, r := range results {
		assert.True(t, r.Passed(), "%s/%s: %v %v", r.Filter, r.Case, r.Failures, r.Err)
	}
}

func TestRunAllCancelledBeforeScripts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f := &filter.Filter{Name: "s", Script: &filter.ScriptConfig{Lang: "lua", Source: "return nil"}}
	_, err := RunAll(ctx, []*filter.Filter{f}, engine.Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunServer(t *testing.T) {
	f := statusFilter(nil)
	cases := []*Case{{Name: "clean", Inline: ptr("## dev\n"), Expect: []Expect{{Equals: ptr("clean on dev")}}}}

	results, err := RunServer(context.Background(), f, cases, time.Minute)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].Passed())
}

func TestRunServerRejectsExternalReferences(t *testing.T) {
	f := statusFilter(nil)
	_, err := RunServer(context.Background(), f, []*Case{{Name: "f", Fixture: "x.txt"}}, time.Minute)
	assert.ErrorIs(t, err, ErrFixtureNotAllowed)

	f.Script = &filter.ScriptConfig{Lang: "lua", File: "x.lua"}
	_, err = RunServer(context.Background(), f, nil, time.Minute)
	assert.ErrorIs(t, err, ErrScriptFileNotAllowed)
}

func TestRunServerTimeout(t *testing.T) {
	f := statusFilter(nil)
	cases := []*Case{{Name: "c", Inline: ptr("x"), Expect: []Expect{{Contains: ptr("x")}}}}

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()
	_, err := RunServer(ctx, f, cases, time.Minute)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestRunServerScriptFailureIsCaseError(t *testing.T) {
	f := &filter.Filter{Name: "s", Script: &filter.ScriptConfig{Lang: "lua", Source: "while true do end"}}
	cases := []*Case{{Name: "spin", Inline: ptr("x"), Expect: []Expect{{Contains: ptr("x")}}}}

	results, err := RunServer(context.Background(), f, cases, time.Minute)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Error(t, results[0].Err)
	assert.False(t, results[0].Passed())
}
