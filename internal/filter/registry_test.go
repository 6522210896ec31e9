package filter

import (
	"errors"
	"testing"
)

func makeFilter(name string, patterns ...string) Filter {
	return Filter{Name: name, Patterns: patterns}
}

func TestRegistryMatch(t *testing.T) {
	reg := NewRegistry([]Filter{
		makeFilter("git/log", "git log"),
		makeFilter("git/status", "git status"),
		makeFilter("go/test", "go test"),
		makeFilter("npm/run", "npm run *"),
		makeFilter("js/test", "pnpm test", "npm test"),
	})

	tests := []struct {
		argv []string
		want string
	}{
		{[]string{"git", "log"}, "git/log"},
		{[]string{"git", "status", "--short"}, "git/status"},
		{[]string{"/usr/bin/git", "status"}, "git/status"},
		{[]string{"git", "-C", "repo", "status"}, "git/status"},
		{[]string{"git", "--no-pager", "log"}, "git/log"},
		{[]string{"git", "-c", "color.ui=always", "log"}, "git/log"},
		{[]string{"go", "test", "./..."}, "go/test"},
		{[]string{"npm", "run", "build"}, "npm/run"},
		{[]string{"npm", "test"}, "js/test"},
		{[]string{"pnpm", "test"}, "js/test"},
		{[]string{"git", "push"}, ""},
		{[]string{"git", "stash", "status"}, ""},
		{[]string{"npm", "run"}, ""},
		{nil, ""},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(BuildName(tt.argv), func(t *testing.T) {
			m, ok := reg.Match(tt.argv)
			if tt.want == "" {
				if ok {
					t.Errorf("expected no match, got %q", m.Filter.Name)
				}
				return
			}
			if !ok {
				t.Fatal("expected match, got none")
			}
			if m.Filter.Name != tt.want {
				t.Errorf("got %q, want %q", m.Filter.Name, tt.want)
			}
		})
	}
}

func TestRegistryMostSpecificWins(t *testing.T) {
	reg := NewRegistry([]Filter{
		makeFilter("cargo/any", "cargo *"),
		makeFilter("cargo/test", "cargo test"),
		makeFilter("cargo", "cargo"),
	})
	m, ok := reg.Match([]string{"cargo", "test", "--release"})
	if !ok || m.Filter.Name != "cargo/test" {
		t.Fatalf("got %+v", m)
	}
	if len(m.Rest) != 1 || m.Rest[0] != "--release" {
		t.Errorf("rest = %v", m.Rest)
	}
	m, _ = reg.Match([]string{"cargo", "build"})
	if m.Filter.Name != "cargo/any" {
		t.Errorf("got %q, want cargo/any", m.Filter.Name)
	}
	m, _ = reg.Match([]string{"cargo", "--version"})
	if m.Filter.Name != "cargo" {
		t.Errorf("got %q, want cargo", m.Filter.Name)
	}
}

func TestRegistryFirstSourceWinsTie(t *testing.T) {
	reg := NewRegistry([]Filter{
		makeFilter("user/status", "git status"),
		makeFilter("git/status", "git status"),
	})
	m, _ := reg.Match([]string{"git", "status"})
	if m.Filter.Name != "user/status" {
		t.Errorf("got %q", m.Filter.Name)
	}
}

func TestRegistryMatchLine(t *testing.T) {
	reg := NewRegistry([]Filter{makeFilter("git/commit", "git commit")})
	m, argv, err := reg.MatchLine(`git commit -m "fix: a thing"`)
	if err != nil {
		t.Fatal(err)
	}
	if m == nil || m.Filter.Name != "git/commit" {
		t.Fatalf("got %+v", m)
	}
	if len(argv) != 4 || argv[3] != "fix: a thing" {
		t.Errorf("argv = %q", argv)
	}
}

func TestRegistryLookupAndNames(t *testing.T) {
	reg := NewRegistry([]Filter{makeFilter("b", "b"), makeFilter("a", "a"), makeFilter("a", "a again")})
	names := reg.Names()
	if len(names) != 2 || names[0] != "a" || names[1] != "b" {
		t.Errorf("names = %v", names)
	}
	if _, ok := reg.Lookup("missing"); ok {
		t.Error("unexpected lookup hit")
	}
}

func TestShouldInject(t *testing.T) {
	f := Filter{
		Name: "git/log",
		Inject: &Inject{
			Args:          []string{"--oneline"},
			Defaults:      map[string]string{"-n": "10"},
			SkipIfPresent: []string{"--format"},
		},
	}
	reg := NewRegistry(nil)

	args, injected := reg.ShouldInject(&f, []string{"log"})
	if !injected {
		t.Fatal("expected injection")
	}
	want := []string{"log", "--oneline", "-n", "10"}
	if BuildName(args) != BuildName(want) {
		t.Errorf("args = %v, want %v", args, want)
	}

	args2, injected2 := reg.ShouldInject(&f, []string{"log", "--format=short"})
	if injected2 {
		t.Error("expected skip injection with --format")
	}
	if len(args2) != 2 {
		t.Errorf("args modified: %v", args2)
	}

	args3, _ := reg.ShouldInject(&f, []string{"log", "--", "path"})
	if BuildName(args3) != "log --oneline -- path -n 10" {
		t.Errorf("args = %v", args3)
	}
}

func TestShouldInjectNoInject(t *testing.T) {
	f := Filter{Name: "test"}
	reg := NewRegistry(nil)
	args, injected := reg.ShouldInject(&f, []string{"test"})
	if injected {
		t.Error("expected no injection")
	}
	if len(args) != 1 {
		t.Errorf("args modified: %v", args)
	}
}

func TestRunArgv(t *testing.T) {
	f := Filter{Run: "git status --porcelain -b {args}"}
	got, err := f.RunArgv([]string{"git", "status", "src"}, &Match{Rest: []string{"src"}})
	if err != nil {
		t.Fatal(err)
	}
	if BuildName(got) != "git status --porcelain -b src" {
		t.Errorf("got %v", got)
	}

	f = Filter{Run: "cargo test --color never"}
	got, _ = f.RunArgv(nil, &Match{Rest: []string{"-p", "core"}})
	if BuildName(got) != "cargo test --color never -p core" {
		t.Errorf("got %v", got)
	}

	f = Filter{}
	got, _ = f.RunArgv([]string{"ls"}, nil)
	if BuildName(got) != "ls" {
		t.Errorf("got %v", got)
	}
}

func TestRunArgvEmptyExpansion(t *testing.T) {
	reg := NewRegistry([]Filter{{Name: "make/check", Patterns: []string{"make check"}, Run: "{args}"}})
	m, ok := reg.Match([]string{"make", "check"})
	if !ok {
		t.Fatal("expected a match")
	}
	got, err := m.Filter.RunArgv([]string{"make", "check"}, m)
	if !errors.Is(err, ErrEmptyRun) {
		t.Errorf("err = %v, want ErrEmptyRun", err)
	}
	if got != nil {
		t.Errorf("got %v", got)
	}

	got, err = m.Filter.RunArgv([]string{"make", "check", "lint"}, &Match{Rest: []string{"lint"}})
	if err != nil || BuildName(got) != "lint" {
		t.Errorf("got %v, %v", got, err)
	}

	f := Filter{Run: "   "}
	if _, err := f.RunArgv([]string{"make"}, nil); !errors.Is(err, ErrEmptyRun) {
		t.Errorf("whitespace run: err = %v", err)
	}
}
