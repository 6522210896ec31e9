package tokf

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpecan/tokf-sub001/internal/engine"
	"github.com/mpecan/tokf-sub001/internal/filter"
	"github.com/mpecan/tokf-sub001/internal/verify"
)

func loadLibrary(t *testing.T) []*filter.Filter {
	t.Helper()
	filter.EmbeddedFS = EmbeddedFilters
	t.Cleanup(func() { filter.EmbeddedFS = nil })

	loaded, err := filter.LoadEmbedded()
	require.NoError(t, err)
	require.NotEmpty(t, loaded)
	return filter.NewRegistry(loaded).Filters()
}

func TestLibraryCases(t *testing.T) {
	filters := loadLibrary(t)

	results, err := verify.RunAll(context.Background(), filters, engine.Options{})
	require.NoError(t, err)

	perFilter := make(map[string]int)
	for _, r := range results {
		perFilter[r.Filter]++
		assert.True(t, r.Passed(), "%s: %s: err=%v failures=%v output=%q", r.Filter, r.Case, r.Err, r.Failures, r.Output)
	}
	for _, f := range filters {
		assert.NotZero(t, perFilter[f.Name], "filter %s ships without test cases", f.Name)
	}
}

func TestLibraryMatching(t *testing.T) {
	reg := filter.NewRegistry(func() []filter.Filter {
		filter.EmbeddedFS = EmbeddedFilters
		defer func() { filter.EmbeddedFS = nil }()
		loaded, err := filter.LoadEmbedded()
		require.NoError(t, err)
		return loaded
	}())

	tests := []struct {
		argv []string
		want string
	}{
		{[]string{"git", "status"}, "git/status"},
		{[]string{"git", "push", "origin", "main"}, "git/push"},
		{[]string{"cargo", "test", "--release"}, "cargo/test"},
		{[]string{"cargo", "nextest", "run"}, "cargo/test"},
		{[]string{"go", "test", "./..."}, "go/test"},
		{[]string{"npm", "run", "test"}, "npm/test"},
	}
	for _, tt := range tests {
		m, ok := reg.Match(tt.argv)
		if assert.True(t, ok, "%v", tt.argv) {
			assert.Equal(t, tt.want, m.Filter.Name)
		}
	}

	_, ok := reg.Match([]string{"git", "log"})
	assert.False(t, ok)
}

func TestLibraryHashesAreStable(t *testing.T) {
	for _, f := range loadLibrary(t) {
		a, err := filter.Hash(f)
		require.NoError(t, err)
		b, err := filter.Hash(f)
		require.NoError(t, err)
		assert.Equal(t, a, b, f.Name)
		assert.Len(t, a, 64)
	}
}
