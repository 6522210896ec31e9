package utils

import (
	"regexp"
	"sync"
)

// LazyRegex compiles a regex pattern on first use and caches the result.
// Only use it for patterns that are known at build time: it panics on a bad pattern.
type LazyRegex struct {
	pattern string
	once    sync.Once
	re      *regexp.Regexp
}

// NewLazyRegex creates a LazyRegex that will compile pattern on first use.
func NewLazyRegex(pattern string) *LazyRegex {
	return &LazyRegex{pattern: pattern}
}

// Re returns the compiled regexp, compiling it on first call.
func (lr *LazyRegex) Re() *regexp.Regexp {
	lr.once.Do(func() {
		lr.re = regexp.MustCompile(lr.pattern)
	})
	return lr.re
}

// MatchString reports whether s contains a match of the pattern.
func (lr *LazyRegex) MatchString(s string) bool {
	return lr.Re().MatchString(s)
}

// Pattern returns the source pattern.
func (lr *LazyRegex) Pattern() string {
	return lr.pattern
}
