package engine

import (
	"regexp"

	"go.uber.org/zap"
)

// rules compiles the patterns of one filter invocation. A pattern that does
// not compile is logged once and then matches nothing.
type rules struct {
	log   *zap.Logger
	cache map[string]*regexp.Regexp
}

func newRules(log *zap.Logger) *rules {
	return &rules{log: log, cache: make(map[string]*regexp.Regexp)}
}

// compile returns nil for an empty or invalid pattern.
func (r *rules) compile(stage, pattern string) *regexp.Regexp {
	if pattern == "" {
		return nil
	}
	if re, ok := r.cache[pattern]; ok {
		return re
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		r.log.Debug("inert rule",
			zap.String("stage", stage),
			zap.String("pattern", pattern),
			zap.Error(err))
		re = nil
	}
	r.cache[pattern] = re
	return re
}

func (r *rules) compileAll(stage string, patterns []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		if re := r.compile(stage, p); re != nil {
			out = append(out, re)
		}
	}
	return out
}

func matchAny(res []*regexp.Regexp, s string) bool {
	for _, re := range res {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

// firstGroup returns capture group 1, or the whole match when the pattern
// has no groups.
func firstGroup(m []string) string {
	if len(m) > 1 {
		return m[1]
	}
	if len(m) == 1 {
		return m[0]
	}
	return ""
}
