package engine

import (
	"sort"
	"strconv"
	"strings"

	"github.com/mpecan/tokf-sub001/internal/filter"
	"github.com/mpecan/tokf-sub001/internal/template"
)

const (
	defaultGroupCountsFormat = "  {label}: {count}"
	defaultParseFormat       = "{branch}\n{group_counts}"
)

type groupCount struct {
	label string
	count int
}

// parse replaces branch selection: it extracts a branch line, counts the
// remaining lines by group key and renders the output config.
func (a *applier) parse(p *filter.ParseConfig, lines []Line, scope *template.Scope) string {
	clean := cleanTexts(lines)

	branch, branchLine := "", -1
	if p.Branch != nil {
		branch, branchLine = a.parseBranch(p.Branch, clean)
	}

	var counts []groupCount
	if p.Group != nil {
		counts = a.groupCounts(p.Group, clean, branchLine)
	}

	out := a.f.Output
	if out == nil {
		out = &filter.OutputConfig{}
	}
	countsFormat := out.GroupCountsFormat
	if countsFormat == "" {
		countsFormat = defaultGroupCountsFormat
	}

	rendered := make([]string, len(counts))
	for i, c := range counts {
		s := scope.Child()
		s.Set("label", c.label)
		s.Set("count", strconv.Itoa(c.count))
		rendered[i] = a.render.Render(countsFormat, s)
	}

	s := scope.Child()
	s.Set("branch", branch)
	s.Set("group_counts", strings.Join(rendered, "\n"))

	if len(counts) == 0 && out.Empty != "" {
		return a.render.Render(out.Empty, s)
	}
	format := out.Format
	if format == "" {
		format = defaultParseFormat
		if p.Branch == nil {
			format = "{group_counts}"
		}
	}
	return a.render.Render(format, s)
}

// parseBranch renders the branch template from a pinned 1-based line, or
// from the first matching line when Line is zero. It also returns the index
// of the consumed line, or -1.
func (a *applier) parseBranch(le *filter.LineExtract, lines []string) (string, int) {
	re := a.rules.compile("parse.branch", le.Pattern)
	if re == nil {
		return "", -1
	}
	try := func(i int) (string, bool) {
		m := re.FindStringSubmatch(lines[i])
		if m == nil {
			return "", false
		}
		if le.Output == "" {
			return firstGroup(m), true
		}
		s := template.NewScope()
		s.SetCaptures(m)
		return a.render.Render(le.Output, s), true
	}

	if le.Line > 0 {
		if le.Line > len(lines) {
			return "", -1
		}
		if v, ok := try(le.Line - 1); ok {
			return v, le.Line - 1
		}
		return "", -1
	}
	for i := range lines {
		if v, ok := try(i); ok {
			return v, i
		}
	}
	return "", -1
}

// groupCounts counts lines by their rendered key, mapped through Labels.
// The result is sorted by label.
func (a *applier) groupCounts(g *filter.GroupConfig, lines []string, skip int) []groupCount {
	re := a.rules.compile("parse.group", g.Key.Pattern)
	if re == nil {
		return nil
	}
	counts := make(map[string]int)
	for i, line := range lines {
		if i == skip {
			continue
		}
		m := re.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		key := firstGroup(m)
		if g.Key.Output != "" {
			s := template.NewScope()
			s.SetCaptures(m)
			key = a.render.Render(g.Key.Output, s)
		}
		label, ok := g.Labels[key]
		if !ok {
			label = key
		}
		counts[label]++
	}

	out := make([]groupCount, 0, len(counts))
	for label, n := range counts {
		out = append(out, groupCount{label: label, count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].label < out[j].label })
	return out
}
