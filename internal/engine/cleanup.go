package engine

import (
	"regexp"
	"strings"

	"github.com/mpecan/tokf-sub001/internal/filter"
	"github.com/mpecan/tokf-sub001/internal/template"
	"github.com/mpecan/tokf-sub001/internal/utils"
)

// Line is one output line in two forms. Clean is used for every pattern
// match; Display is what gets printed. Stages drop or rewrite whole Lines, so
// the two forms never drift apart.
type Line struct {
	Clean   string
	Display string
}

func cleanTexts(lines []Line) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = l.Clean
	}
	return out
}

func displayText(lines []Line) string {
	var b strings.Builder
	for i, l := range lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(l.Display)
	}
	return b.String()
}

// normalize derives both forms of every raw line. With preserveColor the
// clean form is always ANSI-stripped while the display form keeps the codes.
func normalize(f *filter.Filter, raw []string, preserveColor bool) []Line {
	out := make([]Line, len(raw))
	for i, r := range raw {
		out[i] = deriveLine(f, r, preserveColor)
	}
	return out
}

func deriveLine(f *filter.Filter, raw string, preserveColor bool) Line {
	clean := raw
	if f.StripANSI || preserveColor {
		clean = utils.StripANSI(clean)
	}
	display := clean
	if preserveColor {
		display = raw
	}
	if f.TrimLines {
		clean = strings.TrimSpace(clean)
		if preserveColor {
			display = utils.TrimSpaceANSI(display)
		} else {
			display = clean
		}
	}
	return Line{Clean: clean, Display: display}
}

// cleanup runs skip, keep, replace and dedup in that order.
func (a *applier) cleanup(lines []Line) []Line {
	skip := a.rules.compileAll("skip", a.f.Skip)
	keep := a.rules.compileAll("keep", a.f.Keep)

	out := make([]Line, 0, len(lines))
	for _, l := range lines {
		if matchAny(skip, l.Clean) {
			continue
		}
		if len(a.f.Keep) > 0 && !matchAny(keep, l.Clean) {
			continue
		}
		out = append(out, l)
	}

	if len(a.f.Replace) > 0 {
		for i := range out {
			out[i] = a.replace(out[i])
		}
	}
	if a.f.Dedup {
		out = dedup(out, a.f.DedupWindow)
	}
	return out
}

// replace applies every replace rule in order. Substitution happens on the
// display form and the clean form is derived again from the result. When
// color codes split a match the rule falls back to the clean form.
func (a *applier) replace(l Line) Line {
	for _, rule := range a.f.Replace {
		re := a.rules.compile("replace", rule.Pattern)
		if re == nil || !re.MatchString(l.Clean) {
			continue
		}
		src := l.Display
		if !re.MatchString(src) {
			src = l.Clean
		}
		l = deriveLine(a.f, a.substitute(re, src, rule.Output), a.opts.PreserveColor)
	}
	return l
}

func (a *applier) substitute(re *regexp.Regexp, s, tmpl string) string {
	var b strings.Builder
	last := 0
	for _, loc := range re.FindAllStringSubmatchIndex(s, -1) {
		b.WriteString(s[last:loc[0]])
		groups := make([]string, len(loc)/2)
		for g := range groups {
			if loc[2*g] >= 0 {
				groups[g] = s[loc[2*g]:loc[2*g+1]]
			}
		}
		scope := template.NewScope()
		scope.SetCaptures(groups)
		b.WriteString(a.render.Render(tmpl, scope))
		last = loc[1]
	}
	b.WriteString(s[last:])
	return b.String()
}

// dedup drops a line whose clean form already appears among the last window
// kept lines, or among all kept lines when window is zero.
func dedup(lines []Line, window int) []Line {
	out := make([]Line, 0, len(lines))
	seen := make(map[string]bool)
	for _, l := range lines {
		if window > 0 {
			dup := false
			for j := len(out) - 1; j >= 0 && j >= len(out)-window; j-- {
				if out[j].Clean == l.Clean {
					dup = true
					break
				}
			}
			if dup {
				continue
			}
		} else {
			if seen[l.Clean] {
				continue
			}
			seen[l.Clean] = true
		}
		out = append(out, l)
	}
	return out
}

// postProcess applies the empty-line flags to the final text.
func postProcess(f *filter.Filter, text string) string {
	if !f.StripEmptyLines && !f.CollapseEmptyLines {
		return text
	}
	trailing := strings.HasSuffix(text, "\n")
	lines := utils.SplitLines(text)
	out := make([]string, 0, len(lines))
	prevBlank := false
	for _, l := range lines {
		blank := utils.IsBlank(l)
		switch {
		case blank && f.StripEmptyLines:
			continue
		case blank && prevBlank:
			continue
		}
		prevBlank = blank
		out = append(out, l)
	}
	result := strings.Join(out, "\n")
	if trailing && result != "" {
		result += "\n"
	}
	return result
}

func tailHead(lines []Line, tail, head int) []Line {
	if tail > 0 && len(lines) > tail {
		lines = lines[len(lines)-tail:]
	}
	if head > 0 && len(lines) > head {
		lines = lines[:head]
	}
	return lines
}
