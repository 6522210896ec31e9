package template

import (
	"regexp"
	"strings"

	"go.uber.org/zap"
)

// MaxDepth bounds nested each sub-templates. An each pipe at this depth
// returns its input unexpanded, so rendering always terminates.
const MaxDepth = 3

var refRe = regexp.MustCompile(`^[A-Za-z0-9_]+(?:\.[A-Za-z0-9_]+)?$`)

// Renderer renders templates. The zero value is ready to use.
type Renderer struct {
	log *zap.Logger
}

// NewRenderer returns a renderer that reports inert pipes to log.
func NewRenderer(log *zap.Logger) *Renderer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Renderer{log: log}
}

// Render renders tmpl against scope with a renderer that logs nothing.
func Render(tmpl string, scope *Scope) string {
	return NewRenderer(nil).Render(tmpl, scope)
}

// Render renders tmpl against scope.
func (r *Renderer) Render(tmpl string, scope *Scope) string {
	if r.log == nil {
		r.log = zap.NewNop()
	}
	if scope == nil {
		scope = NewScope()
	}
	return r.render(tmpl, scope, 0)
}

func (r *Renderer) render(tmpl string, scope *Scope, depth int) string {
	if !strings.Contains(tmpl, "{") {
		return tmpl
	}
	var b strings.Builder
	for _, seg := range tokenize(tmpl) {
		if !seg.expr {
			b.WriteString(seg.text)
			continue
		}
		v, ok := r.eval(seg.text, scope, depth)
		if !ok {
			// Literal braces; expressions nested inside still render.
			b.WriteString("{" + r.render(seg.text, scope, depth) + "}")
			continue
		}
		b.WriteString(String(v))
	}
	return b.String()
}

// eval resolves an expression. ok is false when the expression is not a
// reference at all (literal braces in the template text).
func (r *Renderer) eval(expr string, scope *Scope, depth int) (Value, bool) {
	parts := splitTopLevel(expr, '|')
	ref := strings.TrimSpace(parts[0])
	if !refRe.MatchString(ref) {
		return nil, false
	}
	v := scope.resolve(ref)
	for _, src := range parts[1:] {
		v = parsePipe(r, src).apply(r, v, scope, depth)
	}
	return v, true
}

type segment struct {
	text string
	expr bool
}

// tokenize splits a template into literal text and top-level {expressions}.
// Braces nest, and neither braces nor pipes inside double-quoted pipe
// arguments end an expression. An unterminated brace is literal text and
// scanning resumes after it.
func tokenize(tmpl string) []segment {
	var segs []segment
	start := 0
	for i := 0; i < len(tmpl); i++ {
		if tmpl[i] != '{' {
			continue
		}
		end := closingBrace(tmpl, i)
		if end < 0 {
			continue
		}
		if i > start {
			segs = append(segs, segment{text: tmpl[start:i]})
		}
		segs = append(segs, segment{text: tmpl[i+1 : end], expr: true})
		start = end + 1
		i = end
	}
	if start < len(tmpl) {
		segs = append(segs, segment{text: tmpl[start:]})
	}
	return segs
}

func closingBrace(s string, open int) int {
	depth := 0
	inQuote := false
	for i := open; i < len(s); i++ {
		c := s[i]
		if inQuote {
			switch c {
			case '\\':
				i++
			case '"':
				inQuote = false
			}
			continue
		}
		switch c {
		case '"':
			inQuote = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// splitTopLevel splits s on sep outside quotes and nested braces.
func splitTopLevel(s string, sep byte) []string {
	var parts []string
	depth := 0
	inQuote := false
	start := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inQuote {
			switch c {
			case '\\':
				i++
			case '"':
				inQuote = false
			}
			continue
		}
		switch c {
		case '"':
			inQuote = true
		case '{':
			depth++
		case '}':
			depth--
		case sep:
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, s[start:])
}
