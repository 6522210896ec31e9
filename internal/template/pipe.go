package template

import (
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/mpecan/tokf-sub001/internal/utils"
)

// pipe is one transform in an expression's chain. Implementations are the
// closed catalog below; passPipe is the default for names this engine does
// not know, so documents written for a newer engine still render.
type pipe interface {
	apply(r *Renderer, v Value, scope *Scope, depth int) Value
}

// joinPipe joins a collection into a scalar.
type joinPipe struct{ sep string }

// eachPipe maps every item through a sub-template.
type eachPipe struct{ tmpl string }

// truncatePipe limits a scalar, or every item of a collection, to n runes.
type truncatePipe struct{ n int }

// linesPipe splits a scalar into a collection of lines.
type linesPipe struct{}

// keepPipe retains the items matching re. A nil re matches nothing.
type keepPipe struct{ re *regexp.Regexp }

// passPipe returns its input unchanged.
type passPipe struct{ name string }

func parsePipe(r *Renderer, src string) pipe {
	name, arg, _ := strings.Cut(src, ":")
	name = strings.TrimSpace(name)
	arg = unquote(strings.TrimSpace(arg))

	switch name {
	case "join":
		return joinPipe{sep: arg}
	case "each":
		return eachPipe{tmpl: arg}
	case "truncate":
		n, err := strconv.Atoi(arg)
		if err != nil || n < 0 {
			r.log.Debug("inert truncate pipe", zap.String("arg", arg))
			return passPipe{name: name}
		}
		return truncatePipe{n: n}
	case "lines":
		return linesPipe{}
	case "keep", "where":
		re, err := regexp.Compile(arg)
		if err != nil {
			r.log.Debug("inert pipe regex", zap.String("pipe", name), zap.String("pattern", arg), zap.Error(err))
			return keepPipe{}
		}
		return keepPipe{re: re}
	default:
		r.log.Debug("unknown pipe passed through", zap.String("pipe", name))
		return passPipe{name: name}
	}
}

func (p joinPipe) apply(_ *Renderer, v Value, _ *Scope, _ int) Value {
	switch v := v.(type) {
	case List:
		return Scalar(strings.Join(v.Items, p.sep))
	case Scalar:
		return v
	}
	return v
}

func (p eachPipe) apply(r *Renderer, v Value, scope *Scope, depth int) Value {
	if depth >= MaxDepth {
		return v
	}
	switch v := v.(type) {
	case List:
		out := make([]string, len(v.Items))
		for i, item := range v.Items {
			child := scope.Child()
			if v.Records != nil {
				bindRecord(child, v.Records[i])
			}
			child.Set("index", strconv.Itoa(i+1))
			child.Set("value", item)
			out[i] = r.render(p.tmpl, child, depth+1)
		}
		return List{Items: out}
	case Scalar:
		if v == "" {
			return v
		}
		child := scope.Child()
		child.Set("index", "1")
		child.Set("value", string(v))
		return Scalar(r.render(p.tmpl, child, depth+1))
	}
	return v
}

func bindRecord(s *Scope, rec Record) {
	for k, val := range rec.Fields {
		s.Set(k, val)
	}
	for k, kids := range rec.Children {
		s.SetRecords(k, kids)
	}
}

func (p truncatePipe) apply(_ *Renderer, v Value, _ *Scope, _ int) Value {
	switch v := v.(type) {
	case Scalar:
		return Scalar(utils.Truncate(string(v), p.n))
	case List:
		out := make([]string, len(v.Items))
		for i, item := range v.Items {
			out[i] = utils.Truncate(item, p.n)
		}
		return List{Items: out, Records: v.Records}
	}
	return v
}

func (linesPipe) apply(_ *Renderer, v Value, _ *Scope, _ int) Value {
	switch v := v.(type) {
	case Scalar:
		return List{Items: utils.SplitLines(string(v))}
	case List:
		return v
	}
	return v
}

func (p keepPipe) apply(_ *Renderer, v Value, _ *Scope, _ int) Value {
	match := func(s string) bool { return p.re != nil && p.re.MatchString(s) }
	switch v := v.(type) {
	case List:
		out := List{Items: []string{}}
		for i, item := range v.Items {
			if !match(item) {
				continue
			}
			out.Items = append(out.Items, item)
			if v.Records != nil {
				out.Records = append(out.Records, v.Records[i])
			}
		}
		return out
	case Scalar:
		if match(string(v)) {
			return v
		}
		return Scalar("")
	}
	return v
}

func (passPipe) apply(_ *Renderer, v Value, _ *Scope, _ int) Value {
	return v
}

// unquote strips surrounding double quotes and decodes \n, \t, \" and \\.
// Other escapes are kept verbatim so regex arguments like "\d+" survive.
func unquote(s string) string {
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return s
	}
	s = s[1 : len(s)-1]
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 == len(s) {
			b.WriteByte(c)
			continue
		}
		i++
		switch s[i] {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case '"':
			b.WriteByte('"')
		case '\\':
			b.WriteByte('\\')
		default:
			b.WriteByte('\\')
			b.WriteByte(s[i])
		}
	}
	return b.String()
}
