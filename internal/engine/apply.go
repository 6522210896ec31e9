package engine

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/mpecan/tokf-sub001/internal/filter"
	"github.com/mpecan/tokf-sub001/internal/sandbox"
	"github.com/mpecan/tokf-sub001/internal/template"
	"github.com/mpecan/tokf-sub001/internal/utils"
)

// Options tune a single Apply call.
type Options struct {
	// PreserveColor keeps ANSI codes in printed lines. Matching always runs
	// on the stripped form.
	PreserveColor bool
	// Vars are extra template variables, such as step outputs.
	Vars map[string]string
	// Logger receives debug diagnostics about inert rules. Nil is silent.
	Logger *zap.Logger
	// Script bounds the lua_script call. Zero fields use the defaults.
	Script sandbox.Limits
	// Context cancels a running script.
	Context context.Context
}

type applier struct {
	f      *filter.Filter
	opts   Options
	log    *zap.Logger
	rules  *rules
	render *template.Renderer
}

// Apply transforms the combined output of a command run with f.
//
// Precedence: match_output rules, then lua_script, then parse, then the
// branch for the exit code, then top-level extract, fallback and finally the
// cleaned lines. Empty-line post-processing runs on every path. The only
// error source is the script runner.
func Apply(f *filter.Filter, raw string, exitCode int, args []string, opts Options) (string, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Context == nil {
		opts.Context = context.Background()
	}
	log = log.With(zap.String("filter", f.Name))
	a := &applier{
		f:      f,
		opts:   opts,
		log:    log,
		rules:  newRules(log),
		render: template.NewRenderer(log),
	}

	out, err := a.apply(raw, exitCode, args)
	if err != nil {
		return "", err
	}
	return postProcess(f, out), nil
}

func (a *applier) apply(raw string, exitCode int, args []string) (string, error) {
	trailing := strings.HasSuffix(raw, "\n")
	fromLines := func(lines []Line) string {
		s := displayText(lines)
		if trailing && len(lines) > 0 {
			s += "\n"
		}
		return s
	}

	lines := normalize(a.f, utils.SplitLines(raw), a.opts.PreserveColor)
	scope := a.baseScope(exitCode, args)

	if len(a.f.MatchOutput) > 0 {
		plain := utils.StripANSI(raw)
		for _, rule := range a.f.MatchOutput {
			if rule.Contains != "" && strings.Contains(plain, rule.Contains) {
				scope.Set("output", strings.TrimSuffix(raw, "\n"))
				return a.render.Render(rule.Output, scope), nil
			}
		}
	}

	clean := cleanTexts(lines)
	buckets := a.extractSections(clean)
	for key, items := range buckets {
		scope.SetList(key, items)
	}
	for _, cfg := range a.f.Chunk {
		scope.SetRecords(cfg.CollectAs, a.processChunk(cfg, clean))
	}

	kept := a.cleanup(lines)
	a.bindOutput(scope, kept)
	buckets[""] = cleanTexts(kept)

	if a.f.Script != nil {
		out, ok, err := a.runScript(exitCode, args, displayText(kept))
		if err != nil {
			return "", err
		}
		if ok {
			return out, nil
		}
	}

	if a.f.Parse != nil {
		return a.parse(a.f.Parse, kept, scope), nil
	}

	if b := a.branchFor(exitCode); b != nil {
		kept = a.branchSkip(b, kept)
		a.bindOutput(scope, kept)
		buckets[""] = cleanTexts(kept)
		for _, rule := range b.AggregateRules() {
			scope.SetAll(a.aggregateBucket(rule, buckets))
		}

		switch {
		case b.Output != "":
			return a.render.Render(b.Output, scope), nil
		case b.Tail > 0 || b.Head > 0:
			return fromLines(tailHead(kept, b.Tail, b.Head)), nil
		case b.Extract != nil:
			if out, ok := a.extract(b.Extract, kept, scope); ok {
				return out, nil
			}
		}
		return fromLines(kept), nil
	}

	if a.f.Extract != nil {
		if out, ok := a.extract(a.f.Extract, kept, scope); ok {
			return out, nil
		}
	}
	if a.f.Fallback != nil && a.f.Fallback.Tail > 0 {
		return fromLines(tailHead(kept, a.f.Fallback.Tail, 0)), nil
	}
	return fromLines(kept), nil
}

func (a *applier) baseScope(exitCode int, args []string) *template.Scope {
	scope := template.NewScope()
	scope.Set("exit_code", strconv.Itoa(exitCode))
	scope.SetList("args", args)
	scope.SetAll(a.opts.Vars)
	return scope
}

func (a *applier) bindOutput(scope *template.Scope, lines []Line) {
	scope.Set("output", displayText(lines))
	scope.Set("line_count", strconv.Itoa(len(lines)))
}

func (a *applier) branchFor(exitCode int) *filter.OutputBranch {
	if exitCode == 0 {
		return a.f.OnSuccess
	}
	return a.f.OnFailure
}

func (a *applier) branchSkip(b *filter.OutputBranch, lines []Line) []Line {
	if len(b.Skip) == 0 {
		return lines
	}
	skip := a.rules.compileAll("branch.skip", b.Skip)
	out := make([]Line, 0, len(lines))
	for _, l := range lines {
		if !matchAny(skip, l.Clean) {
			out = append(out, l)
		}
	}
	return out
}

// extract renders rule.Output from the first line matching rule.Pattern.
func (a *applier) extract(rule *filter.ExtractRule, lines []Line, scope *template.Scope) (string, bool) {
	re := a.rules.compile("extract", rule.Pattern)
	if re == nil {
		return "", false
	}
	for _, l := range lines {
		if m := re.FindStringSubmatch(l.Clean); m != nil {
			s := scope.Child()
			s.SetCaptures(m)
			return a.render.Render(rule.Output, s), true
		}
	}
	return "", false
}

func (a *applier) runScript(exitCode int, args []string, output string) (string, bool, error) {
	src, err := a.f.ReadScript()
	if err != nil {
		return "", false, err
	}
	out, ok, err := sandbox.Run(a.opts.Context, src, sandbox.Input{
		Output:   output,
		ExitCode: exitCode,
		Args:     args,
	}, a.opts.Script)
	if err != nil {
		return "", false, fmt.Errorf("filter %s: %w", a.f.Name, err)
	}
	return out, ok, nil
}
