package engine

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/mpecan/tokf-sub001/internal/filter"
	"github.com/mpecan/tokf-sub001/internal/sandbox"
	"github.com/mpecan/tokf-sub001/internal/tee"
	"github.com/mpecan/tokf-sub001/internal/tracking"
	"github.com/mpecan/tokf-sub001/internal/utils"
)

// Pipeline runs a command and prints its filtered output. It owns
// everything around Apply: matching, variants, args, steps, execution, tee
// and tracking.
type Pipeline struct {
	Registry *filter.Registry
	Tracker  *tracking.Tracker
	Tee      tee.Config
	Log      *zap.Logger

	// Dir is the working directory used for variant file detection.
	Dir           string
	PreserveColor bool
	Script        sandbox.Limits

	Stdout io.Writer
	Stderr io.Writer
}

func (p *Pipeline) init() {
	if p.Log == nil {
		p.Log = zap.NewNop()
	}
	if p.Stdout == nil {
		p.Stdout = os.Stdout
	}
	if p.Stderr == nil {
		p.Stderr = os.Stderr
	}
	if p.Dir == "" {
		p.Dir, _ = os.Getwd()
	}
}

// Run executes argv through the pipeline and returns the command's exit code.
// A command no filter matches runs unfiltered.
func (p *Pipeline) Run(ctx context.Context, argv []string) int {
	p.init()

	m, ok := p.Registry.Match(argv)
	if !ok {
		p.Log.Debug("no filter matched", zap.Strings("argv", argv))
		return p.Passthrough(ctx, argv)
	}
	f := m.Filter
	log := p.Log.With(zap.String("filter", f.Name))

	delegated := false
	if name, ok := ResolvePre(f, p.Dir); ok {
		f, delegated = p.delegate(f, name, log)
	}

	runArgv, err := f.RunArgv(argv, m)
	if err != nil || len(runArgv) == 0 {
		log.Warn("invalid run override, running the original command", zap.Error(err))
		runArgv = argv
	}
	if injected, ok := p.Registry.ShouldInject(f, runArgv[1:]); ok {
		runArgv = append([]string{runArgv[0]}, injected...)
	}

	vars := RunSteps(ctx, f.Step, log)

	timed := tracking.Start(p.Tracker)
	result, err := Execute(ctx, runArgv)
	if err != nil {
		log.Warn("execute failed, falling back to passthrough", zap.Error(err))
		return p.Passthrough(ctx, argv)
	}

	if !delegated {
		if name, ok := ResolvePost(f, result.Output, log); ok {
			f, _ = p.delegate(f, name, log)
		}
	}

	filtered, err := Apply(f, result.Output, result.ExitCode, argv[1:], Options{
		PreserveColor: p.PreserveColor,
		Vars:          vars,
		Logger:        log,
		Script:        p.Script,
		Context:       ctx,
	})
	if err != nil {
		log.Warn("filter failed, printing raw output", zap.Error(err))
		filtered = result.Output
	}

	fmt.Fprint(p.Stdout, filtered)
	if filtered != "" && !strings.HasSuffix(filtered, "\n") {
		fmt.Fprintln(p.Stdout)
	}

	path, err := tee.Save(result.Output, result.ExitCode, f.Name, p.Tee)
	if err != nil {
		log.Debug("tee failed", zap.Error(err))
	} else if path != "" {
		fmt.Fprintln(p.Stderr, tee.Hint(path))
	}

	p.track(timed, f, argv, result, filtered, log)
	return result.ExitCode
}

// delegate swaps f for the variant named name. Delegation is one level deep:
// the delegate's own variants are never consulted.
func (p *Pipeline) delegate(f *filter.Filter, name string, log *zap.Logger) (*filter.Filter, bool) {
	d, ok := p.Registry.Lookup(name)
	if !ok {
		log.Warn("variant target not found", zap.String("target", name))
		return f, false
	}
	log.Debug("delegating to variant", zap.String("target", name))
	return d, true
}

func (p *Pipeline) track(timed *tracking.TimedExecution, f *filter.Filter, argv []string, result *Result, filtered string, log *zap.Logger) {
	input := utils.EstimateTokens(result.Output)
	if input == 0 {
		return
	}
	hash, err := filter.Hash(f)
	if err != nil {
		log.Debug("hash filter", zap.Error(err))
	}
	err = timed.Track(tracking.Event{
		Command:      filter.BuildName(argv),
		FilterName:   f.Name,
		FilterHash:   hash,
		InputTokens:  input,
		OutputTokens: utils.EstimateTokens(filtered),
		ExitCode:     result.ExitCode,
	})
	if err != nil {
		log.Warn("tracking failed", zap.Error(err))
	}
}

// Passthrough runs argv with inherited stdio. Passthrough runs are not
// tracked: the output never passes through tokf, so there is nothing to
// measure.
func (p *Pipeline) Passthrough(ctx context.Context, argv []string) int {
	p.init()
	code, err := Passthrough(ctx, argv)
	if err != nil {
		fmt.Fprintf(p.Stderr, "tokf: %v\n", err)
		return 127
	}
	return code
}
