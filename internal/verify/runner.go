package verify

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mpecan/tokf-sub001/internal/engine"
	"github.com/mpecan/tokf-sub001/internal/filter"
)

var (
	// ErrFixtureNotAllowed rejects fixture references in server verification.
	ErrFixtureNotAllowed = errors.New("fixture cases are not allowed here, use inline")
	// ErrScriptFileNotAllowed rejects lua_script.file in server verification.
	ErrScriptFileNotAllowed = errors.New("lua_script.file is not allowed here, use source")
)

// Result is the outcome of one case.
type Result struct {
	Filter   string
	Case     string
	Output   string
	Failures []Failure
	// Err is set when the case could not run at all.
	Err error
}

// Passed reports whether the case ran and every assertion held.
func (r Result) Passed() bool {
	return r.Err == nil && len(r.Failures) == 0
}

// RunCase applies f to the case input and evaluates its assertions.
func RunCase(f *filter.Filter, c *Case, opts engine.Options) Result {
	res := Result{Filter: f.Name, Case: c.Name}
	input, err := c.Input(f.Source.FS)
	if err != nil {
		res.Err = err
		return res
	}
	out, err := engine.Apply(f, input, c.ExitCode, c.Args, opts)
	if err != nil {
		res.Err = err
		return res
	}
	res.Output = out
	res.Failures = Evaluate(out, c.Expect)
	return res
}

// RunFilter loads and runs every case of f.
func RunFilter(f *filter.Filter, opts engine.Options) ([]Result, error) {
	if f.Source.FS == nil {
		return nil, nil
	}
	cases, err := LoadCases(f.Source.FS, f.TestDir())
	if err != nil {
		return nil, fmt.Errorf("filter %s: %w", f.Name, err)
	}
	results := make([]Result, len(cases))
	for i, c := range cases {
		results[i] = RunCase(f, c, opts)
	}
	return results, nil
}

// RunAll runs the cases of every filter. Results keep filter order, then
// case order. A filter whose cases cannot be loaded fails the whole run.
//
// Filters without a script run concurrently. Scripted filters run one at a
// time afterwards: the sandbox memory ceiling samples the process heap, so a
// concurrent run would charge each script for its neighbours' allocations.
func RunAll(ctx context.Context, filters []*filter.Filter, opts engine.Options) ([]Result, error) {
	perFilter := make([][]Result, len(filters))
	run := func(ctx context.Context, i int) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		o := opts
		o.Context = ctx
		results, err := RunFilter(filters[i], o)
		if err != nil {
			return err
		}
		perFilter[i] = results
		return nil
	}

	var scripted []int
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, f := range filters {
		i := i
		if f.Script != nil {
			scripted = append(scripted, i)
			continue
		}
		g.Go(func() error { return run(gctx, i) })
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	for _, i := range scripted {
		if err := run(ctx, i); err != nil {
			return nil, err
		}
	}

	var all []Result
	for _, rs := range perFilter {
		all = append(all, rs...)
	}
	return all, nil
}

// RunServer verifies submitted cases in an untrusted context: everything
// must be inline and the whole run must finish within timeout, on top of the
// script sandbox's own limits.
func RunServer(ctx context.Context, f *filter.Filter, cases []*Case, timeout time.Duration) ([]Result, error) {
	if f.Script != nil && f.Script.File != "" {
		return nil, ErrScriptFileNotAllowed
	}
	for _, c := range cases {
		if c.Fixture != "" {
			return nil, fmt.Errorf("case %q: %w", c.Name, ErrFixtureNotAllowed)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan []Result, 1)
	go func() {
		results := make([]Result, 0, len(cases))
		for _, c := range cases {
			if ctx.Err() != nil {
				break
			}
			results = append(results, RunCase(f, c, engine.Options{Context: ctx}))
		}
		done <- results
	}()

	select {
	case results := <-done:
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("verify %s: %w", f.Name, err)
		}
		return results, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("verify %s: %w", f.Name, ctx.Err())
	}
}
