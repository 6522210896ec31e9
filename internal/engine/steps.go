package engine

import (
	"context"
	"strings"
	"sync"

	"github.com/google/shlex"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mpecan/tokf-sub001/internal/filter"
)

// maxConcurrentSteps bounds how many step commands run at once.
const maxConcurrentSteps = 4

// RunSteps runs the filter's step commands concurrently and returns their
// trimmed outputs keyed by step name. A step that cannot run yields an empty
// value and a warning; it never fails the run.
func RunSteps(ctx context.Context, steps []filter.Step, log *zap.Logger) map[string]string {
	vars := make(map[string]string, len(steps))
	if len(steps) == 0 {
		return vars
	}
	if log == nil {
		log = zap.NewNop()
	}

	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentSteps)
	for _, step := range steps {
		step := step
		g.Go(func() error {
			value := ""
			argv, err := shlex.Split(step.Run)
			if err == nil {
				var res *Result
				res, err = Execute(ctx, argv)
				if err == nil {
					value = strings.TrimSpace(res.Output)
				}
			}
			if err != nil {
				log.Warn("step failed", zap.String("step", step.As), zap.String("run", step.Run), zap.Error(err))
			}
			mu.Lock()
			vars[step.As] = value
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return vars
}
