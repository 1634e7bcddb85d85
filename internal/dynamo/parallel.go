package dynamo

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Ensemble executes independent simulation jobs concurrently. Jobs share no
// state; each must build its own System and Integrator.
type Ensemble struct {
	workers int
}

func NewEnsemble(workers int) *Ensemble {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Ensemble{workers: workers}
}

// Run calls fn for every index in [0, n). The first error cancels the
// context handed to the remaining jobs and is returned.
func (e *Ensemble) Run(ctx context.Context, n int, fn func(ctx context.Context, idx int) error) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)

	for i := 0; i < n; i++ {
		idx := i
		g.Go(func() error {
			return fn(gctx, idx)
		})
	}

	return g.Wait()
}
