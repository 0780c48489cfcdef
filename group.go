package chunker

import (
	"context"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Runner is an iteration that runs to completion, such as a *Chunker.
type Runner interface {
	Exec(ctx context.Context) error
}

// RunAll executes runners concurrently with at most maxProcs in flight. Each runner still processes its own
// chunks sequentially. The first error cancels the context passed to the other runners and is returned once
// every started runner has exited.
func RunAll(ctx context.Context, maxProcs int64, runners ...Runner) error {
	if maxProcs < 1 {
		maxProcs = 1
	}
	var (
		g, gctx = errgroup.WithContext(ctx)
		sem     = semaphore.NewWeighted(maxProcs)
	)
	for _, r := range runners {
		if err := sem.Acquire(gctx, 1); err != nil {
			if gErr := g.Wait(); gErr != nil {
				return gErr
			}
			return err
		}
		r := r
		g.Go(func() error {
			defer sem.Release(1)
			return r.Exec(gctx)
		})
	}
	return g.Wait()
}
