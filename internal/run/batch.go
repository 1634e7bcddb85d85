package run

import (
	"context"
	"fmt"

	"github.com/san-kum/thyrosim/internal/dynamo"
)

// Batch runs independent requests concurrently with at most workers in
// flight (<= 0 means GOMAXPROCS). Results are returned in request order.
// The first failure cancels the remaining runs.
func (r *Runner) Batch(ctx context.Context, reqs []Request, workers int) ([]*Result, error) {
	results := make([]*Result, len(reqs))
	err := dynamo.NewEnsemble(workers).Run(ctx, len(reqs), func(ctx context.Context, i int) error {
		res, err := r.Run(ctx, reqs[i])
		if err != nil {
			return fmt.Errorf("request %d: %w", i, err)
		}
		results[i] = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}
