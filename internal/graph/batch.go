package graph

import (
	"context"
	"fmt"
	"runtime"

	"github.com/23skdu/cscgraph/internal/metrics"
	"golang.org/x/sync/errgroup"
)

// InSubgraphBatch runs one InSubgraph per seed list on at most workers
// goroutines (GOMAXPROCS when workers <= 0). Results are returned in input
// order. The first failing query, or cancellation of ctx, aborts the batch
// and no partial results are returned. opts apply to every query.
func (g *CSCGraph) InSubgraphBatch(ctx context.Context, batches [][]int64, workers int, opts ...SubgraphOption) ([]*SampledSubgraph, error) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	results := make([]*SampledSubgraph, len(batches))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)

	for i, seeds := range batches {
		if egCtx.Err() != nil {
			break
		}
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			metrics.BatchQueriesInFlight.Inc()
			defer metrics.BatchQueriesInFlight.Dec()

			sg, err := g.InSubgraph(seeds, opts...)
			if err != nil {
				return fmt.Errorf("batch %d: %w", i, err)
			}
			results[i] = sg
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}
