// Package pipeline wires the ingest, embed, extract, and match stages
// into independent bounded worker pools sharing nothing but the
// underlying stores, per the concurrency model each stage is built
// against: within one request work is sequential, but many requests
// run in parallel up to the pool's limit.
package pipeline

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Pool bounds how many jobs of one stage run concurrently.
type Pool struct {
	limit int
}

// NewPool returns a pool that runs at most limit jobs concurrently. A
// non-positive limit means unbounded.
func NewPool(limit int) *Pool {
	return &Pool{limit: limit}
}

// Run executes every job, up to the pool's concurrency limit, and
// returns the first error encountered. The context passed to each job
// is canceled as soon as any job returns an error, per the pipeline's
// cancellation-surfaces-as-a-recoverable-error contract; callers
// decide whether a partial batch is acceptable.
func (p *Pool) Run(ctx context.Context, jobs ...func(ctx context.Context) error) error {
	g, gctx := errgroup.WithContext(ctx)
	if p.limit > 0 {
		g.SetLimit(p.limit)
	}

	for _, job := range jobs {
		job := job
		g.Go(func() error { return job(gctx) })
	}

	return g.Wait()
}
