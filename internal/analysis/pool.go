package analysis

import (
	"context"
	"runtime"

	"golang.org/x/sync/semaphore"
)

// Pool bounds the number of profiling jobs running at once
type Pool struct {
	sem *semaphore.Weighted
}

// NewPool creates a pool of the given size; non-positive sizes use NumCPU
func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Pool{sem: semaphore.NewWeighted(int64(workers))}
}

// Do runs fn once a slot is free. Waiting honours ctx; fn itself runs to
// completion.
func (p *Pool) Do(ctx context.Context, fn func() error) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer p.sem.Release(1)
	return fn()
}
