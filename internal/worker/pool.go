package worker

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
)

// Worker is the interface all workers must implement
type Worker interface {
	Name() string
	Run(ctx context.Context) error
}

// Pool runs a set of workers together
type Pool struct {
	workers []Worker
}

// NewPool creates a pool over the given workers
func NewPool(workers ...Worker) *Pool {
	return &Pool{workers: workers}
}

// Size returns the number of workers
func (p *Pool) Size() int {
	return len(p.workers)
}

// Run starts all workers and blocks until ctx is cancelled or one fails.
// It returns after every worker has exited.
func (p *Pool) Run(ctx context.Context) error {
	if len(p.workers) == 0 {
		return fmt.Errorf("no workers configured")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, len(p.workers))
	var wg sync.WaitGroup

	for _, w := range p.workers {
		wg.Add(1)
		go func(worker Worker) {
			defer wg.Done()
			log.Info().Str("worker", worker.Name()).Msg("starting worker")
			if err := worker.Run(ctx); err != nil {
				errCh <- fmt.Errorf("worker %s failed: %w", worker.Name(), err)
			}
		}(w)
	}

	var err error
	select {
	case <-ctx.Done():
		log.Info().Msg("context cancelled, stopping workers")
	case err = <-errCh:
		cancel()
	}

	wg.Wait()
	return err
}
