package worker

import (
	"context"
	"sync"
)

// Task is one independent unit of work
type Task[T any] func(ctx context.Context) T

// Pool runs independent tasks on a bounded set of goroutines.
// The enrichment loop itself is sequential; the pool serves side work
// such as probing every upstream service at once.
type Pool[T any] struct {
	workers int
}

// NewPool creates a pool with the given number of workers
func NewPool[T any](workers int) *Pool[T] {
	if workers <= 0 {
		workers = 1
	}
	return &Pool[T]{workers: workers}
}

// Run executes tasks and returns their results in submission order.
// Tasks not yet started when ctx ends are skipped and leave a zero value.
func (p *Pool[T]) Run(ctx context.Context, tasks []Task[T]) []T {
	results := make([]T, len(tasks))
	if len(tasks) == 0 {
		return results
	}

	jobs := make(chan int)
	var wg sync.WaitGroup

	workers := p.workers
	if workers > len(tasks) {
		workers = len(tasks)
	}

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				results[idx] = tasks[idx](ctx)
			}
		}()
	}

feed:
	for i := range tasks {
		if ctx.Err() != nil {
			break
		}
		select {
		case <-ctx.Done():
			break feed
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	return results
}
