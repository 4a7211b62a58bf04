package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewPool(t *testing.T) {
	if p := NewPool[int](5); p.workers != 5 {
		t.Errorf("expected 5 workers, got %d", p.workers)
	}
	if p := NewPool[int](0); p.workers != 1 {
		t.Errorf("expected 1 worker for 0 input, got %d", p.workers)
	}
}

func TestPool_RunPreservesOrder(t *testing.T) {
	p := NewPool[int](3)

	var tasks []Task[int]
	for i := 0; i < 10; i++ {
		n := i
		tasks = append(tasks, func(ctx context.Context) int {
			// later tasks finish first
			time.Sleep(time.Duration(10-n) * time.Millisecond)
			return n * n
		})
	}

	results := p.Run(context.Background(), tasks)
	if len(results) != 10 {
		t.Fatalf("expected 10 results, got %d", len(results))
	}
	for i, r := range results {
		if r != i*i {
			t.Errorf("result %d = %d, want %d", i, r, i*i)
		}
	}
}

func TestPool_BoundedConcurrency(t *testing.T) {
	p := NewPool[struct{}](2)

	var running, peak int32
	var tasks []Task[struct{}]
	for i := 0; i < 8; i++ {
		tasks = append(tasks, func(ctx context.Context) struct{} {
			cur := atomic.AddInt32(&running, 1)
			for {
				old := atomic.LoadInt32(&peak)
				if cur <= old || atomic.CompareAndSwapInt32(&peak, old, cur) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&running, -1)
			return struct{}{}
		})
	}

	p.Run(context.Background(), tasks)
	if peak > 2 {
		t.Errorf("expected at most 2 concurrent tasks, saw %d", peak)
	}
}

func TestPool_CancelledSkipsTasks(t *testing.T) {
	p := NewPool[bool](1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var executed int32
	tasks := []Task[bool]{
		func(ctx context.Context) bool { atomic.AddInt32(&executed, 1); return true },
		func(ctx context.Context) bool { atomic.AddInt32(&executed, 1); return true },
	}

	results := p.Run(ctx, tasks)
	if len(results) != 2 {
		t.Fatalf("expected result slots for every task, got %d", len(results))
	}
	if executed != 0 {
		t.Errorf("expected cancelled pool to skip tasks, %d ran", executed)
	}
}

func TestPool_Empty(t *testing.T) {
	if got := NewPool[int](4).Run(context.Background(), nil); len(got) != 0 {
		t.Errorf("expected no results, got %v", got)
	}
}
