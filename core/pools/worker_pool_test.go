package pools

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func newTestPool(t *testing.T, n int) *WorkerPool {
	t.Helper()
	pool, err := NewWorkerPool(n)
	if err != nil {
		t.Fatalf("NewWorkerPool(%d): %v", n, err)
	}
	return pool
}

func TestWorkerPool_InvalidSize(t *testing.T) {
	for _, n := range []int{0, -1} {
		if _, err := NewWorkerPool(n); !errors.Is(err, ErrInvalidSize) {
			t.Errorf("NewWorkerPool(%d): expected ErrInvalidSize, got %v", n, err)
		}
	}
}

func TestWorkerPool_Basic(t *testing.T) {
	pool := newTestPool(t, 4)

	var counter atomic.Int64
	for i := 0; i < 100; i++ {
		if err := pool.Submit(func() { counter.Add(1) }); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}

	pool.Shutdown()

	if counter.Load() != 100 {
		t.Errorf("Expected 100 tasks completed, got %d", counter.Load())
	}
	stats := pool.Stats()
	if stats.TasksCompleted != 100 || stats.TasksPending != 0 {
		t.Errorf("Unexpected stats after shutdown: %+v", stats)
	}
}

// Jobs that block until released: exactly min(M, P) of them run at once.
func TestWorkerPool_ConcurrencyBound(t *testing.T) {
	const size, jobs = 3, 10
	pool := newTestPool(t, size)

	release := make(chan struct{})
	var running, maxRunning atomic.Int64

	for i := 0; i < jobs; i++ {
		pool.Submit(func() {
			n := running.Add(1)
			for {
				m := maxRunning.Load()
				if n <= m || maxRunning.CompareAndSwap(m, n) {
					break
				}
			}
			<-release
			running.Add(-1)
		})
	}

	deadline := time.Now().Add(5 * time.Second)
	for running.Load() < size {
		if time.Now().After(deadline) {
			t.Fatalf("Expected %d running jobs, got %d", size, running.Load())
		}
		time.Sleep(time.Millisecond)
	}

	// Give extra jobs a chance to start if the bound were broken
	time.Sleep(50 * time.Millisecond)
	if got := running.Load(); got != size {
		t.Errorf("Expected %d concurrent jobs, got %d", size, got)
	}
	if got := pool.Stats().TasksActive; got != size {
		t.Errorf("Expected %d active in stats, got %d", size, got)
	}

	close(release)
	pool.Shutdown()

	if got := maxRunning.Load(); got != size {
		t.Errorf("Expected max concurrency %d, got %d", size, got)
	}
	if got := pool.Stats().TasksCompleted; got != jobs {
		t.Errorf("Expected %d completed, got %d", jobs, got)
	}
}

func TestWorkerPool_FewerJobsThanWorkers(t *testing.T) {
	pool := newTestPool(t, 8)

	release := make(chan struct{})
	var running atomic.Int64
	for i := 0; i < 2; i++ {
		pool.Submit(func() {
			running.Add(1)
			<-release
		})
	}

	deadline := time.Now().Add(5 * time.Second)
	for running.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if got := running.Load(); got != 2 {
		t.Errorf("Expected 2 running jobs, got %d", got)
	}

	close(release)
	pool.Shutdown()
}

// A single worker dequeues in submission order.
func TestWorkerPool_FIFO(t *testing.T) {
	pool := newTestPool(t, 1)

	var mu sync.Mutex
	var order []int
	for i := 0; i < 50; i++ {
		i := i
		pool.Submit(func() {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		})
	}
	pool.Shutdown()

	for i, v := range order {
		if v != i {
			t.Fatalf("Expected job %d at position %d, got %d", i, i, v)
		}
	}
	if len(order) != 50 {
		t.Errorf("Expected 50 jobs, got %d", len(order))
	}
}

// Shutdown runs everything already queued before returning.
func TestWorkerPool_ShutdownDrainsQueue(t *testing.T) {
	pool := newTestPool(t, 2)

	gate := make(chan struct{})
	var done atomic.Int64
	for i := 0; i < 20; i++ {
		pool.Submit(func() {
			<-gate
			time.Sleep(time.Millisecond)
			done.Add(1)
		})
	}

	go func() {
		time.Sleep(20 * time.Millisecond)
		close(gate)
	}()
	pool.Shutdown()

	if done.Load() != 20 {
		t.Errorf("Expected all 20 queued jobs to finish, got %d", done.Load())
	}
	if err := pool.Submit(func() {}); !errors.Is(err, ErrPoolClosed) {
		t.Errorf("Expected ErrPoolClosed after shutdown, got %v", err)
	}

	// idempotent
	pool.Shutdown()
}

func TestWorkerPool_PanicDoesNotKillWorker(t *testing.T) {
	pool := newTestPool(t, 1)

	var after atomic.Bool
	pool.Submit(func() { panic("boom") })
	pool.Submit(func() { after.Store(true) })
	pool.Shutdown()

	if !after.Load() {
		t.Error("Worker did not survive a panicking job")
	}
	stats := pool.Stats()
	if stats.TasksPanicked != 1 {
		t.Errorf("Expected 1 panicked job, got %d", stats.TasksPanicked)
	}
	if stats.TasksCompleted != 2 {
		t.Errorf("Expected 2 completed jobs, got %d", stats.TasksCompleted)
	}
}

func TestWorkerPool_SubmitNil(t *testing.T) {
	pool := newTestPool(t, 1)
	defer pool.Shutdown()

	if err := pool.Submit(nil); err == nil {
		t.Error("Expected error submitting nil job")
	}
}

func BenchmarkWorkerPool_Submit(b *testing.B) {
	pool, _ := NewWorkerPool(8)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			pool.Submit(func() {
				_ = 1 + 1
			})
		}
	})

	pool.Shutdown()
}

// TestWorkerPool_BacklogStaysCompact tests that a queue which never fully
// empties does not keep growing
func TestWorkerPool_BacklogStaysCompact(t *testing.T) {
	pool := newTestPool(t, 1)
	done := make(chan struct{})
	job := func() { done <- struct{}{} }

	const backlog = 4
	for i := 0; i < backlog; i++ {
		if err := pool.Submit(job); err != nil {
			t.Fatalf("Submit failed: %v", err)
		}
	}

	for i := 0; i < 10000; i++ {
		if err := pool.Submit(job); err != nil {
			t.Fatalf("Submit %d failed: %v", i, err)
		}
		<-done

		pool.mu.Lock()
		pending, capacity := len(pool.queue)-pool.head, cap(pool.queue)
		pool.mu.Unlock()
		if pending > backlog+1 {
			t.Fatalf("Iteration %d: expected at most %d pending, got %d", i, backlog+1, pending)
		}
		if capacity > 64 {
			t.Fatalf("Iteration %d: queue capacity grew to %d", i, capacity)
		}
	}

	for i := 0; i < backlog; i++ {
		<-done
	}
	pool.Shutdown()
}
