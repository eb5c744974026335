package quergo

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestWorkerPoolBasic(t *testing.T) {
	pool := NewWorkerPool(2)
	defer pool.Close()

	done := make(chan struct{})
	if err := pool.Submit(context.Background(), func() { close(done) }); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	select {
	case <-done:
	case <-time.After(1 * time.Second):
		t.Fatal("Timeout waiting for task")
	}
}

func TestWorkerPoolConcurrency(t *testing.T) {
	const numWorkers = 4
	const numTasks = 200

	pool := NewWorkerPool(numWorkers)
	defer pool.Close()

	var ran atomic.Int64
	var wg sync.WaitGroup
	wg.Add(numTasks)
	for i := 0; i < numTasks; i++ {
		if err := pool.Submit(context.Background(), func() {
			ran.Add(1)
			wg.Done()
		}); err != nil {
			t.Fatalf("Submit failed: %v", err)
		}
	}
	wg.Wait()

	if got := ran.Load(); got != numTasks {
		t.Errorf("Expected %d tasks, got %d", numTasks, got)
	}
}

func TestWorkerPoolSubmitAfterClose(t *testing.T) {
	pool := NewWorkerPool(2)
	pool.Close()

	if err := pool.Submit(context.Background(), func() {}); err != ErrClosed {
		t.Errorf("Expected ErrClosed, got %v", err)
	}
}

func TestWorkerPoolSubmitCancelled(t *testing.T) {
	pool := NewWorkerPool(1)
	defer pool.Close()

	// Fill the queue so Submit has to block, then cancel.
	block := make(chan struct{})
	defer close(block)
	for i := 0; i < 3; i++ {
		if err := pool.Submit(context.Background(), func() { <-block }); err != nil {
			break
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := pool.Submit(ctx, func() {})
	if err == nil {
		t.Fatal("Expected error from cancelled Submit")
	}
	if err != context.DeadlineExceeded && err != ErrClosed {
		t.Errorf("Unexpected error: %v", err)
	}
}

func TestWorkerPoolCloseIdempotent(t *testing.T) {
	pool := NewWorkerPool(2)
	pool.Close()
	pool.Close()
}

func TestWorkerPoolDefaultSize(t *testing.T) {
	pool := NewWorkerPool(0)
	defer pool.Close()

	if pool.NumWorkers() < 1 {
		t.Errorf("Expected at least one worker, got %d", pool.NumWorkers())
	}
}
