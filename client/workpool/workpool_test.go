package workpool

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestPool_RunsAll(t *testing.T) {
	p := New(0)

	var count atomic.Int32
	for range 20 {
		if err := p.Go(func() { count.Add(1) }); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if err := p.Wait(t.Context()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if count.Load() != 20 {
		t.Errorf("expected 20 runs, got %d", count.Load())
	}
}

func TestPool_ConcurrencyLimit(t *testing.T) {
	const limit = 2
	const total = 6

	p := New(limit)

	var running atomic.Int32
	var maxRunning atomic.Int32
	barrier := make(chan struct{})

	for range total {
		err := p.Go(func() {
			cur := running.Add(1)
			for {
				old := maxRunning.Load()
				if cur <= old || maxRunning.CompareAndSwap(old, cur) {
					break
				}
			}
			<-barrier
			running.Add(-1)
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	time.Sleep(50 * time.Millisecond)
	if got := p.Running(); got != limit {
		t.Errorf("expected %d running, got %d", limit, got)
	}

	close(barrier)
	if err := p.Wait(t.Context()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if maxRunning.Load() > limit {
		t.Errorf("expected at most %d concurrent, got %d", limit, maxRunning.Load())
	}
}

func TestPool_Shutdown(t *testing.T) {
	p := New(0)

	started := make(chan struct{})
	release := make(chan struct{})
	if err := p.Go(func() {
		close(started)
		<-release
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	<-started

	p.Shutdown()

	if err := p.Go(func() {}); !errors.Is(err, ErrShutdown) {
		t.Errorf("expected %v, got %v", ErrShutdown, err)
	}

	close(release)
	if err := p.Wait(t.Context()); err != nil {
		t.Errorf("accepted work should finish after shutdown: %v", err)
	}
}

func TestPool_WaitContext(t *testing.T) {
	p := New(0)

	release := make(chan struct{})
	if err := p.Go(func() { <-release }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()

	if err := p.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}

	close(release)
	if err := p.Wait(t.Context()); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
