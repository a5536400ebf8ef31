// Package workpool runs request workers on goroutines, optionally
// bounded by a concurrency limit.
package workpool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// ErrShutdown is returned by Go once Shutdown has been called.
var ErrShutdown = errors.New("work pool shut down")

// Pool manages a set of concurrently running workers.
type Pool struct {
	wg       sync.WaitGroup
	mu       sync.Mutex
	sem      chan struct{}
	shutdown atomic.Bool
	running  atomic.Int64
}

// New creates a Pool that runs at most maxConcurrent workers at a time.
// If maxConcurrent <= 0, concurrency is unlimited.
func New(maxConcurrent int) *Pool {
	p := &Pool{}
	if maxConcurrent > 0 {
		p.sem = make(chan struct{}, maxConcurrent)
	}
	return p
}

// Go starts fn on a new goroutine and returns immediately. When the pool
// is bounded the goroutine waits for a free slot before calling fn, so an
// accepted fn always runs.
func (p *Pool) Go(fn func()) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.shutdown.Load() {
		return ErrShutdown
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		if p.sem != nil {
			p.sem <- struct{}{}
			defer func() {
				<-p.sem
			}()
		}

		p.running.Add(1)
		defer p.running.Add(-1)

		fn()
	}()

	return nil
}

// Shutdown prevents new work from being accepted. Work already accepted
// still runs.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.shutdown.Store(true)
}

// Wait blocks until every accepted worker has returned or ctx is done.
func (p *Pool) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for workers: %w", ctx.Err())
	}
}

// Running returns the number of workers currently executing fn.
func (p *Pool) Running() int {
	return int(p.running.Load())
}
