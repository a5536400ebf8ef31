package callback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
)

var (
	// ErrConcurrentDrain is returned when Dispatch is called while another
	// Dispatch is still running, including from inside a handler.
	ErrConcurrentDrain = errors.New("dispatch already in progress")
	// ErrNoHandler is logged for an entry with neither its own handler nor
	// a dispatcher default.
	ErrNoHandler = errors.New("no handler for entry")
	// ErrInvalidInterval is returned by Run for a non-positive poll interval.
	ErrInvalidInterval = errors.New("poll interval must be greater than zero")
)

// DeliveryError describes a handler that panicked during delivery.
type DeliveryError struct {
	Value any
	Panic any
	Stack string
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("PANIC [%v] TRACE[%s]", e.Panic, e.Stack)
}

// Dispatcher drains a Queue and invokes handlers for each entry.
type Dispatcher[T any] struct {
	queue    *Queue[T]
	logger   *slog.Logger
	clock    clock.Clock
	fallback Handler[T]
	onPanic  func(*DeliveryError)
	draining atomic.Bool
}

// DispatcherOption is a functional option for [NewDispatcher].
type DispatcherOption[T any] func(*Dispatcher[T])

// WithDefault sets the handler for entries pushed without one.
func WithDefault[T any](h Handler[T]) DispatcherOption[T] {
	return func(d *Dispatcher[T]) {
		d.fallback = h
	}
}

// WithClock replaces the wall clock used by [Dispatcher.Run].
func WithClock[T any](c clock.Clock) DispatcherOption[T] {
	return func(d *Dispatcher[T]) {
		if c != nil {
			d.clock = c
		}
	}
}

// WithPanicHook registers fn to be called, after logging, for every
// handler panic recovered during delivery.
func WithPanicHook[T any](fn func(*DeliveryError)) DispatcherOption[T] {
	return func(d *Dispatcher[T]) {
		d.onPanic = fn
	}
}

// NewDispatcher returns a Dispatcher for q. A nil logger uses slog.Default.
func NewDispatcher[T any](q *Queue[T], logger *slog.Logger, opts ...DispatcherOption[T]) *Dispatcher[T] {
	if logger == nil {
		logger = slog.Default()
	}

	d := &Dispatcher[T]{
		queue:  q,
		logger: logger,
		clock:  clock.New(),
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Dispatch drains the queue once and delivers every drained entry in FIFO
// order, returning the number delivered. It must only be called from the
// consumer goroutine. Entries pushed while it runs are left for the next
// call.
//
// A handler panic is recovered and logged; delivery continues with the
// next entry and the entry counts as delivered.
func (d *Dispatcher[T]) Dispatch() (int, error) {
	if !d.draining.CompareAndSwap(false, true) {
		return 0, ErrConcurrentDrain
	}
	defer d.draining.Store(false)

	entries := d.queue.drain()
	for _, e := range entries {
		d.deliver(e)
	}

	return len(entries), nil
}

// Run calls Dispatch every interval, and whenever the queue signals a
// push, until ctx is done. It blocks the calling goroutine, which becomes
// the consumer.
func (d *Dispatcher[T]) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return ErrInvalidInterval
	}

	ticker := d.clock.Ticker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		case <-d.queue.Ready():
		}

		if _, err := d.Dispatch(); err != nil {
			return fmt.Errorf("dispatching: %w", err)
		}
	}
}

func (d *Dispatcher[T]) deliver(e Entry[T]) {
	h := e.Handler
	if h == nil {
		h = d.fallback
	}

	if h == nil {
		d.logger.Error("callback dropped", "error", ErrNoHandler, "value", e.Value)
		return
	}

	defer func() {
		if rec := recover(); rec != nil {
			derr := &DeliveryError{
				Value: e.Value,
				Panic: rec,
				Stack: string(debug.Stack()),
			}
			d.logger.Error("callback handler panicked", "error", derr, "value", e.Value)

			if d.onPanic != nil {
				d.onPanic(derr)
			}
		}
	}()

	h(e.Value)
}
