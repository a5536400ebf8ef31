package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/adamwoolhether/httpq/client/callback"
	"github.com/adamwoolhether/httpq/client/throttle"
	"github.com/adamwoolhether/httpq/client/transport"
	"github.com/adamwoolhether/httpq/client/workpool"
)

// Client submits requests to background workers and delivers their
// events through a callback queue.
type Client struct {
	exchanger  transport.Transport
	logger     *slog.Logger
	tracer     trace.Tracer
	timeout    time.Duration
	userAgent  string
	outputRoot string
	progress   bool
	handler    Handler

	pool       *workpool.Pool
	queue      *callback.Queue[*Event]
	dispatcher *callback.Dispatcher[*Event]

	pending atomic.Int64
	closed  atomic.Bool
}

func Build(optFns ...Option) (*Client, error) {
	client := &Client{
		logger: slog.Default(),
		tracer: noop.NewTracerProvider().Tracer("no-op tracer"),
	}

	var opts options
	for _, opt := range optFns {
		if err := opt(&opts); err != nil {
			return nil, fmt.Errorf("applying client option: %w", err)
		}
	}

	if opts.logger != nil {
		client.logger = opts.logger
	}

	if opts.tracer != nil {
		client.tracer = opts.tracer
	}

	if opts.client != nil {
		client.timeout = opts.client.Timeout
	}

	if opts.timeout != nil {
		client.timeout = *opts.timeout
	}

	client.userAgent = opts.userAgent
	client.progress = opts.progress
	client.handler = opts.handler

	root := opts.outputRoot
	if root == "" {
		root = "."
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving output root: %w", err)
	}
	client.outputRoot = absRoot

	exchanger, err := buildExchanger(&opts, func() *slog.Logger { return client.logger })
	if err != nil {
		return nil, err
	}
	client.exchanger = exchanger

	client.pool = workpool.New(opts.maxConcurrent)
	client.queue = callback.NewQueue[*Event]()

	dispatchOpts := []callback.DispatcherOption[*Event]{}
	if opts.clock != nil {
		dispatchOpts = append(dispatchOpts, callback.WithClock[*Event](opts.clock))
	}
	client.dispatcher = callback.NewDispatcher(client.queue, client.logger, dispatchOpts...)

	return client, nil
}

func buildExchanger(opts *options, logFn func() *slog.Logger) (transport.Transport, error) {
	if opts.exchanger != nil {
		if opts.client != nil || opts.rt != nil || opts.throttle != nil || opts.connectTimeout > 0 {
			return nil, errors.New("exchanger cannot be combined with round tripper options")
		}
		return opts.exchanger, nil
	}

	var rt http.RoundTripper
	switch {
	case opts.rt != nil:
		rt = opts.rt
	case opts.client != nil && opts.client.Transport != nil:
		rt = opts.client.Transport
	default:
		rt = http.DefaultTransport
	}

	if opts.connectTimeout > 0 {
		base, ok := rt.(*http.Transport)
		if !ok || rt != http.DefaultTransport {
			return nil, errors.New("connect timeout requires the default transport")
		}

		cpy := base.Clone()
		cpy.DialContext = (&net.Dialer{
			Timeout:   opts.connectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext
		rt = cpy
	}

	if opts.throttle != nil {
		throttled, err := throttle.NewRoundTripper(opts.throttle.RPS, opts.throttle.Burst, logFn, rt)
		if err != nil {
			return nil, fmt.Errorf("configuring throttle: %w", err)
		}
		rt = throttled
	}

	return transport.NewHTTP(rt), nil
}

// Submit validates desc, copies it and starts a worker performing the
// request. It returns as soon as the worker is accepted; the outcome
// arrives as an [Event] on a later [Client.Dispatch].
//
// The worker keeps ctx's values but not its cancellation: once accepted,
// a request runs to completion and is delivered exactly once.
func (c *Client) Submit(ctx context.Context, desc Descriptor, method Method, optFns ...SubmitOption) (uuid.UUID, error) {
	if !method.Valid() {
		return uuid.Nil, fmt.Errorf("%w: unsupported method %q", ErrInvalidRequest, method)
	}

	if err := desc.Validate(); err != nil {
		return uuid.Nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	var opts submitOpts
	for _, opt := range optFns {
		if err := opt(&opts); err != nil {
			return uuid.Nil, fmt.Errorf("applying submit option: %w", err)
		}
	}

	if c.closed.Load() {
		return uuid.Nil, ErrClosed
	}

	w := &worker{
		client:  c,
		id:      uuid.New(),
		method:  method,
		desc:    desc.clone(),
		handler: opts.handler,
	}
	workerCtx := context.WithoutCancel(ctx)

	c.pending.Add(1)
	if err := c.pool.Go(func() { w.run(workerCtx) }); err != nil {
		c.pending.Add(-1)
		if errors.Is(err, workpool.ErrShutdown) {
			return uuid.Nil, ErrClosed
		}
		return uuid.Nil, fmt.Errorf("starting worker: %w", err)
	}

	return w.id, nil
}

// Get submits desc as a GET request.
func (c *Client) Get(ctx context.Context, desc Descriptor, opts ...SubmitOption) (uuid.UUID, error) {
	return c.Submit(ctx, desc, MethodGet, opts...)
}

// Post submits desc as a POST request. An empty body is sent as an
// explicit zero-length payload.
func (c *Client) Post(ctx context.Context, desc Descriptor, opts ...SubmitOption) (uuid.UUID, error) {
	return c.Submit(ctx, desc, MethodPost, opts...)
}

// Put submits desc as a PUT request.
func (c *Client) Put(ctx context.Context, desc Descriptor, opts ...SubmitOption) (uuid.UUID, error) {
	return c.Submit(ctx, desc, MethodPut, opts...)
}

// Patch submits desc as a PATCH request.
func (c *Client) Patch(ctx context.Context, desc Descriptor, opts ...SubmitOption) (uuid.UUID, error) {
	return c.Submit(ctx, desc, MethodPatch, opts...)
}

// Delete submits desc as a DELETE request.
func (c *Client) Delete(ctx context.Context, desc Descriptor, opts ...SubmitOption) (uuid.UUID, error) {
	return c.Submit(ctx, desc, MethodDelete, opts...)
}

// Head submits desc as a HEAD request. No body is read.
func (c *Client) Head(ctx context.Context, desc Descriptor, opts ...SubmitOption) (uuid.UUID, error) {
	return c.Submit(ctx, desc, MethodHead, opts...)
}

// Dispatch delivers every event queued so far and returns how many were
// delivered. Handlers run on the calling goroutine, which must be the
// only one dispatching.
func (c *Client) Dispatch() (int, error) {
	return c.dispatcher.Dispatch()
}

// Run dispatches every interval, and whenever an event is queued, until
// ctx is done.
func (c *Client) Run(ctx context.Context, interval time.Duration) error {
	return c.dispatcher.Run(ctx, interval)
}

// Pending returns the number of submitted requests not yet delivered.
func (c *Client) Pending() int {
	return int(c.pending.Load())
}

// Close stops accepting requests, waits for running workers until ctx is
// done and delivers the remaining events. It must be called from the
// dispatching goroutine.
func (c *Client) Close(ctx context.Context) error {
	c.closed.Store(true)
	c.pool.Shutdown()

	waitErr := c.pool.Wait(ctx)

	_, dispatchErr := c.Dispatch()
	if dispatchErr != nil {
		dispatchErr = fmt.Errorf("final dispatch: %w", dispatchErr)
	}

	return errors.Join(waitErr, dispatchErr)
}

// push queues ev for delivery to h, or to the client handler when h is nil.
func (c *Client) push(ev *Event, h Handler) {
	c.queue.Push(ev, func(ev *Event) {
		c.pending.Add(-1)

		switch {
		case h != nil:
			h(ev)
		case c.handler != nil:
			c.handler(ev)
		default:
			c.logger.Warn("event dropped, no handler", "id", ev.ID, "method", ev.Method, "url", ev.Request.URL, "error", ev.Err)
		}
	})
}
