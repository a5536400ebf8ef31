package client

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/benbjohnson/clock"
	"go.opentelemetry.io/otel/trace"

	"github.com/adamwoolhether/httpq/client/throttle"
	"github.com/adamwoolhether/httpq/client/transport"
)

// Handler receives delivered events on the dispatching goroutine.
type Handler func(*Event)

// Option is a functional option for configuring a [Client] via [Build].
type Option func(*options) error
type options struct {
	client         *http.Client
	rt             http.RoundTripper
	exchanger      transport.Transport
	timeout        *time.Duration
	connectTimeout time.Duration
	userAgent      string
	throttle       *throttle.Config
	logger         *slog.Logger
	tracer         trace.Tracer
	outputRoot     string
	maxConcurrent  int
	handler        Handler
	progress       bool
	clock          clock.Clock
}

// WithClient takes the base transport and timeout from hc. Its redirect
// policy is not used; redirects are decided per request.
func WithClient(hc *http.Client) Option {
	return func(c *options) error {
		if hc == nil {
			return errors.New("client must not be nil")
		}
		c.client = hc
		return nil
	}
}

// WithTransport sets a custom [http.RoundTripper] as the base transport.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *options) error {
		if rt == nil {
			return errors.New("transport must not be nil")
		}
		c.rt = rt
		return nil
	}
}

// WithExchanger replaces the net/http adapter entirely. It cannot be
// combined with options that configure the base round tripper.
func WithExchanger(t transport.Transport) Option {
	return func(c *options) error {
		if t == nil {
			return errors.New("exchanger must not be nil")
		}
		c.exchanger = t
		return nil
	}
}

// WithTimeout sets the default timeout of every exchange. A descriptor's
// own Timeout takes precedence.
func WithTimeout(d time.Duration) Option {
	return func(c *options) error {
		if d < 0 {
			return errors.New("timeout must not be negative")
		}
		c.timeout = &d
		return nil
	}
}

// WithConnectTimeout bounds dialing. It only applies to the default
// transport.
func WithConnectTimeout(d time.Duration) Option {
	return func(c *options) error {
		if d <= 0 {
			return errors.New("connect timeout must be positive")
		}
		c.connectTimeout = d
		return nil
	}
}

// WithUserAgent sets the User-Agent of requests whose descriptor has none.
func WithUserAgent(header string) Option {
	return func(c *options) error {
		c.userAgent = header
		return nil
	}
}

// WithThrottle enables token-bucket rate limiting with the given requests per second and burst capacity.
func WithThrottle(rps, burst int) Option {
	return func(c *options) error {
		cfg := throttle.Config{RPS: rps, Burst: burst}
		if err := cfg.Validate(); err != nil {
			return err
		}
		c.throttle = &cfg
		return nil
	}
}

// WithLogger injects a custom [slog.Logger] into the [Client].
func WithLogger(logger *slog.Logger) Option {
	return func(c *options) error {
		c.logger = logger
		return nil
	}
}

// WithTracer sets the tracer used to start a span per exchange.
func WithTracer(tracer trace.Tracer) Option {
	return func(c *options) error {
		c.tracer = tracer
		return nil
	}
}

// WithOutputRoot sets the directory output files are resolved against.
// It defaults to the working directory.
func WithOutputRoot(dir string) Option {
	return func(c *options) error {
		if dir == "" {
			return errors.New("output root must not be empty")
		}
		c.outputRoot = dir
		return nil
	}
}

// WithMaxConcurrent caps the number of workers performing exchanges at
// once. Zero means no limit.
func WithMaxConcurrent(n int) Option {
	return func(c *options) error {
		if n < 0 {
			return fmt.Errorf("max concurrent[%d] must not be negative", n)
		}
		c.maxConcurrent = n
		return nil
	}
}

// WithHandler sets the handler for events submitted without [WithCallback].
func WithHandler(h Handler) Option {
	return func(c *options) error {
		c.handler = h
		return nil
	}
}

// WithProgress logs write progress of output files.
func WithProgress() Option {
	return func(c *options) error {
		c.progress = true
		return nil
	}
}

// WithClock replaces the clock driving [Client.Run].
func WithClock(clk clock.Clock) Option {
	return func(c *options) error {
		if clk == nil {
			return errors.New("clock must not be nil")
		}
		c.clock = clk
		return nil
	}
}

// SubmitOption is a functional option for [Client.Submit].
type SubmitOption func(opts *submitOpts) error

type submitOpts struct {
	handler Handler
}

// WithCallback sets the handler for this request only.
func WithCallback(fn Handler) SubmitOption {
	return func(opts *submitOpts) error {
		if fn == nil {
			return errors.New("callback must not be nil")
		}
		opts.handler = fn

		return nil
	}
}
