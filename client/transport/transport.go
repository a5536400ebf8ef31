// Package transport defines the boundary between a request worker and
// the component that performs the network exchange, and provides its
// net/http implementation.
//
// A worker acquires one [Exchange] per request from a [Transport], hands
// it a fully populated [Spec], and releases it when done. While Perform
// runs, the exchange streams every header line it receives, from every
// redirect hop, to Spec.OnHeader, and reports the status of the hop it
// is on through StatusCode.
package transport

import (
	"context"
	"errors"
	"io"
	"time"
)

// DefaultMaxRedirects is used when Spec.MaxRedirects is not positive.
const DefaultMaxRedirects = 10

var (
	ErrNoRoundTripper = errors.New("no round tripper configured")
	ErrExchangeClosed = errors.New("exchange closed")
)

// Transport creates exchanges.
type Transport interface {
	NewExchange() (Exchange, error)
}

// Exchange performs a single request/response exchange, including any
// redirect hops. An Exchange is owned by one worker and must be closed.
type Exchange interface {
	// Perform runs the exchange described by spec and blocks until the
	// body has been written to spec.Output. A returned error carries the
	// transport's diagnostic text.
	Perform(ctx context.Context, spec *Spec) (*Result, error)
	// StatusCode returns the status of the response currently being
	// received, or 0 before the first response.
	StatusCode() int
	Close() error
}

// Header is a single request header. Name keeps the caller's case.
type Header struct {
	Name  string
	Value string
}

// Spec fully describes an exchange.
type Spec struct {
	URL     string
	Method  string
	Headers []Header

	// Body is sent when SendBody is set, even if it is empty, which
	// yields an explicit zero-length payload.
	Body     []byte
	SendBody bool
	// NoBody skips reading the response body.
	NoBody bool

	Username  string
	Password  string
	UserAgent string

	FollowRedirects bool
	// AutoReferer sets Referer to the previous hop's URL on every
	// followed redirect.
	AutoReferer  bool
	MaxRedirects int

	// AcceptEncoding, when non-nil, is sent as the Accept-Encoding header
	// and enables decoding of gzip and deflate bodies. An empty value
	// requests every supported encoding.
	AcceptEncoding *string

	// Timeout bounds the whole exchange, including reading the body.
	Timeout time.Duration

	// Output receives the response body. Nil discards it.
	Output io.Writer
	// OnHeader receives each raw header line in arrival order.
	OnHeader func(line string)
}

// Result describes a completed exchange.
type Result struct {
	StatusCode int
	// ContentLength is the length advertised by the final response, or -1
	// when unknown or when the body was decoded.
	ContentLength int64
	// BodyBytes is the number of bytes written to Spec.Output.
	BodyBytes int64
}
