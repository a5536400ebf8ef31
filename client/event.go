package client

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Event is the outcome of one submitted request. It is built by the
// worker, handed to the callback queue and owned by the handler after
// delivery. It holds no live handles.
type Event struct {
	ID      uuid.UUID
	Method  Method
	Request Descriptor

	StatusCode int
	// Headers are those of the final response phase, keyed by the name
	// as received.
	Headers map[string]string
	// Body is the response body when no output file was requested.
	Body []byte
	// OutputPath is the absolute path of the written output file.
	OutputPath   string
	BytesWritten int64

	// Err is non-nil for a failure. It is always an *Error.
	Err error

	Started  time.Time
	Finished time.Time
}

// Failed reports whether the request failed.
func (e *Event) Failed() bool {
	return e.Err != nil
}

// Message returns the failure message, or "" on success.
func (e *Event) Message() string {
	if e.Err == nil {
		return ""
	}

	var cerr *Error
	if errors.As(e.Err, &cerr) {
		return cerr.Msg
	}

	return e.Err.Error()
}

// Duration returns how long the worker took.
func (e *Event) Duration() time.Duration {
	return e.Finished.Sub(e.Started)
}
