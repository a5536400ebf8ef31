package client

import (
	"errors"
)

// Failure messages carried by events.
const (
	msgTransportInit = "could not initialize transport"
	msgOutputFile    = "Can not open output file"
)

var (
	// ErrInvalidRequest is returned by Submit for a method or descriptor
	// that fails validation.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrClosed is returned by Submit once Close has been called.
	ErrClosed = errors.New("client closed")

	// ErrTransportInit marks an event whose exchange could not be created.
	ErrTransportInit = errors.New("transport init failed")
	// ErrOutputFile marks an event whose output file could not be opened.
	ErrOutputFile = errors.New("output file failed")
	// ErrTransport marks an event whose exchange failed.
	ErrTransport = errors.New("transport failed")
	// ErrOutputWrite marks an event whose output file could not be
	// finalised after a completed exchange.
	ErrOutputWrite = errors.New("output write failed")
	// ErrWorkerPanic marks an event produced by a worker that panicked.
	ErrWorkerPanic = errors.New("worker panicked")
)

// Error is the failure carried by an [Event]. Msg is the human readable
// message, Err one of the failure sentinels above and Cause the
// underlying error, if any.
type Error struct {
	Msg   string
	Err   error
	Cause error
}

func (e *Error) Error() string {
	if e.Cause == nil || e.Cause.Error() == e.Msg {
		return e.Msg
	}

	return e.Msg + ": " + e.Cause.Error()
}

func (e *Error) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}

	return []error{e.Err, e.Cause}
}

func failure(sentinel error, msg string, cause error) *Error {
	return &Error{Msg: msg, Err: sentinel, Cause: cause}
}
