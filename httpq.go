// Package httpq exposes the asynchronous request client builder.
package httpq

import (
	"github.com/adamwoolhether/httpq/client"
)

// NewClient instantiates a new *Client with the provided options.
// If not specified, the default http.Transport, the working directory as
// output root and an unbounded worker pool are used.
func NewClient(opts ...client.Option) (*client.Client, error) {
	return client.Build(opts...)
}
