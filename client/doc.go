// Package client runs HTTP requests on background workers and delivers
// their outcomes to the caller's own goroutine.
//
// # Building a Client
//
// Use [Build] to create a [Client] with functional options:
//
//	c, err := client.Build(
//		client.WithTimeout(10 * time.Second),
//		client.WithUserAgent("myapp/1.0"),
//		client.WithHandler(func(ev *client.Event) { ... }),
//	)
//
// # Submitting Requests
//
// Describe a request with a [Descriptor] and hand it to [Client.Submit],
// or one of the per-method shorthands. Submit validates the descriptor,
// starts a worker and returns at once:
//
//	id, err := c.Post(ctx, client.Descriptor{
//		URL:     "https://api.example.com/v1/items",
//		Body:    []byte(`{"name":"widget"}`),
//		Headers: map[string]string{"Content-Type": "application/json"},
//	})
//
// Every accepted request produces exactly one [Event], success or
// failure. Workers never report errors any other way.
//
// # Delivering Events
//
// Events are queued in completion order. The goroutine that owns the
// caller's state drains them with [Client.Dispatch], typically once per
// iteration of its main loop, or by handing itself over to [Client.Run]:
//
//	for running {
//		// ... frame work ...
//		if _, err := c.Dispatch(); err != nil { ... }
//	}
//
// Handlers run on that goroutine, outside any queue lock, and may submit
// further requests.
//
// # Output Files
//
// Setting Descriptor.OutputFile streams the body to a file under the
// root given with [WithOutputRoot] instead of memory. The file is opened
// before any network activity; if it cannot be opened the request fails
// without contacting the server.
package client
