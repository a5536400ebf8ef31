// Package throttle provides an [http.RoundTripper] that rate-limits the
// outbound round trips of every request worker sharing it, using a
// token-bucket limiter from [golang.org/x/time/rate].
//
// Each redirect hop of an exchange is a separate round trip and consumes
// its own token. A round trip blocks until a token is available or its
// request context ends; workers detach from caller cancellation, so in
// practice only the per-request timeout bounds the wait.
package throttle
