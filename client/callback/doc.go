// Package callback hands completed results from worker goroutines to a
// single consumer goroutine.
//
// Workers call [Queue.Push] from any goroutine. The consumer, usually a
// host's main loop, calls [Dispatcher.Dispatch] on its own schedule, or
// hands its goroutine to [Dispatcher.Run]:
//
//	q := callback.NewQueue[*Result]()
//	d := callback.NewDispatcher(q, logger, callback.WithDefault(handle))
//
//	go func() { q.Push(doWork(), nil) }()
//
//	for {
//		// ... main loop work ...
//		if _, err := d.Dispatch(); err != nil { ... }
//	}
//
// Entries are delivered in the order they were pushed, exactly once.
// Handlers run outside the queue lock, so a handler may push new work.
//
// The httpq client pushes every entry with its own handler, so
// [WithDefault] and [WithPanicHook] only matter when the queue is used
// directly, without the client.
package callback
