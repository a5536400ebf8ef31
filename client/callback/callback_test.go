package callback_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/adamwoolhether/httpq/client/callback"
	"github.com/benbjohnson/clock"
	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestDispatch_FIFO(t *testing.T) {
	q := callback.NewQueue[int]()

	var got []int
	d := callback.NewDispatcher(q, nil, callback.WithDefault(func(v int) {
		got = append(got, v)
	}))

	for i := range 5 {
		q.Push(i, nil)
	}

	n, err := d.Dispatch()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 5 {
		t.Errorf("expected 5 deliveries, got %d", n)
	}

	if diff := cmp.Diff([]int{0, 1, 2, 3, 4}, got); diff != "" {
		t.Errorf("delivery order mismatch (-want +got):\n%s", diff)
	}

	if q.Len() != 0 {
		t.Errorf("expected empty queue, got %d", q.Len())
	}
}

func TestDispatch_EntryHandlerOverridesDefault(t *testing.T) {
	q := callback.NewQueue[string]()

	var viaDefault, viaEntry []string
	d := callback.NewDispatcher(q, nil, callback.WithDefault(func(v string) {
		viaDefault = append(viaDefault, v)
	}))

	q.Push("a", nil)
	q.Push("b", func(v string) { viaEntry = append(viaEntry, v) })

	if _, err := d.Dispatch(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if diff := cmp.Diff([]string{"a"}, viaDefault); diff != "" {
		t.Errorf("default handler mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"b"}, viaEntry); diff != "" {
		t.Errorf("entry handler mismatch (-want +got):\n%s", diff)
	}
}

func TestDispatch_ConcurrentPush(t *testing.T) {
	const writers = 8
	const perWriter = 250

	q := callback.NewQueue[int]()
	seen := make(map[int]int)
	d := callback.NewDispatcher(q, nil, callback.WithDefault(func(v int) {
		seen[v]++
	}))

	var wg sync.WaitGroup
	for w := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range perWriter {
				q.Push(w*perWriter+i, nil)
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	// Drain while writers are still pushing.
	var total int
	for running := true; running; {
		select {
		case <-done:
			running = false
		default:
		}

		n, err := d.Dispatch()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		total += n
	}

	n, err := d.Dispatch()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	total += n

	if total != writers*perWriter {
		t.Errorf("expected %d deliveries, got %d", writers*perWriter, total)
	}

	for v, count := range seen {
		if count != 1 {
			t.Errorf("value %d delivered %d times", v, count)
		}
	}

	if len(seen) != writers*perWriter {
		t.Errorf("expected %d distinct values, got %d", writers*perWriter, len(seen))
	}
}

func TestDispatch_PushFromHandlerIsDeferred(t *testing.T) {
	q := callback.NewQueue[int]()

	var got []int
	d := callback.NewDispatcher(q, nil, callback.WithDefault(func(v int) {
		got = append(got, v)
		if v == 1 {
			q.Push(2, nil)
		}
	}))

	q.Push(1, nil)

	n, err := d.Dispatch()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 delivery in first pass, got %d", n)
	}

	n, err = d.Dispatch()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 delivery in second pass, got %d", n)
	}

	if diff := cmp.Diff([]int{1, 2}, got); diff != "" {
		t.Errorf("delivery mismatch (-want +got):\n%s", diff)
	}
}

func TestDispatch_Reentrant(t *testing.T) {
	q := callback.NewQueue[int]()

	var innerErr error
	var d *callback.Dispatcher[int]
	d = callback.NewDispatcher(q, nil, callback.WithDefault(func(int) {
		_, innerErr = d.Dispatch()
	}))

	q.Push(1, nil)
	if _, err := d.Dispatch(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !errors.Is(innerErr, callback.ErrConcurrentDrain) {
		t.Errorf("expected %v, got %v", callback.ErrConcurrentDrain, innerErr)
	}
}

func TestDispatch_PanicIsLoggedAndDeliveryContinues(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	q := callback.NewQueue[int]()

	var got []int
	var hooked []*callback.DeliveryError
	d := callback.NewDispatcher(q, logger,
		callback.WithDefault(func(v int) {
			if v == 1 {
				panic("boom")
			}
			got = append(got, v)
		}),
		callback.WithPanicHook[int](func(err *callback.DeliveryError) {
			hooked = append(hooked, err)
		}),
	)

	q.Push(0, nil)
	q.Push(1, nil)
	q.Push(2, nil)

	n, err := d.Dispatch()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 3 {
		t.Errorf("expected 3 entries processed, got %d", n)
	}

	if diff := cmp.Diff([]int{0, 2}, got); diff != "" {
		t.Errorf("delivery mismatch (-want +got):\n%s", diff)
	}

	if len(hooked) != 1 || hooked[0].Panic != "boom" {
		t.Errorf("expected one panic hook call with boom, got %+v", hooked)
	}

	if !strings.Contains(buf.String(), "callback handler panicked") {
		t.Errorf("expected panic to be logged, got %q", buf.String())
	}
}

func TestDispatch_NoHandlerIsLogged(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	q := callback.NewQueue[int]()
	d := callback.NewDispatcher(q, logger)

	q.Push(7, nil)
	if _, err := d.Dispatch(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(buf.String(), "callback dropped") {
		t.Errorf("expected dropped entry to be logged, got %q", buf.String())
	}
}

func TestQueue_Ready(t *testing.T) {
	q := callback.NewQueue[int]()

	select {
	case <-q.Ready():
		t.Fatal("ready signalled on empty queue")
	default:
	}

	q.Push(1, nil)
	q.Push(2, nil)

	select {
	case <-q.Ready():
	default:
		t.Fatal("expected ready signal after push")
	}
}

func TestRun_DeliversOnPush(t *testing.T) {
	q := callback.NewQueue[int]()
	delivered := make(chan int, 1)
	d := callback.NewDispatcher(q, nil,
		callback.WithDefault(func(v int) { delivered <- v }),
		callback.WithClock[int](clock.NewMock()),
	)

	ctx, cancel := context.WithCancel(t.Context())
	errCh := make(chan error, 1)
	go func() { errCh <- d.Run(ctx, time.Hour) }()

	q.Push(42, nil)

	select {
	case v := <-delivered:
		if v != 42 {
			t.Errorf("expected 42, got %d", v)
		}
	case <-time.After(time.Second):
		t.Fatal("value was not delivered in time")
	}

	cancel()
	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestRun_DeliversOnTick(t *testing.T) {
	mock := clock.NewMock()
	q := callback.NewQueue[int]()
	delivered := make(chan int, 1)
	d := callback.NewDispatcher(q, nil,
		callback.WithDefault(func(v int) { delivered <- v }),
		callback.WithClock[int](mock),
	)

	q.Push(7, nil)
	<-q.Ready() // Consume the push signal so only the ticker can fire.

	ctx, cancel := context.WithCancel(t.Context())
	errCh := make(chan error, 1)
	go func() { errCh <- d.Run(ctx, time.Second) }()

	deadline := time.After(2 * time.Second)
	for waiting := true; waiting; {
		mock.Add(time.Second)
		select {
		case v := <-delivered:
			if v != 7 {
				t.Errorf("expected 7, got %d", v)
			}
			waiting = false
		case <-deadline:
			t.Fatal("tick did not trigger delivery")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	<-errCh
}

func TestRun_InvalidInterval(t *testing.T) {
	d := callback.NewDispatcher(callback.NewQueue[int](), nil)

	if err := d.Run(t.Context(), 0); !errors.Is(err, callback.ErrInvalidInterval) {
		t.Errorf("expected %v, got %v", callback.ErrInvalidInterval, err)
	}
}
