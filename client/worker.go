package client

import (
	"bytes"
	"cmp"
	"context"
	"crypto/sha256"
	"fmt"
	"maps"
	"runtime/debug"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/adamwoolhether/httpq/client/download"
	"github.com/adamwoolhether/httpq/client/header"
	"github.com/adamwoolhether/httpq/client/transport"
)

// worker performs one submitted request and queues exactly one event.
type worker struct {
	client  *Client
	id      uuid.UUID
	method  Method
	desc    Descriptor
	handler Handler
}

func (w *worker) run(ctx context.Context) {
	started := time.Now()
	ev := w.newEvent(started)

	defer func() {
		if rec := recover(); rec != nil {
			w.recovered(ev, rec)
		}

		ev.Finished = time.Now()
		w.client.push(ev, w.handler)
	}()

	w.execute(ctx, ev)
}

// recovered replaces whatever ev holds with a panic failure.
func (w *worker) recovered(ev *Event, rec any) {
	w.client.logger.Error("worker panicked", "id", w.id, "panic", rec, "trace", string(debug.Stack()))
	*ev = *w.newEvent(ev.Started)
	ev.Err = failure(ErrWorkerPanic, fmt.Sprintf("worker panicked: %v", rec), nil)
}

func (w *worker) newEvent(started time.Time) *Event {
	return &Event{
		ID:      w.id,
		Method:  w.method,
		Request: w.desc,
		Started: started,
	}
}

func (w *worker) execute(ctx context.Context, ev *Event) {
	ctx, span := w.client.tracer.Start(ctx, "httpq.exchange", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("httpq.id", w.id.String()),
		attribute.String("http.request.method", string(w.method)),
		attribute.String("url.full", w.desc.URL),
	)

	log := w.client.logger.With("id", w.id, "method", w.method, "url", w.desc.URL)
	log.Debug("request started")

	defer func() {
		if ev.Err != nil {
			span.RecordError(ev.Err)
			span.SetStatus(codes.Error, ev.Message())
			log.Warn("request failed", "status", ev.StatusCode, "error", ev.Err)
			return
		}
		span.SetAttributes(attribute.Int("http.response.status_code", ev.StatusCode))
		log.Info("request completed", "status", ev.StatusCode, "bytes", ev.BytesWritten)
	}()

	// Runs before the reporting above so a panic is reported as a failure.
	defer func() {
		if rec := recover(); rec != nil {
			w.recovered(ev, rec)
		}
	}()

	ex, err := w.client.exchanger.NewExchange()
	if err != nil {
		ev.Err = failure(ErrTransportInit, msgTransportInit, err)
		return
	}

	var sink *download.Sink
	defer func() {
		if err := ex.Close(); err != nil {
			log.Error("closing exchange", "error", err)
		}
		if sink != nil {
			if ev.Err != nil {
				log.Debug("discarding output file", "path", sink.Path(), "written", sink.Written())
			}
			sink.Abort()
		}
	}()

	var buf bytes.Buffer
	spec := w.spec(ctx)
	spec.Output = &buf

	if w.desc.OutputFile != "" {
		sink, err = download.Open(w.client.outputRoot, w.desc.OutputFile, log, w.sinkOptions()...)
		if err != nil {
			ev.Err = failure(ErrOutputFile, msgOutputFile, err)
			return
		}
		spec.Output = sink
	}

	acc := header.NewAccumulator(ex.StatusCode)
	spec.OnHeader = acc.Add

	res, err := ex.Perform(ctx, spec)
	if err != nil {
		ev.StatusCode = ex.StatusCode()
		ev.Err = failure(ErrTransport, err.Error(), err)
		return
	}

	ev.StatusCode = res.StatusCode
	ev.Headers = acc.Headers()

	if sink == nil {
		ev.Body = buf.Bytes()
		ev.BytesWritten = res.BodyBytes
		return
	}

	contentLength := res.ContentLength
	if spec.NoBody {
		contentLength = -1
	}

	n, err := sink.Commit(contentLength)
	if err != nil {
		ev.Err = failure(ErrOutputWrite, err.Error(), err)
		return
	}

	ev.OutputPath = sink.Path()
	ev.BytesWritten = n
}

func (w *worker) sinkOptions() []download.Option {
	var opts []download.Option
	if w.desc.OutputChecksum != "" {
		opts = append(opts, download.WithChecksum(sha256.New(), w.desc.OutputChecksum))
	}
	if w.client.progress {
		opts = append(opts, download.WithProgress())
	}

	return opts
}

// spec translates the descriptor into an exchange spec.
func (w *worker) spec(ctx context.Context) *transport.Spec {
	d := w.desc
	spec := &transport.Spec{
		URL:          d.URL,
		Method:       string(w.method),
		Username:     d.Username,
		Password:     d.Password,
		UserAgent:    cmp.Or(d.UserAgent, w.client.userAgent),
		MaxRedirects: d.MaxRedirects,
		Timeout:      cmp.Or(d.Timeout, w.client.timeout),
	}

	for _, name := range slices.Sorted(maps.Keys(d.Headers)) {
		value := d.Headers[name]
		spec.Headers = append(spec.Headers, transport.Header{Name: name, Value: value})
		if strings.EqualFold(name, "Accept-Encoding") {
			spec.AcceptEncoding = &value
		}
	}

	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	for _, name := range slices.Sorted(slices.Values(carrier.Keys())) {
		if _, ok := d.HeaderValue(name); !ok {
			spec.Headers = append(spec.Headers, transport.Header{Name: name, Value: carrier.Get(name)})
		}
	}

	switch w.method {
	case MethodPost:
		spec.Body = d.Body
		spec.SendBody = true
	case MethodPut, MethodPatch, MethodDelete:
		if len(d.Body) > 0 {
			spec.Body = d.Body
			spec.SendBody = true
		}
	case MethodHead:
		spec.NoBody = true
	}

	if d.FollowRedirects {
		spec.FollowRedirects = true
		spec.AutoReferer = d.AutoReferer
	}

	return spec
}
