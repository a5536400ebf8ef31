package transport

import (
	"bytes"
	"compress/gzip"
	"compress/zlib"
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"net/http"
	"slices"
	"strings"
	"sync/atomic"
)

// supportedEncodings is sent when an empty Accept-Encoding hint asks for
// every encoding the decoder understands.
const supportedEncodings = "gzip, deflate"

// managedHeaders are interpreted by net/http itself, so they are stored
// under their canonical key regardless of the caller's case.
var managedHeaders = map[string]bool{
	"Accept-Encoding":   true,
	"Authorization":     true,
	"Connection":        true,
	"Content-Length":    true,
	"Host":              true,
	"Range":             true,
	"Referer":           true,
	"Trailer":           true,
	"Transfer-Encoding": true,
	"User-Agent":        true,
}

// HTTP is a Transport backed by net/http. Every exchange builds its own
// http.Client on top of the shared round tripper.
type HTTP struct {
	rt http.RoundTripper
}

// NewHTTP returns an HTTP transport performing round trips through rt.
func NewHTTP(rt http.RoundTripper) *HTTP {
	return &HTTP{rt: rt}
}

func (h *HTTP) NewExchange() (Exchange, error) {
	if h == nil || h.rt == nil {
		return nil, ErrNoRoundTripper
	}

	return &httpExchange{rt: h.rt}, nil
}

type httpExchange struct {
	rt     http.RoundTripper
	status atomic.Int64
	closed atomic.Bool
}

func (e *httpExchange) StatusCode() int {
	return int(e.status.Load())
}

func (e *httpExchange) Close() error {
	e.closed.Store(true)
	return nil
}

func (e *httpExchange) Perform(ctx context.Context, spec *Spec) (*Result, error) {
	if e.closed.Load() {
		return nil, ErrExchangeClosed
	}

	req, err := newRequest(ctx, spec)
	if err != nil {
		return nil, err
	}

	hc := &http.Client{
		Transport:     &hopRecorder{next: e.rt, ex: e, onHeader: spec.OnHeader},
		Timeout:       spec.Timeout,
		CheckRedirect: redirectPolicy(spec, req.Header.Get("Referer") != ""),
	}

	resp, err := hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	res := &Result{
		StatusCode:    resp.StatusCode,
		ContentLength: resp.ContentLength,
	}

	if spec.NoBody {
		return res, nil
	}

	body := io.Reader(resp.Body)
	if spec.AcceptEncoding != nil {
		decoded, ok, err := decode(resp)
		if err != nil {
			return nil, err
		}
		if ok {
			defer decoded.Close()
			body = decoded
			res.ContentLength = -1
		}
	}
	if resp.Uncompressed {
		res.ContentLength = -1
	}

	out := spec.Output
	if out == nil {
		out = io.Discard
	}

	n, err := io.Copy(out, body)
	res.BodyBytes = n
	if err != nil {
		return nil, err
	}

	return res, nil
}

func newRequest(ctx context.Context, spec *Spec) (*http.Request, error) {
	var body io.Reader
	if spec.SendBody {
		body = bytes.NewReader(spec.Body)
	}

	req, err := http.NewRequestWithContext(ctx, spec.Method, spec.URL, body)
	if err != nil {
		return nil, err
	}

	for _, h := range spec.Headers {
		if h.Name == "" {
			continue
		}

		key := h.Name
		if canonical := http.CanonicalHeaderKey(key); managedHeaders[canonical] {
			key = canonical
		}

		if key == "Host" {
			req.Host = h.Value
			continue
		}

		req.Header[key] = []string{h.Value}
	}

	if spec.AcceptEncoding != nil {
		enc := *spec.AcceptEncoding
		if enc == "" {
			enc = supportedEncodings
		}
		req.Header.Set("Accept-Encoding", enc)
	}

	// An explicit User-Agent header wins over the UserAgent field.
	if spec.UserAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", spec.UserAgent)
	}

	if spec.Username != "" || spec.Password != "" {
		req.SetBasicAuth(spec.Username, spec.Password)
	}

	return req, nil
}

func redirectPolicy(spec *Spec, explicitReferer bool) func(*http.Request, []*http.Request) error {
	if !spec.FollowRedirects {
		return func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}

	limit := spec.MaxRedirects
	if limit <= 0 {
		limit = DefaultMaxRedirects
	}

	return func(req *http.Request, via []*http.Request) error {
		if len(via) > limit {
			return fmt.Errorf("stopped after %d redirects", limit)
		}

		switch {
		case spec.AutoReferer:
			ref := *via[len(via)-1].URL
			ref.User = nil
			ref.Fragment = ""
			req.Header.Set("Referer", ref.String())
		case !explicitReferer:
			req.Header.Del("Referer")
		}

		return nil
	}
}

// decode wraps the body of resp in a decoder matching its
// Content-Encoding. ok is false for identity or unsupported encodings.
func decode(resp *http.Response) (io.ReadCloser, bool, error) {
	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "gzip", "x-gzip":
		zr, err := gzip.NewReader(resp.Body)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return io.NopCloser(resp.Body), true, nil
			}
			return nil, false, fmt.Errorf("reading gzip body: %w", err)
		}
		return zr, true, nil
	case "deflate":
		zr, err := zlib.NewReader(resp.Body)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return io.NopCloser(resp.Body), true, nil
			}
			return nil, false, fmt.Errorf("reading deflate body: %w", err)
		}
		return zr, true, nil
	default:
		return nil, false, nil
	}
}

// hopRecorder sees the response of every hop, including redirects the
// client follows, and replays its header block as raw lines.
type hopRecorder struct {
	next     http.RoundTripper
	ex       *httpExchange
	onHeader func(string)
}

func (h *hopRecorder) RoundTrip(r *http.Request) (*http.Response, error) {
	resp, err := h.next.RoundTrip(r)
	if err != nil {
		return nil, err
	}

	h.ex.status.Store(int64(resp.StatusCode))

	if h.onHeader != nil {
		h.onHeader(resp.Proto + " " + resp.Status + "\r\n")
		for _, name := range slices.Sorted(maps.Keys(resp.Header)) {
			for _, v := range resp.Header[name] {
				h.onHeader(name + ": " + v + "\r\n")
			}
		}
		h.onHeader("\r\n")
	}

	return resp, nil
}
