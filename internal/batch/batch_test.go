package batch

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	"github.com/adamwoolhether/httpq/client"
)

const sample = `
requests:
  - name: status
    url: https://example.com/status
  - name: upload
    method: post
    url: https://example.com/upload
    body: '{"a":1}'
    headers:
      Content-Type: application/json
      Accept-Encoding: gzip
    username: user
    password: pass
    timeout: 2s
  - name: fetch
    url: https://example.com/file
    follow_redirects: true
    auto_referer: true
    max_redirects: 3
    output_file: out/file.bin
`

func TestParse(t *testing.T) {
	file, err := Parse(strings.NewReader(sample))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if len(file.Requests) != 3 {
		t.Fatalf("expected 3 requests, got %d", len(file.Requests))
	}

	desc, method, err := file.Requests[1].Descriptor()
	if err != nil {
		t.Fatalf("descriptor: %v", err)
	}

	exp := client.Descriptor{
		URL:      "https://example.com/upload",
		Body:     []byte(`{"a":1}`),
		Headers:  map[string]string{"Content-Type": "application/json", "Accept-Encoding": "gzip"},
		Username: "user",
		Password: "pass",
		Timeout:  2 * time.Second,
	}
	if method != client.MethodPost {
		t.Errorf("expected POST, got %s", method)
	}
	if diff := cmp.Diff(exp, desc); diff != "" {
		t.Errorf("descriptor (-want +got):\n%s", diff)
	}

	desc, method, err = file.Requests[0].Descriptor()
	if err != nil {
		t.Fatalf("descriptor: %v", err)
	}
	if method != client.MethodGet || desc.Body != nil {
		t.Errorf("expected bodiless GET default, got %s with %q", method, desc.Body)
	}

	desc, _, err = file.Requests[2].Descriptor()
	if err != nil {
		t.Fatalf("descriptor: %v", err)
	}
	if !desc.FollowRedirects || !desc.AutoReferer || desc.MaxRedirects != 3 || desc.OutputFile != "out/file.bin" {
		t.Errorf("unexpected redirect or output settings: %+v", desc)
	}
}

func TestParse_Errors(t *testing.T) {
	testCases := []struct {
		name   string
		input  string
		expErr error
	}{
		{name: "empty document", input: "", expErr: ErrEmpty},
		{name: "no requests", input: "requests: []\n", expErr: ErrEmpty},
		{name: "unknown key", input: "requests:\n  - url: https://x.test\n    retries: 3\n"},
		{name: "bad timeout", input: "requests:\n  - url: https://x.test\n    timeout: soon\n"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tc.input))
			if err == nil {
				t.Fatal("expected error")
			}
			if tc.expErr != nil && !errors.Is(err, tc.expErr) {
				t.Errorf("expected %v, got %v", tc.expErr, err)
			}
		})
	}
}

func TestDescriptor_BadMethod(t *testing.T) {
	_, _, err := Request{Method: "brew", URL: "https://x.test"}.Descriptor()
	if !errors.Is(err, client.ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest, got %v", err)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "batch.yaml")
	if err := os.WriteFile(path, []byte(sample), 0o600); err != nil {
		t.Fatalf("writing batch: %v", err)
	}

	file, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if file.Requests[0].Name != "status" {
		t.Errorf("expected first request named status, got %q", file.Requests[0].Name)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected os.ErrNotExist, got %v", err)
	}
}

func TestNewResult(t *testing.T) {
	id := uuid.New()
	started := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	ev := &client.Event{
		ID:           id,
		Method:       client.MethodGet,
		Request:      client.Descriptor{URL: "https://x.test"},
		StatusCode:   200,
		Headers:      map[string]string{"X-A": "1"},
		Body:         []byte("ok"),
		BytesWritten: 2,
		Started:      started,
		Finished:     started.Add(1500 * time.Millisecond),
	}

	exp := Result{
		ID:         id.String(),
		Name:       "probe",
		Method:     "GET",
		URL:        "https://x.test",
		Status:     200,
		Headers:    map[string]string{"X-A": "1"},
		Body:       "ok",
		Bytes:      2,
		DurationMS: 1500,
	}
	if diff := cmp.Diff(exp, NewResult("probe", ev)); diff != "" {
		t.Errorf("result (-want +got):\n%s", diff)
	}

	ev.Err = &client.Error{Msg: "Can not open output file", Err: client.ErrOutputFile}
	if got := NewResult("probe", ev).Error; got != "Can not open output file" {
		t.Errorf("expected failure message, got %q", got)
	}
}
