// Package batch loads request batches for the httpq command and renders
// delivered events as result records.
package batch

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/adamwoolhether/httpq/client"
)

// ErrEmpty is returned for a batch without requests.
var ErrEmpty = errors.New("batch has no requests")

// File is a batch of requests.
type File struct {
	Requests []Request `yaml:"requests"`
}

// Request is one batch entry. Method defaults to GET.
type Request struct {
	Name            string            `yaml:"name"`
	Method          string            `yaml:"method"`
	URL             string            `yaml:"url"`
	Headers         map[string]string `yaml:"headers"`
	Body            string            `yaml:"body"`
	Username        string            `yaml:"username"`
	Password        string            `yaml:"password"`
	UserAgent       string            `yaml:"user_agent"`
	FollowRedirects bool              `yaml:"follow_redirects"`
	AutoReferer     bool              `yaml:"auto_referer"`
	MaxRedirects    int               `yaml:"max_redirects"`
	OutputFile      string            `yaml:"output_file"`
	OutputChecksum  string            `yaml:"output_checksum"`
	Timeout         time.Duration     `yaml:"timeout"`
}

// Load reads and parses the batch file at path.
func Load(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening batch: %w", err)
	}
	defer f.Close()

	return Parse(f)
}

// Parse decodes a batch, rejecting unknown keys.
func Parse(r io.Reader) (*File, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var file File
	if err := dec.Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmpty
		}
		return nil, fmt.Errorf("decoding batch: %w", err)
	}

	if len(file.Requests) == 0 {
		return nil, ErrEmpty
	}

	return &file, nil
}

// Descriptor converts r into a descriptor and method.
func (r Request) Descriptor() (client.Descriptor, client.Method, error) {
	method := client.MethodGet
	if r.Method != "" {
		m, err := client.ParseMethod(r.Method)
		if err != nil {
			return client.Descriptor{}, "", err
		}
		method = m
	}

	desc := client.Descriptor{
		URL:             r.URL,
		Headers:         r.Headers,
		Username:        r.Username,
		Password:        r.Password,
		UserAgent:       r.UserAgent,
		FollowRedirects: r.FollowRedirects,
		AutoReferer:     r.AutoReferer,
		MaxRedirects:    r.MaxRedirects,
		OutputFile:      r.OutputFile,
		OutputChecksum:  r.OutputChecksum,
		Timeout:         r.Timeout,
	}
	if r.Body != "" {
		desc.Body = []byte(r.Body)
	}

	return desc, method, nil
}

// Result is the JSON record printed for a delivered event.
type Result struct {
	ID         string            `json:"id"`
	Name       string            `json:"name,omitempty"`
	Method     string            `json:"method"`
	URL        string            `json:"url"`
	Status     int               `json:"status,omitempty"`
	Headers    map[string]string `json:"headers,omitempty"`
	Body       string            `json:"body,omitempty"`
	OutputPath string            `json:"output_path,omitempty"`
	Bytes      int64             `json:"bytes"`
	Error      string            `json:"error,omitempty"`
	DurationMS int64             `json:"duration_ms"`
}

// NewResult renders ev as a Result labelled name.
func NewResult(name string, ev *client.Event) Result {
	return Result{
		ID:         ev.ID.String(),
		Name:       name,
		Method:     string(ev.Method),
		URL:        ev.Request.URL,
		Status:     ev.StatusCode,
		Headers:    ev.Headers,
		Body:       string(ev.Body),
		OutputPath: ev.OutputPath,
		Bytes:      ev.BytesWritten,
		Error:      ev.Message(),
		DurationMS: ev.Duration().Milliseconds(),
	}
}
