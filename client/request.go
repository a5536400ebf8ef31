package client

import (
	"bytes"
	"fmt"
	"maps"
	"net/http"
	"strings"
	"time"
)

// Method is an HTTP verb a request can be submitted with.
type Method string

const (
	MethodGet    Method = http.MethodGet
	MethodPost   Method = http.MethodPost
	MethodPut    Method = http.MethodPut
	MethodPatch  Method = http.MethodPatch
	MethodDelete Method = http.MethodDelete
	MethodHead   Method = http.MethodHead
)

// ParseMethod returns the Method named by s, ignoring case.
func ParseMethod(s string) (Method, error) {
	m := Method(strings.ToUpper(strings.TrimSpace(s)))
	if !m.Valid() {
		return "", fmt.Errorf("%w: unsupported method %q", ErrInvalidRequest, s)
	}

	return m, nil
}

// Valid reports whether m is one of the supported methods.
func (m Method) Valid() bool {
	switch m {
	case MethodGet, MethodPost, MethodPut, MethodPatch, MethodDelete, MethodHead:
		return true
	}
	return false
}

func (m Method) String() string {
	return string(m)
}

// Descriptor describes one HTTP call. Only URL is required; every other
// field's zero value means "not set".
//
// Header names are matched without regard to case. An Accept-Encoding
// header is sent as given and also enables decoding of gzip and deflate
// response bodies.
type Descriptor struct {
	URL     string            `json:"url" validate:"required,http_url"`
	Body    []byte            `json:"body,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`

	Username  string `json:"username,omitempty"`
	Password  string `json:"password,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`

	FollowRedirects bool `json:"follow_redirects,omitempty"`
	// AutoReferer only applies when FollowRedirects is set.
	AutoReferer bool `json:"auto_referer,omitempty"`
	// MaxRedirects caps followed redirects. Zero means 10.
	MaxRedirects int `json:"max_redirects,omitempty" validate:"gte=0"`

	// OutputFile is a path relative to the client's output root. When
	// set, the body is written there instead of Event.Body.
	OutputFile string `json:"output_file,omitempty"`
	// OutputChecksum is the hex SHA-256 the output file must match.
	OutputChecksum string `json:"output_checksum,omitempty" validate:"omitempty,excluded_without=OutputFile,len=64,hexadecimal"`

	// Timeout bounds the whole exchange. Zero uses the client timeout.
	Timeout time.Duration `json:"timeout,omitempty" validate:"gte=0"`
}

// Validate checks d against its declared constraints.
func (d Descriptor) Validate() error {
	return validateStruct(d)
}

// HeaderValue returns the value of the header called name, ignoring case.
func (d Descriptor) HeaderValue(name string) (string, bool) {
	for k, v := range d.Headers {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}

	return "", false
}

// clone returns a copy of d that shares no memory with it.
func (d Descriptor) clone() Descriptor {
	cpy := d
	cpy.Body = bytes.Clone(d.Body)
	cpy.Headers = maps.Clone(d.Headers)

	return cpy
}
