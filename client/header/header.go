// Package header rebuilds the header map of the final response of an
// exchange from the header lines a transport streams while the exchange
// runs. A transport that follows redirects emits one header block per hop,
// so the accumulator drops everything it has collected whenever the
// exchange's status code changes.
package header

import "strings"

// asciiSpace is the whitespace set used for trimming. It does not depend
// on the Unicode tables or the process locale.
const asciiSpace = " \t\n\v\f\r"

// Accumulator collects header lines for a single exchange.
// It is not safe for concurrent use.
type Accumulator struct {
	status     func() int
	lastStatus int
	headers    map[string]string
}

// NewAccumulator returns an Accumulator that queries status for the
// exchange's current response code on every line.
func NewAccumulator(status func() int) *Accumulator {
	return &Accumulator{
		status:     status,
		lastStatus: -1,
		headers:    make(map[string]string),
	}
}

// Add consumes one raw header line. Lines without a colon, such as the
// status line or the blank separator, are stored as a name with an empty
// value. A repeated name overwrites the earlier value. A zero-length line
// is ignored.
func (a *Accumulator) Add(line string) {
	if line == "" {
		return
	}

	if code := a.status(); code != a.lastStatus {
		a.lastStatus = code
		clear(a.headers)
	}

	name, value, found := strings.Cut(line, ":")
	if !found {
		a.headers[trim(line)] = ""
		return
	}

	a.headers[trim(name)] = trim(value)
}

// Headers returns a copy of the headers of the current phase.
func (a *Accumulator) Headers() map[string]string {
	out := make(map[string]string, len(a.headers))
	for k, v := range a.headers {
		out[k] = v
	}

	return out
}

// Status returns the status code of the current phase, or -1 if no line
// has been seen yet.
func (a *Accumulator) Status() int {
	return a.lastStatus
}

func trim(s string) string {
	return strings.Trim(s, asciiSpace)
}
