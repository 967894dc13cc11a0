// File: protocol/request.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package protocol

import (
	"fmt"
	"strconv"
)

// HTTPRequest is the parsed value object built by HTTPContext. Headers
// and query params keep insertion semantics: the first write of a key
// wins.
type HTTPRequest struct {
	Method  string
	Path    string
	Version string
	Body    string

	// Matches holds the capture groups of the route regex that matched
	// Path, Matches[0] being the full match.
	Matches []string

	headers map[string]string
	params  map[string]string
}

// NewHTTPRequest returns an empty request defaulting to HTTP/1.1.
func NewHTTPRequest() *HTTPRequest {
	return &HTTPRequest{
		Version: "HTTP/1.1",
		headers: make(map[string]string),
		params:  make(map[string]string),
	}
}

// Reset restores the request to its initial state for reuse on a
// keep-alive connection.
func (r *HTTPRequest) Reset() {
	r.Method = ""
	r.Path = ""
	r.Version = "HTTP/1.1"
	r.Body = ""
	r.Matches = nil
	r.headers = make(map[string]string)
	r.params = make(map[string]string)
}

// SetHeader records a header field; duplicates keep the first value.
func (r *HTTPRequest) SetHeader(key, val string) {
	if _, ok := r.headers[key]; ok {
		return
	}
	r.headers[key] = val
}

// HasHeader reports whether a header field is present.
func (r *HTTPRequest) HasHeader(key string) bool {
	_, ok := r.headers[key]
	return ok
}

// GetHeader returns a header value, or "" when absent.
func (r *HTTPRequest) GetHeader(key string) string {
	return r.headers[key]
}

// SetParam records a query parameter; duplicates keep the first value.
func (r *HTTPRequest) SetParam(key, val string) {
	if _, ok := r.params[key]; ok {
		return
	}
	r.params[key] = val
}

// HasParam reports whether a query parameter is present.
func (r *HTTPRequest) HasParam(key string) bool {
	_, ok := r.params[key]
	return ok
}

// GetParam returns a query parameter value, or "" when absent.
func (r *HTTPRequest) GetParam(key string) string {
	return r.params[key]
}

// ContentLength parses the Content-Length header; absent reads as zero.
func (r *HTTPRequest) ContentLength() (int, error) {
	if !r.HasHeader("Content-Length") {
		return 0, nil
	}
	n, err := strconv.Atoi(r.GetHeader("Content-Length"))
	if err != nil || n < 0 {
		return 0, fmt.Errorf("bad Content-Length %q", r.GetHeader("Content-Length"))
	}
	return n, nil
}

// Close reports whether the connection should close after the
// response. Only an explicit "Connection: keep-alive" keeps it open.
func (r *HTTPRequest) Close() bool {
	return !(r.HasHeader("Connection") && r.GetHeader("Connection") == "keep-alive")
}
