// File: protocol/httpserver.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// HTTPServer: regex routing, static-file dispatch, response
// serialization and the per-connection protocol loop over TCPServer
// callbacks.

package protocol

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/valyala/bytebufferpool"

	"github.com/momentics/hioload-http/core/buffer"
	"github.com/momentics/hioload-http/server"
)

// DefaultTimeout is the idle-release timeout applied when no option
// overrides it, in seconds.
const DefaultTimeout = 30

// Handler processes one routed request.
type Handler func(*HTTPRequest, *HTTPResponse)

type route struct {
	re      *regexp.Regexp
	handler Handler
}

// HTTPServer carries one ordered route table per method; HEAD shares
// the GET table. Routes are matched by full regex match in registration
// order.
type HTTPServer struct {
	getRoute    []route
	postRoute   []route
	putRoute    []route
	deleteRoute []route
	baseDir     string
	server      *server.TCPServer
}

// NewHTTPServer builds the server on the given port and applies the
// options. Idle release is always on; WithIdleTimeout adjusts it.
func NewHTTPServer(port int, opts ...Option) *HTTPServer {
	s := &HTTPServer{server: server.NewTCPServer(port)}
	s.server.EnableInactiveRelease(DefaultTimeout)
	s.server.SetConnectedCallback(s.onConnected)
	s.server.SetMessageCallback(s.onMessage)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get registers a handler for GET (and HEAD) requests matching pattern.
func (s *HTTPServer) Get(pattern string, handler Handler) {
	s.getRoute = append(s.getRoute, route{regexp.MustCompile(pattern), handler})
}

// Post registers a handler for POST requests matching pattern.
func (s *HTTPServer) Post(pattern string, handler Handler) {
	s.postRoute = append(s.postRoute, route{regexp.MustCompile(pattern), handler})
}

// Put registers a handler for PUT requests matching pattern.
func (s *HTTPServer) Put(pattern string, handler Handler) {
	s.putRoute = append(s.putRoute, route{regexp.MustCompile(pattern), handler})
}

// Delete registers a handler for DELETE requests matching pattern.
func (s *HTTPServer) Delete(pattern string, handler Handler) {
	s.deleteRoute = append(s.deleteRoute, route{regexp.MustCompile(pattern), handler})
}

// Listen starts the worker loops and enters the accept loop. It never
// returns.
func (s *HTTPServer) Listen() { s.server.Start() }

// errorHandler renders the stock HTML error page for resp.Status.
func (s *HTTPServer) errorHandler(resp *HTTPResponse) {
	var b strings.Builder
	b.WriteString("<html>")
	b.WriteString("<head>")
	b.WriteString("<meta http-equiv='Content-Type' content='text/html;charset=utf-8'>")
	b.WriteString("</head>")
	b.WriteString("<body>")
	b.WriteString("<h1>")
	b.WriteString(strconv.Itoa(resp.Status))
	b.WriteString(" ")
	b.WriteString(StatusText(resp.Status))
	b.WriteString("</h1>")
	b.WriteString("</body>")
	b.WriteString("</html>")
	resp.SetContent(b.String(), "text/html")
}

// writeResponse completes the mandated headers, serializes the response
// into a pooled scratch buffer and queues it on the connection.
func (s *HTTPServer) writeResponse(conn *server.Connection, req *HTTPRequest, resp *HTTPResponse) {
	if req.Close() {
		resp.SetHeader("Connection", "close")
	} else {
		resp.SetHeader("Connection", "keep-alive")
	}
	if len(resp.Body) > 0 && !resp.HasHeader("Content-Length") {
		resp.SetHeader("Content-Length", strconv.Itoa(len(resp.Body)))
	}
	if len(resp.Body) > 0 && !resp.HasHeader("Content-Type") {
		resp.SetHeader("Content-Type", "application/octet-stream")
	}
	if resp.redirectFlag {
		resp.SetHeader("Location", resp.redirectURL)
	}

	bb := bytebufferpool.Get()
	defer bytebufferpool.Put(bb)
	fmt.Fprintf(bb, "%s %d %s\r\n", req.Version, resp.Status, StatusText(resp.Status))
	for key, val := range resp.headers {
		fmt.Fprintf(bb, "%s: %s\r\n", key, val)
	}
	bb.WriteString("\r\n")
	bb.WriteString(resp.Body)
	conn.Send(bb.Bytes())
}

// isFileHandler decides whether the request is served from the static
// base directory: GET/HEAD, a traversal-safe path, and a resolved
// target that is a regular file. Directory paths probe their
// index.html.
func (s *HTTPServer) isFileHandler(req *HTTPRequest) bool {
	if s.baseDir == "" {
		return false
	}
	if req.Method != "GET" && req.Method != "HEAD" {
		return false
	}
	if !ValidPath(req.Path) {
		return false
	}
	target := s.baseDir + req.Path
	if strings.HasSuffix(req.Path, "/") {
		target += "index.html"
	}
	return IsRegular(target)
}

// fileHandler loads the static file into the response body with its
// extension MIME type.
func (s *HTTPServer) fileHandler(req *HTTPRequest, resp *HTTPResponse) {
	target := s.baseDir + req.Path
	if strings.HasSuffix(req.Path, "/") {
		target += "index.html"
	}
	data, err := ReadFile(target)
	if err != nil {
		logrus.Errorf("static file: %v", err)
		return
	}
	resp.Body = string(data)
	resp.SetHeader("Content-Type", ExtMime(target))
}

// dispatcher scans the route table in order; the first full match runs
// its handler with the capture groups attached to the request. No
// match yields 404.
func (s *HTTPServer) dispatcher(req *HTTPRequest, resp *HTTPResponse, routes []route) {
	for _, rt := range routes {
		matches := rt.re.FindStringSubmatch(req.Path)
		if matches == nil || matches[0] != req.Path {
			continue
		}
		req.Matches = matches
		rt.handler(req, resp)
		return
	}
	resp.Status = 404
}

// routeRequest picks static dispatch first, then the per-method table.
// A method without a table yields 405.
func (s *HTTPServer) routeRequest(req *HTTPRequest, resp *HTTPResponse) {
	if s.isFileHandler(req) {
		s.fileHandler(req, resp)
		return
	}
	switch req.Method {
	case "GET", "HEAD":
		s.dispatcher(req, resp, s.getRoute)
	case "POST":
		s.dispatcher(req, resp, s.postRoute)
	case "PUT":
		s.dispatcher(req, resp, s.putRoute)
	case "DELETE":
		s.dispatcher(req, resp, s.deleteRoute)
	default:
		resp.Status = 405
	}
}

// onConnected parks a fresh parser context on the connection.
func (s *HTTPServer) onConnected(conn *server.Connection) {
	conn.SetContext(NewHTTPContext())
	logrus.Debugf("new connection id=%d", conn.ID())
}

// onMessage drives the parser over the buffered bytes and dispatches
// every completed request, looping while keep-alive pipelining leaves
// data behind.
func (s *HTTPServer) onMessage(conn *server.Connection, buf *buffer.Buffer) {
	for buf.Readable() > 0 {
		context := conn.Context().(*HTTPContext)
		context.RecvHTTPRequest(buf)
		req := context.Request()
		resp := NewHTTPResponse(context.RespStatus())

		if context.RespStatus() >= 400 {
			s.errorHandler(resp)
			s.writeResponse(conn, req, resp)
			context.Reset()
			buf.MoveReadOffset(buf.Readable())
			conn.Shutdown()
			return
		}
		if context.RecvStatus() != RecvOver {
			// Awaiting the rest of the request.
			return
		}

		s.routeRequest(req, resp)
		s.writeResponse(conn, req, resp)
		context.Reset()
		if resp.Close() {
			conn.Shutdown()
		}
	}
}
