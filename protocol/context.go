// File: protocol/context.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Incremental, restartable HTTP/1.x request parser. One context parses
// one request at a time and is Reset between requests on keep-alive
// connections.

package protocol

import (
	"regexp"
	"strings"

	"github.com/momentics/hioload-http/core/buffer"
)

// RecvStatus is the parser stage.
type RecvStatus int

const (
	// RecvError absorbs every failure; respStatus carries the code.
	RecvError RecvStatus = iota
	// RecvLine: awaiting or parsing the request line.
	RecvLine
	// RecvHead: awaiting or parsing header lines.
	RecvHead
	// RecvBody: awaiting Content-Length bytes of body.
	RecvBody
	// RecvOver: a full request is parsed and ready to dispatch.
	RecvOver
)

// MaxLine bounds the request line and each header line.
const MaxLine = 8192

var requestLineRE = regexp.MustCompile(
	`(?i)^(GET|HEAD|POST|PUT|DELETE) ([^?]*)(?:\?(.*))? (HTTP/1\.[01])(?:\n|\r\n)?$`)

// HTTPContext drives the Line -> Head -> Body -> Over chain. Each call
// to RecvHTTPRequest advances as far as the buffered bytes allow; the
// caller inspects RecvStatus to decide between dispatching and waiting.
type HTTPContext struct {
	respStatus int
	recvStatus RecvStatus
	request    *HTTPRequest
}

// NewHTTPContext returns a context ready to parse a request line.
func NewHTTPContext() *HTTPContext {
	return &HTTPContext{
		respStatus: 200,
		recvStatus: RecvLine,
		request:    NewHTTPRequest(),
	}
}

// Reset makes the context equivalent to a fresh one.
func (c *HTTPContext) Reset() {
	c.respStatus = 200
	c.recvStatus = RecvLine
	c.request.Reset()
}

// RespStatus returns the tentative response status; >= 400 after a
// protocol error.
func (c *HTTPContext) RespStatus() int { return c.respStatus }

// RecvStatus returns the parser stage.
func (c *HTTPContext) RecvStatus() RecvStatus { return c.recvStatus }

// Request returns the request being built.
func (c *HTTPContext) Request() *HTTPRequest { return c.request }

func (c *HTTPContext) fail(status int) bool {
	c.recvStatus = RecvError
	c.respStatus = status
	return false
}

func (c *HTTPContext) parseLine(line string) bool {
	matches := requestLineRE.FindStringSubmatch(line)
	if matches == nil {
		return c.fail(400)
	}
	c.request.Method = strings.ToUpper(matches[1])
	// Paths never treat '+' as an encoded space.
	c.request.Path = URLDecode(matches[2], false)
	c.request.Version = matches[4]
	for _, pair := range Split(matches[3], "&") {
		eq := strings.IndexByte(pair, '=')
		if eq < 0 {
			return c.fail(400)
		}
		key := URLDecode(pair[:eq], true)
		val := URLDecode(pair[eq+1:], true)
		c.request.SetParam(key, val)
	}
	return true
}

func (c *HTTPContext) recvLine(buf *buffer.Buffer) bool {
	if c.recvStatus != RecvLine {
		return false
	}
	line := buf.GetLineAndPop()
	if len(line) == 0 {
		if buf.Readable() > MaxLine {
			return c.fail(414)
		}
		// Less than a line buffered; wait for more bytes.
		return true
	}
	if len(line) > MaxLine {
		return c.fail(414)
	}
	if !c.parseLine(line) {
		return false
	}
	c.recvStatus = RecvHead
	return true
}

func (c *HTTPContext) parseHead(line string) bool {
	line = strings.TrimRight(line, "\r\n")
	sep := strings.Index(line, ": ")
	if sep < 0 {
		return c.fail(400)
	}
	c.request.SetHeader(line[:sep], line[sep+2:])
	return true
}

func (c *HTTPContext) recvHead(buf *buffer.Buffer) bool {
	if c.recvStatus != RecvHead {
		return false
	}
	for {
		line := buf.GetLineAndPop()
		if len(line) == 0 {
			if buf.Readable() > MaxLine {
				return c.fail(414)
			}
			return true
		}
		if len(line) > MaxLine {
			return c.fail(414)
		}
		if line == "\n" || line == "\r\n" {
			break
		}
		if !c.parseHead(line) {
			return false
		}
	}
	c.recvStatus = RecvBody
	return true
}

func (c *HTTPContext) recvBody(buf *buffer.Buffer) bool {
	if c.recvStatus != RecvBody {
		return false
	}
	contentLength, err := c.request.ContentLength()
	if err != nil {
		return c.fail(400)
	}
	if contentLength == 0 {
		c.recvStatus = RecvOver
		return true
	}
	needed := contentLength - len(c.request.Body)
	if buf.Readable() >= needed {
		c.request.Body += buf.ReadStringAndPop(needed)
		c.recvStatus = RecvOver
		return true
	}
	c.request.Body += buf.ReadStringAndPop(buf.Readable())
	return true
}

// RecvHTTPRequest consumes as much of buf as the current stage chain
// allows. The stages run in sequence within a single call whenever the
// data is already buffered, so a complete pipelined request parses in
// one pass.
func (c *HTTPContext) RecvHTTPRequest(buf *buffer.Buffer) {
	if c.recvStatus == RecvLine {
		if !c.recvLine(buf) {
			return
		}
	}
	if c.recvStatus == RecvHead {
		if !c.recvHead(buf) {
			return
		}
	}
	if c.recvStatus == RecvBody {
		c.recvBody(buf)
	}
}
