// File: protocol/context_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package protocol

import (
	"fmt"
	"strings"
	"testing"

	"github.com/momentics/hioload-http/core/buffer"
)

func feed(c *HTTPContext, data string) *buffer.Buffer {
	buf := buffer.New()
	buf.WriteStringAndPush(data)
	c.RecvHTTPRequest(buf)
	return buf
}

func TestParseCompleteRequest(t *testing.T) {
	c := NewHTTPContext()
	feed(c, "GET /echo?msg=hi%20there&n=1 HTTP/1.1\r\nHost: x\r\nConnection: keep-alive\r\n\r\n")

	if c.RecvStatus() != RecvOver {
		t.Fatalf("RecvStatus = %v, want RecvOver", c.RecvStatus())
	}
	req := c.Request()
	if req.Method != "GET" || req.Path != "/echo" || req.Version != "HTTP/1.1" {
		t.Errorf("request line parsed as %s %s %s", req.Method, req.Path, req.Version)
	}
	if got := req.GetParam("msg"); got != "hi there" {
		t.Errorf("param msg = %q, want %q", got, "hi there")
	}
	if got := req.GetParam("n"); got != "1" {
		t.Errorf("param n = %q", got)
	}
	if got := req.GetHeader("Host"); got != "x" {
		t.Errorf("header Host = %q", got)
	}
	if req.Close() {
		t.Error("keep-alive request reported Close() = true")
	}
}

func TestLowercaseMethodIsUppercased(t *testing.T) {
	c := NewHTTPContext()
	feed(c, "get / HTTP/1.0\r\n\r\n")
	if c.RecvStatus() != RecvOver {
		t.Fatalf("RecvStatus = %v", c.RecvStatus())
	}
	if c.Request().Method != "GET" {
		t.Errorf("Method = %q, want GET", c.Request().Method)
	}
	if !c.Request().Close() {
		t.Error("request without Connection header must close")
	}
}

func TestIncrementalParseResumes(t *testing.T) {
	c := NewHTTPContext()
	buf := buffer.New()

	buf.WriteStringAndPush("POST /upload HTT")
	c.RecvHTTPRequest(buf)
	if c.RecvStatus() != RecvLine {
		t.Fatalf("partial line: RecvStatus = %v, want RecvLine", c.RecvStatus())
	}

	buf.WriteStringAndPush("P/1.1\r\nContent-Length: 5\r\n\r\nab")
	c.RecvHTTPRequest(buf)
	if c.RecvStatus() != RecvBody {
		t.Fatalf("partial body: RecvStatus = %v, want RecvBody", c.RecvStatus())
	}

	buf.WriteStringAndPush("cde")
	c.RecvHTTPRequest(buf)
	if c.RecvStatus() != RecvOver {
		t.Fatalf("RecvStatus = %v, want RecvOver", c.RecvStatus())
	}
	if c.Request().Body != "abcde" {
		t.Errorf("Body = %q, want abcde", c.Request().Body)
	}
}

func TestZeroContentLengthIsOver(t *testing.T) {
	c := NewHTTPContext()
	feed(c, "POST /upload HTTP/1.1\r\nContent-Length: 0\r\n\r\n")
	if c.RecvStatus() != RecvOver {
		t.Errorf("RecvStatus = %v, want RecvOver", c.RecvStatus())
	}
}

func TestMalformedRequestLineIs400(t *testing.T) {
	for _, line := range []string{
		"GOT / HTTP/1.1\r\n\r\n",
		"GET /x HTTP/2.0\r\n\r\n",
		"GET /a?novalue HTTP/1.1\r\n\r\n",
	} {
		c := NewHTTPContext()
		feed(c, line)
		if c.RecvStatus() != RecvError || c.RespStatus() != 400 {
			t.Errorf("%q: status = (%v, %d), want (RecvError, 400)", line, c.RecvStatus(), c.RespStatus())
		}
	}
}

func TestMalformedHeaderIs400(t *testing.T) {
	c := NewHTTPContext()
	feed(c, "GET / HTTP/1.1\r\nBadHeader\r\n\r\n")
	if c.RecvStatus() != RecvError || c.RespStatus() != 400 {
		t.Errorf("status = (%v, %d), want (RecvError, 400)", c.RecvStatus(), c.RespStatus())
	}
}

func TestRequestLineAtMaxLineBoundary(t *testing.T) {
	// A request line of exactly MaxLine bytes, terminator included,
	// must parse; one byte more must fail with 414.
	frame := "GET /%s HTTP/1.1\r\n"
	pad := MaxLine - len(fmt.Sprintf(frame, ""))

	c := NewHTTPContext()
	feed(c, fmt.Sprintf(frame, strings.Repeat("a", pad))+"\r\n")
	if c.RecvStatus() != RecvOver {
		t.Errorf("line of MaxLine bytes: status = (%v, %d), want RecvOver", c.RecvStatus(), c.RespStatus())
	}

	c = NewHTTPContext()
	feed(c, fmt.Sprintf(frame, strings.Repeat("a", pad+1))+"\r\n")
	if c.RecvStatus() != RecvError || c.RespStatus() != 414 {
		t.Errorf("line of MaxLine+1 bytes: status = (%v, %d), want (RecvError, 414)", c.RecvStatus(), c.RespStatus())
	}
}

func TestUnterminatedOversizedLineIs414(t *testing.T) {
	c := NewHTTPContext()
	feed(c, strings.Repeat("a", MaxLine+1))
	if c.RecvStatus() != RecvError || c.RespStatus() != 414 {
		t.Errorf("status = (%v, %d), want (RecvError, 414)", c.RecvStatus(), c.RespStatus())
	}
}

func TestPlusStaysLiteralInPath(t *testing.T) {
	c := NewHTTPContext()
	feed(c, "GET /a+b?q=c+d HTTP/1.1\r\n\r\n")
	if got := c.Request().Path; got != "/a+b" {
		t.Errorf("Path = %q, want /a+b", got)
	}
	if got := c.Request().GetParam("q"); got != "c d" {
		t.Errorf("param q = %q, want %q", got, "c d")
	}
}

func TestResetEqualsFresh(t *testing.T) {
	raw := "GET /again?x=1 HTTP/1.0\r\nHost: y\r\n\r\n"

	used := NewHTTPContext()
	feed(used, "POST /first HTTP/1.1\r\nContent-Length: 3\r\n\r\nabc")
	if used.RecvStatus() != RecvOver {
		t.Fatalf("setup parse failed: %v", used.RecvStatus())
	}
	used.Reset()
	feed(used, raw)

	fresh := NewHTTPContext()
	feed(fresh, raw)

	ur, fr := used.Request(), fresh.Request()
	if used.RecvStatus() != fresh.RecvStatus() ||
		ur.Method != fr.Method || ur.Path != fr.Path ||
		ur.Version != fr.Version || ur.Body != fr.Body ||
		ur.GetParam("x") != fr.GetParam("x") ||
		ur.GetHeader("Host") != fr.GetHeader("Host") {
		t.Error("reset context parsed differently from a fresh one")
	}
}

func TestParseSerializeReparse(t *testing.T) {
	c := NewHTTPContext()
	feed(c, "POST /upload?k=v HTTP/1.1\r\nContent-Length: 4\r\nHost: h\r\n\r\nbody")
	if c.RecvStatus() != RecvOver {
		t.Fatalf("first parse incomplete: %v", c.RecvStatus())
	}
	req := c.Request()

	// Rebuild the wire form from parsed fields and parse it again.
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s?k=v %s\r\n", req.Method, req.Path, req.Version)
	fmt.Fprintf(&b, "Content-Length: %s\r\n", req.GetHeader("Content-Length"))
	fmt.Fprintf(&b, "Host: %s\r\n\r\n%s", req.GetHeader("Host"), req.Body)

	c2 := NewHTTPContext()
	feed(c2, b.String())
	if c2.RecvStatus() != RecvOver {
		t.Fatalf("reparse incomplete: %v", c2.RecvStatus())
	}
	r2 := c2.Request()
	if r2.Method != req.Method || r2.Path != req.Path || r2.Version != req.Version ||
		r2.Body != req.Body || r2.GetParam("k") != req.GetParam("k") ||
		r2.GetHeader("Host") != req.GetHeader("Host") {
		t.Error("reparse produced different fields")
	}
}

func TestLeftoverBytesStayBuffered(t *testing.T) {
	c := NewHTTPContext()
	buf := feed(c, "GET / HTTP/1.1\r\n\r\nGET /next HTTP/1.1\r\n\r\n")
	if c.RecvStatus() != RecvOver {
		t.Fatalf("RecvStatus = %v", c.RecvStatus())
	}
	// The second pipelined request must remain for the next context run.
	if buf.Readable() == 0 {
		t.Error("parser consumed bytes beyond the first request")
	}
	c.Reset()
	c.RecvHTTPRequest(buf)
	if c.RecvStatus() != RecvOver || c.Request().Path != "/next" {
		t.Errorf("second request parse = (%v, %q)", c.RecvStatus(), c.Request().Path)
	}
}
