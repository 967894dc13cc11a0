//go:build linux
// +build linux

// File: server/server.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// TCPServer composes the Acceptor on the base loop, the worker-loop
// pool, and the connection registry.

package server

import (
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/momentics/hioload-http/reactor"
)

func init() {
	// A peer that resets mid-write must not kill the process.
	signal.Ignore(syscall.SIGPIPE)
}

// Functor is a deferred task scheduled on the base loop.
type Functor = reactor.Functor

// TCPServer accepts connections on the base loop and assigns each one
// to a worker loop round-robin. The id -> connection registry is
// touched only from the base loop; worker-side closes hop back to it.
type TCPServer struct {
	nextID                uint64
	port                  int
	timeout               int
	enableInactiveRelease bool
	baseLoop              *reactor.EventLoop
	acceptor              *Acceptor
	pool                  *reactor.LoopThreadPool
	conns                 map[uint64]*Connection

	connectedCallback ConnectedCallback
	messageCallback   MessageCallback
	closedCallback    ClosedCallback
	anyEventCallback  AnyEventCallback
}

// NewTCPServer brings up the base loop and the listening socket on the
// given port. The acceptor starts monitoring immediately; connections
// are parked by the kernel until Start runs the loop.
func NewTCPServer(port int) *TCPServer {
	s := &TCPServer{
		port:     port,
		baseLoop: reactor.NewEventLoop(),
		conns:    make(map[uint64]*Connection),
	}
	s.pool = reactor.NewLoopThreadPool(s.baseLoop)
	s.acceptor = NewAcceptor(s.baseLoop, port)
	s.acceptor.SetAcceptCallback(s.newConnection)
	s.acceptor.Listen()
	return s
}

// SetThreadCount configures the worker-loop count, effective at Start.
func (s *TCPServer) SetThreadCount(count int) { s.pool.SetThreadCount(count) }

// SetConnectedCallback sets the user establishment callback.
func (s *TCPServer) SetConnectedCallback(cb ConnectedCallback) { s.connectedCallback = cb }

// SetMessageCallback sets the user inbound-data callback.
func (s *TCPServer) SetMessageCallback(cb MessageCallback) { s.messageCallback = cb }

// SetClosedCallback sets the user close callback.
func (s *TCPServer) SetClosedCallback(cb ClosedCallback) { s.closedCallback = cb }

// SetAnyEventCallback sets the user any-event callback.
func (s *TCPServer) SetAnyEventCallback(cb AnyEventCallback) { s.anyEventCallback = cb }

// EnableInactiveRelease arms the idle timeout for every future
// connection.
func (s *TCPServer) EnableInactiveRelease(timeout int) {
	s.timeout = timeout
	s.enableInactiveRelease = true
}

// RunAfter schedules a one-shot task on the base loop's timing wheel
// after delay seconds.
func (s *TCPServer) RunAfter(task Functor, delay int) {
	s.baseLoop.RunInLoop(func() { s.runAfterInLoop(task, delay) })
}

// ConnectionCount reports the registry size. Base loop only; tests
// reach it through RunAfter or RunInLoop hops.
func (s *TCPServer) ConnectionCount() int { return len(s.conns) }

// BaseLoop exposes the accept loop, e.g. for scheduling maintenance.
func (s *TCPServer) BaseLoop() *reactor.EventLoop { return s.baseLoop }

// Start creates the worker pool and enters the base loop. It never
// returns.
func (s *TCPServer) Start() {
	s.pool.Create()
	logrus.Debugf("tcp server listening on port %d", s.port)
	s.baseLoop.Run()
}

func (s *TCPServer) runAfterInLoop(task Functor, delay int) {
	s.nextID++
	s.baseLoop.TimerAdd(s.nextID, delay, task)
}

// newConnection runs on the base loop for every accepted descriptor.
func (s *TCPServer) newConnection(fd int) {
	s.nextID++
	conn := NewConnection(s.pool.NextLoop(), s.nextID, fd)
	conn.SetMessageCallback(s.messageCallback)
	conn.SetClosedCallback(s.closedCallback)
	conn.SetConnectedCallback(s.connectedCallback)
	conn.SetAnyEventCallback(s.anyEventCallback)
	conn.SetSrvClosedCallback(s.removeConnection)
	if s.enableInactiveRelease {
		conn.EnableInactiveRelease(s.timeout)
	}
	conn.Established()
	s.conns[s.nextID] = conn
}

func (s *TCPServer) removeConnectionInLoop(conn *Connection) {
	delete(s.conns, conn.ID())
}

// removeConnection hops to the base loop, the registry's only writer.
func (s *TCPServer) removeConnection(conn *Connection) {
	s.baseLoop.RunInLoop(func() { s.removeConnectionInLoop(conn) })
}
