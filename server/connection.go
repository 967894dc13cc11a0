//go:build linux
// +build linux

// File: server/connection.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Per-connection state machine. Every field is owned by the
// connection's loop; public mutators hop there via RunInLoop.

package server

import (
	"io"

	"github.com/sirupsen/logrus"

	"github.com/momentics/hioload-http/core/buffer"
	"github.com/momentics/hioload-http/pool"
	"github.com/momentics/hioload-http/reactor"
)

// ConnState tracks the connection lifecycle.
type ConnState int

const (
	// Disconnected: released; the descriptor is closed.
	Disconnected ConnState = iota
	// Connecting: accepted but not yet wired into its loop.
	Connecting
	// Connected: established, read monitoring on.
	Connected
	// Disconnecting: shutting down, draining pending output.
	Disconnecting
)

// Callback types wired by the server layer and the application.
type (
	ConnectedCallback func(*Connection)
	MessageCallback   func(*Connection, *buffer.Buffer)
	ClosedCallback    func(*Connection)
	AnyEventCallback  func(*Connection)
)

// readBufPool serves the scratch buffer for each readable event.
var readBufPool = pool.NewBytePool(64 * 1024)

// Connection owns one accepted socket, its Channel, and the input and
// output buffers. The idle timer in the owning loop's wheel is keyed by
// the connection id and refreshed from the any-event callback.
type Connection struct {
	id                    uint64
	fd                    int
	enableInactiveRelease bool
	loop                  *reactor.EventLoop
	state                 ConnState
	socket                *Socket
	channel               *reactor.Channel
	inBuffer              *buffer.Buffer
	outBuffer             *buffer.Buffer
	context               any

	connectedCallback ConnectedCallback
	messageCallback   MessageCallback
	closedCallback    ClosedCallback
	anyEventCallback  AnyEventCallback

	// set by TCPServer to erase the connection from its registry
	srvClosedCallback ClosedCallback
}

// NewConnection wraps an accepted descriptor, bound to loop under id.
func NewConnection(loop *reactor.EventLoop, id uint64, fd int) *Connection {
	c := &Connection{
		id:        id,
		fd:        fd,
		loop:      loop,
		state:     Connecting,
		socket:    FromFd(fd),
		inBuffer:  buffer.New(),
		outBuffer: buffer.New(),
	}
	c.channel = reactor.NewChannel(loop, fd)
	c.channel.SetReadCallback(c.handleRead)
	c.channel.SetWriteCallback(c.handleWrite)
	c.channel.SetErrorCallback(c.handleError)
	c.channel.SetCloseCallback(c.handleClose)
	c.channel.SetEventCallback(c.handleEvent)
	return c
}

// Fd returns the connection's descriptor.
func (c *Connection) Fd() int { return c.fd }

// ID returns the connection id, which doubles as its idle-timer id.
func (c *Connection) ID() uint64 { return c.id }

// Loop returns the owning event loop.
func (c *Connection) Loop() *reactor.EventLoop { return c.loop }

// Connected reports whether the connection is fully established.
func (c *Connection) Connected() bool { return c.state == Connected }

// Context returns the opaque per-connection protocol state.
func (c *Connection) Context() any { return c.context }

// SetContext stores opaque per-connection protocol state.
func (c *Connection) SetContext(ctx any) { c.context = ctx }

// SetConnectedCallback sets the establishment callback.
func (c *Connection) SetConnectedCallback(cb ConnectedCallback) { c.connectedCallback = cb }

// SetMessageCallback sets the inbound-data callback.
func (c *Connection) SetMessageCallback(cb MessageCallback) { c.messageCallback = cb }

// SetClosedCallback sets the user close callback.
func (c *Connection) SetClosedCallback(cb ClosedCallback) { c.closedCallback = cb }

// SetAnyEventCallback sets the callback fired on every wakeup.
func (c *Connection) SetAnyEventCallback(cb AnyEventCallback) { c.anyEventCallback = cb }

// SetSrvClosedCallback sets the internal server close hook.
func (c *Connection) SetSrvClosedCallback(cb ClosedCallback) { c.srvClosedCallback = cb }

// handleRead drains one non-blocking read into the input buffer and
// hands accumulated bytes to the message callback.
func (c *Connection) handleRead() {
	buf := readBufPool.GetBuffer()
	defer readBufPool.PutBuffer(buf)

	n, err := c.socket.NonBlockRecv(buf)
	if err == io.EOF {
		// Orderly peer shutdown: deliver what is buffered, then release.
		c.handleClose()
		return
	}
	if err != nil {
		c.shutdownInLoop()
		return
	}
	c.inBuffer.WriteAndPush(buf[:n])
	if c.inBuffer.Readable() > 0 && c.messageCallback != nil {
		c.messageCallback(c, c.inBuffer)
	}
}

// handleWrite flushes the output buffer. On full drain it stops write
// monitoring and completes a pending shutdown.
func (c *Connection) handleWrite() {
	n, err := c.socket.NonBlockSend(c.outBuffer.ReadPosition())
	if err != nil {
		if c.inBuffer.Readable() > 0 && c.messageCallback != nil {
			c.messageCallback(c, c.inBuffer)
		}
		c.Release()
		return
	}
	c.outBuffer.MoveReadOffset(n)
	if c.outBuffer.Readable() == 0 {
		c.channel.DisableWrite()
		if c.state == Disconnecting {
			c.Release()
		}
	}
}

// handleClose delivers any buffered input and releases. A hung-up
// socket cannot carry anything further.
func (c *Connection) handleClose() {
	if c.inBuffer.Readable() > 0 && c.messageCallback != nil {
		c.messageCallback(c, c.inBuffer)
	}
	c.Release()
}

func (c *Connection) handleError() { c.handleClose() }

// handleEvent runs on every wakeup: refresh the idle timer, then the
// user's any-event callback.
func (c *Connection) handleEvent() {
	if c.enableInactiveRelease {
		c.loop.TimerRefresh(c.id)
	}
	if c.anyEventCallback != nil {
		c.anyEventCallback(c)
	}
}

func (c *Connection) establishedInLoop() {
	if c.state != Connecting {
		panic("connection: established on a non-connecting state")
	}
	c.state = Connected
	c.channel.EnableRead()
	if c.connectedCallback != nil {
		c.connectedCallback(c)
	}
}

// releaseInLoop tears the connection down: Channel removal precedes the
// descriptor close, the idle timer is canceled, then the user and
// server close hooks run in that order so the registry entry outlives
// the user callback.
func (c *Connection) releaseInLoop() {
	if c.state == Disconnected {
		return
	}
	c.state = Disconnected
	c.channel.Remove()
	c.socket.Close()
	if c.loop.HasTimer(c.id) {
		c.cancelInactiveReleaseInLoop()
	}
	if c.closedCallback != nil {
		c.closedCallback(c)
	}
	if c.srvClosedCallback != nil {
		c.srvClosedCallback(c)
	}
	logrus.Debugf("release connection id=%d fd=%d", c.id, c.fd)
}

func (c *Connection) sendInLoop(buf *buffer.Buffer) {
	if c.state == Disconnected {
		return
	}
	c.outBuffer.WriteBufferAndPush(buf)
	if !c.channel.WantWrite() {
		c.channel.EnableWrite()
	}
}

// shutdownInLoop enters the half-closed state: residual input is
// delivered, pending output keeps write monitoring until drained, and
// with nothing left the connection releases immediately.
func (c *Connection) shutdownInLoop() {
	c.state = Disconnecting
	if c.inBuffer.Readable() > 0 && c.messageCallback != nil {
		c.messageCallback(c, c.inBuffer)
	}
	if c.outBuffer.Readable() > 0 {
		if !c.channel.WantWrite() {
			c.channel.EnableWrite()
		}
	}
	if c.outBuffer.Readable() == 0 {
		c.Release()
	}
}

func (c *Connection) enableInactiveReleaseInLoop(sec int) {
	c.enableInactiveRelease = true
	if c.loop.HasTimer(c.id) {
		c.loop.TimerRefresh(c.id)
		return
	}
	c.loop.TimerAdd(c.id, sec, c.Release)
}

func (c *Connection) cancelInactiveReleaseInLoop() {
	c.enableInactiveRelease = false
	if c.loop.HasTimer(c.id) {
		c.loop.TimerCancel(c.id)
	}
}

func (c *Connection) upgradeInLoop(ctx any, conn ConnectedCallback, msg MessageCallback,
	closed ClosedCallback, event AnyEventCallback) {
	c.context = ctx
	c.connectedCallback = conn
	c.messageCallback = msg
	c.closedCallback = closed
	c.anyEventCallback = event
}

// Established wires the accepted connection into its loop.
func (c *Connection) Established() {
	c.loop.RunInLoop(c.establishedInLoop)
}

// Send queues data for transmission from any goroutine. The bytes are
// copied before the hop, so the caller's slice may be reused as soon as
// Send returns.
func (c *Connection) Send(data []byte) {
	buf := buffer.New()
	buf.WriteAndPush(data)
	c.loop.RunInLoop(func() { c.sendInLoop(buf) })
}

// Shutdown closes the connection once buffered input is processed and
// buffered output is flushed.
func (c *Connection) Shutdown() {
	c.loop.RunInLoop(c.shutdownInLoop)
}

// Release closes the connection now. Always queued, never run inline,
// so a handler that releases its own connection finishes first.
func (c *Connection) Release() {
	c.loop.QueueInLoop(c.releaseInLoop)
}

// EnableInactiveRelease arms the idle timer: sec seconds without any
// descriptor event release the connection.
func (c *Connection) EnableInactiveRelease(sec int) {
	c.loop.RunInLoop(func() { c.enableInactiveReleaseInLoop(sec) })
}

// CancelInactiveRelease disarms the idle timer.
func (c *Connection) CancelInactiveRelease() {
	c.loop.RunInLoop(c.cancelInactiveReleaseInLoop)
}

// Upgrade swaps the protocol context and all four user callbacks in one
// step. It must run on the loop thread: a queued swap could let an
// event that is already being dispatched feed data to the old protocol.
func (c *Connection) Upgrade(ctx any, conn ConnectedCallback, msg MessageCallback,
	closed ClosedCallback, event AnyEventCallback) {
	c.loop.AssertInLoop()
	c.upgradeInLoop(ctx, conn, msg, closed, event)
}
