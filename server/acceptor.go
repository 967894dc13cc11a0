//go:build linux
// +build linux

// File: server/acceptor.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"github.com/sirupsen/logrus"

	"github.com/momentics/hioload-http/reactor"
)

// AcceptCallback receives the descriptor of each accepted connection.
type AcceptCallback func(fd int)

// Acceptor owns the listening socket and its Channel on the base loop.
// Read monitoring starts in Listen, which must run only after the
// accept callback is set; enabling it earlier races an incoming
// connection against the unset handler and leaks the descriptor.
type Acceptor struct {
	socket  *Socket
	loop    *reactor.EventLoop
	channel *reactor.Channel

	acceptCallback AcceptCallback
}

// NewAcceptor creates the listening socket on the given port. A socket
// that cannot be brought up is a fatal boot error.
func NewAcceptor(loop *reactor.EventLoop, port int) *Acceptor {
	a := &Acceptor{socket: NewSocket(), loop: loop}
	if err := a.socket.CreateServer(port, "0.0.0.0", true); err != nil {
		logrus.Fatalf("acceptor on port %d: %v", port, err)
	}
	a.channel = reactor.NewChannel(loop, a.socket.Fd())
	a.channel.SetReadCallback(a.handleRead)
	return a
}

// SetAcceptCallback installs the new-connection handler.
func (a *Acceptor) SetAcceptCallback(cb AcceptCallback) { a.acceptCallback = cb }

// Listen enables read monitoring on the listening socket.
func (a *Acceptor) Listen() { a.channel.EnableRead() }

// handleRead accepts one connection per readable wakeup and hands the
// descriptor to the callback.
func (a *Acceptor) handleRead() {
	fd, err := a.socket.Accept()
	if err != nil {
		logrus.Errorf("accept failed: %v", err)
		return
	}
	if a.acceptCallback != nil {
		a.acceptCallback(fd)
	}
}
