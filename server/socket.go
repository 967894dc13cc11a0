//go:build linux
// +build linux

// File: server/socket.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Thin wrapper over a non-blocking IPv4 stream socket.

package server

import (
	"fmt"
	"io"
	"net"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// MaxListen is the default listen backlog.
const MaxListen = 1024

// Socket wraps one stream-socket descriptor. The framework reads and
// writes through the NonBlock variants with explicit MSG_DONTWAIT, so
// accepted sockets may stay in their default blocking mode.
type Socket struct {
	fd int
}

// NewSocket returns a Socket without a descriptor.
func NewSocket() *Socket { return &Socket{fd: -1} }

// FromFd wraps an existing descriptor, typically one from Accept.
func FromFd(fd int) *Socket { return &Socket{fd: fd} }

// Fd returns the wrapped descriptor.
func (s *Socket) Fd() int { return s.fd }

// Create opens an IPv4 TCP socket.
func (s *Socket) Create() error {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, unix.IPPROTO_TCP)
	if err != nil {
		return fmt.Errorf("socket create: %w", err)
	}
	s.fd = fd
	return nil
}

func sockaddr(ip string, port int) (*unix.SockaddrInet4, error) {
	parsed := net.ParseIP(ip).To4()
	if parsed == nil {
		return nil, fmt.Errorf("not an IPv4 address: %q", ip)
	}
	sa := &unix.SockaddrInet4{Port: port}
	copy(sa.Addr[:], parsed)
	return sa, nil
}

// Bind attaches the socket to the given address and port.
func (s *Socket) Bind(ip string, port int) error {
	sa, err := sockaddr(ip, port)
	if err != nil {
		return err
	}
	if err := unix.Bind(s.fd, sa); err != nil {
		return fmt.Errorf("bind %s:%d: %w", ip, port, err)
	}
	return nil
}

// Listen starts accepting with the given backlog.
func (s *Socket) Listen(backlog int) error {
	if err := unix.Listen(s.fd, backlog); err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	return nil
}

// Connect dials the given server address.
func (s *Socket) Connect(ip string, port int) error {
	sa, err := sockaddr(ip, port)
	if err != nil {
		return err
	}
	if err := unix.Connect(s.fd, sa); err != nil {
		return fmt.Errorf("connect %s:%d: %w", ip, port, err)
	}
	return nil
}

// Accept takes one pending connection and returns its descriptor.
func (s *Socket) Accept() (int, error) {
	nfd, _, err := unix.Accept(s.fd)
	if err != nil {
		return -1, fmt.Errorf("accept: %w", err)
	}
	return nfd, nil
}

// Recv reads into buf. EAGAIN and EINTR read as zero-byte progress with
// no error; an orderly peer shutdown reads as io.EOF, which callers
// route to the close path.
func (s *Socket) Recv(buf []byte, flags int) (int, error) {
	n, _, err := unix.Recvfrom(s.fd, buf, flags)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EINTR {
			return 0, nil
		}
		return 0, fmt.Errorf("recv: %w", err)
	}
	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}

// NonBlockRecv reads without blocking regardless of socket mode.
func (s *Socket) NonBlockRecv(buf []byte) (int, error) {
	return s.Recv(buf, unix.MSG_DONTWAIT)
}

// Send writes buf. EAGAIN and EINTR count as zero-byte progress.
func (s *Socket) Send(buf []byte, flags int) (int, error) {
	n, err := unix.SendmsgN(s.fd, buf, nil, nil, flags)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EINTR {
			return 0, nil
		}
		return 0, fmt.Errorf("send: %w", err)
	}
	return n, nil
}

// NonBlockSend writes without blocking regardless of socket mode.
func (s *Socket) NonBlockSend(buf []byte) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}
	return s.Send(buf, unix.MSG_DONTWAIT)
}

// Close releases the descriptor; safe to call twice.
func (s *Socket) Close() {
	if s.fd != -1 {
		unix.Close(s.fd)
		s.fd = -1
	}
}

// ReuseAddress enables SO_REUSEADDR and SO_REUSEPORT.
func (s *Socket) ReuseAddress() {
	if err := unix.SetsockoptInt(s.fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		logrus.Errorf("setsockopt SO_REUSEADDR: %v", err)
	}
	if err := unix.SetsockoptInt(s.fd, unix.SOL_SOCKET, unix.SO_REUSEPORT, 1); err != nil {
		logrus.Errorf("setsockopt SO_REUSEPORT: %v", err)
	}
}

// NonBlock switches the descriptor to non-blocking mode.
func (s *Socket) NonBlock() {
	if err := unix.SetNonblock(s.fd, true); err != nil {
		logrus.Errorf("set nonblock: %v", err)
	}
}

// CreateServer opens, configures, binds and listens a server socket.
func (s *Socket) CreateServer(port int, ip string, nonBlock bool) error {
	if err := s.Create(); err != nil {
		return err
	}
	if nonBlock {
		s.NonBlock()
	}
	s.ReuseAddress()
	if err := s.Bind(ip, port); err != nil {
		return err
	}
	return s.Listen(MaxListen)
}

// CreateClient opens a socket and connects it to the given server.
func (s *Socket) CreateClient(port int, ip string) error {
	if err := s.Create(); err != nil {
		return err
	}
	return s.Connect(ip, port)
}
