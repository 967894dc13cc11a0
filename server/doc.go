// File: server/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package server builds the TCP layer on top of the reactor runtime:
// a non-blocking Socket wrapper, the Acceptor on the base loop, the
// per-connection state machine with buffered I/O and idle release, and
// the TCPServer that ties them to a worker-loop pool.
package server
