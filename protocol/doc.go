// File: protocol/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package protocol implements the HTTP/1.x application layer on top of
// the TCP server: an incremental request parser, a response builder,
// regex routing with static-file dispatch, and the per-connection
// protocol loop.
package protocol
