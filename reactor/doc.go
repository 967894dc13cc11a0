// File: reactor/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package reactor implements the single-threaded event-loop runtime:
// an epoll readiness demultiplexer, per-descriptor Channels, a hashed
// timing wheel driven by a kernel periodic timer, and a pool of worker
// loops pinned to OS threads.
//
// Every descriptor is owned by exactly one EventLoop. All mutation of a
// Channel, its callbacks and its timers happens on that loop's thread;
// cross-thread callers marshal through RunInLoop or QueueInLoop, which
// wake the loop through an eventfd.
package reactor
