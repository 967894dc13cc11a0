//go:build linux
// +build linux

// File: reactor/channel.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Channel binds a file descriptor to the set of events its owner wants
// monitored, the set of events the poller reported, and the callbacks
// dispatched for them.

package reactor

import "golang.org/x/sys/unix"

// EventType is a bit mask over the kernel readiness events a Channel
// monitors or received.
type EventType uint32

const (
	// EventReadable fires when the descriptor has data to read.
	EventReadable EventType = unix.EPOLLIN
	// EventWritable fires when the descriptor accepts writes.
	EventWritable EventType = unix.EPOLLOUT
	// EventError fires on a descriptor error condition.
	EventError EventType = unix.EPOLLERR
	// EventHangup fires when both directions are shut down.
	EventHangup EventType = unix.EPOLLHUP
	// EventPeerClosed fires when the peer half-closed its write side.
	EventPeerClosed EventType = unix.EPOLLRDHUP
	// EventPriority fires on urgent out-of-band data.
	EventPriority EventType = unix.EPOLLPRI
)

// EventCallback is invoked on the owning loop when its event fires.
type EventCallback func()

// Channel associates one file descriptor with its wanted-event mask,
// the last fired-event mask, and per-event callbacks. A Channel is
// registered with at most one Poller; Remove must precede closing the
// descriptor.
type Channel struct {
	fd      int
	loop    *EventLoop
	events  EventType // events the owner wants monitored
	revents EventType // events the poller reported

	readCallback  EventCallback
	writeCallback EventCallback
	errorCallback EventCallback
	closeCallback EventCallback
	eventCallback EventCallback // fired on every wakeup, after the specific callbacks
}

// NewChannel returns an unmonitored Channel for fd owned by loop.
func NewChannel(loop *EventLoop, fd int) *Channel {
	return &Channel{fd: fd, loop: loop}
}

// Fd returns the monitored descriptor.
func (c *Channel) Fd() int { return c.fd }

// Events returns the wanted-event mask.
func (c *Channel) Events() EventType { return c.events }

// SetREvents records the fired-event mask reported by the poller.
func (c *Channel) SetREvents(ev EventType) { c.revents = ev }

// SetReadCallback sets the callback for readable events.
func (c *Channel) SetReadCallback(cb EventCallback) { c.readCallback = cb }

// SetWriteCallback sets the callback for writable events.
func (c *Channel) SetWriteCallback(cb EventCallback) { c.writeCallback = cb }

// SetErrorCallback sets the callback for error events.
func (c *Channel) SetErrorCallback(cb EventCallback) { c.errorCallback = cb }

// SetCloseCallback sets the callback for hangup events.
func (c *Channel) SetCloseCallback(cb EventCallback) { c.closeCallback = cb }

// SetEventCallback sets the any-event callback, which runs on every
// wakeup after the specific callbacks. Idle-timer refresh hangs off it.
func (c *Channel) SetEventCallback(cb EventCallback) { c.eventCallback = cb }

// WantRead reports whether readable events are monitored.
func (c *Channel) WantRead() bool { return c.events&EventReadable != 0 }

// WantWrite reports whether writable events are monitored.
func (c *Channel) WantWrite() bool { return c.events&EventWritable != 0 }

// EnableRead starts monitoring readable events.
func (c *Channel) EnableRead() {
	c.events |= EventReadable
	c.update()
}

// EnableWrite starts monitoring writable events.
func (c *Channel) EnableWrite() {
	c.events |= EventWritable
	c.update()
}

// DisableRead stops monitoring readable events.
func (c *Channel) DisableRead() {
	c.events &^= EventReadable
	c.update()
}

// DisableWrite stops monitoring writable events.
func (c *Channel) DisableWrite() {
	c.events &^= EventWritable
	c.update()
}

// DisableAll clears the wanted-event mask.
func (c *Channel) DisableAll() {
	c.events = 0
	c.update()
}

// Remove deregisters the Channel from its loop's poller.
func (c *Channel) Remove() { c.loop.RemoveEvent(c) }

func (c *Channel) update() { c.loop.UpdateEvent(c) }

// HandleEvent dispatches the fired events. Read runs for readable,
// peer-half-close and priority; write for writable; otherwise error,
// otherwise hangup. The any-event callback runs last on every wakeup,
// including error paths, so activity tracking never misses an event.
func (c *Channel) HandleEvent() {
	if c.revents&(EventReadable|EventPeerClosed|EventPriority) != 0 {
		if c.readCallback != nil {
			c.readCallback()
		}
	}
	if c.revents&EventWritable != 0 {
		if c.writeCallback != nil {
			c.writeCallback()
		}
	} else if c.revents&EventError != 0 {
		if c.errorCallback != nil {
			c.errorCallback()
		}
	} else if c.revents&EventHangup != 0 {
		if c.closeCallback != nil {
			c.closeCallback()
		}
	}
	if c.eventCallback != nil {
		c.eventCallback()
	}
}
