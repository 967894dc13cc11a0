//go:build linux
// +build linux

// File: reactor/epoll.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Poller wraps an epoll instance and the fd -> Channel registry. It is
// the only component that blocks the owning loop.

package reactor

import (
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

const maxEpollEvents = 1024

// Poller multiplexes readiness over registered Channels. It stores
// non-owning Channel references keyed by descriptor; ownership stays
// with the subsystem that created the Channel.
type Poller struct {
	epfd     int
	events   []unix.EpollEvent
	channels map[int]*Channel
}

// NewPoller creates the epoll instance. Failure to create it is a fatal
// boot error.
func NewPoller() *Poller {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		logrus.Fatalf("epoll create failed: %v", err)
	}
	return &Poller{
		epfd:     epfd,
		events:   make([]unix.EpollEvent, maxEpollEvents),
		channels: make(map[int]*Channel),
	}
}

func (p *Poller) hasChannel(c *Channel) bool {
	_, ok := p.channels[c.Fd()]
	return ok
}

func (p *Poller) ctl(c *Channel, op int) {
	ev := unix.EpollEvent{
		Events: uint32(c.Events()),
		Fd:     int32(c.Fd()),
	}
	if err := unix.EpollCtl(p.epfd, op, c.Fd(), &ev); err != nil {
		logrus.Errorf("epoll ctl fd=%d op=%d failed: %v", c.Fd(), op, err)
	}
}

// UpdateEvent registers the Channel on first use and modifies its event
// mask afterwards.
func (p *Poller) UpdateEvent(c *Channel) {
	if !p.hasChannel(c) {
		p.channels[c.Fd()] = c
		p.ctl(c, unix.EPOLL_CTL_ADD)
		return
	}
	p.ctl(c, unix.EPOLL_CTL_MOD)
}

// RemoveEvent deregisters the Channel. After it returns, Poll never
// reports the Channel again; the caller may close the descriptor.
func (p *Poller) RemoveEvent(c *Channel) {
	delete(p.channels, c.Fd())
	p.ctl(c, unix.EPOLL_CTL_DEL)
}

// Poll blocks until at least one descriptor is ready, copies each fired
// mask into its Channel, and appends the Channel to actives. EINTR
// yields an empty result; any other wait failure is fatal.
func (p *Poller) Poll(actives []*Channel) []*Channel {
	n, err := unix.EpollWait(p.epfd, p.events, -1)
	if err != nil {
		if err == unix.EINTR {
			return actives
		}
		logrus.Fatalf("epoll wait failed: %v", err)
	}
	for i := 0; i < n; i++ {
		c, ok := p.channels[int(p.events[i].Fd)]
		if !ok {
			continue
		}
		c.SetREvents(EventType(p.events[i].Events))
		actives = append(actives, c)
	}
	return actives
}
