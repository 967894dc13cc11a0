//go:build linux
// +build linux

// File: reactor/eventloop.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// EventLoop is the single-owner executor: one OS thread, one poller,
// one timing wheel, one cross-thread task queue woken by an eventfd.

package reactor

import (
	"encoding/binary"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/eapache/queue"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// Functor is a deferred unit of work executed on the loop thread.
type Functor func()

// EventLoop owns every Channel registered with its poller. Descriptor
// state, buffers and timers bound to the loop are mutated only on the
// loop's thread; other threads hand work over via RunInLoop or
// QueueInLoop.
type EventLoop struct {
	tid atomic.Int64 // OS thread id of the running loop, 0 before Run

	eventFd      int
	eventChannel *Channel
	poller       *Poller

	mu    sync.Mutex
	tasks *queue.Queue // pending Functors, FIFO

	wheel *TimingWheel
}

// NewEventLoop constructs a loop with its poller, wakeup eventfd and
// timing wheel. Eventfd creation failure is a fatal boot error.
func NewEventLoop() *EventLoop {
	efd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		logrus.Fatalf("eventfd create failed: %v", err)
	}
	l := &EventLoop{
		eventFd: efd,
		poller:  NewPoller(),
		tasks:   queue.New(),
	}
	l.eventChannel = NewChannel(l, efd)
	l.eventChannel.SetReadCallback(l.readEventFd)
	l.eventChannel.EnableRead()
	l.wheel = newTimingWheel(l)
	return l
}

// Run pins the loop to the current OS thread and cycles forever:
// poll readiness, dispatch fired Channels, drain the task queue.
func (l *EventLoop) Run() {
	runtime.LockOSThread()
	l.tid.Store(int64(unix.Gettid()))

	var actives []*Channel
	for {
		actives = l.poller.Poll(actives[:0])
		for _, c := range actives {
			c.HandleEvent()
		}
		l.runAllTasks()
	}
}

// InLoop reports whether the caller runs on the loop's thread. Before
// Run starts it is false for every caller, so early mutators enqueue
// and execute once the loop comes up.
func (l *EventLoop) InLoop() bool {
	return l.tid.Load() == int64(unix.Gettid())
}

// AssertInLoop panics when called off the loop thread.
func (l *EventLoop) AssertInLoop() {
	if !l.InLoop() {
		panic("reactor: operation requires the owning loop thread")
	}
}

// RunInLoop executes fn synchronously when on the loop thread and
// enqueues it otherwise.
func (l *EventLoop) RunInLoop(fn Functor) {
	if l.InLoop() {
		fn()
		return
	}
	l.QueueInLoop(fn)
}

// QueueInLoop appends fn to the task queue and wakes the loop. Queue
// order is preserved per loop.
func (l *EventLoop) QueueInLoop(fn Functor) {
	l.mu.Lock()
	l.tasks.Add(fn)
	l.mu.Unlock()
	l.wakeup()
}

// runAllTasks swaps the pending tasks out under the lock and executes
// them outside it, in FIFO order.
func (l *EventLoop) runAllTasks() {
	var pending []Functor
	l.mu.Lock()
	for l.tasks.Length() > 0 {
		pending = append(pending, l.tasks.Remove().(Functor))
	}
	l.mu.Unlock()
	for _, fn := range pending {
		fn()
	}
}

// wakeup bumps the eventfd counter; concurrent writes coalesce into a
// single readable event.
func (l *EventLoop) wakeup() {
	var one [8]byte
	binary.NativeEndian.PutUint64(one[:], 1)
	if _, err := unix.Write(l.eventFd, one[:]); err != nil && err != unix.EINTR && err != unix.EAGAIN {
		logrus.Errorf("eventfd write failed: %v", err)
	}
}

// readEventFd drains the coalesced wakeup counter.
func (l *EventLoop) readEventFd() {
	var buf [8]byte
	if _, err := unix.Read(l.eventFd, buf[:]); err != nil && err != unix.EINTR && err != unix.EAGAIN {
		logrus.Errorf("eventfd read failed: %v", err)
	}
}

// UpdateEvent reconciles the poller with the Channel's wanted mask.
func (l *EventLoop) UpdateEvent(c *Channel) { l.poller.UpdateEvent(c) }

// RemoveEvent deregisters the Channel from the poller.
func (l *EventLoop) RemoveEvent(c *Channel) { l.poller.RemoveEvent(c) }

// TimerAdd schedules task to fire once after delay seconds under id.
func (l *EventLoop) TimerAdd(id uint64, delay int, task Functor) { l.wheel.TimerAdd(id, delay, task) }

// TimerRefresh postpones the timer registered under id by its original
// delay, measured from now.
func (l *EventLoop) TimerRefresh(id uint64) { l.wheel.TimerRefresh(id) }

// TimerCancel marks the timer under id canceled; its task never runs.
func (l *EventLoop) TimerCancel(id uint64) { l.wheel.TimerCancel(id) }

// HasTimer reports whether a live timer is registered under id. Loop
// thread only.
func (l *EventLoop) HasTimer(id uint64) bool { return l.wheel.HasTimer(id) }
