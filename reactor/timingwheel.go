//go:build linux
// +build linux

// File: reactor/timingwheel.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Hashed timing wheel: 60 one-second buckets advanced by a timerfd.
// A timer lives while any bucket still references it; dropping the last
// reference fires the task unless canceled and always runs the release
// hook that erases the id index entry.

package reactor

import (
	"encoding/binary"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// wheelCapacity bounds timer delays to 60 seconds at 1-second granularity.
const wheelCapacity = 60

type timerTask struct {
	id       uint64
	delay    int
	canceled bool
	refs     int // bucket references; last drop fires
	task     Functor
	release  Functor
}

// TimingWheel schedules one-shot timers with O(1) add, refresh and
// cancel. All mutation happens on the owning loop; the exported Timer*
// methods marshal through RunInLoop.
type TimingWheel struct {
	tick    int
	wheel   [wheelCapacity][]*timerTask
	timers  map[uint64]*timerTask // id index; release erases entries
	loop    *EventLoop
	timerFd int
	channel *Channel
}

// newTimingWheel creates the periodic timerfd and hooks its Channel
// into the loop. Timerfd creation failure is a fatal boot error.
func newTimingWheel(loop *EventLoop) *TimingWheel {
	tfd, err := unix.TimerfdCreate(unix.CLOCK_MONOTONIC, unix.TFD_CLOEXEC|unix.TFD_NONBLOCK)
	if err != nil {
		logrus.Fatalf("timerfd create failed: %v", err)
	}
	spec := unix.ItimerSpec{
		Value:    unix.Timespec{Sec: 1},
		Interval: unix.Timespec{Sec: 1},
	}
	if err := unix.TimerfdSettime(tfd, 0, &spec, nil); err != nil {
		logrus.Fatalf("timerfd settime failed: %v", err)
	}
	tw := &TimingWheel{
		timers:  make(map[uint64]*timerTask),
		loop:    loop,
		timerFd: tfd,
	}
	tw.channel = NewChannel(loop, tfd)
	tw.channel.SetReadCallback(tw.onTime)
	tw.channel.EnableRead()
	return tw
}

// readTimerFd returns how many ticks expired since the last read. Event
// handling elsewhere on the loop can delay the read past several
// expirations; the counter catches the wheel up.
func (tw *TimingWheel) readTimerFd() int {
	var buf [8]byte
	if _, err := unix.Read(tw.timerFd, buf[:]); err != nil {
		if err == unix.EINTR || err == unix.EAGAIN {
			return 0
		}
		logrus.Fatalf("timerfd read failed: %v", err)
	}
	return int(binary.NativeEndian.Uint64(buf[:]))
}

func (tw *TimingWheel) onTime() {
	times := tw.readTimerFd()
	for i := 0; i < times; i++ {
		tw.advance()
	}
}

// advance moves the tick one slot and drops the new slot's references.
// A task whose reference count reaches zero has not been refreshed for
// a full delay: it fires unless canceled, and its release hook erases
// the id index entry.
func (tw *TimingWheel) advance() {
	tw.tick = (tw.tick + 1) % wheelCapacity
	slot := tw.wheel[tw.tick]
	tw.wheel[tw.tick] = nil
	for _, t := range slot {
		t.refs--
		if t.refs > 0 {
			continue
		}
		if !t.canceled {
			t.task()
		}
		t.release()
	}
}

func (tw *TimingWheel) timerAddInLoop(id uint64, delay int, task Functor) {
	if delay <= 0 || delay > wheelCapacity {
		logrus.Errorf("timer id=%d delay=%d outside wheel range, dropped", id, delay)
		return
	}
	t := &timerTask{id: id, delay: delay, task: task}
	t.release = func() { delete(tw.timers, id) }
	pos := (tw.tick + delay) % wheelCapacity
	t.refs++
	tw.wheel[pos] = append(tw.wheel[pos], t)
	tw.timers[id] = t
}

// timerRefreshInLoop pushes a second bucket reference for the timer, so
// the earlier bucket's drop no longer releases it. Refreshing an
// unknown or already-released id is silently ignored.
func (tw *TimingWheel) timerRefreshInLoop(id uint64) {
	t, ok := tw.timers[id]
	if !ok {
		return
	}
	pos := (tw.tick + t.delay) % wheelCapacity
	t.refs++
	tw.wheel[pos] = append(tw.wheel[pos], t)
}

func (tw *TimingWheel) timerCancelInLoop(id uint64) {
	if t, ok := tw.timers[id]; ok {
		t.canceled = true
	}
}

// TimerAdd schedules task under id after delay seconds, 0 < delay <= 60.
func (tw *TimingWheel) TimerAdd(id uint64, delay int, task Functor) {
	tw.loop.RunInLoop(func() { tw.timerAddInLoop(id, delay, task) })
}

// TimerRefresh restarts the timer's full delay from now.
func (tw *TimingWheel) TimerRefresh(id uint64) {
	tw.loop.RunInLoop(func() { tw.timerRefreshInLoop(id) })
}

// TimerCancel marks the timer canceled; the pending task never runs.
func (tw *TimingWheel) TimerCancel(id uint64) {
	tw.loop.RunInLoop(func() { tw.timerCancelInLoop(id) })
}

// HasTimer reports whether id is registered and not yet released. It
// reads loop-owned state and must only be called on the loop thread.
func (tw *TimingWheel) HasTimer(id uint64) bool {
	_, ok := tw.timers[id]
	return ok
}
