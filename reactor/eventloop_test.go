//go:build linux
// +build linux

// File: reactor/eventloop_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package reactor

import (
	"testing"
	"time"

	"golang.org/x/sys/unix"
)

func startLoop(t *testing.T) *EventLoop {
	t.Helper()
	loop := NewEventLoop()
	go loop.Run()
	return loop
}

func TestRunInLoopExecutesOnLoopThread(t *testing.T) {
	loop := startLoop(t)

	done := make(chan bool, 1)
	loop.RunInLoop(func() { done <- loop.InLoop() })

	select {
	case inLoop := <-done:
		if !inLoop {
			t.Fatal("task ran off the loop thread")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("task never ran")
	}
	if loop.InLoop() {
		t.Error("InLoop() must be false for the test goroutine")
	}
}

func TestQueueInLoopPreservesFIFO(t *testing.T) {
	loop := startLoop(t)

	const n = 100
	got := make([]int, 0, n)
	done := make(chan struct{})
	for i := 0; i < n; i++ {
		i := i
		loop.QueueInLoop(func() {
			got = append(got, i)
			if len(got) == n {
				close(done)
			}
		})
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("only %d of %d tasks ran", len(got), n)
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("task order broken at %d: got %d", i, v)
		}
	}
}

func TestChannelDispatchAndRemove(t *testing.T) {
	loop := startLoop(t)

	var fds [2]int
	if err := unix.Pipe(fds[:]); err != nil {
		t.Fatalf("pipe: %v", err)
	}
	defer unix.Close(fds[0])
	defer unix.Close(fds[1])

	fired := make(chan struct{}, 8)
	anyEvents := make(chan struct{}, 8)
	var ch *Channel
	loop.RunInLoop(func() {
		ch = NewChannel(loop, fds[0])
		ch.SetReadCallback(func() {
			var b [16]byte
			unix.Read(fds[0], b[:])
			fired <- struct{}{}
		})
		ch.SetEventCallback(func() { anyEvents <- struct{}{} })
		ch.EnableRead()
	})

	unix.Write(fds[1], []byte("x"))
	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("read callback never fired")
	}
	select {
	case <-anyEvents:
	case <-time.After(2 * time.Second):
		t.Fatal("any-event callback must run on every wakeup")
	}

	// Wait until the queued Remove has run before making the pipe readable.
	removed := make(chan struct{})
	loop.RunInLoop(func() {
		ch.Remove()
		close(removed)
	})
	select {
	case <-removed:
	case <-time.After(2 * time.Second):
		t.Fatal("Remove never ran on the loop")
	}
	unix.Write(fds[1], []byte("y"))
	select {
	case <-fired:
		t.Fatal("removed channel still dispatched")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestTimerFiresOnce(t *testing.T) {
	loop := startLoop(t)

	fires := make(chan struct{}, 4)
	loop.TimerAdd(1, 1, func() { fires <- struct{}{} })

	select {
	case <-fires:
	case <-time.After(3 * time.Second):
		t.Fatal("timer never fired")
	}
	select {
	case <-fires:
		t.Fatal("timer fired twice")
	case <-time.After(1500 * time.Millisecond):
	}

	has := make(chan bool, 1)
	loop.RunInLoop(func() { has <- loop.HasTimer(1) })
	if <-has {
		t.Error("fired timer must be erased from the id index")
	}
}

func TestTimerCancelSuppressesTask(t *testing.T) {
	loop := startLoop(t)

	fires := make(chan struct{}, 1)
	loop.TimerAdd(7, 1, func() { fires <- struct{}{} })
	loop.TimerCancel(7)

	select {
	case <-fires:
		t.Fatal("canceled timer ran its task")
	case <-time.After(2500 * time.Millisecond):
	}

	// The release hook still erases the index entry when the bucket drops.
	has := make(chan bool, 1)
	loop.RunInLoop(func() { has <- loop.HasTimer(7) })
	if <-has {
		t.Error("canceled timer must still be released from the id index")
	}
}

func TestTimerRefreshDefersFire(t *testing.T) {
	loop := startLoop(t)

	firedAt := make(chan time.Time, 1)
	start := time.Now()
	loop.TimerAdd(9, 2, func() { firedAt <- time.Now() })

	time.Sleep(1 * time.Second)
	loop.TimerRefresh(9)
	refreshed := time.Now()

	select {
	case at := <-firedAt:
		if at.Sub(refreshed) < 900*time.Millisecond {
			t.Errorf("timer fired %v after refresh, want a full delay (±1 tick)", at.Sub(refreshed))
		}
		if at.Sub(start) < 2*time.Second {
			t.Errorf("timer fired %v after add, before the original delay", at.Sub(start))
		}
	case <-time.After(6 * time.Second):
		t.Fatal("refreshed timer never fired")
	}
}
