//go:build linux
// +build linux

// File: reactor/loopthreadpool.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Worker loops, each on its own locked OS thread. New connections are
// distributed round-robin; with zero workers everything runs on the
// base loop.

package reactor

// LoopThread runs one EventLoop on a dedicated goroutine locked to an
// OS thread. The loop pointer is published through a channel so callers
// never observe a half-constructed loop.
type LoopThread struct {
	ready chan *EventLoop
	loop  *EventLoop
}

func newLoopThread() *LoopThread {
	lt := &LoopThread{ready: make(chan *EventLoop, 1)}
	go lt.run()
	return lt
}

func (lt *LoopThread) run() {
	loop := NewEventLoop()
	lt.ready <- loop
	loop.Run()
}

// GetLoop blocks until the worker published its loop.
func (lt *LoopThread) GetLoop() *EventLoop {
	if lt.loop == nil {
		lt.loop = <-lt.ready
	}
	return lt.loop
}

// LoopThreadPool owns the worker loops of a server. NextLoop falls back
// to the base loop when no workers are configured.
type LoopThreadPool struct {
	threadCount int
	nextIdx     int
	baseLoop    *EventLoop
	threads     []*LoopThread
	loops       []*EventLoop
}

// NewLoopThreadPool returns an empty pool bound to the base loop.
func NewLoopThreadPool(baseLoop *EventLoop) *LoopThreadPool {
	return &LoopThreadPool{baseLoop: baseLoop}
}

// SetThreadCount configures the number of workers created by Create.
func (p *LoopThreadPool) SetThreadCount(count int) { p.threadCount = count }

// Create spawns the workers and waits for each loop to come up.
func (p *LoopThreadPool) Create() {
	if p.threadCount <= 0 {
		return
	}
	p.threads = make([]*LoopThread, p.threadCount)
	p.loops = make([]*EventLoop, p.threadCount)
	for i := 0; i < p.threadCount; i++ {
		p.threads[i] = newLoopThread()
		p.loops[i] = p.threads[i].GetLoop()
	}
}

// NextLoop returns the loop for the next connection, round-robin over
// the workers, or the base loop when the pool is empty.
func (p *LoopThreadPool) NextLoop() *EventLoop {
	if p.threadCount == 0 {
		return p.baseLoop
	}
	p.nextIdx = (p.nextIdx + 1) % p.threadCount
	return p.loops[p.nextIdx]
}
