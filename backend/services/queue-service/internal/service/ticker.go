package service

import (
	"sync"
	"time"

	"chargequeue/backend/services/queue-service/internal/clock"
)

// ticker re-arms a clock callback after every run until stopped.
type ticker struct {
	clock   clock.Clock
	every   time.Duration
	fn      func()
	onPanic func(interface{})

	mu      sync.Mutex
	timer   clock.Timer
	stopped bool
}

func startTicker(clk clock.Clock, every time.Duration, fn func(), onPanic func(interface{})) *ticker {
	t := &ticker{clock: clk, every: every, fn: fn, onPanic: onPanic}
	t.arm()
	return t
}

func (t *ticker) arm() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	t.timer = t.clock.AfterFunc(t.every, t.fire)
}

func (t *ticker) fire() {
	t.mu.Lock()
	stopped := t.stopped
	t.mu.Unlock()
	if stopped {
		return
	}
	t.run()
	t.arm()
}

func (t *ticker) run() {
	defer func() {
		if r := recover(); r != nil && t.onPanic != nil {
			t.onPanic(r)
		}
	}()
	t.fn()
}

// Stop cancels the pending run. A run already in progress finishes but does not re-arm.
func (t *ticker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
	if t.timer != nil {
		t.timer.Stop()
	}
}
