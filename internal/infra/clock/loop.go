package clock

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Loop is an Executor backed by one goroutine. Posted callbacks run in FIFO
// order; Post never blocks, so callbacks may post further work.
type Loop struct {
	clock  Clock
	mu     sync.Mutex
	queue  []func()
	wake   chan struct{}
	closed bool
}

// NewLoop creates a loop driven by c. Call Run to start executing.
func NewLoop(c Clock) *Loop {
	return &Loop{clock: c, wake: make(chan struct{}, 1)}
}

func (l *Loop) Now() time.Time { return l.clock.Now() }

// AfterFunc schedules f on the loop goroutine after d. Stopping the returned
// timer also discards a callback that already fired but has not run yet.
func (l *Loop) AfterFunc(d time.Duration, f func()) Timer {
	t := &loopTimer{}
	t.inner = l.clock.AfterFunc(d, func() {
		l.Post(func() {
			if t.state.CompareAndSwap(timerPending, timerRan) {
				f()
			}
		})
	})
	return t
}

const (
	timerPending int32 = iota
	timerRan
	timerStopped
)

type loopTimer struct {
	inner Timer
	state atomic.Int32
}

// Stop reports whether f was prevented from running.
func (t *loopTimer) Stop() bool {
	t.inner.Stop()
	return t.state.CompareAndSwap(timerPending, timerStopped)
}

// Post appends f to the run queue. Callbacks posted after Run returns are dropped.
func (l *Loop) Post(f func()) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.queue = append(l.queue, f)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Run executes posted callbacks until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	defer func() {
		l.mu.Lock()
		l.closed = true
		l.queue = nil
		l.mu.Unlock()
	}()

	for {
		l.mu.Lock()
		batch := l.queue
		l.queue = nil
		l.mu.Unlock()

		for _, f := range batch {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			f()
		}
		if len(batch) > 0 {
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wake:
		}
	}
}

// Inline is an Executor that runs posted callbacks immediately on the caller's
// goroutine. Paired with a Manual clock it makes engine timing deterministic
// in tests.
type Inline struct {
	Clock Clock
}

// NewInline wraps c.
func NewInline(c Clock) *Inline {
	return &Inline{Clock: c}
}

func (i *Inline) Now() time.Time { return i.Clock.Now() }

func (i *Inline) AfterFunc(d time.Duration, f func()) Timer {
	return i.Clock.AfterFunc(d, f)
}

func (i *Inline) Post(f func()) { f() }
