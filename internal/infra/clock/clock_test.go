package clock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestManualFiresInDeadlineOrder(t *testing.T) {
	m := NewManual(epoch)
	var got []string
	m.AfterFunc(30*time.Millisecond, func() { got = append(got, "c") })
	m.AfterFunc(10*time.Millisecond, func() { got = append(got, "a") })
	m.AfterFunc(10*time.Millisecond, func() { got = append(got, "b") })

	m.Advance(20 * time.Millisecond)
	assert.Equal(t, []string{"a", "b"}, got)
	assert.Equal(t, epoch.Add(20*time.Millisecond), m.Now())

	m.Advance(10 * time.Millisecond)
	assert.Equal(t, []string{"a", "b", "c"}, got)
	assert.Zero(t, m.Pending())
}

func TestManualChainedTimersWithinWindow(t *testing.T) {
	m := NewManual(epoch)
	count := 0
	var tick func()
	tick = func() {
		count++
		m.AfterFunc(10*time.Millisecond, tick)
	}
	m.AfterFunc(10*time.Millisecond, tick)

	m.Advance(55 * time.Millisecond)
	assert.Equal(t, 5, count)
	assert.Equal(t, 1, m.Pending())
}

func TestManualStop(t *testing.T) {
	m := NewManual(epoch)
	fired := false
	timer := m.AfterFunc(time.Second, func() { fired = true })
	assert.True(t, timer.Stop())
	assert.False(t, timer.Stop())
	m.Advance(2 * time.Second)
	assert.False(t, fired)
}

func TestManualNowInsideCallback(t *testing.T) {
	m := NewManual(epoch)
	var at time.Time
	m.AfterFunc(40*time.Millisecond, func() { at = m.Now() })
	m.Advance(time.Second)
	assert.Equal(t, epoch.Add(40*time.Millisecond), at)
}

func TestLoopRunsPostedInOrder(t *testing.T) {
	loop := NewLoop(Real())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Run(ctx)

	var mu sync.Mutex
	var got []int
	done := make(chan struct{})
	for i := 0; i < 50; i++ {
		i := i
		loop.Post(func() {
			mu.Lock()
			got = append(got, i)
			n := len(got)
			mu.Unlock()
			if n == 50 {
				close(done)
			}
		})
	}

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("loop did not drain")
	}
	mu.Lock()
	defer mu.Unlock()
	for i, v := range got {
		require.Equal(t, i, v)
	}
}

func TestLoopAfterFuncRunsOnLoop(t *testing.T) {
	loop := NewLoop(Real())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Run(ctx)

	done := make(chan struct{})
	loop.AfterFunc(5*time.Millisecond, func() {
		// Re-entrant post from the loop goroutine must not deadlock.
		loop.Post(func() { close(done) })
	})

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("timer callback never ran")
	}
}

func TestInlinePostRunsImmediately(t *testing.T) {
	ex := NewInline(NewManual(epoch))
	ran := false
	ex.Post(func() { ran = true })
	assert.True(t, ran)
}

func TestLoopStopDiscardsFiredCallback(t *testing.T) {
	m := NewManual(epoch)
	loop := NewLoop(m)

	ran := false
	timer := loop.AfterFunc(10*time.Millisecond, func() { ran = true })
	m.Advance(10 * time.Millisecond) // fired, callback queued on the loop

	assert.True(t, timer.Stop(), "callback had not run yet")
	assert.False(t, timer.Stop(), "second stop is a no-op")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Run(ctx)

	done := make(chan struct{})
	loop.Post(func() { close(done) })
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("loop did not drain")
	}
	assert.False(t, ran)
}

func TestLoopStopAfterRunReportsFalse(t *testing.T) {
	m := NewManual(epoch)
	loop := NewLoop(m)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Run(ctx)

	done := make(chan struct{})
	timer := loop.AfterFunc(time.Millisecond, func() { close(done) })
	m.Advance(time.Millisecond)
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("timer callback never ran")
	}
	assert.False(t, timer.Stop())
}
