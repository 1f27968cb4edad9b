package animate

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"thoughtstream/internal/infra/clock"
)

type fakeState struct {
	gen        uint64
	restarting bool
}

func (f *fakeState) Generation() uint64 { return f.gen }
func (f *fakeState) Restarting() bool   { return f.restarting }

type harness struct {
	clock   *clock.Manual
	state   *fakeState
	sched   *Scheduler
	changes int
}

func newHarness() *harness {
	h := &harness{
		clock: clock.NewManual(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)),
		state: &fakeState{},
	}
	h.sched = New(clock.NewInline(h.clock), h.state, Options{}, func() { h.changes++ })
	return h
}

func TestTypesCharactersOneAtATime(t *testing.T) {
	h := newHarness()
	h.sched.Enqueue("abc")

	assert.Equal(t, []string{"a"}, h.sched.Lines())
	assert.True(t, h.sched.Processing())
	assert.True(t, h.sched.Animating())

	h.clock.Advance(time.Second)
	assert.Equal(t, []string{"abc"}, h.sched.Lines())
	assert.False(t, h.sched.Processing())
	assert.False(t, h.sched.Animating())
}

func TestCharacterDelayWithinBounds(t *testing.T) {
	h := newHarness()
	for i := 0; i < 200; i++ {
		d := h.sched.charDelay()
		require.GreaterOrEqual(t, d, DefaultMinCharDelay)
		require.LessOrEqual(t, d, DefaultMaxCharDelay)
	}
}

func TestLineBreaksOpenNewLines(t *testing.T) {
	h := newHarness()
	h.sched.Enqueue("ab\r\ncd\n\nef")
	h.clock.Advance(2 * time.Second)
	assert.Equal(t, []string{"ab", "cd", "", "ef"}, h.sched.Lines())
}

func TestQueueIsFIFO(t *testing.T) {
	h := newHarness()
	h.sched.Enqueue("one ")
	h.sched.Enqueue("two\n")
	h.sched.Enqueue("three")
	assert.Equal(t, 2, h.sched.QueueLen())

	h.clock.Advance(5 * time.Second)
	assert.Equal(t, []string{"one two", "three"}, h.sched.Lines())
	assert.Zero(t, h.sched.QueueLen())
}

func TestGenerationBumpCancelsRun(t *testing.T) {
	h := newHarness()
	h.sched.Enqueue("hello world")
	require.Equal(t, []string{"h"}, h.sched.Lines())

	h.state.gen++
	h.clock.Advance(time.Second)
	assert.Equal(t, []string{"h"}, h.sched.Lines(), "remaining suffix is discarded")
	assert.False(t, h.sched.Processing())
}

func TestRestartResetThenNewChunk(t *testing.T) {
	h := newHarness()
	h.sched.Enqueue("hello world")

	h.state.gen++
	h.sched.Reset()
	h.sched.Enqueue("new")
	assert.True(t, h.sched.Processing(), "stale run still owns the processing flag")
	assert.Equal(t, []string{""}, h.sched.Lines())

	h.clock.Advance(time.Second)
	assert.Equal(t, []string{"new"}, h.sched.Lines())
	assert.False(t, h.sched.Processing())
}

func TestRestartingBlocksProcessing(t *testing.T) {
	h := newHarness()
	h.state.restarting = true
	h.sched.Enqueue("text")
	assert.False(t, h.sched.Processing())
	assert.Equal(t, 1, h.sched.QueueLen())
}

func TestHiddenRefusesToStart(t *testing.T) {
	h := newHarness()
	h.sched.SetVisible(false)
	h.sched.Enqueue("ab")
	h.clock.Advance(time.Second)
	assert.Equal(t, []string{""}, h.sched.Lines())
	assert.Equal(t, 1, h.sched.QueueLen())
}

func TestHiddenMidAnimationFlushesSuffix(t *testing.T) {
	h := newHarness()
	h.sched.Enqueue("hello\nworld")
	h.sched.Enqueue("!")
	require.Equal(t, []string{"h"}, h.sched.Lines())

	h.sched.SetVisible(false)
	h.clock.Advance(time.Second)
	assert.Equal(t, []string{"hello", "world"}, h.sched.Lines())
	assert.False(t, h.sched.Processing())
	assert.Equal(t, 1, h.sched.QueueLen(), "later chunks wait for visibility")

	h.sched.SetVisible(true)
	assert.Equal(t, []string{"hello", "world!"}, h.sched.Lines())
	assert.Zero(t, h.sched.QueueLen())
}

func TestVisibilityFlushIsSingleUpdate(t *testing.T) {
	h := newHarness()
	h.sched.Replace([]string{"old", "x"})
	h.sched.SetVisible(false)
	h.sched.Enqueue("ab")
	h.sched.Enqueue("c\nd")
	scroll := h.sched.ScrollSeq()
	before := h.changes

	h.sched.SetVisible(true)
	assert.Equal(t, []string{"old", "xabc", "d"}, h.sched.Lines())
	assert.Equal(t, before+1, h.changes)
	assert.Equal(t, scroll+1, h.sched.ScrollSeq())
	assert.False(t, h.sched.Processing())
	assert.Zero(t, h.clock.Pending())
}

func TestReplaceClearsQueueAndScrolls(t *testing.T) {
	h := newHarness()
	h.sched.SetVisible(false)
	h.sched.Enqueue("pending")
	h.sched.Replace(nil)
	assert.Equal(t, []string{""}, h.sched.Lines())
	assert.Zero(t, h.sched.QueueLen())
	assert.Equal(t, uint64(1), h.sched.ScrollSeq())
}

func TestLinesReturnsCopy(t *testing.T) {
	h := newHarness()
	lines := h.sched.Lines()
	lines[0] = "mutated"
	assert.Equal(t, []string{""}, h.sched.Lines())
}

func TestCursorBlink(t *testing.T) {
	h := newHarness()
	h.sched.StartBlink()
	assert.True(t, h.sched.CursorVisible())

	h.clock.Advance(500 * time.Millisecond)
	assert.False(t, h.sched.CursorVisible())
	h.clock.Advance(500 * time.Millisecond)
	assert.True(t, h.sched.CursorVisible())
	h.clock.Advance(500 * time.Millisecond)
	assert.False(t, h.sched.CursorVisible())

	h.sched.Enqueue(strings.Repeat("z", 40))
	assert.True(t, h.sched.CursorVisible(), "solid while typing")
	h.clock.Advance(500 * time.Millisecond)
	assert.True(t, h.sched.CursorVisible())

	h.sched.StopBlink()
	h.clock.Advance(5 * time.Second)
	assert.Zero(t, h.clock.Pending())
}

func TestCursorSolidWhileRestarting(t *testing.T) {
	h := newHarness()
	h.sched.StartBlink()
	h.clock.Advance(500 * time.Millisecond)
	require.False(t, h.sched.CursorVisible())
	h.state.restarting = true
	assert.True(t, h.sched.CursorVisible())
}

func TestResumeAfterRestartEnds(t *testing.T) {
	h := newHarness()
	h.state.restarting = true
	h.sched.Enqueue("later")
	require.False(t, h.sched.Processing())

	h.state.restarting = false
	h.sched.Resume()
	assert.True(t, h.sched.Processing())
	h.clock.Advance(time.Second)
	assert.Equal(t, []string{"later"}, h.sched.Lines())
}

// heldExecutor keeps timer callbacks until the test fires them. Stop never
// catches a callback, like a timer that fired just before being stopped.
type heldExecutor struct {
	now    time.Time
	timers []func()
}

type heldTimer struct{}

func (heldTimer) Stop() bool { return false }

func (e *heldExecutor) Now() time.Time { return e.now }
func (e *heldExecutor) Post(f func())  { f() }
func (e *heldExecutor) AfterFunc(_ time.Duration, f func()) clock.Timer {
	e.timers = append(e.timers, f)
	return heldTimer{}
}

func TestStaleBlinkTickDoesNotForkChain(t *testing.T) {
	exec := &heldExecutor{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	changes := 0
	sched := New(exec, &fakeState{}, Options{}, func() { changes++ })

	sched.StartBlink()
	sched.StopBlink()
	sched.StartBlink()
	require.Len(t, exec.timers, 2)

	exec.timers[0]()
	assert.Len(t, exec.timers, 2, "stale tick must not reschedule")
	assert.True(t, sched.CursorVisible())
	assert.Zero(t, changes)

	exec.timers[1]()
	assert.Len(t, exec.timers, 3)
	assert.False(t, sched.CursorVisible())
}

func TestResetDropsQueuedText(t *testing.T) {
	h := newHarness()
	h.state.restarting = true
	h.sched.Enqueue("one")
	h.sched.Enqueue("two")
	require.Equal(t, 2, h.sched.QueueLen())

	h.sched.Reset()
	assert.Zero(t, h.sched.QueueLen())
	assert.Equal(t, []string{""}, h.sched.Lines())
}
