// Package animate drains the chunk queue into render lines with a typewriter
// cadence. The scheduler is a stepper: every character, line break and settle
// pause is one callback on the executor, and every callback re-checks the
// generation it was started under.
package animate

import (
	"math/rand/v2"
	"strings"
	"time"

	"thoughtstream/internal/domain"
	"thoughtstream/internal/infra/clock"
)

const (
	DefaultMinCharDelay = 25 * time.Millisecond
	DefaultMaxCharDelay = 50 * time.Millisecond
	DefaultSettleDelay  = 50 * time.Millisecond
	DefaultCursorBlink  = 500 * time.Millisecond
)

// State is the part of the session the scheduler consults before each step.
type State interface {
	Generation() uint64
	Restarting() bool
}

// Options configures typing cadence.
type Options struct {
	MinCharDelay time.Duration
	MaxCharDelay time.Duration
	SettleDelay  time.Duration
	CursorBlink  time.Duration
}

func (o Options) withDefaults() Options {
	if o.MinCharDelay <= 0 {
		o.MinCharDelay = DefaultMinCharDelay
	}
	if o.MaxCharDelay < o.MinCharDelay {
		o.MaxCharDelay = o.MinCharDelay
	}
	if o.SettleDelay <= 0 {
		o.SettleDelay = DefaultSettleDelay
	}
	if o.CursorBlink <= 0 {
		o.CursorBlink = DefaultCursorBlink
	}
	return o
}

// Scheduler owns RenderLines and the ChunkQueue. All methods must be called on
// the executor passed to New.
type Scheduler struct {
	exec     clock.Executor
	state    State
	opts     Options
	onChange func()

	lines      []string
	queue      []string
	visible    bool
	processing bool
	animating  bool

	cursorOn   bool
	blinkTimer clock.Timer
	blinkEpoch uint64
	scrollSeq  uint64
}

// New creates a visible, idle scheduler with a single empty active line.
func New(exec clock.Executor, state State, opts Options, onChange func()) *Scheduler {
	return &Scheduler{
		exec:     exec,
		state:    state,
		opts:     opts.withDefaults(),
		onChange: onChange,
		lines:    []string{""},
		visible:  true,
		cursorOn: true,
	}
}

// Lines returns a copy of the render lines. The result is never empty.
func (s *Scheduler) Lines() []string {
	out := make([]string, len(s.lines))
	copy(out, s.lines)
	return out
}

func (s *Scheduler) Processing() bool { return s.processing }
func (s *Scheduler) Animating() bool  { return s.animating }
func (s *Scheduler) Visible() bool    { return s.visible }
func (s *Scheduler) QueueLen() int    { return len(s.queue) }

// ScrollSeq increases every time the view must jump to the end.
func (s *Scheduler) ScrollSeq() uint64 { return s.scrollSeq }

// CursorVisible reports the blink state; the cursor is solid while text is
// being typed or a restart is underway.
func (s *Scheduler) CursorVisible() bool {
	return s.cursorOn || s.animating || s.processing || s.state.Restarting()
}

// Enqueue appends a chunk and starts draining if possible.
func (s *Scheduler) Enqueue(text string) {
	if text == "" {
		return
	}
	s.queue = append(s.queue, text)
	s.processQueue()
}

// Resume starts draining the queue if it is not already being drained.
func (s *Scheduler) Resume() { s.processQueue() }

// Reset replaces the buffer with one empty line and clears the queue. An
// in-flight run notices the bumped generation on its next step.
func (s *Scheduler) Reset() {
	s.lines = []string{""}
	s.queue = nil
	s.notify()
}

// Replace installs a rebuilt buffer in one update and scrolls to the end.
func (s *Scheduler) Replace(lines []string) {
	if len(lines) == 0 {
		lines = []string{""}
	}
	s.lines = make([]string, len(lines))
	copy(s.lines, lines)
	s.queue = nil
	s.scrollSeq++
	s.notify()
}

// SetVisible records a visibility transition. Becoming visible with a backlog
// and no active run replays the whole queue at once.
func (s *Scheduler) SetVisible(visible bool) {
	if s.visible == visible {
		return
	}
	s.visible = visible
	if !visible {
		return
	}
	if len(s.queue) > 0 && !s.processing {
		s.flushQueue()
	}
}

// StartBlink starts the cursor blink timer.
func (s *Scheduler) StartBlink() {
	if s.blinkTimer != nil {
		return
	}
	s.blinkEpoch++
	s.scheduleBlink(s.blinkEpoch)
}

// StopBlink stops the cursor blink timer.
func (s *Scheduler) StopBlink() {
	if s.blinkTimer != nil {
		s.blinkTimer.Stop()
		s.blinkTimer = nil
	}
	s.blinkEpoch++
}

func (s *Scheduler) scheduleBlink(epoch uint64) {
	s.blinkTimer = s.exec.AfterFunc(s.opts.CursorBlink, func() { s.blink(epoch) })
}

// blink toggles the cursor. A tick from a chain that was stopped is ignored.
func (s *Scheduler) blink(epoch uint64) {
	if epoch != s.blinkEpoch || s.blinkTimer == nil {
		return
	}
	prev := s.cursorOn
	if s.animating || s.processing || s.state.Restarting() {
		s.cursorOn = true
	} else {
		s.cursorOn = !s.cursorOn
	}
	if prev != s.cursorOn {
		s.notify()
	}
	s.scheduleBlink(epoch)
}

// run is the state of one processQueue pass.
type run struct {
	gen      uint64
	segments []string
	seg      int
	text     []rune
	pos      int
}

func (s *Scheduler) processQueue() {
	if s.processing || !s.visible || len(s.queue) == 0 || s.state.Restarting() {
		return
	}
	s.processing = true
	s.notify()
	s.nextChunk(&run{gen: s.state.Generation()})
}

func (s *Scheduler) stale(r *run) bool {
	return s.state.Restarting() || s.state.Generation() != r.gen
}

func (s *Scheduler) nextChunk(r *run) {
	if s.stale(r) || !s.visible || len(s.queue) == 0 {
		s.finish()
		return
	}
	chunk := s.queue[0]
	s.queue = s.queue[1:]
	r.segments = strings.Split(domain.NormalizeLineBreaks(chunk), "\n")
	r.seg = 0
	s.startSegment(r)
}

func (s *Scheduler) startSegment(r *run) {
	if s.stale(r) {
		s.finish()
		return
	}
	if !s.visible {
		s.flushSegments(r)
		s.finish()
		return
	}
	if r.seg >= len(r.segments) {
		s.nextChunk(r)
		return
	}
	if r.seg > 0 {
		s.lines = append(s.lines, "")
		s.notify()
		s.exec.AfterFunc(s.opts.SettleDelay, func() { s.typeSegment(r) })
		return
	}
	s.typeSegment(r)
}

func (s *Scheduler) typeSegment(r *run) {
	if s.stale(r) {
		s.finish()
		return
	}
	seg := r.segments[r.seg]
	if seg == "" {
		r.seg++
		s.startSegment(r)
		return
	}
	r.text = []rune(seg)
	r.pos = 0
	s.animating = true
	s.step(r)
}

// step types one character, or gives up on the segment when the run is stale
// or the view went hidden.
func (s *Scheduler) step(r *run) {
	if s.stale(r) {
		s.finish()
		return
	}
	if !s.visible {
		s.appendActive(string(r.text[r.pos:]))
		r.seg++
		s.flushSegments(r)
		s.finish()
		return
	}

	s.appendActive(string(r.text[r.pos]))
	r.pos++
	s.notify()

	if r.pos < len(r.text) {
		s.exec.AfterFunc(s.charDelay(), func() { s.step(r) })
		return
	}
	s.animating = false
	r.seg++
	s.exec.AfterFunc(s.opts.SettleDelay, func() { s.startSegment(r) })
}

// flushSegments appends the untyped remainder of the current chunk.
func (s *Scheduler) flushSegments(r *run) {
	for ; r.seg < len(r.segments); r.seg++ {
		if r.seg > 0 {
			s.lines = append(s.lines, "")
		}
		s.appendActive(r.segments[r.seg])
	}
}

func (s *Scheduler) finish() {
	s.processing = false
	s.animating = false
	s.notify()
	if len(s.queue) > 0 && s.visible && !s.state.Restarting() {
		s.exec.Post(s.processQueue)
	}
}

// flushQueue replays every queued chunk into the buffer in a single update.
func (s *Scheduler) flushQueue() {
	text := domain.NormalizeLineBreaks(strings.Join(s.queue, ""))
	s.queue = nil
	for i, seg := range strings.Split(text, "\n") {
		if i > 0 {
			s.lines = append(s.lines, "")
		}
		s.appendActive(seg)
	}
	s.scrollSeq++
	s.notify()
}

func (s *Scheduler) appendActive(text string) {
	if text == "" {
		return
	}
	s.lines[len(s.lines)-1] += text
}

func (s *Scheduler) charDelay() time.Duration {
	span := s.opts.MaxCharDelay - s.opts.MinCharDelay
	if span <= 0 {
		return s.opts.MinCharDelay
	}
	return s.opts.MinCharDelay + rand.N(span+1)
}

func (s *Scheduler) notify() {
	if s.onChange != nil {
		s.onChange()
	}
}
