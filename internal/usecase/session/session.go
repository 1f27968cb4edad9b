// Package session implements the loading/active/restarting state machine and
// owns the generation token shared with the animation scheduler.
package session

import (
	"time"

	"thoughtstream/internal/domain"
	"thoughtstream/internal/infra/clock"
	"thoughtstream/internal/usecase/reconcile"
)

// DefaultMinLoading is the minimum time the loading indicator stays visible.
const DefaultMinLoading = time.Second

// Phase is the coarse lifecycle state.
type Phase int

const (
	PhaseLoading Phase = iota
	PhaseActive
	PhaseRestarting
)

func (p Phase) String() string {
	switch p {
	case PhaseLoading:
		return "loading"
	case PhaseActive:
		return "active"
	case PhaseRestarting:
		return "restarting"
	default:
		return "unknown"
	}
}

// Options configures a Machine.
type Options struct {
	MinLoading    time.Duration
	DefaultPrompt string
}

// Outcome reports what a live message did to the session.
type Outcome struct {
	Restarted bool // the message began a restart
	Silent    bool // restart with blank text; the message must not be processed further
	Settled   bool // the message ended an in-progress restart
}

// Machine tracks session phase, telemetry and the generation token. All
// methods must be called from the executor passed to New.
type Machine struct {
	exec     clock.Executor
	opts     Options
	onChange func()

	gen           uint64
	restarting    bool
	awaiting      bool // latch: waiting for the first post-restart message
	historyLoaded bool

	loading      bool
	loadingSince time.Time
	loadingEpoch uint64
	hideTimer    clock.Timer

	memory      *domain.Memory
	prompt      string
	numRestarts int
}

// New creates a Machine in the loading phase with the indicator hidden;
// callers show it when they start connecting.
func New(exec clock.Executor, opts Options, onChange func()) *Machine {
	if opts.MinLoading <= 0 {
		opts.MinLoading = DefaultMinLoading
	}
	return &Machine{
		exec:     exec,
		opts:     opts,
		onChange: onChange,
		prompt:   opts.DefaultPrompt,
	}
}

// Phase derives the current phase from the restart and loading flags.
func (m *Machine) Phase() Phase {
	switch {
	case m.restarting:
		return PhaseRestarting
	case m.loading || !m.historyLoaded:
		return PhaseLoading
	default:
		return PhaseActive
	}
}

// Generation returns the current cancellation epoch.
func (m *Machine) Generation() uint64 { return m.gen }

// BumpGeneration invalidates every animation started under the current epoch.
func (m *Machine) BumpGeneration() uint64 {
	m.gen++
	return m.gen
}

func (m *Machine) Restarting() bool          { return m.restarting }
func (m *Machine) AwaitingPostRestart() bool { return m.awaiting }
func (m *Machine) HistoryLoaded() bool       { return m.historyLoaded }
func (m *Machine) Loading() bool             { return m.loading }
func (m *Machine) Prompt() string            { return m.prompt }
func (m *Machine) NumRestarts() int          { return m.numRestarts }

// Memory returns a copy of the last memory snapshot, or nil.
func (m *Machine) Memory() *domain.Memory {
	if m.memory == nil {
		return nil
	}
	mem := *m.memory
	return &mem
}

// ShowLoading displays the indicator, records when it was shown and cancels
// any deferred hide.
func (m *Machine) ShowLoading() {
	if m.hideTimer != nil {
		m.hideTimer.Stop()
		m.hideTimer = nil
	}
	m.loading = true
	m.loadingSince = m.exec.Now()
	m.loadingEpoch++
	m.notify()
}

// HideLoading hides the indicator once it has been visible for MinLoading.
// A pending deferred hide is replaced.
func (m *Machine) HideLoading() {
	if !m.loading {
		return
	}
	if m.hideTimer != nil {
		m.hideTimer.Stop()
		m.hideTimer = nil
	}

	remaining := m.opts.MinLoading - m.exec.Now().Sub(m.loadingSince)
	if remaining <= 0 {
		m.loading = false
		m.notify()
		return
	}

	epoch := m.loadingEpoch
	m.hideTimer = m.exec.AfterFunc(remaining, func() {
		if m.loadingEpoch != epoch || !m.loading {
			return
		}
		m.hideTimer = nil
		m.loading = false
		m.notify()
	})
}

// Observe applies the status and telemetry fields of one live message.
func (m *Machine) Observe(msg domain.TelemetryMessage) Outcome {
	var out Outcome

	if msg.Status != nil && msg.Status.NumRestarts != nil {
		m.numRestarts = *msg.Status.NumRestarts
	}

	switch {
	case msg.Status.Restarting():
		m.beginRestart()
		out.Restarted = true
		if msg.IsBlank() {
			out.Silent = true
			m.notify()
			return out
		}
	case msg.Status.Settled():
		if m.restarting {
			m.restarting = false
			out.Settled = true
		}
		if m.awaiting {
			m.awaiting = false
			out.Settled = true
			m.HideLoading()
		}
	}

	if msg.Memory != nil {
		mem := *msg.Memory
		m.memory = &mem
	}
	if msg.Prompt != nil {
		m.prompt = *msg.Prompt
	}
	m.notify()
	return out
}

// NoteQueued is called whenever non-empty live text is queued. The first one
// after a restart releases the latch.
func (m *Machine) NoteQueued() {
	if !m.awaiting {
		return
	}
	m.awaiting = false
	m.HideLoading()
}

// ApplyHistory records telemetry from a history replay, ends any restart and
// requests the loading indicator be hidden.
func (m *Machine) ApplyHistory(h reconcile.History) {
	m.gen++
	m.restarting = false
	m.historyLoaded = true
	if h.Memory != nil {
		mem := *h.Memory
		m.memory = &mem
	}
	if h.Prompt != nil {
		m.prompt = *h.Prompt
	}
	if h.NumRestarts != nil {
		m.numRestarts = *h.NumRestarts
	}
	m.HideLoading()
	m.notify()
}

func (m *Machine) beginRestart() {
	m.restarting = true
	m.gen++
	m.memory = nil
	m.prompt = m.opts.DefaultPrompt
	m.historyLoaded = false
	m.ShowLoading()
	m.awaiting = true
}

func (m *Machine) notify() {
	if m.onChange != nil {
		m.onChange()
	}
}
