package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"thoughtstream/internal/domain"
)

// Options configures the terminal program.
type Options struct {
	Title     string
	AltScreen bool
}

// Monitor runs the Bubble Tea program and bridges engine events into it.
type Monitor struct {
	logger  *slog.Logger
	bus     domain.EventBus
	opts    Options
	program *tea.Program
	visible func(bool)
}

// New creates a monitor. visible is called on terminal focus changes.
func New(bus domain.EventBus, opts Options, visible func(bool), logger *slog.Logger) *Monitor {
	return &Monitor{
		logger:  logger.With("component", "monitor"),
		bus:     bus,
		opts:    opts,
		visible: visible,
	}
}

// Run creates the Bubble Tea program and blocks until it exits or ctx is
// cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	model := NewModel(ModelDeps{
		Title:        m.opts.Title,
		OnVisibility: m.visible,
		Logger:       m.logger,
	})

	progOpts := []tea.ProgramOption{
		tea.WithReportFocus(),
		tea.WithMouseCellMotion(),
		tea.WithContext(ctx),
	}
	if m.opts.AltScreen {
		progOpts = append(progOpts, tea.WithAltScreen())
	}
	m.program = tea.NewProgram(model, progOpts...)

	fwdCtx, stopFwd := context.WithCancel(ctx)
	defer stopFwd()
	snaps := newLatestSnapshot()
	go snaps.forward(fwdCtx, m.program.Send)

	unsubSnap := m.bus.Subscribe(domain.EventSnapshot, func(_ context.Context, event domain.Event) {
		snap, err := domain.DecodeSnapshot(event)
		if err != nil {
			m.logger.Warn("monitor: bad snapshot payload", "error", err)
			return
		}
		snaps.offer(snap)
	})
	defer unsubSnap()

	unsubErr := m.bus.Subscribe(domain.EventTransportFailed, func(_ context.Context, event domain.Event) {
		m.program.Send(NoticeMsg{Text: noticeText(event)})
	})
	defer unsubErr()

	unsubOpen := m.bus.Subscribe(domain.EventConnected, func(_ context.Context, _ domain.Event) {
		m.program.Send(NoticeMsg{})
	})
	defer unsubOpen()

	_, err := m.program.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

// Stop signals the program to quit.
func (m *Monitor) Stop() {
	if m.program != nil {
		m.program.Send(QuitMsg{})
	}
}

// latestSnapshot holds at most one undelivered snapshot. A newer offer
// replaces it, so a slow renderer skips intermediate frames instead of
// queueing them.
type latestSnapshot struct {
	mu      sync.Mutex
	pending *domain.Snapshot
	ready   chan struct{}
}

func newLatestSnapshot() *latestSnapshot {
	return &latestSnapshot{ready: make(chan struct{}, 1)}
}

// offer never blocks.
func (l *latestSnapshot) offer(snap domain.Snapshot) {
	l.mu.Lock()
	if l.pending == nil || snap.Seq > l.pending.Seq {
		l.pending = &snap
	}
	l.mu.Unlock()

	select {
	case l.ready <- struct{}{}:
	default:
	}
}

func (l *latestSnapshot) take() (domain.Snapshot, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.pending == nil {
		return domain.Snapshot{}, false
	}
	snap := *l.pending
	l.pending = nil
	return snap, true
}

// forward delivers pending snapshots one at a time until ctx is done.
func (l *latestSnapshot) forward(ctx context.Context, send func(tea.Msg)) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-l.ready:
		}
		if snap, ok := l.take(); ok {
			send(SnapshotMsg{Snapshot: snap})
		}
	}
}

// noticeText extracts a short status-bar notice from an error event.
func noticeText(event domain.Event) string {
	var payload domain.ErrorPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil || payload.Code == "" {
		return "stream error"
	}
	return "stream error: " + string(payload.Code)
}
