// Package engine wires transport, reconciler, session and scheduler onto one
// executor and publishes immutable snapshots for renderers.
package engine

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"thoughtstream/internal/domain"
	"thoughtstream/internal/infra/clock"
	"thoughtstream/internal/infra/tracer"
	"thoughtstream/internal/usecase/animate"
	"thoughtstream/internal/usecase/reconcile"
	"thoughtstream/internal/usecase/session"
)

// DefaultRestartReconnectDelay is how long after a restart signal the
// transport is forced to reconnect.
const DefaultRestartReconnectDelay = 100 * time.Millisecond

// Publisher is the subset of the event bus the engine needs.
type Publisher interface {
	Emit(ctx context.Context, eventType domain.EventType, payload any)
}

// Options configures an Engine.
type Options struct {
	Token                 string
	RestartReconnectDelay time.Duration
	Reconcile             reconcile.Options
	Session               session.Options
	Animation             animate.Options
}

// Engine is the actor that owns every piece of mutable stream state. All
// state is touched only from the executor.
type Engine struct {
	exec      clock.Executor
	transport domain.StreamTransport
	bus       Publisher
	logger    *slog.Logger
	opts      Options
	ctx       context.Context

	recon *reconcile.Reconciler
	sess  *session.Machine
	sched *animate.Scheduler

	connected      bool
	started        bool
	reconnectTimer clock.Timer
	reconnectEpoch uint64
	dirty          bool
	seq            uint64
	latest         atomic.Pointer[domain.Snapshot]
}

// New creates an engine. Bind the transport to Handlers before calling Start.
func New(exec clock.Executor, transport domain.StreamTransport, bus Publisher, logger *slog.Logger, opts Options) *Engine {
	if opts.RestartReconnectDelay <= 0 {
		opts.RestartReconnectDelay = DefaultRestartReconnectDelay
	}
	e := &Engine{
		exec:      exec,
		transport: transport,
		bus:       bus,
		logger:    logger.With("component", "engine"),
		opts:      opts,
		ctx:       context.Background(),
	}
	e.recon = reconcile.New(opts.Reconcile, exec.Now)
	e.sess = session.New(exec, opts.Session, e.changed)
	e.sched = animate.New(exec, e.sess, opts.Animation, e.changed)
	e.latest.Store(&domain.Snapshot{Lines: []string{""}, IsLoading: true, Prompt: opts.Session.DefaultPrompt})
	return e
}

// Handlers returns transport callbacks that hand every event to the executor.
func (e *Engine) Handlers() domain.StreamHandlers {
	return domain.StreamHandlers{
		OnOpen:     func() { e.exec.Post(e.handleOpen) },
		OnClose:    func() { e.exec.Post(e.handleClose) },
		OnError:    func(err error) { e.exec.Post(func() { e.handleError(err) }) },
		OnEnvelope: func(env domain.Envelope) { e.exec.Post(func() { e.handleEnvelope(env) }) },
		OnReject:   func(err error) { e.exec.Post(func() { e.handleReject(err) }) },
	}
}

// Start shows the loading indicator, starts the cursor and connects.
func (e *Engine) Start(ctx context.Context) {
	e.exec.Post(func() {
		if e.started {
			return
		}
		e.started = true
		e.ctx = ctx
		e.sess.ShowLoading()
		e.sched.StartBlink()
		e.transport.Connect(ctx)
	})
}

// Stop disconnects and cancels engine timers.
func (e *Engine) Stop() {
	e.exec.Post(func() {
		if !e.started {
			return
		}
		e.started = false
		e.reconnectEpoch++
		if e.reconnectTimer != nil {
			e.reconnectTimer.Stop()
			e.reconnectTimer = nil
		}
		e.sched.StopBlink()
		e.transport.Disconnect()
		e.connected = false
		e.changed()
	})
}

// SetVisible forwards a visibility transition to the scheduler.
func (e *Engine) SetVisible(visible bool) {
	e.exec.Post(func() { e.sched.SetVisible(visible) })
}

// Snapshot returns the most recently published snapshot. Safe from any goroutine.
func (e *Engine) Snapshot() domain.Snapshot {
	return *e.latest.Load()
}

func (e *Engine) handleOpen() {
	e.connected = true
	e.logger.Info("stream connected")
	if e.opts.Token != "" {
		e.transport.Send(map[string]string{"token": e.opts.Token})
	}
	e.bus.Emit(e.ctx, domain.EventConnected, nil)
	e.changed()
}

func (e *Engine) handleClose() {
	e.connected = false
	e.logger.Info("stream closed")
	e.bus.Emit(e.ctx, domain.EventDisconnected, nil)
	e.changed()
}

func (e *Engine) handleError(err error) {
	e.logger.Warn("stream error", "error", err)
	e.sess.HideLoading()
	e.bus.Emit(e.ctx, domain.EventTransportFailed, domain.ErrorPayload{
		Code:  domain.ErrorCodeOf(err),
		Error: err.Error(),
	})
}

func (e *Engine) handleReject(err error) {
	e.bus.Emit(e.ctx, domain.EventFrameRejected, domain.ErrorPayload{
		Code:  domain.ErrorCodeOf(err),
		Error: err.Error(),
	})
}

func (e *Engine) handleEnvelope(env domain.Envelope) {
	_, span := tracer.StartEnvelopeSpan(e.ctx, env)
	defer span.End()

	switch env.Kind() {
	case domain.EnvelopeHistory:
		e.applyHistory(env.Messages)
	default:
		for _, msg := range env.Messages {
			e.applyLive(msg)
		}
	}
	tracer.SetOK(span)
}

func (e *Engine) applyHistory(messages []domain.TelemetryMessage) {
	_, span := tracer.StartSpan(e.ctx, tracer.SpanHistory)
	defer span.End()

	e.recon.Reset()
	h := reconcile.Rebuild(messages)
	e.sched.Replace(h.Lines)
	e.sess.ApplyHistory(h)
	span.SetAttributes(tracer.IntAttr("lines", len(h.Lines)))

	e.logger.Debug("history applied", "messages", len(messages), "lines", len(h.Lines))
	e.bus.Emit(e.ctx, domain.EventHistoryApplied, domain.HistoryAppliedPayload{
		Messages: len(messages),
		Lines:    len(h.Lines),
	})
}

func (e *Engine) applyLive(msg domain.TelemetryMessage) {
	out := e.sess.Observe(msg)
	if out.Restarted {
		e.beginRestart(out.Silent)
		if out.Silent {
			return
		}
	}

	text, ok := e.recon.Live(msg.Text)
	if !ok {
		if out.Settled {
			e.sched.Resume()
		}
		return
	}
	e.sched.Enqueue(text)
	if !out.Restarted {
		e.sess.NoteQueued()
	}
}

func (e *Engine) beginRestart(silent bool) {
	e.recon.Reset()
	e.sched.Reset()
	e.logger.Info("server restarting", "num_restarts", e.sess.NumRestarts(), "silent", silent)
	e.bus.Emit(e.ctx, domain.EventRestarting, domain.RestartingPayload{
		NumRestarts: e.sess.NumRestarts(),
		Silent:      silent,
	})

	if e.reconnectTimer != nil {
		e.reconnectTimer.Stop()
	}
	e.reconnectEpoch++
	epoch := e.reconnectEpoch
	e.reconnectTimer = e.exec.AfterFunc(e.opts.RestartReconnectDelay, func() {
		if epoch != e.reconnectEpoch {
			return
		}
		e.reconnectTimer = nil
		if e.started {
			e.transport.Reconnect()
		}
	})
}

// changed marks the snapshot dirty and schedules one publish for however many
// changes the current callback makes.
func (e *Engine) changed() {
	if e.dirty {
		return
	}
	e.dirty = true
	e.exec.Post(e.publish)
}

func (e *Engine) publish() {
	e.dirty = false
	e.seq++
	snap := domain.Snapshot{
		Seq:           e.seq,
		Lines:         e.sched.Lines(),
		CursorVisible: e.sched.CursorVisible(),
		LastMemory:    e.sess.Memory(),
		NumRestarts:   e.sess.NumRestarts(),
		Prompt:        e.sess.Prompt(),
		IsLoading:     e.sess.Loading(),
		IsRestarting:  e.sess.Restarting(),
		IsProcessing:  e.sched.Processing(),
		Connected:     e.connected,
		ScrollSeq:     e.sched.ScrollSeq(),
	}
	e.latest.Store(&snap)
	e.bus.Emit(e.ctx, domain.EventSnapshot, snap)
}
