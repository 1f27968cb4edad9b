package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"thoughtstream/internal/adapter/console"
	"thoughtstream/internal/adapter/stream"
	"thoughtstream/internal/adapter/tui/monitor"
	"thoughtstream/internal/domain"
	"thoughtstream/internal/infra/clock"
	"thoughtstream/internal/infra/config"
	"thoughtstream/internal/infra/logger"
	"thoughtstream/internal/infra/tracer"
	"thoughtstream/internal/usecase/animate"
	"thoughtstream/internal/usecase/engine"
	"thoughtstream/internal/usecase/eventbus"
	"thoughtstream/internal/usecase/reconcile"
	"thoughtstream/internal/usecase/session"
)

const shutdownTimeout = 2 * time.Second

// pipeline is the running core: the executor loop, the transport and the
// engine that owns all stream state.
type pipeline struct {
	log    *slog.Logger
	bus    *eventbus.Bus
	loop   *clock.Loop
	engine *engine.Engine
	client *stream.Client

	cancelLoop context.CancelFunc
	loopDone   chan struct{}
	cleanup    []func()

	// fallback reports failures after log has been closed.
	fallback *slog.Logger
}

// startPipeline builds every component from cfg and starts the engine. In
// terminal mode log and trace output that would land on the terminal is
// discarded.
func startPipeline(ctx context.Context, cfg *config.Config, terminal bool) (*pipeline, error) {
	logCfg, traceCfg := cfg.Logger, cfg.Tracer
	if terminal {
		logCfg = logger.OffTerminal(logCfg)
		traceCfg.Output = logger.OffTerminal(config.LoggerConfig{Output: traceCfg.Output}).Output
	}

	log, logCloser, err := logger.New(logCfg)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	p := &pipeline{log: log, loopDone: make(chan struct{}), fallback: slog.Default()}
	p.cleanup = append(p.cleanup, p.closeLog(logCloser))

	tracerShutdown, err := tracer.Setup(ctx, traceCfg)
	if err != nil {
		p.close()
		return nil, fmt.Errorf("tracer: %w", err)
	}
	p.cleanup = append(p.cleanup, p.shutdownTracer(tracerShutdown))

	p.bus = eventbus.New(log, domain.EventSnapshot)
	p.cleanup = append(p.cleanup, p.bus.Close)

	p.client, err = stream.NewClient(stream.Options{
		URL:            cfg.Stream.URL,
		ConnectTimeout: cfg.Stream.ConnectTimeout,
		ReconnectDelay: cfg.Stream.ReconnectDelay,
		ReadLimit:      cfg.Stream.ReadLimit,
		SendRate:       cfg.Stream.SendRate,
		SendBurst:      cfg.Stream.SendBurst,
	}, domain.StreamHandlers{}, log)
	if err != nil {
		p.close()
		return nil, fmt.Errorf("stream: %w", err)
	}

	p.loop = clock.NewLoop(clock.Real())
	loopCtx, cancelLoop := context.WithCancel(context.Background())
	p.cancelLoop = cancelLoop
	go func() {
		defer close(p.loopDone)
		p.loop.Run(loopCtx)
	}()

	p.engine = engine.New(p.loop, p.client, p.bus, log, engine.Options{
		Token:                 cfg.Stream.Token,
		RestartReconnectDelay: cfg.Session.RestartReconnectDelay,
		Reconcile: reconcile.Options{
			MinOverlap:      cfg.Reconcile.MinOverlap,
			DuplicateWindow: cfg.Reconcile.DuplicateWindow,
			BacklogCap:      cfg.Reconcile.BacklogCap,
			BacklogKeep:     cfg.Reconcile.BacklogKeep,
		},
		Session: session.Options{
			MinLoading:    cfg.Session.MinLoading,
			DefaultPrompt: cfg.Session.DefaultPrompt,
		},
		Animation: animate.Options{
			MinCharDelay: cfg.Animation.MinCharDelay,
			MaxCharDelay: cfg.Animation.MaxCharDelay,
			SettleDelay:  cfg.Animation.SettleDelay,
			CursorBlink:  cfg.Animation.CursorBlink,
		},
	})
	p.client.SetHandlers(p.engine.Handlers())

	log.Info("starting", "url", cfg.Stream.URL)
	p.engine.Start(ctx)
	return p, nil
}

// stop disconnects, drains the loop and releases resources in reverse order.
func (p *pipeline) stop() {
	p.engine.Stop()
	drained := make(chan struct{})
	p.loop.Post(func() { close(drained) })
	select {
	case <-drained:
	case <-time.After(shutdownTimeout):
		p.log.Warn("engine did not stop in time")
	}
	p.cancelLoop()
	<-p.loopDone
	p.close()
}

func (p *pipeline) close() {
	for i := len(p.cleanup) - 1; i >= 0; i-- {
		p.cleanup[i]()
	}
}

func (p *pipeline) shutdownTracer(shutdown func(context.Context) error) func() {
	return func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdown(sctx); err != nil {
			p.log.Warn("tracer shutdown failed", "error", err)
		}
	}
}

func (p *pipeline) closeLog(closer func() error) func() {
	return func() {
		if err := closer(); err != nil {
			p.fallback.Warn("log output close failed", "error", err)
		}
	}
}

func runMonitor(ctx context.Context, cfg *config.Config) error {
	p, err := startPipeline(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer p.stop()

	mon := monitor.New(p.bus, monitor.Options{
		Title:     cfg.Display.Title,
		AltScreen: cfg.Display.AltScreen,
	}, p.engine.SetVisible, p.log)
	if err := mon.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("monitor: %w", err)
	}
	return nil
}

func runTail(ctx context.Context, cfg *config.Config, out io.Writer) error {
	p, err := startPipeline(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer p.stop()

	printer := console.NewPrinter(out, p.log)
	return printer.Run(ctx, p.bus)
}
