// Package console prints the stream headlessly, one completed line at a time.
package console

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"thoughtstream/internal/domain"
)

// Printer writes every completed render line to w exactly once. When the
// buffer is rebuilt (history after a reconnect or restart) only lines that
// differ from what was already printed, or extend it, are written.
type Printer struct {
	mu      sync.Mutex
	w       io.Writer
	logger  *slog.Logger
	seq     uint64
	printed []string
	active  string
}

// NewPrinter creates a printer writing to w.
func NewPrinter(w io.Writer, logger *slog.Logger) *Printer {
	return &Printer{w: w, logger: logger.With("component", "console")}
}

// Apply consumes one snapshot. Snapshots not newer than the last applied one
// are ignored.
func (p *Printer) Apply(snap domain.Snapshot) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if snap.Seq != 0 && snap.Seq <= p.seq {
		return nil
	}
	p.seq = snap.Seq
	p.active = snap.ActiveLine()

	completed := snap.CompletedLines()
	common := 0
	for common < len(completed) && common < len(p.printed) && completed[common] == p.printed[common] {
		common++
	}
	if common == len(completed) {
		// Nothing new; a shorter buffer is a reset that history will refill.
		return nil
	}

	for _, line := range completed[common:] {
		if _, err := fmt.Fprintln(p.w, line); err != nil {
			return err
		}
	}
	p.printed = append(p.printed[:0], completed...)
	return nil
}

// Flush writes the active line if it holds text that was never completed.
func (p *Printer) Flush() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.active == "" {
		return nil
	}
	_, err := fmt.Fprintln(p.w, p.active)
	p.active = ""
	return err
}

// Run subscribes to snapshots until ctx is done, then flushes.
func (p *Printer) Run(ctx context.Context, bus domain.EventBus) error {
	unsub := bus.Subscribe(domain.EventSnapshot, func(_ context.Context, event domain.Event) {
		snap, err := domain.DecodeSnapshot(event)
		if err != nil {
			p.logger.Warn("console: bad snapshot payload", "error", err)
			return
		}
		if err := p.Apply(snap); err != nil {
			p.logger.Error("console: write failed", "error", err)
		}
	})
	defer unsub()

	unsubRestart := bus.Subscribe(domain.EventRestarting, func(_ context.Context, _ domain.Event) {
		p.logger.Info("server restarting")
	})
	defer unsubRestart()

	<-ctx.Done()
	return p.Flush()
}
