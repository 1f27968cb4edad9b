package console

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"thoughtstream/internal/domain"
	"thoughtstream/internal/usecase/eventbus"
)

func newTestPrinter() (*Printer, *bytes.Buffer) {
	var buf bytes.Buffer
	return NewPrinter(&buf, slog.New(slog.NewTextHandler(io.Discard, nil))), &buf
}

func snap(seq uint64, lines ...string) domain.Snapshot {
	return domain.Snapshot{Seq: seq, Lines: lines}
}

func TestPrintsCompletedLinesOnce(t *testing.T) {
	p, buf := newTestPrinter()
	require.NoError(t, p.Apply(snap(1, "hel")))
	require.NoError(t, p.Apply(snap(2, "hello", "wor")))
	require.NoError(t, p.Apply(snap(3, "hello", "world", "")))
	require.NoError(t, p.Apply(snap(4, "hello", "world", "again")))

	assert.Equal(t, "hello\nworld\n", buf.String())
}

func TestIgnoresStaleSnapshots(t *testing.T) {
	p, buf := newTestPrinter()
	require.NoError(t, p.Apply(snap(5, "a", "b", "")))
	require.NoError(t, p.Apply(snap(4, "x", "")))
	assert.Equal(t, "a\nb\n", buf.String())
}

func TestRebuiltHistoryPrintsOnlyNewLines(t *testing.T) {
	p, buf := newTestPrinter()
	require.NoError(t, p.Apply(snap(1, "one", "two", "")))
	require.NoError(t, p.Apply(snap(2, "")))
	require.NoError(t, p.Apply(snap(3, "one", "two", "three", "")))

	assert.Equal(t, "one\ntwo\nthree\n", buf.String())
}

func TestDivergentHistoryReprintsFromDivergence(t *testing.T) {
	p, buf := newTestPrinter()
	require.NoError(t, p.Apply(snap(1, "one", "two", "")))
	require.NoError(t, p.Apply(snap(2, "one", "TWO", "three", "")))

	assert.Equal(t, "one\ntwo\nTWO\nthree\n", buf.String())
}

func TestFlushWritesPendingActiveLine(t *testing.T) {
	p, buf := newTestPrinter()
	require.NoError(t, p.Apply(snap(1, "done", "partial")))
	require.NoError(t, p.Flush())
	require.NoError(t, p.Flush())
	assert.Equal(t, "done\npartial\n", buf.String())
}

func TestRunConsumesBusSnapshots(t *testing.T) {
	p, buf := newTestPrinter()
	bus := eventbus.New(slog.New(slog.NewTextHandler(io.Discard, nil)), domain.EventSnapshot)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- p.Run(ctx, bus) }()

	bus.Emit(context.Background(), domain.EventSnapshot, snap(1, "from bus", "tail"))
	require.Eventually(t, func() bool {
		p.mu.Lock()
		defer p.mu.Unlock()
		return p.seq == 1
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	bus.Close()
	assert.Equal(t, "from bus\ntail\n", buf.String())
}
