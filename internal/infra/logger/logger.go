package logger

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	slogmulti "github.com/samber/slog-multi"

	"thoughtstream/internal/infra/config"
)

// New creates a configured *slog.Logger. Output may name several targets
// separated by commas ("stderr,/var/log/thoughtstream.log"); records fan out
// to all of them.
// The returned closer function should be deferred to flush/close file handles.
func New(cfg config.LoggerConfig) (*slog.Logger, func() error, error) {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}

	var (
		handlers []slog.Handler
		closers  []func() error
	)
	closeAll := func() error {
		var errs []error
		for _, c := range closers {
			errs = append(errs, c())
		}
		return errors.Join(errs...)
	}

	for _, output := range splitOutputs(cfg.Output) {
		writer, closer, err := OpenOutput(output)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("open log output: %w", err)
		}
		closers = append(closers, closer)
		handlers = append(handlers, newHandler(cfg.Format, writer, opts))
	}

	if len(handlers) == 1 {
		return slog.New(handlers[0]), closeAll, nil
	}
	return slog.New(slogmulti.Fanout(handlers...)), closeAll, nil
}

func newHandler(format string, w io.Writer, opts *slog.HandlerOptions) slog.Handler {
	switch strings.ToLower(format) {
	case "json":
		return slog.NewJSONHandler(w, opts)
	default:
		return slog.NewTextHandler(w, opts)
	}
}

// OffTerminal drops stdout and stderr from the outputs so log lines do not
// tear a full-screen renderer. With nothing left the output is "discard".
func OffTerminal(cfg config.LoggerConfig) config.LoggerConfig {
	var kept []string
	for _, output := range splitOutputs(cfg.Output) {
		switch strings.ToLower(output) {
		case "stdout", "stderr", "", "discard":
			continue
		}
		kept = append(kept, output)
	}
	if len(kept) == 0 {
		cfg.Output = "discard"
	} else {
		cfg.Output = strings.Join(kept, ",")
	}
	return cfg
}

func splitOutputs(s string) []string {
	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// parseLevel converts a string level to slog.Level.
func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// OpenOutput returns an io.Writer for the named target: stdout, stderr
// (the default), discard, or a file path opened for append.
func OpenOutput(output string) (io.Writer, func() error, error) {
	noop := func() error { return nil }

	switch strings.ToLower(output) {
	case "stdout":
		return os.Stdout, noop, nil
	case "stderr", "":
		return os.Stderr, noop, nil
	case "discard":
		return io.Discard, noop, nil
	default:
		f, err := os.OpenFile(output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
		if err != nil {
			return nil, nil, err
		}
		return f, f.Close, nil
	}
}
