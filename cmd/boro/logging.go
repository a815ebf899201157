package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
)

// splitHandler sends records at ERROR and above to err and the rest to out.
type splitHandler struct {
	level slog.Level
	out   slog.Handler
	err   slog.Handler
}

func (h *splitHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *splitHandler) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= slog.LevelError {
		return h.err.Handle(ctx, r)
	}
	return h.out.Handle(ctx, r)
}

func (h *splitHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &splitHandler{level: h.level, out: h.out.WithAttrs(attrs), err: h.err.WithAttrs(attrs)}
}

func (h *splitHandler) WithGroup(name string) slog.Handler {
	return &splitHandler{level: h.level, out: h.out.WithGroup(name), err: h.err.WithGroup(name)}
}

func newHandler(w io.Writer, format string, opts *slog.HandlerOptions) slog.Handler {
	if format == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// setupLogger installs the default logger. When logPath is set every record
// is also appended to that file; the returned func closes it.
func setupLogger(logPath, format string, level slog.Level) (*slog.Logger, func(), error) {
	var (
		out     io.Writer = os.Stdout
		errW    io.Writer = os.Stderr
		closeFn           = func() {}
	)
	if logPath != "" {
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("opening log file: %w", err)
		}
		out, errW = io.MultiWriter(os.Stdout, f), io.MultiWriter(os.Stderr, f)
		closeFn = func() { f.Close() }
	}

	opts := &slog.HandlerOptions{Level: level}
	logger := slog.New(&splitHandler{
		level: level,
		out:   newHandler(out, format, opts),
		err:   newHandler(errW, format, opts),
	})
	slog.SetDefault(logger)
	return logger, closeFn, nil
}
