package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"pkt.systems/pslog"
)

func levelOptions(opts pslog.Options, level string) pslog.Options {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		opts.MinLevel = pslog.TraceLevel
	case "debug":
		opts.MinLevel = pslog.DebugLevel
	case "warn", "warning":
		opts.MinLevel = pslog.WarnLevel
	case "error":
		opts.MinLevel = pslog.ErrorLevel
	default:
		opts.MinLevel = pslog.InfoLevel
	}
	return opts
}

func newConsoleLogger(level string) pslog.Logger {
	return newLogger(os.Stderr, pslog.Options{Mode: pslog.ModeConsole, NoColor: !isTerminal(os.Stderr)}, level)
}

func newLogger(w io.Writer, opts pslog.Options, level string) pslog.Logger {
	return pslog.NewWithOptions(w, levelOptions(opts, level))
}

// newFileLogger appends structured logs to path, creating its directory.
func newFileLogger(path, level string) (pslog.Logger, func(), error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	logger := newLogger(f, pslog.Options{Mode: pslog.ModeStructured, NoColor: true}, level)
	return logger, func() { _ = f.Close() }, nil
}
