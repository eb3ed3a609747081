// Package logging provides the coordinator's file logger. Logging is off by
// default; the config's debug flag turns on a JSON log under the state
// directory. TUI processes must never log to stdout or stderr.
package logging

import (
	"io"
	"log/slog"
	"os"
)

// FileLogger wraps a slog.Logger writing to the state-directory log file.
type FileLogger struct {
	Logger  *slog.Logger
	Close   func() error
	Path    string
	Enabled bool
}

// Nop returns a logger that discards everything.
func Nop() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

// NewFileLogger opens (or creates) the log file at path when debug is true.
// With debug false it returns a disabled logger and never touches the disk.
func NewFileLogger(path string, debug bool) (FileLogger, error) {
	nop := FileLogger{Logger: Nop(), Close: func() error { return nil }, Enabled: false}
	if !debug {
		return nop, nil
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nop, err
	}
	handler := slog.NewJSONHandler(file, &slog.HandlerOptions{Level: slog.LevelDebug})
	return FileLogger{
		Logger:  slog.New(handler),
		Close:   file.Close,
		Path:    path,
		Enabled: true,
	}, nil
}
