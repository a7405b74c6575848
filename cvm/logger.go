package cvm

import (
	"log/slog"
	"os"
)

// LoggerFactory and Logger mirror the (msg, key, value, key, value...)
// calling convention the teacher's own log package uses throughout cvm/vm.go
// ("log.Error(\"StarMain\", \"error\", retValue)"). No structured-logging
// library appears anywhere in the retrieved example pack (grepped for
// logrus, log15, zap, zerolog — none found), so this wraps the standard
// library's log/slog rather than inventing a fake third-party dependency;
// see DESIGN.md.
type LoggerFactory struct {
	base *slog.Logger
}

func NewLoggerFactory(level slog.Level) *LoggerFactory {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return &LoggerFactory{base: slog.New(handler)}
}

// For returns a Logger scoped to a named subsystem, matching the teacher's
// per-subsystem levels ("log.level.classloader", "log.level.io", ...).
func (f *LoggerFactory) For(subsystem string) *Logger {
	return &Logger{l: f.base.With("subsystem", subsystem)}
}

type Logger struct {
	l *slog.Logger
}

func (l *Logger) Info(msg string, kv ...interface{})  { l.l.Info(msg, kv...) }
func (l *Logger) Warn(msg string, kv ...interface{})  { l.l.Warn(msg, kv...) }
func (l *Logger) Error(msg string, kv ...interface{}) { l.l.Error(msg, kv...) }
func (l *Logger) Debug(msg string, kv ...interface{}) { l.l.Debug(msg, kv...) }
